package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var worksheetCmd = &cobra.Command{
	Use:   "worksheet",
	Short: "Print a worksheet drawn from a library",
	RunE: func(cmd *cobra.Command, args []string) error {
		poolID, _ := cmd.Flags().GetString("pool")
		size, _ := cmd.Flags().GetInt("size")
		answers, _ := cmd.Flags().GetBool("answers")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ws, err := a.Worksheets.Generate(cmd.Context(), poolID, size, answers)
		if err != nil {
			return err
		}

		body := ws.Markdown
		switch format {
		case "markdown", "md":
		case "html":
			if body, err = a.Worksheets.RenderHTML(ws.Markdown); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown format %q: use markdown or html", format)
		}

		if output == "" || output == "-" {
			_, err = fmt.Fprint(cmd.OutOrStdout(), body)
			return err
		}
		if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
			return fmt.Errorf("write worksheet: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d questions to %s\n", len(ws.Questions), output)
		return nil
	},
}

func init() {
	worksheetCmd.Flags().String("pool", "", "library id (default: last built)")
	worksheetCmd.Flags().Int("size", 0, "number of questions (default from config)")
	worksheetCmd.Flags().Bool("answers", false, "append an answer key")
	worksheetCmd.Flags().String("format", "markdown", "output format: markdown or html")
	worksheetCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")

	rootCmd.AddCommand(worksheetCmd)
}
