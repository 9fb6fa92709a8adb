package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "List question libraries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pools, err := a.Library.ListPools(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(pools) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Library is empty. Run `lumina build` first.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTOPIC\tZONE\tQUESTIONS\tCREATED")
		for _, p := range pools {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Topic, p.Zone, p.QuestionCount, p.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

func init() {
	poolsCmd.Flags().Int("limit", 20, "maximum number of libraries to list")

	rootCmd.AddCommand(poolsCmd)
}
