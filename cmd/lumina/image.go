package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lumina/pkg/imagesearch"
)

var imageCmd = &cobra.Command{
	Use:   "image <query>",
	Short: "Look up a Pexels photo for a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.Settings.EffectivePexelsKey(cmd.Context())
		if err != nil {
			return err
		}
		result, err := a.Images.SearchWithOptions(cmd.Context(), strings.Join(args, " "), &imagesearch.SearchOptions{APIKey: key})
		if err != nil {
			return err
		}
		photo := result.Photos[0]
		fmt.Fprintln(cmd.OutOrStdout(), photo.URL)
		if photo.Photographer != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Photo by %s on Pexels\n", photo.Photographer)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
}
