package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"lumina/internal/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change learner settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		settings, err := a.Settings.Load(cmd.Context())
		if err != nil {
			return err
		}
		if settings.PexelsKey != "" {
			settings.PexelsKey = maskKey(settings.PexelsKey)
		}
		out, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update one or more settings",
	Long: `Set updates only the settings whose flags are given. Age is clamped to
5..99 and font size to 14..20. A Pexels key of 10 characters or fewer is
ignored; an empty key resets to the configured default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		update := settingsUpdateFromFlags(cmd)

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		settings, err := a.Settings.Save(cmd.Context(), update)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved. Age %d, font %dpx, dark mode %t\n", settings.Age, settings.FontSize, settings.DarkMode)
		return nil
	},
}

var settingsSignOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Forget every setting and the last-built library",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Settings.SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

func init() {
	settingsSetCmd.Flags().String("name", "", "learner name")
	settingsSetCmd.Flags().Int("age", 0, "learner age")
	settingsSetCmd.Flags().Bool("dark", false, "dark mode")
	settingsSetCmd.Flags().Int("font-size", 0, "font size in px")
	settingsSetCmd.Flags().String("pexels-key", "", "personal Pexels API key")
	settingsSetCmd.Flags().String("topic", "", "default topic")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsSignOutCmd)
	rootCmd.AddCommand(settingsCmd)
}

func settingsUpdateFromFlags(cmd *cobra.Command) services.SettingsUpdate {
	var update services.SettingsUpdate
	flags := cmd.Flags()
	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		update.Username = &v
	}
	if flags.Changed("age") {
		v, _ := flags.GetInt("age")
		update.Age = &v
	}
	if flags.Changed("dark") {
		v, _ := flags.GetBool("dark")
		update.DarkMode = &v
	}
	if flags.Changed("font-size") {
		v, _ := flags.GetInt("font-size")
		update.FontSize = &v
	}
	if flags.Changed("pexels-key") {
		v, _ := flags.GetString("pexels-key")
		update.PexelsKey = &v
	}
	if flags.Changed("topic") {
		v, _ := flags.GetString("topic")
		update.Topic = &v
	}
	return update
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
