package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lumina/internal/services"
)

var buildCmd = &cobra.Command{
	Use:   "build <notes.pdf>",
	Short: "Generate a question library from a PDF",
	Long: `Build reads the text of a PDF, asks the language model for
multiple-choice questions about the topic, and stores them as the new
last-built library.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("topic", "", "what the questions should be about (required)")
	buildCmd.Flags().Int("age", 0, "learner age, picks the difficulty zone (default from settings)")
	buildCmd.Flags().Int("count", 0, "number of questions to generate (default from config)")
	_ = buildCmd.MarkFlagRequired("topic")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	topic, _ := cmd.Flags().GetString("topic")
	age, _ := cmd.Flags().GetInt("age")
	count, _ := cmd.Flags().GetInt("count")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if age == 0 {
		settings, err := a.Settings.Load(ctx)
		if err != nil {
			return err
		}
		age = settings.Age
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := a.Documents.Create(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	pool, err := a.Ingestion.BuildLibraryWithProgress(ctx, services.BuildRequest{
		Topic:    topic,
		Age:      age,
		Count:    count,
		Document: doc,
	}, func(step, message string, current, total int) {
		fmt.Fprintf(out, "[%3d%%] %s\n", current*100/max(total, 1), message)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Built %d %s questions on %q (pool %s)\n", len(pool.Questions), pool.Zone, pool.Topic, pool.ID)
	return nil
}
