package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lumina/internal/services"
)

var flashcardsCmd = &cobra.Command{
	Use:   "flashcards",
	Short: "Review a library as spaced-repetition flashcards",
	RunE: func(cmd *cobra.Command, args []string) error {
		poolID, _ := cmd.Flags().GetString("pool")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return runFlashcards(cmd.Context(), a.Flashcards, poolID, limit, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	flashcardsCmd.Flags().String("pool", "", "library id (default: last built)")
	flashcardsCmd.Flags().Int("limit", 20, "stop after this many reviews")

	rootCmd.AddCommand(flashcardsCmd)
}

func runFlashcards(ctx context.Context, cards *services.FlashcardService, poolID string, limit int, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for reviewed := 0; limit <= 0 || reviewed < limit; reviewed++ {
		card, err := cards.NextCard(ctx, poolID)
		if errors.Is(err, services.ErrNoDueCards) {
			fmt.Fprintln(out, "No cards due. Come back later!")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n%s\n(press enter to flip)", card.Front)
		if !scanner.Scan() {
			return scanner.Err()
		}
		fmt.Fprintf(out, "%s\nagain / hard / good / easy > ", card.Back)

		for {
			if !scanner.Scan() {
				return scanner.Err()
			}
			rating, err := services.ParseRating(scanner.Text())
			if err != nil {
				fmt.Fprint(out, "again / hard / good / easy > ")
				continue
			}
			updated, review, err := cards.ReviewCard(ctx, card.ID, rating)
			if err != nil {
				return err
			}
			if updated.WorkingQueuePosition.Valid {
				fmt.Fprintln(out, "Queued to see again shortly.")
			} else {
				fmt.Fprintf(out, "Next review in %d day(s).\n", review.ScheduledDays)
			}
			break
		}
	}

	stats, err := cards.Stats(ctx, poolID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d cards: %d new, %d learning, %d review, %d due\n", stats.Total, stats.New, stats.Learning, stats.Review, stats.Due)
	return nil
}
