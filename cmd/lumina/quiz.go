package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/study"
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Take a quiz in the terminal",
	Long: `Quiz draws a random set of questions from a library and asks them one
at a time. Answer with the option letter, its number, or its text. At the end
you can retry the questions you got wrong.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		poolID, _ := cmd.Flags().GetString("pool")
		size, _ := cmd.Flags().GetInt("size")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.Sessions.Start(cmd.Context(), poolID, models.ModeQuiz, size)
		if err != nil {
			return err
		}
		return runQuiz(cmd.Context(), a.Sessions, sess, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	quizCmd.Flags().String("pool", "", "library id (default: last built)")
	quizCmd.Flags().Int("size", 0, "number of questions (default from config)")

	rootCmd.AddCommand(quizCmd)
}

// runQuiz drives sess from in until it finishes, offering retries of wrong
// answers. It stops early when input runs out.
func runQuiz(ctx context.Context, sessions *services.SessionService, sess *study.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		for !sess.Done() {
			q, _ := sess.Current()
			fmt.Fprintf(out, "\nQuestion %d of %d\n%s\n", sess.Index+1, len(sess.Questions), q.Question)
			for i, opt := range q.Options {
				fmt.Fprintf(out, "  %c) %s\n", 'A'+i, opt)
			}
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}

			var res models.Result
			var err error
			sess, res, err = sessions.Answer(ctx, sess.ID, resolveChoice(scanner.Text(), q.Options))
			if err != nil {
				return err
			}
			if res.Correct {
				fmt.Fprintln(out, "Correct!")
			} else {
				fmt.Fprintf(out, "Not quite. The answer is: %s\n", q.Answer)
				if q.Explanation != "" {
					fmt.Fprintln(out, q.Explanation)
				}
			}

			if sess, err = sessions.Next(ctx, sess.ID); err != nil {
				return err
			}
		}

		sum, err := sessions.Summary(ctx, sess.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nYou scored %d / %d (%d%%) in %ds\n", sum.Correct, sum.Total, sum.Percent, sum.Seconds)

		if sum.Correct == sum.Answered {
			return nil
		}
		fmt.Fprint(out, "Retry the ones you missed? [y/N] ")
		if !scanner.Scan() || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(scanner.Text())), "y") {
			return nil
		}
		sess, err = sessions.Retry(ctx, sess.ID)
		if errors.Is(err, study.ErrNoMistakes) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// resolveChoice maps typed input onto an option. Exact option text wins, then
// a letter, then a 1-based number, then a case-insensitive text match.
// Anything else is passed through as the literal answer.
func resolveChoice(input string, options []string) string {
	input = strings.TrimSpace(input)
	for _, opt := range options {
		if opt == input {
			return opt
		}
	}
	if len(input) == 1 {
		c := input[0] | 0x20
		if c >= 'a' && int(c-'a') < len(options) {
			return options[c-'a']
		}
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	for _, opt := range options {
		if strings.EqualFold(opt, input) {
			return opt
		}
	}
	return input
}
