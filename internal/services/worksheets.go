package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"lumina/internal/models"
	"lumina/internal/study"
)

// Worksheet is a printable session set.
type Worksheet struct {
	PoolID    string            `json:"poolId"`
	Topic     string            `json:"topic"`
	Questions []models.Question `json:"questions"`
	Markdown  string            `json:"markdown"`
}

type WorksheetService struct {
	library     *LibraryService
	defaultSize int
	md          goldmark.Markdown
}

func NewWorksheetService(library *LibraryService, defaultSize int) *WorksheetService {
	if defaultSize <= 0 {
		defaultSize = 10
	}
	return &WorksheetService{library: library, defaultSize: defaultSize, md: goldmark.New()}
}

// Generate draws a random set from the pool and lays it out as Markdown,
// optionally followed by an answer key.
func (s *WorksheetService) Generate(ctx context.Context, poolID string, size int, withAnswers bool) (*Worksheet, error) {
	pool, err := s.library.ResolvePool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = s.defaultSize
	}
	questions := study.Shuffle(pool.Questions, size, nil)
	return &Worksheet{
		PoolID:    pool.ID,
		Topic:     pool.Topic,
		Questions: questions,
		Markdown:  RenderWorksheetMarkdown(pool.Topic, questions, withAnswers),
	}, nil
}

func optionLetter(i int) string {
	return string(rune('A' + i))
}

// RenderWorksheetMarkdown lays out numbered questions with lettered options.
func RenderWorksheetMarkdown(topic string, questions []models.Question, withAnswers bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Worksheet\n\n", escapeMarkdown(topic))
	b.WriteString("Name: ____________________  Date: ____________\n\n")

	for i, q := range questions {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, escapeMarkdown(q.Question))
		for j, opt := range q.Options {
			fmt.Fprintf(&b, "- [ ] **%s.** %s\n", optionLetter(j), escapeMarkdown(opt))
		}
		b.WriteString("\n")
	}

	if withAnswers {
		b.WriteString("---\n\n## Answer Key\n\n")
		for i, q := range questions {
			letter := "?"
			for j, opt := range q.Options {
				if opt == q.Answer {
					letter = optionLetter(j)
					break
				}
			}
			fmt.Fprintf(&b, "%d. **%s.** %s", i+1, letter, escapeMarkdown(q.Answer))
			if q.Page > 0 {
				fmt.Fprintf(&b, " (page %d)", q.Page)
			}
			b.WriteString("\n")
			if q.Explanation != "" {
				fmt.Fprintf(&b, "   %s\n", escapeMarkdown(q.Explanation))
			}
		}
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(strings.TrimSpace(s))
}

// RenderHTML converts worksheet Markdown into an HTML fragment.
func (s *WorksheetService) RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render worksheet: %w", err)
	}
	return buf.String(), nil
}
