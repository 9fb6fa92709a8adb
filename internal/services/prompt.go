package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"lumina/internal/models"
)

// ZoneForAge maps a learner's age onto a difficulty band.
func ZoneForAge(age int) models.Zone {
	switch {
	case age < 10:
		return models.ZoneExplorer
	case age < 14:
		return models.ZoneCreator
	default:
		return models.ZoneInnovator
	}
}

var zoneGuidance = map[models.Zone]string{
	models.ZoneExplorer:  "The learner is a young Explorer. Use short sentences, everyday words and concrete facts. Avoid trick options.",
	models.ZoneCreator:   "The learner is a Creator. Use clear language, mix recall with simple why/how questions.",
	models.ZoneInnovator: "The learner is an Innovator. Prefer application and reasoning questions with plausible distractors.",
}

// QuestionPrompt is everything the prompt needs.
type QuestionPrompt struct {
	Topic  string
	Zone   models.Zone
	Count  int
	Pages  []PDFPage
	Budget int
}

func buildQuestionPrompt(p QuestionPrompt) string {
	guidance, ok := zoneGuidance[p.Zone]
	if !ok {
		guidance = zoneGuidance[models.ZoneCreator]
	}
	count := p.Count
	if count <= 0 {
		count = 10
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Create %d multiple-choice questions about %q using only the study material below.\n", count, sanitizeForPrompt(p.Topic, 120)))
	b.WriteString(guidance + "\n\n")
	b.WriteString(`Respond with a JSON array and nothing else: [{"question":"","options":["","","",""],"answer":"","explanation":"","page":0}]` + "\n")
	b.WriteString("Each question has exactly 4 distinct options. \"answer\" must repeat the text of the correct option exactly. ")
	b.WriteString("\"page\" is the page number the fact comes from, taken from the [Page N] markers.\n\n")
	b.WriteString("Study material:\n")
	b.WriteString(pagesForPrompt(p.Pages, p.Budget))
	return b.String()
}

// pagesForPrompt joins page text with [Page N] markers, stopping once the
// budget of runes is spent.
func pagesForPrompt(pages []PDFPage, budget int) string {
	var b strings.Builder
	remaining := budget
	for _, page := range pages {
		marker := fmt.Sprintf("[Page %d]\n", page.Number)
		text := sanitizeForPrompt(page.Text, 0)
		if budget > 0 {
			markerLen := utf8.RuneCountInString(marker)
			if remaining <= markerLen {
				break
			}
			remaining -= markerLen
			text = sanitizeForPrompt(text, remaining)
			remaining -= utf8.RuneCountInString(text)
		}
		b.WriteString(marker)
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func sanitizeForPrompt(input string, limit int) string {
	collapsed := strings.Join(strings.Fields(strings.TrimSpace(input)), " ")
	if limit <= 0 {
		return collapsed
	}
	runes := []rune(collapsed)
	if len(runes) <= limit {
		return collapsed
	}
	if limit > 3 {
		return string(runes[:limit-3]) + "..."
	}
	return string(runes[:limit])
}
