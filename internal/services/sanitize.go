package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"lumina/internal/models"
)

var (
	ErrNoJSONArray     = errors.New("model output has no json array")
	ErrMalformedJSON   = errors.New("model output is not valid json")
	ErrNoQuestions     = errors.New("model output contains no questions")
	ErrInvalidQuestion = errors.New("model output contains an invalid question")
)

var (
	codeFencePattern     = regexp.MustCompile("```[A-Za-z0-9_-]*")
	trailingCommaPattern = regexp.MustCompile(`,\s*([\]}])`)
	optionLetterPattern  = regexp.MustCompile(`^\(?([A-Za-z])[).:]?$`)
)

// rawQuestion accepts the field spellings models tend to produce.
type rawQuestion struct {
	Question      string          `json:"question"`
	Q             string          `json:"q"`
	Text          string          `json:"text"`
	Options       []any           `json:"options"`
	Choices       []any           `json:"choices"`
	Answer        json.RawMessage `json:"answer"`
	Correct       json.RawMessage `json:"correct"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	CorrectSnake  json.RawMessage `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
	Source        string          `json:"source"`
	Page          json.RawMessage `json:"page"`
}

// extractJSONArray strips code fences and surrounding commentary, keeps the
// span from the first '[' to the last ']' and drops trailing commas.
func extractJSONArray(content string) (string, error) {
	content = codeFencePattern.ReplaceAllString(strings.TrimSpace(content), "")

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSONArray
	}
	content = content[start : end+1]

	return trailingCommaPattern.ReplaceAllString(content, "$1"), nil
}

// ParseQuestions turns raw model output into validated questions. It is a
// heuristic cleanup, not a JSON grammar repair.
func ParseQuestions(content string) ([]models.Question, error) {
	jsonStr, err := extractJSONArray(content)
	if err != nil {
		return nil, err
	}

	var raws []rawQuestion
	if err := json.Unmarshal([]byte(jsonStr), &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if len(raws) == 0 {
		return nil, ErrNoQuestions
	}

	out := make([]models.Question, 0, len(raws))
	for i, raw := range raws {
		q, err := raw.toQuestion()
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidQuestion, i, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func (r rawQuestion) toQuestion() (models.Question, error) {
	text := firstNonEmpty(r.Question, r.Q, r.Text)
	if text == "" {
		return models.Question{}, errors.New("missing question")
	}

	rawOptions := r.Options
	if len(rawOptions) == 0 {
		rawOptions = r.Choices
	}
	options := normalizeOptions(rawOptions)
	if len(options) < 2 {
		return models.Question{}, errors.New("missing options")
	}

	answer, ok := resolveAnswer(options, r.Answer, r.CorrectAnswer, r.CorrectSnake, r.Correct)
	if !ok {
		return models.Question{}, errors.New("missing answer")
	}

	return models.Question{
		ID:          uuid.NewString(),
		Question:    text,
		Options:     options,
		Answer:      answer,
		Explanation: strings.TrimSpace(r.Explanation),
		Source:      strings.TrimSpace(r.Source),
		Page:        parsePage(r.Page),
	}, nil
}

func normalizeOptions(raw []any) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(item))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// resolveAnswer maps the first usable answer field onto one of the options.
// Exact text wins, then a case-insensitive match. A string may also be a
// letter label (A, b), ...); a number that matches no option text is a
// zero-based index.
func resolveAnswer(options []string, candidates ...json.RawMessage) (string, bool) {
	for _, raw := range candidates {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}

		var s string
		var idx int
		isIndex := json.Unmarshal(raw, &idx) == nil
		if isIndex {
			s = strconv.Itoa(idx)
		} else if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		if opt, ok := matchOption(options, s); ok {
			return opt, true
		}
		if isIndex {
			if idx >= 0 && idx < len(options) {
				return options[idx], true
			}
			continue
		}
		if m := optionLetterPattern.FindStringSubmatch(s); m != nil {
			i := int(strings.ToUpper(m[1])[0] - 'A')
			if i >= 0 && i < len(options) {
				return options[i], true
			}
		}
	}
	return "", false
}

func matchOption(options []string, s string) (string, bool) {
	for _, opt := range options {
		if opt == s {
			return opt, true
		}
	}
	for _, opt := range options {
		if strings.EqualFold(opt, s) {
			return opt, true
		}
	}
	return "", false
}

func parsePage(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "page"))
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
