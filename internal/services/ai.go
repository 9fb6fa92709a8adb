package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.yaml.in/yaml/v3"

	"lumina/internal/models"
)

var (
	// ErrAIUnavailable is returned when no completer is configured.
	ErrAIUnavailable = errors.New("question generation is not configured")
	// ErrGenerationFailed wraps the last parse error once retries run out.
	ErrGenerationFailed = errors.New("could not generate questions")
)

// Completer sends a single prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewCompleter returns the OpenAI-compatible completer, or the canned one when
// mock is set or no key is available.
func NewCompleter(apiKey, model, apiEndpoint string, mock bool) (Completer, error) {
	if mock || apiKey == "" {
		return NewMockCompleter()
	}
	cfg := openai.DefaultConfig(apiKey)
	if apiEndpoint != "" {
		cfg.BaseURL = apiEndpoint
	}
	return &openAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

type openAICompleter struct {
	client *openai.Client
	model  string
}

func (c *openAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a patient teacher who writes clear multiple-choice questions from study material. You answer with JSON only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.4,
		MaxTokens:   4096,
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("request openai questions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

//go:embed mockdata/questions.yaml
var mockQuestionsYAML []byte

type mockQuestion struct {
	Question    string   `yaml:"question" json:"question"`
	Options     []string `yaml:"options" json:"options"`
	Answer      string   `yaml:"answer" json:"answer"`
	Explanation string   `yaml:"explanation" json:"explanation"`
	Page        int      `yaml:"page" json:"page"`
}

// mockCompleter answers every prompt with the same canned questions, framed
// the way chat models usually frame JSON.
type mockCompleter struct {
	response string
}

func NewMockCompleter() (Completer, error) {
	var doc struct {
		Questions []mockQuestion `yaml:"questions"`
	}
	if err := yaml.Unmarshal(mockQuestionsYAML, &doc); err != nil {
		return nil, fmt.Errorf("decode mock questions: %w", err)
	}
	body, err := json.MarshalIndent(doc.Questions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode mock questions: %w", err)
	}
	return &mockCompleter{
		response: "Here are the questions you asked for:\n```json\n" + string(body) + "\n```\n",
	}, nil
}

func (c *mockCompleter) Complete(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.response, nil
}

type AIService struct {
	completer  Completer
	attempts   int
	retryDelay time.Duration
}

func NewAIService(completer Completer, attempts int, retryDelay time.Duration) *AIService {
	if attempts <= 0 {
		attempts = 1
	}
	return &AIService{
		completer:  completer,
		attempts:   attempts,
		retryDelay: retryDelay,
	}
}

func (s *AIService) GenerateQuestions(ctx context.Context, req QuestionPrompt) ([]models.Question, error) {
	return s.GenerateQuestionsWithProgress(ctx, req, nil)
}

// GenerateQuestionsWithProgress sends one prompt per attempt. Output that
// cannot be parsed is retried after a fixed delay; completer errors are not.
func (s *AIService) GenerateQuestionsWithProgress(ctx context.Context, req QuestionPrompt, progress ProgressCallback) ([]models.Question, error) {
	if s == nil || s.completer == nil {
		return nil, ErrAIUnavailable
	}

	prompt := buildQuestionPrompt(req)

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if progress != nil {
			pct := 30 + (50 * (attempt - 1) / s.attempts)
			progress("generate", fmt.Sprintf("Generating questions (attempt %d of %d)", attempt, s.attempts), pct, 100)
		}

		raw, err := s.completer.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}

		questions, err := ParseQuestions(raw)
		if err == nil {
			if req.Count > 0 && len(questions) > req.Count {
				questions = questions[:req.Count]
			}
			return questions, nil
		}

		lastErr = err
		fmt.Fprintf(os.Stderr, "Unusable model output (attempt %d/%d): %v\nRaw response:\n%s\n", attempt, s.attempts, err, raw)

		if attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrGenerationFailed, s.attempts, lastErr)
}
