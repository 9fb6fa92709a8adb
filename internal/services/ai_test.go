package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina/internal/models"
)

// scriptedCompleter returns its responses in order, repeating the last one.
type scriptedCompleter struct {
	responses []string
	err       error
	prompts   []string
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	i := len(c.prompts) - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i], nil
}

func samplePrompt() QuestionPrompt {
	return QuestionPrompt{
		Topic: "Space",
		Zone:  models.ZoneCreator,
		Count: 5,
		Pages: []PDFPage{{Number: 1, Text: "The Sun is a star."}},
	}
}

func TestGenerateQuestions_RetriesUnparsableOutput(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		"Sorry, I cannot do that.",
		`[{"question":"x","options":["a","b"]}]`,
		"```json\n" + wellFormed + "\n```",
	}}
	svc := NewAIService(completer, 3, time.Millisecond)

	var steps []string
	qs, err := svc.GenerateQuestionsWithProgress(context.Background(), samplePrompt(), func(step, message string, current, total int) {
		steps = append(steps, step)
	})
	require.NoError(t, err)
	assert.Len(t, qs, 1)
	assert.Len(t, completer.prompts, 3)
	assert.Equal(t, []string{"generate", "generate", "generate"}, steps)
}

func TestGenerateQuestions_GivesUpAfterAttempts(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"no json here"}}
	svc := NewAIService(completer, 2, time.Millisecond)

	_, err := svc.GenerateQuestions(context.Background(), samplePrompt())
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, ErrNoJSONArray)
	assert.Len(t, completer.prompts, 2)
}

func TestGenerateQuestions_CompleterErrorIsTerminal(t *testing.T) {
	boom := errors.New("gpu adapter unavailable")
	completer := &scriptedCompleter{err: boom}
	svc := NewAIService(completer, 3, time.Millisecond)

	_, err := svc.GenerateQuestions(context.Background(), samplePrompt())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, completer.prompts, 1)
}

func TestGenerateQuestions_CancelledDuringDelay(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"garbage"}}
	svc := NewAIService(completer, 3, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.GenerateQuestions(ctx, samplePrompt())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, completer.prompts, 1)
}

func TestGenerateQuestions_Unavailable(t *testing.T) {
	svc := NewAIService(nil, 3, 0)
	_, err := svc.GenerateQuestions(context.Background(), samplePrompt())
	assert.ErrorIs(t, err, ErrAIUnavailable)
}

func TestMockCompleter_RoundTripsThroughSanitizer(t *testing.T) {
	completer, err := NewCompleter("", "", "", false)
	require.NoError(t, err)

	svc := NewAIService(completer, 1, 0)
	qs, err := svc.GenerateQuestions(context.Background(), samplePrompt())
	require.NoError(t, err)
	assert.Len(t, qs, 5, "trimmed to the requested count")
	for _, q := range qs {
		assert.Contains(t, q.Options, q.Answer)
		assert.Positive(t, q.Page)
	}
}

func TestOpenAICompleter_Complete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": wellFormed},
			}},
		})
	}))
	defer ts.Close()

	completer, err := NewCompleter("sk-test", "gpt-test", ts.URL+"/v1", false)
	require.NoError(t, err)

	out, err := completer.Complete(context.Background(), "make questions")
	require.NoError(t, err)
	assert.Equal(t, wellFormed, out)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "make questions", got.Messages[1].Content)
}
