package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina/internal/db"
	"lumina/internal/models"
	"lumina/internal/services"
)

func TestResolveChoice(t *testing.T) {
	options := []string{"red", "green", "blue", "yellow"}

	tests := []struct {
		input string
		want  string
	}{
		{"b", "green"},
		{"D", "yellow"},
		{" 3 ", "blue"},
		{"GREEN", "green"},
		{"e", "e"},
		{"5", "5"},
		{"purple", "purple"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveChoice(tt.input, options))
		})
	}
}

func TestResolveChoice_NumericOptions(t *testing.T) {
	options := []string{"2", "4", "6", "8"}

	assert.Equal(t, "4", resolveChoice("4", options), "option text beats position")
	assert.Equal(t, "6", resolveChoice("3", options), "no text match falls back to position")
	assert.Equal(t, "8", resolveChoice("d", options))

	letters := []string{"a", "b", "c"}
	assert.Equal(t, "c", resolveChoice("c", letters))
}

func newTestLibrary(t *testing.T, n int) (*services.LibraryService, *services.FlashcardService, *services.SessionService, string) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	library := services.NewLibraryService(conn)
	pool := &models.Pool{Topic: "Colours", Zone: models.ZoneExplorer}
	for i := range n {
		pool.Questions = append(pool.Questions, models.Question{
			Question: fmt.Sprintf("Which colour is grass? (%d)", i+1),
			Options:  []string{"red", "green", "blue", "yellow"},
			Answer:   "green",
		})
	}
	require.NoError(t, library.CreatePool(context.Background(), pool))

	return library,
		services.NewFlashcardService(conn, library),
		services.NewSessionService(conn, library, 10),
		pool.ID
}

func TestRunQuiz_RetriesMistakes(t *testing.T) {
	_, _, sessions, poolID := newTestLibrary(t, 3)
	ctx := context.Background()

	sess, err := sessions.Start(ctx, poolID, models.ModeQuiz, 0)
	require.NoError(t, err)

	in := strings.NewReader("b\na\ngreen\ny\n2\n")
	var out bytes.Buffer
	require.NoError(t, runQuiz(ctx, sessions, sess, in, &out))

	text := out.String()
	assert.Contains(t, text, "Question 1 of 3")
	assert.Contains(t, text, "Not quite. The answer is: green")
	assert.Contains(t, text, "You scored 2 / 3")
	assert.Contains(t, text, "Question 1 of 1")
	assert.Contains(t, text, "You scored 1 / 1")
}

func TestRunQuiz_StopsWhenInputEnds(t *testing.T) {
	_, _, sessions, poolID := newTestLibrary(t, 3)
	ctx := context.Background()

	sess, err := sessions.Start(ctx, poolID, models.ModeQuiz, 0)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runQuiz(ctx, sessions, sess, strings.NewReader("b\n"), &out))
	assert.Contains(t, out.String(), "Question 2 of 3")
	assert.NotContains(t, out.String(), "You scored")
}

func TestRunFlashcards_ReviewsUpToLimit(t *testing.T) {
	_, cards, _, poolID := newTestLibrary(t, 2)
	ctx := context.Background()

	in := strings.NewReader("\nnope\ngood\n\neasy\n")
	var out bytes.Buffer
	require.NoError(t, runFlashcards(ctx, cards, poolID, 2, in, &out))

	text := out.String()
	assert.Contains(t, text, "Which colour is grass?")
	assert.Equal(t, 3, strings.Count(text, "again / hard / good / easy > "), "invalid rating prompts again")
	assert.Contains(t, text, "2 cards:")
}
