package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina/internal/models"
	"lumina/internal/study"
)

func newSessionFixture(t *testing.T, questions int) (*SessionService, *models.Pool) {
	t.Helper()
	conn := openTestDB(t)
	lib := NewLibraryService(conn)
	pool := samplePool("Plants", questions)
	require.NoError(t, lib.CreatePool(context.Background(), pool))
	return NewSessionService(conn, lib, 10), pool
}

func TestSessions_StartDrawsDistinctQuestions(t *testing.T) {
	svc, pool := newSessionFixture(t, 12)

	sess, err := svc.Start(context.Background(), "", models.ModeQuiz, 0)
	require.NoError(t, err)
	assert.Equal(t, pool.ID, sess.PoolID)
	require.Len(t, sess.Questions, 10)

	seen := map[string]bool{}
	for _, q := range sess.Questions {
		assert.False(t, seen[q.ID], "duplicate question %s", q.ID)
		seen[q.ID] = true
	}

	small, err := svc.Start(context.Background(), pool.ID, models.ModeFlashcards, 50)
	require.NoError(t, err)
	assert.Len(t, small.Questions, 12, "capped at pool size")
}

func TestSessions_AnswerNextSummaryPersist(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSessionFixture(t, 3)

	sess, err := svc.Start(ctx, "", models.ModeQuiz, 3)
	require.NoError(t, err)

	_, res, err := svc.Answer(ctx, sess.ID, "green")
	require.NoError(t, err)
	assert.True(t, res.Correct)

	_, _, err = svc.Answer(ctx, sess.ID, "red")
	assert.ErrorIs(t, err, study.ErrAlreadyAnswered)

	_, err = svc.Next(ctx, sess.ID)
	require.NoError(t, err)
	_, res, err = svc.Answer(ctx, sess.ID, "red")
	require.NoError(t, err)
	assert.False(t, res.Correct)

	_, err = svc.Next(ctx, sess.ID)
	require.NoError(t, err)
	loaded, err := svc.Next(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Done())

	_, err = svc.Next(ctx, sess.ID)
	assert.ErrorIs(t, err, study.ErrSessionFinished)

	sum, err := svc.Summary(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Correct)
	assert.Equal(t, 2, sum.Answered)
	assert.Equal(t, 3, sum.Total)
	assert.True(t, sum.Finished)

	retry, err := svc.Retry(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, retry.IsRetry)
	require.Len(t, retry.Questions, 1)
	assert.Equal(t, loaded.Questions[1].ID, retry.Questions[0].ID)

	reloaded, err := svc.Get(ctx, retry.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsRetry)
}

func TestSessions_RetryWithoutMistakes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSessionFixture(t, 1)

	sess, err := svc.Start(ctx, "", models.ModeQuiz, 1)
	require.NoError(t, err)
	_, _, err = svc.Answer(ctx, sess.ID, "green")
	require.NoError(t, err)

	_, err = svc.Retry(ctx, sess.ID)
	assert.ErrorIs(t, err, study.ErrNoMistakes)
}

func TestSessions_Errors(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	svc := NewSessionService(conn, NewLibraryService(conn), 10)

	_, err := svc.Start(ctx, "", models.ModeQuiz, 5)
	assert.ErrorIs(t, err, ErrLibraryEmpty)

	_, err = svc.Start(ctx, "", models.Mode("exam"), 5)
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
