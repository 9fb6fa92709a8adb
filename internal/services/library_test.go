package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina/internal/db"
	"lumina/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "lumina.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func samplePool(topic string, n int) *models.Pool {
	pool := &models.Pool{Topic: topic, Zone: models.ZoneCreator}
	for i := range n {
		pool.Questions = append(pool.Questions, models.Question{
			Question:    topic + " question " + string(rune('A'+i)),
			Options:     []string{"red", "green", "blue", "yellow"},
			Answer:      "green",
			Explanation: "Leaves are green.",
			Source:      "notes.pdf",
			Page:        i + 1,
		})
	}
	return pool
}

func TestLibrary_CreateAndLoadPool(t *testing.T) {
	ctx := context.Background()
	lib := NewLibraryService(openTestDB(t))

	pool := samplePool("Plants", 3)
	require.NoError(t, lib.CreatePool(ctx, pool))
	require.NotEmpty(t, pool.ID)

	got, err := lib.GetPool(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plants", got.Topic)
	assert.Equal(t, models.ZoneCreator, got.Zone)
	require.Len(t, got.Questions, 3)
	for i, q := range got.Questions {
		assert.Equal(t, pool.Questions[i].ID, q.ID, "order preserved")
		assert.Equal(t, []string{"red", "green", "blue", "yellow"}, q.Options)
		assert.Equal(t, i+1, q.Page)
	}
}

func TestLibrary_LatestPoolTracksLastBuilt(t *testing.T) {
	ctx := context.Background()
	lib := NewLibraryService(openTestDB(t))

	_, err := lib.LatestPool(ctx)
	assert.ErrorIs(t, err, ErrLibraryEmpty)

	first := samplePool("Plants", 2)
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, lib.CreatePool(ctx, first))
	second := samplePool("Volcanoes", 2)
	require.NoError(t, lib.CreatePool(ctx, second))

	latest, err := lib.ResolvePool(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	byID, err := lib.ResolvePool(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plants", byID.Topic)

	summaries, err := lib.ListPools(ctx, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].ID)
	assert.Equal(t, 2, summaries[1].QuestionCount)
}

func TestLibrary_DeletePoolClearsPointer(t *testing.T) {
	ctx := context.Background()
	lib := NewLibraryService(openTestDB(t))

	pool := samplePool("Plants", 1)
	require.NoError(t, lib.CreatePool(ctx, pool))
	require.NoError(t, lib.DeletePool(ctx, pool.ID))

	_, err := lib.LatestPool(ctx)
	assert.ErrorIs(t, err, ErrLibraryEmpty)

	err = lib.DeletePool(ctx, pool.ID)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestLibrary_RejectsEmptyPool(t *testing.T) {
	lib := NewLibraryService(openTestDB(t))
	err := lib.CreatePool(context.Background(), &models.Pool{Topic: "Empty"})
	assert.ErrorIs(t, err, ErrNoQuestions)
}
