package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestSettings_Defaults(t *testing.T) {
	svc := NewSettingsService(openTestDB(t), "")
	got, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, got.Age)
	assert.Equal(t, 16, got.FontSize)
	assert.False(t, got.DarkMode)
	assert.Empty(t, got.Username)
}

func TestSettings_SaveClampsAndPersists(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(openTestDB(t), "")

	got, err := svc.Save(ctx, SettingsUpdate{
		Username: ptr("  Ada "),
		Age:      ptr(3),
		FontSize: ptr(32),
		DarkMode: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Username)
	assert.Equal(t, 5, got.Age)
	assert.Equal(t, 20, got.FontSize)
	assert.True(t, got.DarkMode)

	got, err = svc.Save(ctx, SettingsUpdate{FontSize: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 14, got.FontSize)
	assert.Equal(t, "Ada", got.Username, "untouched fields survive a partial update")
}

func TestSettings_PexelsKey(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(openTestDB(t), "env-default-key")

	key, err := svc.EffectivePexelsKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "env-default-key", key)

	_, err = svc.Save(ctx, SettingsUpdate{PexelsKey: ptr("short")})
	require.NoError(t, err)
	key, err = svc.EffectivePexelsKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "env-default-key", key, "short keys are ignored")

	_, err = svc.Save(ctx, SettingsUpdate{PexelsKey: ptr("abcdefghijklmnop")})
	require.NoError(t, err)
	key, err = svc.EffectivePexelsKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnop", key)

	_, err = svc.Save(ctx, SettingsUpdate{PexelsKey: ptr("")})
	require.NoError(t, err)
	key, err = svc.EffectivePexelsKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "env-default-key", key)
}

func TestSettings_SignOutClearsEverything(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	svc := NewSettingsService(conn, "")
	lib := NewLibraryService(conn)

	require.NoError(t, lib.CreatePool(ctx, samplePool("Plants", 1)))
	_, err := svc.Save(ctx, SettingsUpdate{Username: ptr("Ada")})
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx))

	got, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Username)
	_, err = lib.LatestPool(ctx)
	assert.ErrorIs(t, err, ErrLibraryEmpty)
}
