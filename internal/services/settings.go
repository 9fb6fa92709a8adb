package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"lumina/internal/models"
)

const (
	keyUsername  = "username"
	keyAge       = "ageRange"
	keyDarkMode  = "isDarkMode"
	keyFontSize  = "fontSize"
	keyPexelsKey = "pexelsKey"
	keyTopic     = "topicName"

	defaultAge      = 10
	defaultFontSize = 16
	minFontSize     = 14
	maxFontSize     = 20
	minAge          = 5
	maxAge          = 99

	// Shorter keys are treated as typos and ignored.
	minPexelsKeyLen = 11
)

// SettingsUpdate is a partial update; nil fields are left alone.
type SettingsUpdate struct {
	Username  *string `json:"username"`
	Age       *int    `json:"age"`
	DarkMode  *bool   `json:"darkMode"`
	FontSize  *int    `json:"fontSize"`
	PexelsKey *string `json:"pexelsKey"`
	Topic     *string `json:"topic"`
}

// SettingsService keeps learner preferences in the key/value table.
type SettingsService struct {
	db            *sql.DB
	kv            kvStore
	defaultPexels string
}

func NewSettingsService(db *sql.DB, defaultPexelsKey string) *SettingsService {
	return &SettingsService{db: db, kv: kvStore{db: db}, defaultPexels: defaultPexelsKey}
}

// Load reads every setting, falling back to defaults for missing or
// unparsable values.
func (s *SettingsService) Load(ctx context.Context) (models.Settings, error) {
	values, err := s.kv.all(ctx)
	if err != nil {
		return models.Settings{}, err
	}

	settings := models.Settings{
		Username:  values[keyUsername],
		Age:       defaultAge,
		FontSize:  defaultFontSize,
		PexelsKey: values[keyPexelsKey],
		Topic:     values[keyTopic],
	}
	if n, err := strconv.Atoi(values[keyAge]); err == nil {
		settings.Age = clamp(n, minAge, maxAge)
	}
	if n, err := strconv.Atoi(values[keyFontSize]); err == nil {
		settings.FontSize = clamp(n, minFontSize, maxFontSize)
	}
	settings.DarkMode = values[keyDarkMode] == "true"
	return settings, nil
}

// Save applies a partial update and returns the resulting settings.
func (s *SettingsService) Save(ctx context.Context, update SettingsUpdate) (models.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Settings{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if update.Username != nil {
		if err := setKey(ctx, tx, keyUsername, strings.TrimSpace(*update.Username)); err != nil {
			return models.Settings{}, err
		}
	}
	if update.Age != nil {
		if err := setKey(ctx, tx, keyAge, strconv.Itoa(clamp(*update.Age, minAge, maxAge))); err != nil {
			return models.Settings{}, err
		}
	}
	if update.DarkMode != nil {
		if err := setKey(ctx, tx, keyDarkMode, strconv.FormatBool(*update.DarkMode)); err != nil {
			return models.Settings{}, err
		}
	}
	if update.FontSize != nil {
		if err := setKey(ctx, tx, keyFontSize, strconv.Itoa(clamp(*update.FontSize, minFontSize, maxFontSize))); err != nil {
			return models.Settings{}, err
		}
	}
	if update.Topic != nil {
		if err := setKey(ctx, tx, keyTopic, strings.TrimSpace(*update.Topic)); err != nil {
			return models.Settings{}, err
		}
	}
	if update.PexelsKey != nil {
		key := strings.TrimSpace(*update.PexelsKey)
		switch {
		case key == "":
			err = deleteKey(ctx, tx, keyPexelsKey)
		case len(key) >= minPexelsKeyLen:
			err = setKey(ctx, tx, keyPexelsKey, key)
		}
		if err != nil {
			return models.Settings{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Settings{}, fmt.Errorf("commit settings: %w", err)
	}
	return s.Load(ctx)
}

func (s *SettingsService) SetTopic(ctx context.Context, topic string) error {
	return setKey(ctx, s.db, keyTopic, strings.TrimSpace(topic))
}

// EffectivePexelsKey returns the learner's key, or the configured default.
func (s *SettingsService) EffectivePexelsKey(ctx context.Context) (string, error) {
	key, ok, err := s.kv.get(ctx, keyPexelsKey)
	if err != nil {
		return "", err
	}
	if ok && key != "" {
		return key, nil
	}
	return s.defaultPexels, nil
}

// SignOut clears every stored key, including the last-built pool pointer.
func (s *SettingsService) SignOut(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv;`); err != nil {
		return fmt.Errorf("clear settings: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
