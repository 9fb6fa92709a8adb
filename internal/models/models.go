package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// Question is a single multiple-choice item. Answer holds the correct option
// text rather than its index.
type Question struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
	Source      string   `json:"source,omitempty"`
	Page        int      `json:"page,omitempty"`
}

type Zone string

const (
	ZoneExplorer  Zone = "Explorer"
	ZoneCreator   Zone = "Creator"
	ZoneInnovator Zone = "Innovator"
)

// Pool is the full set of generated questions for a topic.
type Pool struct {
	ID         string
	Topic      string
	Zone       Zone
	DocumentID sql.NullInt64
	CreatedAt  time.Time
	Questions  []Question
}

type Document struct {
	ID           int64
	OriginalName string
	StoredPath   string
	PageCount    int
	UploadedAt   time.Time
}

type Settings struct {
	Username  string `json:"username"`
	Age       int    `json:"age"`
	DarkMode  bool   `json:"darkMode"`
	FontSize  int    `json:"fontSize"`
	PexelsKey string `json:"pexelsKey,omitempty"`
	Topic     string `json:"topic"`
}

type Mode string

const (
	ModeQuiz       Mode = "quiz"
	ModeFlashcards Mode = "flashcards"
	ModeWorksheet  Mode = "worksheet"
)

func (m Mode) Valid() bool {
	return m == ModeQuiz || m == ModeFlashcards || m == ModeWorksheet
}

// Result records the learner's choice for one question of a session.
type Result struct {
	QuestionID string `json:"questionId"`
	Answered   bool   `json:"answered"`
	Selected   string `json:"selected,omitempty"`
	Correct    bool   `json:"correct"`
}

type Card struct {
	ID                   int64
	PoolID               string
	QuestionID           string
	Front                string
	Back                 string
	Due                  sql.NullTime
	Stability            float64
	Difficulty           float64
	ElapsedDays          int
	ScheduledDays        int
	Reps                 int
	Lapses               int
	State                int
	LastReview           sql.NullTime
	CreatedAt            time.Time
	UpdatedAt            time.Time
	WorkingQueuePosition sql.NullInt64
}

type ReviewLog struct {
	ID            int64
	CardID        int64
	Rating        int
	ScheduledDays int
	ElapsedDays   int
	State         int
	ReviewedAt    time.Time
}

func (c *Card) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   uint64(max(c.ElapsedDays, 0)),
		ScheduledDays: uint64(max(c.ScheduledDays, 0)),
		Reps:          uint64(max(c.Reps, 0)),
		Lapses:        uint64(max(c.Lapses, 0)),
		State:         fsrs.State(max(c.State, 0)),
	}
	if c.Due.Valid {
		card.Due = c.Due.Time
	}
	if c.LastReview.Valid {
		card.LastReview = c.LastReview.Time
	}
	return card
}

func (c *Card) ApplyFSRSCard(f fsrs.Card) {
	c.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	c.Stability = f.Stability
	c.Difficulty = f.Difficulty
	c.ElapsedDays = int(f.ElapsedDays)
	c.ScheduledDays = int(f.ScheduledDays)
	c.Reps = int(f.Reps)
	c.Lapses = int(f.Lapses)
	c.State = int(f.State)
	c.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}
