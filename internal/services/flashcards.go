package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"lumina/internal/models"
)

var (
	// ErrNoDueCards indicates that there are no cards ready to review.
	ErrNoDueCards    = errors.New("no due cards")
	ErrCardNotFound  = errors.New("card not found")
	ErrInvalidRating = errors.New("invalid rating")
)

const workingQueueSize = 20

const cardColumns = `c.id, c.pool_id, c.question_id, c.front, c.back,
	c.due, c.stability, c.difficulty, c.elapsed_days, c.scheduled_days,
	c.reps, c.lapses, c.state, c.last_review, c.created_at, c.updated_at,
	c.working_queue_position`

// CardStats counts a pool's cards by scheduling state.
type CardStats struct {
	Total        int `json:"total"`
	Due          int `json:"due"`
	New          int `json:"new"`
	Learning     int `json:"learning"`
	Review       int `json:"review"`
	WorkingQueue int `json:"workingQueue"`
}

// FlashcardService schedules a pool's questions as FSRS flashcards.
type FlashcardService struct {
	db      *sql.DB
	library *LibraryService
	params  fsrs.Parameters
	now     func() time.Time
}

func NewFlashcardService(db *sql.DB, library *LibraryService) *FlashcardService {
	return &FlashcardService{
		db:      db,
		library: library,
		params:  fsrs.DefaultParam(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ParseRating accepts again/hard/good/easy or 1..4.
func ParseRating(s string) (fsrs.Rating, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "again", "1":
		return fsrs.Again, nil
	case "hard", "2":
		return fsrs.Hard, nil
	case "good", "3":
		return fsrs.Good, nil
	case "easy", "4":
		return fsrs.Easy, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// EnsureCards creates a card for every question of the pool that lacks one
// and returns the resolved pool id.
func (s *FlashcardService) EnsureCards(ctx context.Context, poolID string) (string, error) {
	pool, err := s.library.ResolvePool(ctx, poolID)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (pool_id, question_id, front, back, due, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_id) DO NOTHING;
	`)
	if err != nil {
		return "", fmt.Errorf("prepare card insert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for _, q := range pool.Questions {
		if _, err := stmt.ExecContext(ctx, pool.ID, q.ID, q.Question, cardBack(q), now, now, now); err != nil {
			return "", fmt.Errorf("insert card for %s: %w", q.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit cards: %w", err)
	}
	return pool.ID, nil
}

func cardBack(q models.Question) string {
	if q.Explanation == "" {
		return q.Answer
	}
	return q.Answer + "\n\n" + q.Explanation
}

// NextCard returns the next card to study for the pool.
// Priority order: 1) cards in the working queue, 2) due cards, 3) oldest unseen card.
func (s *FlashcardService) NextCard(ctx context.Context, poolID string) (*models.Card, error) {
	poolID, err := s.EnsureCards(ctx, poolID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	card, err := s.fetchCard(ctx, `
		SELECT `+cardColumns+` FROM cards c
		WHERE c.pool_id = ? AND c.working_queue_position IS NOT NULL
		ORDER BY c.working_queue_position ASC
		LIMIT 1;
	`, poolID)
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	card, err = s.fetchCard(ctx, `
		SELECT `+cardColumns+` FROM cards c
		WHERE c.pool_id = ? AND c.due IS NOT NULL AND c.due <= ? AND c.reps > 0
		  AND c.working_queue_position IS NULL
		ORDER BY c.due ASC
		LIMIT 1;
	`, poolID, now)
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	card, err = s.fetchCard(ctx, `
		SELECT `+cardColumns+` FROM cards c
		WHERE c.pool_id = ? AND c.reps = 0 AND c.working_queue_position IS NULL
		ORDER BY c.created_at ASC, c.id ASC
		LIMIT 1;
	`, poolID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDueCards
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	if err := row.Scan(
		&card.ID,
		&card.PoolID,
		&card.QuestionID,
		&card.Front,
		&card.Back,
		&card.Due,
		&card.Stability,
		&card.Difficulty,
		&card.ElapsedDays,
		&card.ScheduledDays,
		&card.Reps,
		&card.Lapses,
		&card.State,
		&card.LastReview,
		&card.CreatedAt,
		&card.UpdatedAt,
		&card.WorkingQueuePosition,
	); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *FlashcardService) fetchCard(ctx context.Context, query string, args ...any) (*models.Card, error) {
	return scanCard(s.db.QueryRowContext(ctx, query, args...))
}

// ReviewCard updates the scheduling information based on the learner's rating.
func (s *FlashcardService) ReviewCard(ctx context.Context, cardID int64, rating fsrs.Rating) (card *models.Card, review *models.ReviewLog, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	card, err = scanCard(tx.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards c WHERE c.id = ?;`, cardID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("card %d: %w", cardID, ErrCardNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load card %d: %w", cardID, err)
	}

	now := s.now()
	info, ok := s.params.Repeat(card.ToFSRSCard(), now)[rating]
	if !ok {
		err = fmt.Errorf("%w: %d", ErrInvalidRating, rating)
		return nil, nil, err
	}
	card.ApplyFSRSCard(info.Card)
	card.UpdatedAt = now

	if rating == fsrs.Again {
		err = s.addToWorkingQueue(ctx, tx, card)
	} else {
		err = s.removeFromWorkingQueue(ctx, tx, card)
	}
	if err != nil {
		return nil, nil, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE cards
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
		    reps = ?, lapses = ?, state = ?, last_review = ?, updated_at = ?
		WHERE id = ?;
	`,
		nullTimePtr(card.Due),
		card.Stability,
		card.Difficulty,
		card.ElapsedDays,
		card.ScheduledDays,
		card.Reps,
		card.Lapses,
		card.State,
		nullTimePtr(card.LastReview),
		card.UpdatedAt,
		card.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("update card %d: %w", card.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (card_id, rating, scheduled_days, elapsed_days, state, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, card.ID, int(info.ReviewLog.Rating), int(info.ReviewLog.ScheduledDays), int(info.ReviewLog.ElapsedDays), int(info.ReviewLog.State), now); err != nil {
		return nil, nil, fmt.Errorf("insert review log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit review: %w", err)
	}

	return card, &models.ReviewLog{
		CardID:        card.ID,
		Rating:        int(info.ReviewLog.Rating),
		ScheduledDays: int(info.ReviewLog.ScheduledDays),
		ElapsedDays:   int(info.ReviewLog.ElapsedDays),
		State:         int(info.ReviewLog.State),
		ReviewedAt:    now,
	}, nil
}

// addToWorkingQueue appends the card to its pool's working queue, evicting
// the oldest entry once the queue is full. A card already queued moves to the
// tail.
func (s *FlashcardService) addToWorkingQueue(ctx context.Context, tx *sql.Tx, card *models.Card) error {
	if err := s.removeFromWorkingQueue(ctx, tx, card); err != nil {
		return err
	}

	var maxPosition sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(working_queue_position) FROM cards WHERE pool_id = ?", card.PoolID,
	).Scan(&maxPosition); err != nil {
		return fmt.Errorf("get max queue position: %w", err)
	}

	newPosition := int64(1)
	if maxPosition.Valid {
		newPosition = maxPosition.Int64 + 1
	}

	if newPosition > workingQueueSize {
		if _, err := tx.ExecContext(ctx,
			"UPDATE cards SET working_queue_position = NULL WHERE pool_id = ? AND working_queue_position = 1", card.PoolID,
		); err != nil {
			return fmt.Errorf("evict oldest queued card: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE cards SET working_queue_position = working_queue_position - 1 WHERE pool_id = ? AND working_queue_position IS NOT NULL", card.PoolID,
		); err != nil {
			return fmt.Errorf("shift queue positions: %w", err)
		}
		newPosition = workingQueueSize
	}

	if _, err := tx.ExecContext(ctx, "UPDATE cards SET working_queue_position = ? WHERE id = ?", newPosition, card.ID); err != nil {
		return fmt.Errorf("queue card %d: %w", card.ID, err)
	}
	card.WorkingQueuePosition = sql.NullInt64{Int64: newPosition, Valid: true}
	return nil
}

func (s *FlashcardService) removeFromWorkingQueue(ctx context.Context, tx *sql.Tx, card *models.Card) error {
	if !card.WorkingQueuePosition.Valid {
		return nil
	}
	position := card.WorkingQueuePosition.Int64

	if _, err := tx.ExecContext(ctx, "UPDATE cards SET working_queue_position = NULL WHERE id = ?", card.ID); err != nil {
		return fmt.Errorf("dequeue card %d: %w", card.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE cards SET working_queue_position = working_queue_position - 1 WHERE pool_id = ? AND working_queue_position > ?",
		card.PoolID, position,
	); err != nil {
		return fmt.Errorf("shift queue positions: %w", err)
	}
	card.WorkingQueuePosition = sql.NullInt64{}
	return nil
}

// Stats counts the pool's cards, creating any that are missing first.
func (s *FlashcardService) Stats(ctx context.Context, poolID string) (CardStats, error) {
	poolID, err := s.EnsureCards(ctx, poolID)
	if err != nil {
		return CardStats{}, err
	}

	var stats CardStats
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN reps > 0 AND due IS NOT NULL AND due <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state IN (1, 3) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN working_queue_position IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM cards WHERE pool_id = ?;
	`, s.now(), poolID).Scan(&stats.Total, &stats.Due, &stats.New, &stats.Learning, &stats.Review, &stats.WorkingQueue)
	if err != nil {
		return CardStats{}, fmt.Errorf("card stats for %s: %w", poolID, err)
	}
	return stats, nil
}

// FormatRating renders a rating the way the CLI prompts for it.
func FormatRating(r fsrs.Rating) string {
	switch r {
	case fsrs.Again:
		return "again"
	case fsrs.Hard:
		return "hard"
	case fsrs.Good:
		return "good"
	case fsrs.Easy:
		return "easy"
	}
	return strconv.Itoa(int(r))
}
