package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lumina/internal/models"
	"lumina/internal/study"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidMode     = errors.New("invalid study mode")
)

// SessionService persists study sessions so a run survives restarts.
type SessionService struct {
	db          *sql.DB
	library     *LibraryService
	defaultSize int
	now         func() time.Time

	// serialises read-modify-write of a session row
	mu sync.Mutex
}

func NewSessionService(db *sql.DB, library *LibraryService, defaultSize int) *SessionService {
	if defaultSize <= 0 {
		defaultSize = 10
	}
	return &SessionService{
		db:          db,
		library:     library,
		defaultSize: defaultSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start draws a fresh session set from the pool. An empty poolID means the
// last-built pool; size <= 0 uses the configured default.
func (s *SessionService) Start(ctx context.Context, poolID string, mode models.Mode, size int) (*study.Session, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	pool, err := s.library.ResolvePool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = s.defaultSize
	}

	sess := study.New(uuid.NewString(), pool.ID, mode, study.Shuffle(pool.Questions, size, nil), s.now())
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionService) Get(ctx context.Context, id string) (*study.Session, error) {
	var (
		sess        study.Session
		mode        string
		idsJSON     string
		resultsJSON string
		finishedAt  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pool_id, mode, question_ids, current_index, results, is_retry, started_at, finished_at
		FROM sessions WHERE id = ?;
	`, id).Scan(&sess.ID, &sess.PoolID, &mode, &idsJSON, &sess.Index, &resultsJSON, &sess.IsRetry, &sess.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	sess.Mode = models.Mode(mode)
	if finishedAt.Valid {
		sess.FinishedAt = finishedAt.Time
	}

	var ids []string
	if err := json.Unmarshal([]byte(idsJSON), &ids); err != nil {
		return nil, fmt.Errorf("decode session questions: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &sess.Results); err != nil {
		return nil, fmt.Errorf("decode session results: %w", err)
	}

	poolQuestions, err := s.library.questions(ctx, sess.PoolID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Question, len(poolQuestions))
	for _, q := range poolQuestions {
		byID[q.ID] = q
	}
	sess.Questions = make([]models.Question, 0, len(ids))
	for _, qid := range ids {
		q, ok := byID[qid]
		if !ok {
			return nil, fmt.Errorf("session %s references missing question %s", id, qid)
		}
		sess.Questions = append(sess.Questions, q)
	}
	if len(sess.Results) != len(sess.Questions) {
		return nil, fmt.Errorf("session %s: %d results for %d questions", id, len(sess.Results), len(sess.Questions))
	}
	return &sess, nil
}

// Answer records the learner's choice for the current question.
func (s *SessionService) Answer(ctx context.Context, id, selected string) (*study.Session, models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, models.Result{}, err
	}
	res, err := sess.Answer(selected)
	if err != nil {
		return sess, res, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, models.Result{}, err
	}
	return sess, res, nil
}

// Next advances the cursor. Unanswered questions are skipped.
func (s *SessionService) Next(ctx context.Context, id string) (*study.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Done() {
		return sess, study.ErrSessionFinished
	}
	sess.Next(s.now())
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionService) Summary(ctx context.Context, id string) (study.Summary, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return study.Summary{}, err
	}
	return sess.Summary(s.now()), nil
}

// Retry starts a new session over the questions answered incorrectly.
func (s *SessionService) Retry(ctx context.Context, id string) (*study.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := sess.Retry(uuid.NewString(), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *SessionService) save(ctx context.Context, sess *study.Session) error {
	ids := make([]string, len(sess.Questions))
	for i, q := range sess.Questions {
		ids[i] = q.ID
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode session questions: %w", err)
	}
	resultsJSON, err := json.Marshal(sess.Results)
	if err != nil {
		return fmt.Errorf("encode session results: %w", err)
	}
	finished := sql.NullTime{Time: sess.FinishedAt, Valid: !sess.FinishedAt.IsZero()}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, pool_id, mode, question_ids, current_index, results, is_retry, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_index = excluded.current_index,
			results = excluded.results,
			finished_at = excluded.finished_at;
	`, sess.ID, sess.PoolID, string(sess.Mode), string(idsJSON), sess.Index, string(resultsJSON),
		sess.IsRetry, sess.StartedAt, nullTimePtr(finished)); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}
