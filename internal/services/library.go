package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lumina/internal/models"
)

var (
	// ErrLibraryEmpty means no question pool has been built yet.
	ErrLibraryEmpty = errors.New("library is empty")
	ErrPoolNotFound = errors.New("question pool not found")
)

// PoolSummary is a pool without its questions.
type PoolSummary struct {
	ID            string    `json:"id"`
	Topic         string    `json:"topic"`
	Zone          string    `json:"zone"`
	QuestionCount int       `json:"questionCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LibraryService persists question pools and tracks the last-built one.
type LibraryService struct {
	db *sql.DB
	kv kvStore
}

func NewLibraryService(db *sql.DB) *LibraryService {
	return &LibraryService{db: db, kv: kvStore{db: db}}
}

// CreatePool stores the pool with its questions and marks it as the
// last-built set.
func (s *LibraryService) CreatePool(ctx context.Context, pool *models.Pool) (err error) {
	if len(pool.Questions) == 0 {
		return ErrNoQuestions
	}
	if pool.ID == "" {
		pool.ID = uuid.NewString()
	}
	if pool.CreatedAt.IsZero() {
		pool.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO pools (id, topic, zone, document_id, created_at)
		VALUES (?, ?, ?, ?, ?);
	`, pool.ID, pool.Topic, string(pool.Zone), nullInt64Ptr(pool.DocumentID), pool.CreatedAt); err != nil {
		return fmt.Errorf("insert pool: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (id, pool_id, position, question, options, answer, explanation, source, page)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("prepare question insert: %w", err)
	}
	defer stmt.Close()

	for i := range pool.Questions {
		q := &pool.Questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		options, marshalErr := json.Marshal(q.Options)
		if marshalErr != nil {
			err = fmt.Errorf("encode options: %w", marshalErr)
			return err
		}
		if _, err = stmt.ExecContext(ctx,
			q.ID, pool.ID, i, q.Question, string(options), q.Answer, q.Explanation, q.Source, q.Page,
		); err != nil {
			return fmt.Errorf("insert question %q: %w", q.Question, err)
		}
	}

	if err = setKey(ctx, tx, keyLastPool, pool.ID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit pool: %w", err)
	}
	return nil
}

func (s *LibraryService) GetPool(ctx context.Context, id string) (*models.Pool, error) {
	pool := &models.Pool{}
	var zone string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, topic, zone, document_id, created_at FROM pools WHERE id = ?;
	`, id).Scan(&pool.ID, &pool.Topic, &zone, &pool.DocumentID, &pool.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pool %s: %w", id, ErrPoolNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", id, err)
	}
	pool.Zone = models.Zone(zone)

	pool.Questions, err = s.questions(ctx, id)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func (s *LibraryService) questions(ctx context.Context, poolID string) ([]models.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, options, answer, explanation, source, page
		FROM questions WHERE pool_id = ?
		ORDER BY position ASC;
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		var q models.Question
		var options string
		if err := rows.Scan(&q.ID, &q.Question, &options, &q.Answer, &q.Explanation, &q.Source, &q.Page); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

// LatestPool returns the last-built question set.
func (s *LibraryService) LatestPool(ctx context.Context) (*models.Pool, error) {
	id, ok, err := s.kv.get(ctx, keyLastPool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLibraryEmpty
	}
	pool, err := s.GetPool(ctx, id)
	if errors.Is(err, ErrPoolNotFound) {
		return nil, ErrLibraryEmpty
	}
	return pool, err
}

// ResolvePool loads the pool with the given id, or the last-built one when id
// is empty.
func (s *LibraryService) ResolvePool(ctx context.Context, id string) (*models.Pool, error) {
	if id == "" {
		return s.LatestPool(ctx)
	}
	return s.GetPool(ctx, id)
}

func (s *LibraryService) ListPools(ctx context.Context, limit int) ([]PoolSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.topic, p.zone, p.created_at, COUNT(q.id)
		FROM pools p
		LEFT JOIN questions q ON q.pool_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	out := []PoolSummary{}
	for rows.Next() {
		var p PoolSummary
		if err := rows.Scan(&p.ID, &p.Topic, &p.Zone, &p.CreatedAt, &p.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return out, nil
}

func (s *LibraryService) DeletePool(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pools WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete pool %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("pool %s: %w", id, ErrPoolNotFound)
	}

	last, ok, err := s.kv.get(ctx, keyLastPool)
	if err != nil {
		return err
	}
	if ok && last == id {
		return deleteKey(ctx, s.db, keyLastPool)
	}
	return nil
}

func nullInt64Ptr(v sql.NullInt64) any {
	if v.Valid {
		return v.Int64
	}
	return nil
}

func nullTimePtr(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
