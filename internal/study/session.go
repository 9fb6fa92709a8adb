// Package study holds the in-memory bookkeeping for a study run: picking the
// session set from a question pool, walking it, and scoring answers.
package study

import (
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"lumina/internal/models"
)

var (
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrSessionFinished = errors.New("session finished")
	ErrNoMistakes      = errors.New("no incorrect answers to retry")
)

// Shuffle returns up to k distinct questions from pool in random order. A k
// outside 1..len(pool) yields the whole pool. The pool is not modified.
func Shuffle(pool []models.Question, k int, rng *rand.Rand) []models.Question {
	shuffled := make([]models.Question, len(pool))
	copy(shuffled, pool)

	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	if k <= 0 || k > len(shuffled) {
		k = len(shuffled)
	}
	return shuffled[:k]
}

// Session walks a fixed session set one question at a time. Results is kept
// parallel to Questions.
type Session struct {
	ID         string
	PoolID     string
	Mode       models.Mode
	Questions  []models.Question
	Index      int
	Results    []models.Result
	IsRetry    bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Summary is the score of a session at a point in time.
type Summary struct {
	Correct  int           `json:"correct"`
	Answered int           `json:"answered"`
	Total    int           `json:"total"`
	Percent  int           `json:"percent"`
	Elapsed  time.Duration `json:"-"`
	Seconds  int           `json:"seconds"`
	Finished bool          `json:"finished"`
}

func New(id, poolID string, mode models.Mode, questions []models.Question, now time.Time) *Session {
	results := make([]models.Result, len(questions))
	for i, q := range questions {
		results[i] = models.Result{QuestionID: q.ID}
	}
	return &Session{
		ID:        id,
		PoolID:    poolID,
		Mode:      mode,
		Questions: questions,
		Results:   results,
		StartedAt: now,
	}
}

func (s *Session) Done() bool {
	return s.Index >= len(s.Questions)
}

// Current returns the question under the cursor.
func (s *Session) Current() (models.Question, bool) {
	if s.Done() {
		return models.Question{}, false
	}
	return s.Questions[s.Index], true
}

// Answer records selected for the current question. Correctness is an exact
// match against the question's answer text.
func (s *Session) Answer(selected string) (models.Result, error) {
	q, ok := s.Current()
	if !ok {
		return models.Result{}, ErrSessionFinished
	}
	res := &s.Results[s.Index]
	if res.Answered {
		return *res, ErrAlreadyAnswered
	}
	selected = strings.TrimSpace(selected)
	res.Answered = true
	res.Selected = selected
	res.Correct = selected == q.Answer
	return *res, nil
}

// Next moves the cursor forward and reports whether a question remains.
// Moving past the last question stamps FinishedAt.
func (s *Session) Next(now time.Time) bool {
	if s.Done() {
		return false
	}
	s.Index++
	if s.Done() && s.FinishedAt.IsZero() {
		s.FinishedAt = now
	}
	return !s.Done()
}

func (s *Session) Score() int {
	score := 0
	for _, r := range s.Results {
		if r.Answered && r.Correct {
			score++
		}
	}
	return score
}

// Wrong lists the questions answered incorrectly, in session order.
func (s *Session) Wrong() []models.Question {
	var out []models.Question
	for i, r := range s.Results {
		if r.Answered && !r.Correct {
			out = append(out, s.Questions[i])
		}
	}
	return out
}

func (s *Session) Summary(now time.Time) Summary {
	sum := Summary{
		Correct:  s.Score(),
		Total:    len(s.Questions),
		Finished: s.Done(),
	}
	for _, r := range s.Results {
		if r.Answered {
			sum.Answered++
		}
	}
	if sum.Total > 0 {
		sum.Percent = sum.Correct * 100 / sum.Total
	}
	end := now
	if !s.FinishedAt.IsZero() {
		end = s.FinishedAt
	}
	if !s.StartedAt.IsZero() && end.After(s.StartedAt) {
		sum.Elapsed = end.Sub(s.StartedAt)
	}
	sum.Seconds = int(sum.Elapsed / time.Second)
	return sum
}

// Retry builds a follow-up session over the questions answered incorrectly.
func (s *Session) Retry(id string, now time.Time) (*Session, error) {
	wrong := s.Wrong()
	if len(wrong) == 0 {
		return nil, ErrNoMistakes
	}
	next := New(id, s.PoolID, s.Mode, wrong, now)
	next.IsRetry = true
	return next, nil
}
