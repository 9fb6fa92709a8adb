package api

import (
	"database/sql"
	"time"

	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/study"
)

const timeLayout = time.RFC3339

type poolView struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Zone      models.Zone       `json:"zone"`
	CreatedAt string            `json:"createdAt"`
	Questions []models.Question `json:"questions"`
}

func newPoolView(p *models.Pool) poolView {
	questions := p.Questions
	if questions == nil {
		questions = []models.Question{}
	}
	return poolView{
		ID:        p.ID,
		Topic:     p.Topic,
		Zone:      p.Zone,
		CreatedAt: p.CreatedAt.Format(timeLayout),
		Questions: questions,
	}
}

// questionView hides the answer until the learner has committed to a choice.
type questionView struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Source      string   `json:"source,omitempty"`
	Page        int      `json:"page,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

type sessionView struct {
	ID       string          `json:"id"`
	PoolID   string          `json:"poolId"`
	Mode     models.Mode     `json:"mode"`
	Index    int             `json:"index"`
	Total    int             `json:"total"`
	IsRetry  bool            `json:"isRetry"`
	Finished bool            `json:"finished"`
	Current  *questionView   `json:"current,omitempty"`
	Results  []models.Result `json:"results"`
	Summary  study.Summary   `json:"summary"`
}

func newSessionView(sess *study.Session, now time.Time) sessionView {
	view := sessionView{
		ID:       sess.ID,
		PoolID:   sess.PoolID,
		Mode:     sess.Mode,
		Index:    sess.Index,
		Total:    len(sess.Questions),
		IsRetry:  sess.IsRetry,
		Finished: sess.Done(),
		Results:  sess.Results,
		Summary:  sess.Summary(now),
	}
	if q, ok := sess.Current(); ok {
		qv := questionView{
			ID:       q.ID,
			Question: q.Question,
			Options:  q.Options,
			Source:   q.Source,
			Page:     q.Page,
		}
		if sess.Results[sess.Index].Answered {
			qv.Answer = q.Answer
			qv.Explanation = q.Explanation
		}
		view.Current = &qv
	}
	return view
}

type answerView struct {
	Correct     bool        `json:"correct"`
	Selected    string      `json:"selected"`
	Answer      string      `json:"answer"`
	Explanation string      `json:"explanation,omitempty"`
	Page        int         `json:"page,omitempty"`
	Session     sessionView `json:"session"`
}

type cardView struct {
	ID         int64   `json:"id"`
	PoolID     string  `json:"poolId"`
	QuestionID string  `json:"questionId"`
	Front      string  `json:"front"`
	Back       string  `json:"back"`
	Due        *string `json:"due"`
	State      int     `json:"state"`
	Reps       int     `json:"reps"`
	Lapses     int     `json:"lapses"`
	Stability  float64 `json:"stability"`
	Queued     bool    `json:"queued"`
}

func newCardView(card *models.Card) cardView {
	return cardView{
		ID:         card.ID,
		PoolID:     card.PoolID,
		QuestionID: card.QuestionID,
		Front:      card.Front,
		Back:       card.Back,
		Due:        nullTimeToString(card.Due),
		State:      card.State,
		Reps:       card.Reps,
		Lapses:     card.Lapses,
		Stability:  card.Stability,
		Queued:     card.WorkingQueuePosition.Valid,
	}
}

func nullTimeToString(t sql.NullTime) *string {
	if t.Valid {
		str := t.Time.Format(timeLayout)
		return &str
	}
	return nil
}

type poolListView struct {
	Pools []services.PoolSummary `json:"pools"`
}
