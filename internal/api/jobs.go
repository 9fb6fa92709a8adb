package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "completed"
	JobStatusFailed     = "failed"
)

// BuildJob tracks a library build that the frontend polls.
type BuildJob struct {
	ID            string    `json:"jobId"`
	Status        string    `json:"status"`
	Topic         string    `json:"topic"`
	FileName      string    `json:"fileName"`
	Step          string    `json:"step,omitempty"`
	Message       string    `json:"message,omitempty"`
	Current       int       `json:"current"`
	Total         int       `json:"total"`
	Progress      int       `json:"progress"`
	PoolID        string    `json:"poolId,omitempty"`
	QuestionCount int       `json:"questionCount,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*BuildJob
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*BuildJob),
	}
}

func (m *JobManager) CreateJob(topic, fileName string) (string, *BuildJob) {
	now := time.Now().UTC()
	job := &BuildJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Topic:     topic,
		FileName:  fileName,
		Total:     100,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.ID, job.clone()
}

func (m *JobManager) GetJob(id string) (*BuildJob, bool) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id string) {
	m.withJob(id, func(job *BuildJob) {
		job.Status = JobStatusProcessing
		job.Message = "Starting"
	})
}

func (m *JobManager) UpdateProgress(id, step, message string, current, total int) {
	m.withJob(id, func(job *BuildJob) {
		job.Status = JobStatusProcessing
		job.Step = step
		job.Message = message
		job.Current = current
		job.Total = total
		job.Progress = percent(current, total)
	})
}

func (m *JobManager) MarkCompleted(id, poolID string, questions int) {
	m.withJob(id, func(job *BuildJob) {
		job.Status = JobStatusComplete
		job.Step = "complete"
		job.Message = "Library ready"
		job.Current = 100
		job.Total = 100
		job.Progress = 100
		job.PoolID = poolID
		job.QuestionCount = questions
		job.Error = ""
	})
}

func (m *JobManager) MarkFailed(id string, msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "processing error"
	}
	m.withJob(id, func(job *BuildJob) {
		job.Status = JobStatusFailed
		job.Step = "error"
		job.Message = msg
		job.Error = msg
	})
}

func (m *JobManager) withJob(id string, fn func(job *BuildJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
}

func (job *BuildJob) clone() *BuildJob {
	if job == nil {
		return nil
	}
	copyJob := *job
	return &copyJob
}

func percent(current, total int) int {
	if total <= 0 {
		if current <= 0 {
			return 0
		}
		if current > 100 {
			return 100
		}
		return current
	}
	if current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return int((float64(current) / float64(total)) * 100)
}
