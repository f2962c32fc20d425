package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is a snapshot of one ingestion job's status.
type Job struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	State      State     `json:"state"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Manager runs ingestion jobs on background goroutines and tracks their
// status for polling. One manager owns one Ingester.
type Manager struct {
	ing    *Ingester
	logger *zap.Logger // optional

	mu       sync.RWMutex
	jobs     map[string]*Job
	bySource map[string]string // source id -> latest job id
}

// NewManager creates a job manager around ing. The manager registers itself
// as the ingester's state hook.
func NewManager(ing *Ingester, logger *zap.Logger) *Manager {
	m := &Manager{
		ing:      ing,
		logger:   logger,
		jobs:     make(map[string]*Job),
		bySource: make(map[string]string),
	}
	ing.onState = m.onState
	return m
}

// Start launches an ingestion job for sourceID and returns its job id.
// A second request for a source with a running job is rejected with
// ErrIngestInProgress before a job is created.
func (m *Manager) Start(ctx context.Context, sourceID string) (string, error) {
	if _, ok := m.ing.registry.Get(sourceID); !ok {
		return "", ErrUnknownSource
	}

	m.mu.Lock()
	if prevID, ok := m.bySource[sourceID]; ok {
		if prev := m.jobs[prevID]; prev != nil && !terminal(prev.State) {
			m.mu.Unlock()
			return "", ErrIngestInProgress
		}
	}
	job := &Job{
		ID:        uuid.New().String(),
		SourceID:  sourceID,
		State:     StateIdle,
		StartedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	m.bySource[sourceID] = job.ID
	m.mu.Unlock()

	go m.runJob(ctx, job.ID, sourceID)
	return job.ID, nil
}

func (m *Manager) runJob(ctx context.Context, jobID, sourceID string) {
	err := m.ing.Ingest(ctx, sourceID, func(f float64) {
		m.mu.Lock()
		if job := m.jobs[jobID]; job != nil {
			job.Progress = f
		}
		m.mu.Unlock()
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[jobID]
	if job == nil {
		return
	}
	job.FinishedAt = time.Now().UTC()
	if err != nil {
		job.State = StateFailed
		job.Error = err.Error()
		if m.logger != nil {
			m.logger.Error("ingestion job failed", zap.String("job", jobID), zap.String("source", sourceID), zap.Error(err))
		}
		return
	}
	job.State = StateDone
	job.Progress = 1.0
}

// Job returns a snapshot of the job with the given id.
func (m *Manager) Job(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// onState records phase transitions against the source's latest job.
// Terminal states are set by runJob together with the error detail, so the
// hook only tracks intermediate phases.
func (m *Manager) onState(sourceID string, state State) {
	if terminal(state) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	jobID, ok := m.bySource[sourceID]
	if !ok {
		return
	}
	if job := m.jobs[jobID]; job != nil && !terminal(job.State) {
		job.State = state
	}
}

func terminal(s State) bool {
	return s == StateDone || s == StateFailed
}
