package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"
)

// RunRecord is the stored form of one run.
type RunRecord struct {
	ID        string          `json:"id"`
	Report    pipeline.Report `json:"report"`
	Result    *pipeline.State `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunStore keeps the latest report of every run and the final state of
// finished runs.
type RunStore interface {
	SaveReport(ctx context.Context, report pipeline.Report) error
	SaveResult(ctx context.Context, state pipeline.State) error
	Get(ctx context.Context, id string) (RunRecord, error)
}

// NotFound returns the error reported for an unknown run.
func NotFound(id string) error {
	return errors.NewValidationError(errors.ErrCodeRunNotFound, fmt.Sprintf("run %s not found", id), nil).
		WithContext("run_id", id)
}

// MemoryStore is a RunStore held in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
	now  func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]RunRecord), now: time.Now}
}

func (m *MemoryStore) SaveReport(_ context.Context, report pipeline.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.touch(report.RunID)
	rec.Report = report
	m.runs[report.RunID] = rec
	return nil
}

func (m *MemoryStore) SaveResult(_ context.Context, state pipeline.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.touch(state.RunID)
	final := state.Clone()
	rec.Report = state.Report()
	rec.Result = &final
	m.runs[state.RunID] = rec
	return nil
}

// touch returns the record of id with fresh timestamps. Callers hold mu.
func (m *MemoryStore) touch(id string) RunRecord {
	now := m.now()
	rec, ok := m.runs[id]
	if !ok {
		rec = RunRecord{ID: id, CreatedAt: now}
	}
	rec.UpdatedAt = now
	return rec
}

func (m *MemoryStore) Get(_ context.Context, id string) (RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.runs[id]
	if !ok {
		return RunRecord{}, NotFound(id)
	}
	if rec.Result != nil {
		final := rec.Result.Clone()
		rec.Result = &final
	}
	return rec, nil
}

// Len returns the number of stored runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// Tracker persists run progress. Its Observe method is a pipeline
// ProgressFunc; snapshot supplies the state of the observed run.
type Tracker struct {
	store    RunStore
	snapshot func() pipeline.State
	logger   *errors.Logger
	timeout  time.Duration
}

// NewTracker creates a tracker for one run.
func NewTracker(store RunStore, snapshot func() pipeline.State, logger *errors.Logger) *Tracker {
	return &Tracker{store: store, snapshot: snapshot, logger: logger, timeout: 5 * time.Second}
}

// Observe saves the current report, or the final state once the run has
// completed or failed. Store failures are logged and never stop the run.
func (t *Tracker) Observe(event pipeline.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	state := t.snapshot()
	var err error
	switch event.Step {
	case pipeline.StepCompleted, pipeline.StepFailed:
		err = t.store.SaveResult(ctx, state)
	default:
		err = t.store.SaveReport(ctx, state.Report())
	}
	if err != nil {
		t.logger.LogError(err, "Failed to persist run progress", "run_id", event.RunID, "step", string(event.Step))
	}
}
