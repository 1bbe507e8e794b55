// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/model"
	"telegram-video-gen/internal/domain/ports/adapter"
	"telegram-video-gen/internal/domain/ports/repository"
)

// memJobRepo is an in-memory VideoJobRepository with the same transition
// semantics as the Postgres implementation.
type memJobRepo struct {
	mu        sync.Mutex
	store     map[string]*model.VideoJob
	seq       int
	createErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.VideoJob)}
}

func (m *memJobRepo) Create(_ context.Context, _ repository.Tx, job *model.VideoJob) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		m.seq++
		job.ID = fmt.Sprintf("job-%04d", m.seq)
	}
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.VideoJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) FindByTaskID(_ context.Context, _ repository.Tx, taskID string) (*model.VideoJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.store {
		if j.TaskID == taskID && taskID != "" {
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func applyUpdate(j *model.VideoJob, status model.VideoJobStatus, upd *repository.VideoJobUpdate) {
	j.Status = status
	if upd != nil {
		if upd.TaskID != nil {
			j.TaskID = *upd.TaskID
		}
		if upd.LastError != nil {
			j.LastError = *upd.LastError
		}
		if upd.ResultURL != nil {
			j.ResultURL = *upd.ResultURL
		}
		if upd.Attempts != nil {
			j.Attempts = *upd.Attempts
		}
		if upd.RecordID != nil {
			j.RecordID = *upd.RecordID
		}
		if upd.AddAttempt {
			j.Attempts++
		}
	}
	now := time.Now()
	if status == model.VideoJobStatusProcessing && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if status.Terminal() && j.CompletedAt == nil {
		j.CompletedAt = &now
	}
}

func (m *memJobRepo) UpdateStatus(_ context.Context, id string, status model.VideoJobStatus, upd *repository.VideoJobUpdate) (*model.VideoJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	applyUpdate(j, status, upd)
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) TransitionFrom(_ context.Context, id string, from []model.VideoJobStatus, to model.VideoJobStatus, upd *repository.VideoJobUpdate) (*model.VideoJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	matched := false
	for _, s := range from {
		if j.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return nil, domain.ErrJobFinished
	}
	applyUpdate(j, to, upd)
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) SetTaskID(_ context.Context, id, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.TaskID = taskID
	return nil
}

func (m *memJobRepo) ListByStatus(_ context.Context, status model.VideoJobStatus, limit int) ([]*model.VideoJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.VideoJob
	for _, j := range m.store {
		if j.Status == status && len(out) < limit {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memJobRepo) ListExpired(_ context.Context, limit int) ([]*model.VideoJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []*model.VideoJob
	for _, j := range m.store {
		if !j.Status.Terminal() && j.Expired(now) && len(out) < limit {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memJobRepo) ListByUser(_ context.Context, userID string, status *model.VideoJobStatus) ([]*model.VideoJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.VideoJob
	for _, j := range m.store {
		if j.UserID != userID {
			continue
		}
		if status != nil && j.Status != *status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memJobRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, j := range m.store {
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

// get returns the live stored job for assertions.
func (m *memJobRepo) get(id string) *model.VideoJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

// memRecordRepo settles generation records at most once, like the real one.
type memRecordRepo struct {
	mu    sync.Mutex
	store map[string]*model.GenerationRecord
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{store: make(map[string]*model.GenerationRecord)}
}

func (m *memRecordRepo) Save(_ context.Context, _ repository.Tx, rec *model.GenerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.store[rec.ID] = &cp
	return nil
}

func (m *memRecordRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.GenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRecordRepo) FindByJobID(_ context.Context, _ repository.Tx, jobID string) (*model.GenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.store {
		if r.JobID == jobID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRecordRepo) MarkCompleted(_ context.Context, id string, durationMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Status != model.GenerationRecordPending {
		return nil
	}
	r.Status = model.GenerationRecordCompleted
	r.DurationMs = durationMs
	return nil
}

func (m *memRecordRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Status != model.GenerationRecordPending {
		return nil
	}
	r.Status = model.GenerationRecordFailed
	r.Error = errMsg
	return nil
}

// noTxManager runs the function outside any transaction.
type noTxManager struct{}

func (noTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// fakeLedger tracks balances in memory and counts rollbacks.
type fakeLedger struct {
	mu        sync.Mutex
	balances  map[string]int64
	rollbacks int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[string]int64)}
}

func (f *fakeLedger) Reserve(_ context.Context, userID string, units int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID] < units {
		return domain.ErrInsufficientCredits
	}
	f.balances[userID] -= units
	return nil
}

func (f *fakeLedger) Rollback(_ context.Context, userID string, units int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += units
	f.rollbacks++
	return nil
}

func (f *fakeLedger) Balance(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeLedger) rollbackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rollbacks
}

// fakeProvider is a scriptable VideoGenAdapter.
type fakeProvider struct {
	name    string
	taskID  string // pushed through notify before resolving
	result  *adapter.GenerateResult
	err     error
	block   bool // when set, Generate blocks until ctx expires
	mu      sync.Mutex
	calls   int
	prompts []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req adapter.GenerateRequest, notify adapter.ProgressFunc) (*adapter.GenerateResult, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	if f.taskID != "" && notify != nil {
		notify(adapter.ProgressUpdate{TaskID: f.taskID, State: "queued"})
	}
	if f.block {
		<-ctx.Done()
		return &adapter.GenerateResult{TaskID: f.taskID}, ctx.Err()
	}
	return f.result, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRegistry struct {
	providers map[string]adapter.VideoGenAdapter
}

func newFakeRegistry(providers ...adapter.VideoGenAdapter) *fakeRegistry {
	r := &fakeRegistry{providers: make(map[string]adapter.VideoGenAdapter)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *fakeRegistry) Lookup(name string) (adapter.VideoGenAdapter, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return p, nil
}

// mockBot records outbound messages.
type mockBot struct {
	mu      sync.Mutex
	sent    []adapter.SendMessageParams
	edited  []string
	deleted int
}

func (b *mockBot) SendMessage(_ context.Context, params adapter.SendMessageParams) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, params)
	return len(b.sent), nil
}

func (b *mockBot) EditMessage(_ context.Context, _ int64, _ int, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edited = append(b.edited, text)
	return nil
}

func (b *mockBot) DeleteMessage(_ context.Context, _ int64, _ int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted++
	return nil
}

func (b *mockBot) sentMessages() []adapter.SendMessageParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]adapter.SendMessageParams, len(b.sent))
	copy(out, b.sent)
	return out
}

// fakeEnhancer prefixes the prompt so tests can see it was applied.
type fakeEnhancer struct {
	err error
}

func (f *fakeEnhancer) Enhance(_ context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "enhanced: " + prompt, nil
}

// passStore keeps the remote URL; failStore rejects every download.
type passStore struct{}

func (passStore) Store(_ context.Context, _ string, remoteURL string) (string, error) {
	return remoteURL, nil
}

type failStore struct{ err error }

func (f failStore) Store(_ context.Context, _ string, _ string) (string, error) {
	return "", f.err
}
