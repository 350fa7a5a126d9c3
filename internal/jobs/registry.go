package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lorekeep/internal/domain"
)

// WorkFunc performs one unit of work and returns the artifact reference
// recorded as the item's result. The context is canceled when the owning job
// is canceled; honoring it is the work function's responsibility.
type WorkFunc func(ctx context.Context, unit domain.WorkUnit) (string, error)

// Registry owns the canonical state of every job and its items. All
// structural mutations (create, cancel, retry, executor transitions) are
// serialized through a per-job lock; status queries return deep copies.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]*jobHandle
	workers map[domain.JobType]WorkFunc

	bus         *Bus
	store       domain.JobStore
	logger      zerolog.Logger
	concurrency int
}

// jobHandle pairs a job with its run-scoped control state. handle.mu guards
// the job struct and the control fields; it is held only for short,
// non-blocking sections, never across a work invocation.
type jobHandle struct {
	mu       sync.Mutex
	job      *domain.Job
	canceled bool
	cancelFn context.CancelFunc
	// runDone is closed by the executor once the run has fully finished,
	// including publishing its terminal event. Retry waits on it so a new
	// run can never start while the prior run is still publishing.
	runDone chan struct{}
}

func (h *jobHandle) cancelRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canceled
}

// Options configures a Registry.
type Options struct {
	// Concurrency bounds the executor worker pool per job. Defaults to 4.
	Concurrency int
	// EventBuffer sizes each subscriber's event buffer.
	EventBuffer int
	// Store mirrors job state durably. Optional; nil disables persistence.
	Store  domain.JobStore
	Logger zerolog.Logger
}

// NewRegistry creates an empty registry and its event bus.
func NewRegistry(opts Options) *Registry {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Registry{
		jobs:        make(map[string]*jobHandle),
		workers:     make(map[domain.JobType]WorkFunc),
		bus:         NewBus(opts.EventBuffer),
		store:       opts.Store,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
	}
}

// Bus exposes the progress event bus for transport adapters.
func (r *Registry) Bus() *Bus {
	return r.bus
}

// RegisterWorker binds a job type to the work function its items run.
func (r *Registry) RegisterWorker(jobType domain.JobType, fn WorkFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[jobType] = fn
}

// Submit creates a new job with one pending item per work unit and starts
// its executor. The returned snapshot may already be in progress because
// execution starts concurrently with the return.
func (r *Registry) Submit(ctx context.Context, jobType domain.JobType, ownerID string, units []domain.WorkUnit) (*domain.Job, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: job requires at least one work unit", domain.ErrInvalidArgument)
	}

	r.mu.RLock()
	work, ok := r.workers[jobType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown job type %q", domain.ErrInvalidArgument, jobType)
	}

	job := &domain.Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		OwnerID:    ownerID,
		Status:     domain.JobStatusPending,
		TotalItems: len(units),
		CreatedAt:  time.Now().UTC(),
		Items:      make([]domain.JobItem, len(units)),
	}
	for i, unit := range units {
		job.Items[i] = domain.JobItem{
			ID:       uuid.NewString(),
			JobID:    job.ID,
			Index:    i,
			TargetID: unit.TargetID,
			Payload:  unit.Payload,
			Status:   domain.ItemStatusPending,
		}
	}

	handle := &jobHandle{job: job}

	r.mu.Lock()
	r.jobs[job.ID] = handle
	r.mu.Unlock()

	r.persistJob(ctx, job)
	r.startExecutor(handle, work)

	handle.mu.Lock()
	defer handle.mu.Unlock()
	return handle.job.Clone(), nil
}

// GetStatus returns a deep-copy snapshot of the job's current state. Jobs no
// longer held in memory are looked up in the store.
func (r *Registry) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	if handle, ok := r.lookup(jobID); ok {
		handle.mu.Lock()
		defer handle.mu.Unlock()
		return handle.job.Clone(), nil
	}
	if r.store != nil {
		job, err := r.store.LoadJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		return job, nil
	}
	return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
}

// ListHistory returns jobs newest-first with offset/limit pagination and the
// unpaginated total. When a store is configured it serves the query so that
// history survives process restarts; otherwise the in-memory table answers.
func (r *Registry) ListHistory(ctx context.Context, filter domain.JobFilter, skip, take int) ([]*domain.Job, int, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = 20
	}
	if r.store != nil {
		return r.store.ListJobs(ctx, filter, skip, take)
	}

	r.mu.RLock()
	snapshots := make([]*domain.Job, 0, len(r.jobs))
	for _, handle := range r.jobs {
		handle.mu.Lock()
		job := handle.job.Clone()
		handle.mu.Unlock()
		if matchesFilter(job, filter) {
			snapshots = append(snapshots, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	total := len(snapshots)
	if skip >= total {
		return []*domain.Job{}, total, nil
	}
	end := skip + take
	if end > total {
		end = total
	}
	return snapshots[skip:end], total, nil
}

func matchesFilter(job *domain.Job, f domain.JobFilter) bool {
	if f.Type != "" && job.Type != f.Type {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.OwnerID != "" && job.OwnerID != f.OwnerID {
		return false
	}
	return true
}

// Cancel requests cooperative cancellation: no new items start, in-flight
// items drain, and the executor marks the job canceled. Canceling a job that
// is already terminal is a no-op returning current state.
func (r *Registry) Cancel(ctx context.Context, jobID string) (*domain.Job, error) {
	handle, ok := r.lookup(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()
	if !handle.job.Status.Terminal() && !handle.canceled {
		handle.canceled = true
		if handle.cancelFn != nil {
			handle.cancelFn()
		}
	}
	return handle.job.Clone(), nil
}

// Retry resets a failed or canceled job to pending, clears every item, and
// restarts the executor. The reset is full: partial retry of only failed
// items is intentionally not offered.
func (r *Registry) Retry(ctx context.Context, jobID string) (*domain.Job, error) {
	handle, ok := r.lookup(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}

	handle.mu.Lock()
	status := handle.job.Status
	jobType := handle.job.Type
	done := handle.runDone
	handle.mu.Unlock()

	if status != domain.JobStatusFailed && status != domain.JobStatusCanceled {
		return nil, fmt.Errorf("%w: job %s is %s, retry requires failed or canceled", domain.ErrInvalidState, jobID, status)
	}

	r.mu.RLock()
	work, workOK := r.workers[jobType]
	r.mu.RUnlock()
	if !workOK {
		return nil, fmt.Errorf("%w: no worker registered for job type %q", domain.ErrInvalidState, jobType)
	}

	// The terminal status becomes visible before the prior run's executor has
	// published its terminal event. Wait for the run to drain completely so
	// that event can never land on the retried run's stream.
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	handle.mu.Lock()
	job := handle.job
	if job.Status != domain.JobStatusFailed && job.Status != domain.JobStatusCanceled {
		status = job.Status
		handle.mu.Unlock()
		return nil, fmt.Errorf("%w: job %s is %s, retry requires failed or canceled", domain.ErrInvalidState, jobID, status)
	}

	job.Status = domain.JobStatusPending
	job.CompletedAt = nil
	job.CompletedItems = 0
	job.FailedItems = 0
	for i := range job.Items {
		job.Items[i].Status = domain.ItemStatusPending
		job.Items[i].StartedAt = nil
		job.Items[i].CompletedAt = nil
		job.Items[i].Result = ""
	}
	handle.canceled = false
	handle.cancelFn = nil
	snapshot := job.Clone()
	handle.mu.Unlock()

	r.persistJob(ctx, snapshot)
	r.bus.Publish(domain.ProgressEvent{
		Kind:       domain.EventJobRetried,
		JobID:      jobID,
		OccurredAt: time.Now().UTC(),
	})
	r.startExecutor(handle, work)
	return snapshot, nil
}

func (r *Registry) lookup(jobID string) (*jobHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.jobs[jobID]
	return handle, ok
}

func (r *Registry) startExecutor(handle *jobHandle, work WorkFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	handle.mu.Lock()
	handle.cancelFn = cancel
	handle.runDone = done
	handle.mu.Unlock()

	exec := &Executor{
		handle:      handle,
		work:        work,
		bus:         r.bus,
		store:       r.store,
		logger:      r.logger,
		concurrency: r.concurrency,
		done:        done,
	}
	go exec.Run(ctx)
}

// persistJob mirrors the job to the store. Store failures are logged and
// swallowed: in-memory state stays authoritative until the store recovers.
func (r *Registry) persistJob(ctx context.Context, job *domain.Job) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveJob(ctx, job); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("job persistence failed")
	}
}
