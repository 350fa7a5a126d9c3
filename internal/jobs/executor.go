package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lorekeep/internal/domain"
)

// Executor drives one job's items to completion on a bounded worker pool,
// publishing progress events as each item transitions. It is created and
// started by the registry; one executor runs per job run.
type Executor struct {
	handle      *jobHandle
	work        WorkFunc
	bus         *Bus
	store       domain.JobStore
	logger      zerolog.Logger
	concurrency int
	// done is closed once the run is completely finished, terminal event
	// included. The registry's Retry gates on it.
	done chan struct{}
}

// Run executes the job to a terminal status. The context is canceled when
// the job is canceled; it is passed through to every work invocation.
func (e *Executor) Run(ctx context.Context) {
	defer close(e.done)

	h := e.handle

	h.mu.Lock()
	jobID := h.job.ID
	total := h.job.TotalItems
	if !h.canceled {
		h.job.Status = domain.JobStatusInProgress
	}
	snapshot := h.job.Clone()
	h.mu.Unlock()

	e.persistJob(snapshot)

	indices := make(chan int, total)
	for i := 0; i < total; i++ {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	for w := 0; w < e.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indices {
				// Cooperative cancellation: skipped items stay pending.
				if h.cancelRequested() {
					continue
				}
				e.runItem(ctx, idx)
			}
		}()
	}
	wg.Wait()

	e.finalize(jobID)
}

// runItem owns its index exclusively: no other worker touches the same item,
// so the handle lock is needed only around the shared job fields.
func (e *Executor) runItem(ctx context.Context, idx int) {
	h := e.handle

	started := time.Now().UTC()
	h.mu.Lock()
	item := &h.job.Items[idx]
	item.Status = domain.ItemStatusInProgress
	item.StartedAt = &started
	itemCopy := *item
	h.mu.Unlock()

	e.persistItem(itemCopy)
	e.bus.Publish(domain.ProgressEvent{
		Kind:       domain.EventItemStarted,
		JobID:      itemCopy.JobID,
		Index:      idx,
		OccurredAt: started,
	})

	result, err := e.invoke(ctx, domain.WorkUnit{TargetID: itemCopy.TargetID, Payload: itemCopy.Payload})

	completed := time.Now().UTC()
	status := domain.ItemStatusSuccess
	if err != nil {
		status = domain.ItemStatusFailed
		result = ""
		e.logger.Warn().Err(err).
			Str("job_id", itemCopy.JobID).
			Int("index", idx).
			Msg("work item failed")
	}

	h.mu.Lock()
	item = &h.job.Items[idx]
	item.Status = status
	item.CompletedAt = &completed
	item.Result = result
	if status == domain.ItemStatusSuccess {
		h.job.CompletedItems++
	} else {
		h.job.FailedItems++
	}
	itemCopy = *item
	h.mu.Unlock()

	e.persistItem(itemCopy)
	e.bus.Publish(domain.ProgressEvent{
		Kind:       domain.EventItemCompleted,
		JobID:      itemCopy.JobID,
		Index:      idx,
		OccurredAt: completed,
		ItemStatus: status,
		Result:     result,
	})
}

// invoke calls the work function with per-item panic containment: one item's
// panic is recorded as that item's failure and never aborts its siblings.
func (e *Executor) invoke(ctx context.Context, unit domain.WorkUnit) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work function panic: %v", r)
		}
	}()
	return e.work(ctx, unit)
}

// finalize decides the terminal status once all workers have drained:
// completed when every item succeeded, failed when every item is terminal
// and at least one failed, canceled when cancellation left items pending.
func (e *Executor) finalize(jobID string) {
	h := e.handle

	now := time.Now().UTC()
	h.mu.Lock()
	job := h.job
	allTerminal := true
	for i := range job.Items {
		if !job.Items[i].Status.Terminal() {
			allTerminal = false
			break
		}
	}
	switch {
	case h.canceled && !allTerminal:
		job.Status = domain.JobStatusCanceled
	case job.FailedItems > 0:
		job.Status = domain.JobStatusFailed
	default:
		job.Status = domain.JobStatusCompleted
	}
	job.CompletedAt = &now
	status := job.Status
	completed := job.CompletedItems
	failed := job.FailedItems
	snapshot := job.Clone()
	h.mu.Unlock()

	e.persistJob(snapshot)

	ev := domain.ProgressEvent{
		Kind:           domain.EventJobCompleted,
		JobID:          jobID,
		OccurredAt:     now,
		CompletedItems: completed,
		FailedItems:    failed,
	}
	if status == domain.JobStatusCanceled {
		ev.Kind = domain.EventJobCanceled
	}
	e.bus.Publish(ev)

	e.logger.Info().
		Str("job_id", jobID).
		Str("status", string(status)).
		Int("completed_items", completed).
		Int("failed_items", failed).
		Msg("job finished")
}

func (e *Executor) persistJob(job *domain.Job) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveJob(context.Background(), job); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("job persistence failed")
	}
}

func (e *Executor) persistItem(item domain.JobItem) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveJobItem(context.Background(), &item); err != nil {
		e.logger.Error().Err(err).
			Str("job_id", item.JobID).
			Int("index", item.Index).
			Msg("job item persistence failed")
	}
}
