package jobs

import (
	"sync"
	"time"

	"lorekeep/internal/domain"
)

// ItemView is the reconciled state of one job item as seen by a client.
type ItemView struct {
	Status      domain.ItemStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      string

	// appliedAt is the OccurredAt of the newest event folded into this view;
	// older or equal-timestamped events for the same item are discarded.
	appliedAt time.Time
}

// JobView is the reconciled aggregate state of one job.
type JobView struct {
	Status         domain.JobStatus
	TotalItems     int
	CompletedItems int
	FailedItems    int
	CompletedAt    *time.Time
	Items          map[int]*ItemView
}

// Reconciler folds a possibly out-of-order, possibly duplicated stream of
// progress events, plus periodic authoritative snapshots, into a coherent
// local view per job. The fold is idempotent: replaying a delivered event
// never changes state.
type Reconciler struct {
	mu   sync.Mutex
	jobs map[string]*JobView
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{jobs: make(map[string]*JobView)}
}

// Apply folds one event into the view for its job.
func (r *Reconciler) Apply(ev domain.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case domain.EventItemStarted:
		r.applyItemStarted(ev)
	case domain.EventItemCompleted:
		r.applyItemCompleted(ev)
	case domain.EventJobCompleted:
		view := r.view(ev.JobID)
		view.Status = domain.JobStatusCompleted
		if ev.FailedItems > 0 {
			view.Status = domain.JobStatusFailed
		}
		view.CompletedItems = ev.CompletedItems
		view.FailedItems = ev.FailedItems
		t := ev.OccurredAt
		view.CompletedAt = &t
	case domain.EventJobCanceled:
		view := r.view(ev.JobID)
		view.Status = domain.JobStatusCanceled
		t := ev.OccurredAt
		view.CompletedAt = &t
	case domain.EventJobRetried:
		// Item records describe a prior run and are meaningless now.
		view := r.view(ev.JobID)
		view.Status = domain.JobStatusPending
		view.CompletedItems = 0
		view.FailedItems = 0
		view.CompletedAt = nil
		view.Items = make(map[int]*ItemView)
	}
}

func (r *Reconciler) applyItemStarted(ev domain.ProgressEvent) {
	view := r.view(ev.JobID)
	item, ok := view.Items[ev.Index]
	if ok && !ev.OccurredAt.After(item.appliedAt) {
		return
	}
	started := ev.OccurredAt
	view.Items[ev.Index] = &ItemView{
		Status:    domain.ItemStatusInProgress,
		StartedAt: &started,
		appliedAt: ev.OccurredAt,
	}
}

func (r *Reconciler) applyItemCompleted(ev domain.ProgressEvent) {
	view := r.view(ev.JobID)
	item, ok := view.Items[ev.Index]
	if ok && !ev.OccurredAt.After(item.appliedAt) {
		return
	}
	completed := ev.OccurredAt
	next := &ItemView{
		Status:      ev.ItemStatus,
		CompletedAt: &completed,
		Result:      ev.Result,
		appliedAt:   ev.OccurredAt,
	}
	// A completion never erases an already-known start time.
	if ok && item.StartedAt != nil {
		next.StartedAt = item.StartedAt
	}
	view.Items[ev.Index] = next
}

// ApplySnapshot folds an authoritative GetStatus result into the view. The
// snapshot is a floor, not a forced overwrite: items for which a newer live
// event has already been recorded keep their event-derived state, preserving
// real-time updates that raced past the snapshot server-side.
func (r *Reconciler) ApplySnapshot(job *domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := r.view(job.ID)
	view.Status = job.Status
	view.TotalItems = job.TotalItems
	view.CompletedItems = job.CompletedItems
	view.FailedItems = job.FailedItems
	view.CompletedAt = cloneTimePtr(job.CompletedAt)

	for i := range job.Items {
		snap := &job.Items[i]
		snapAt := snapshotItemTime(snap)
		if existing, ok := view.Items[snap.Index]; ok && existing.appliedAt.After(snapAt) {
			continue
		}
		view.Items[snap.Index] = &ItemView{
			Status:      snap.Status,
			StartedAt:   cloneTimePtr(snap.StartedAt),
			CompletedAt: cloneTimePtr(snap.CompletedAt),
			Result:      snap.Result,
			appliedAt:   snapAt,
		}
	}
}

// View returns a deep copy of the job's reconciled state.
func (r *Reconciler) View(jobID string) (*JobView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	view, ok := r.jobs[jobID]
	if !ok {
		return nil, false
	}
	cp := &JobView{
		Status:         view.Status,
		TotalItems:     view.TotalItems,
		CompletedItems: view.CompletedItems,
		FailedItems:    view.FailedItems,
		CompletedAt:    cloneTimePtr(view.CompletedAt),
		Items:          make(map[int]*ItemView, len(view.Items)),
	}
	for idx, item := range view.Items {
		ic := *item
		ic.StartedAt = cloneTimePtr(item.StartedAt)
		ic.CompletedAt = cloneTimePtr(item.CompletedAt)
		cp.Items[idx] = &ic
	}
	return cp, true
}

func (r *Reconciler) view(jobID string) *JobView {
	view, ok := r.jobs[jobID]
	if !ok {
		view = &JobView{Status: domain.JobStatusPending, Items: make(map[int]*ItemView)}
		r.jobs[jobID] = view
	}
	return view
}

// snapshotItemTime is the recency stand-in for a snapshot row: the newest
// transition timestamp the authoritative store knew about.
func snapshotItemTime(item *domain.JobItem) time.Time {
	if item.CompletedAt != nil {
		return *item.CompletedAt
	}
	if item.StartedAt != nil {
		return *item.StartedAt
	}
	return time.Time{}
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
