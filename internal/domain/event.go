package domain

import "time"

// EventKind discriminates progress event variants on the wire.
type EventKind string

const (
	EventItemStarted   EventKind = "item_started"
	EventItemCompleted EventKind = "item_completed"
	EventJobCompleted  EventKind = "job_completed"
	EventJobCanceled   EventKind = "job_canceled"
	EventJobRetried    EventKind = "job_retried"
)

// ProgressEvent describes one state transition of a job or one of its items.
// Item-scoped events (item_started, item_completed) carry OccurredAt; a
// consumer must discard an event when it already applied an event for the
// same (JobID, Index) with an equal or later OccurredAt. That recency check
// is the sole defense against duplicated or out-of-order delivery, so it is
// part of the contract, not an implementation detail.
type ProgressEvent struct {
	Kind       EventKind  `json:"kind"`
	JobID      string     `json:"job_id"`
	Index      int        `json:"index,omitempty"`
	OccurredAt time.Time  `json:"occurred_at,omitempty"`
	ItemStatus ItemStatus `json:"item_status,omitempty"`
	Result     string     `json:"result,omitempty"`

	// Aggregate counters, set on job_completed only.
	CompletedItems int `json:"completed_items,omitempty"`
	FailedItems    int `json:"failed_items,omitempty"`
}

// ItemScoped reports whether the event addresses a single item and therefore
// participates in the OccurredAt recency check.
func (e ProgressEvent) ItemScoped() bool {
	return e.Kind == EventItemStarted || e.Kind == EventItemCompleted
}

// Terminal reports whether the event ends a job's event stream.
func (e ProgressEvent) Terminal() bool {
	return e.Kind == EventJobCompleted || e.Kind == EventJobCanceled
}
