package domain

import "time"

// JobType enumerates supported bulk-generation job categories.
type JobType string

const (
	JobTypeAssetPortraitGeneration JobType = "asset_portrait_generation"
	JobTypeAssetTokenGeneration    JobType = "asset_token_generation"
)

// JobStatus enumerates job lifecycle states. Status is monotonic within a
// run; only an explicit retry moves a job back to pending.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

// Terminal reports whether the status is one of the three end states.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCanceled
}

// ItemStatus enumerates per-item lifecycle states.
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusSuccess    ItemStatus = "success"
	ItemStatusFailed     ItemStatus = "failed"
)

// Terminal reports whether the item has finished, successfully or not.
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusSuccess || s == ItemStatusFailed
}

// WorkUnit is one unit of bulk work as submitted by the caller. TargetID
// references the entity the work applies to (typically an asset); Payload
// carries whatever the work function needs, such as a prompt.
type WorkUnit struct {
	TargetID string
	Payload  string
}

// JobItem is one unit of work within a job. Items are addressed externally by
// index: bulk submissions are defined by position, not by item id.
type JobItem struct {
	ID          string
	JobID       string
	Index       int
	TargetID    string
	Payload     string
	Status      ItemStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	// Result holds the artifact reference produced by successful work.
	// Empty unless Status is success.
	Result string
}

// Job is one bulk-work request: an ordered, fixed-length sequence of items
// plus aggregate counters. CompletedItems+FailedItems never exceeds
// TotalItems; a canceled job may end with items still pending.
type Job struct {
	ID             string
	Type           JobType
	OwnerID        string
	Status         JobStatus
	TotalItems     int
	CompletedItems int
	FailedItems    int
	CreatedAt      time.Time
	CompletedAt    *time.Time
	Items          []JobItem
}

// Clone returns a deep copy. Status queries hand out clones so callers never
// observe or mutate registry-internal state.
func (j *Job) Clone() *Job {
	cp := *j
	cp.CompletedAt = cloneTime(j.CompletedAt)
	cp.Items = make([]JobItem, len(j.Items))
	for i, it := range j.Items {
		cp.Items[i] = it
		cp.Items[i].StartedAt = cloneTime(it.StartedAt)
		cp.Items[i].CompletedAt = cloneTime(it.CompletedAt)
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// JobFilter narrows history listings. Zero values match everything.
type JobFilter struct {
	Type    JobType
	Status  JobStatus
	OwnerID string
}
