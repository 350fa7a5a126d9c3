package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lorekeep/internal/domain"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return baseTime.Add(time.Duration(seconds) * time.Second)
}

func startedEvent(jobID string, index int, ts time.Time) domain.ProgressEvent {
	return domain.ProgressEvent{Kind: domain.EventItemStarted, JobID: jobID, Index: index, OccurredAt: ts}
}

func completedEvent(jobID string, index int, ts time.Time, status domain.ItemStatus, result string) domain.ProgressEvent {
	return domain.ProgressEvent{Kind: domain.EventItemCompleted, JobID: jobID, Index: index, OccurredAt: ts, ItemStatus: status, Result: result}
}

func TestReconcilerAppliesStartThenComplete(t *testing.T) {
	rec := NewReconciler()
	rec.Apply(startedEvent("j", 0, at(10)))
	rec.Apply(completedEvent("j", 0, at(12), domain.ItemStatusSuccess, "r1"))

	view, ok := rec.View("j")
	require.True(t, ok)
	item := view.Items[0]
	require.NotNil(t, item)
	assert.Equal(t, domain.ItemStatusSuccess, item.Status)
	require.NotNil(t, item.StartedAt)
	assert.True(t, item.StartedAt.Equal(at(10)))
	require.NotNil(t, item.CompletedAt)
	assert.True(t, item.CompletedAt.Equal(at(12)))
	assert.Equal(t, "r1", item.Result)
}

func TestReconcilerDuplicateCompletionIsIdempotent(t *testing.T) {
	rec := NewReconciler()
	ev := completedEvent("j", 0, at(12), domain.ItemStatusSuccess, "r1")
	rec.Apply(ev)
	first, _ := rec.View("j")

	rec.Apply(ev)
	second, _ := rec.View("j")

	assert.Equal(t, first.Items[0].Status, second.Items[0].Status)
	assert.Equal(t, first.Items[0].Result, second.Items[0].Result)
	assert.True(t, first.Items[0].CompletedAt.Equal(*second.Items[0].CompletedAt))
}

func TestReconcilerDiscardsStaleOutOfOrderStart(t *testing.T) {
	rec := NewReconciler()
	// Completion arrives first, then the older start trickles in late.
	rec.Apply(completedEvent("j", 0, at(12), domain.ItemStatusSuccess, "r1"))
	rec.Apply(startedEvent("j", 0, at(10)))

	view, ok := rec.View("j")
	require.True(t, ok)
	item := view.Items[0]
	assert.Equal(t, domain.ItemStatusSuccess, item.Status)
	require.NotNil(t, item.CompletedAt)
	assert.True(t, item.CompletedAt.Equal(at(12)))
	assert.Equal(t, "r1", item.Result)
}

func TestReconcilerCompletionPreservesKnownStart(t *testing.T) {
	rec := NewReconciler()
	rec.Apply(startedEvent("j", 0, at(10)))
	rec.Apply(completedEvent("j", 0, at(12), domain.ItemStatusFailed, ""))

	view, _ := rec.View("j")
	item := view.Items[0]
	require.NotNil(t, item.StartedAt)
	assert.True(t, item.StartedAt.Equal(at(10)))
	assert.Equal(t, domain.ItemStatusFailed, item.Status)
}

func TestReconcilerSnapshotIsFloorNotOverwrite(t *testing.T) {
	rec := NewReconciler()
	// A live completion for item 0 arrives before the (older) snapshot.
	rec.Apply(completedEvent("j", 0, at(20), domain.ItemStatusSuccess, "live"))

	started := at(5)
	snapshot := &domain.Job{
		ID:         "j",
		Status:     domain.JobStatusInProgress,
		TotalItems: 2,
		Items: []domain.JobItem{
			{Index: 0, Status: domain.ItemStatusInProgress, StartedAt: &started},
			{Index: 1, Status: domain.ItemStatusPending},
		},
	}
	rec.ApplySnapshot(snapshot)

	view, ok := rec.View("j")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusInProgress, view.Status)
	assert.Equal(t, 2, view.TotalItems)

	// Item 0 keeps the newer live event, item 1 comes from the snapshot.
	assert.Equal(t, domain.ItemStatusSuccess, view.Items[0].Status)
	assert.Equal(t, "live", view.Items[0].Result)
	assert.Equal(t, domain.ItemStatusPending, view.Items[1].Status)
}

func TestReconcilerSnapshotSeedsUnknownItems(t *testing.T) {
	rec := NewReconciler()
	started := at(5)
	done := at(9)
	snapshot := &domain.Job{
		ID:             "j",
		Status:         domain.JobStatusInProgress,
		TotalItems:     2,
		CompletedItems: 1,
		Items: []domain.JobItem{
			{Index: 0, Status: domain.ItemStatusSuccess, StartedAt: &started, CompletedAt: &done, Result: "r0"},
			{Index: 1, Status: domain.ItemStatusInProgress, StartedAt: &started},
		},
	}
	rec.ApplySnapshot(snapshot)

	// A newer event for item 1 after the snapshot still applies.
	rec.Apply(completedEvent("j", 1, at(11), domain.ItemStatusSuccess, "r1"))

	view, _ := rec.View("j")
	assert.Equal(t, "r0", view.Items[0].Result)
	assert.Equal(t, domain.ItemStatusSuccess, view.Items[1].Status)
	assert.Equal(t, "r1", view.Items[1].Result)
}

func TestReconcilerJobRetriedClearsItemHistory(t *testing.T) {
	rec := NewReconciler()
	rec.Apply(startedEvent("j", 0, at(10)))
	rec.Apply(completedEvent("j", 0, at(12), domain.ItemStatusSuccess, "r1"))
	rec.Apply(completedEvent("j", 1, at(13), domain.ItemStatusFailed, ""))
	rec.Apply(domain.ProgressEvent{Kind: domain.EventJobCompleted, JobID: "j", OccurredAt: at(14), CompletedItems: 1, FailedItems: 1})

	rec.Apply(domain.ProgressEvent{Kind: domain.EventJobRetried, JobID: "j", OccurredAt: at(20)})

	view, ok := rec.View("j")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusPending, view.Status)
	assert.Zero(t, view.CompletedItems)
	assert.Zero(t, view.FailedItems)
	assert.Nil(t, view.CompletedAt)
	assert.Empty(t, view.Items)

	// Events from the new run apply cleanly even with older timestamps than
	// the wiped first-run records.
	rec.Apply(startedEvent("j", 0, at(11)))
	view, _ = rec.View("j")
	assert.Equal(t, domain.ItemStatusInProgress, view.Items[0].Status)
}

func TestReconcilerTerminalEvents(t *testing.T) {
	rec := NewReconciler()

	rec.Apply(domain.ProgressEvent{Kind: domain.EventJobCompleted, JobID: "done", OccurredAt: at(30), CompletedItems: 3, FailedItems: 0})
	view, _ := rec.View("done")
	assert.Equal(t, domain.JobStatusCompleted, view.Status)
	assert.Equal(t, 3, view.CompletedItems)
	require.NotNil(t, view.CompletedAt)

	rec.Apply(domain.ProgressEvent{Kind: domain.EventJobCompleted, JobID: "failed", OccurredAt: at(31), CompletedItems: 2, FailedItems: 1})
	view, _ = rec.View("failed")
	assert.Equal(t, domain.JobStatusFailed, view.Status)

	rec.Apply(domain.ProgressEvent{Kind: domain.EventJobCanceled, JobID: "canceled", OccurredAt: at(32)})
	view, _ = rec.View("canceled")
	assert.Equal(t, domain.JobStatusCanceled, view.Status)
}

func TestReconcilerFoldsLiveExecutorStream(t *testing.T) {
	gate := make(chan struct{})
	reg := newTestRegistry(t, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		<-gate
		return "ok", nil
	})
	rec := NewReconciler()

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(4))
	require.NoError(t, err)
	ch, cancel := reg.Bus().Subscribe(job.ID)
	defer cancel()

	// Snapshot first, then fold the live stream on top. The gate holds every
	// completion back until the subscription is in place.
	snap, err := reg.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	rec.ApplySnapshot(snap)
	close(gate)

	for ev := range ch {
		rec.Apply(ev)
		if ev.Terminal() {
			break
		}
	}

	view, ok := rec.View(job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCompleted, view.Status)
	assert.Equal(t, 4, view.CompletedItems)
	for i := 0; i < 4; i++ {
		require.NotNil(t, view.Items[i], "item %d", i)
		assert.Equal(t, domain.ItemStatusSuccess, view.Items[i].Status)
	}
}
