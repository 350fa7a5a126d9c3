package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lorekeep/internal/domain"
)

const testJobType = domain.JobType("test_generation")

func newTestRegistry(t *testing.T, work WorkFunc) *Registry {
	t.Helper()
	reg := NewRegistry(Options{Concurrency: 4})
	if work == nil {
		work = func(ctx context.Context, unit domain.WorkUnit) (string, error) {
			return "artifact-" + unit.TargetID, nil
		}
	}
	reg.RegisterWorker(testJobType, work)
	return reg
}

func units(n int) []domain.WorkUnit {
	out := make([]domain.WorkUnit, n)
	for i := range out {
		out[i] = domain.WorkUnit{TargetID: fmt.Sprintf("asset-%d", i)}
	}
	return out
}

// waitTerminal polls until the job reaches a terminal status, asserting the
// counter invariant on every observation along the way.
func waitTerminal(t *testing.T, reg *Registry, jobID string) *domain.Job {
	t.Helper()
	var final *domain.Job
	require.Eventually(t, func() bool {
		job, err := reg.GetStatus(context.Background(), jobID)
		require.NoError(t, err)
		require.LessOrEqual(t, job.CompletedItems+job.FailedItems, job.TotalItems)
		if job.Status.Terminal() {
			final = job
			return true
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	return final
}

func TestSubmitRejectsEmptyItems(t *testing.T) {
	reg := newTestRegistry(t, nil)
	_, err := reg.Submit(context.Background(), testJobType, "owner", nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubmitRejectsUnknownJobType(t *testing.T) {
	reg := newTestRegistry(t, nil)
	_, err := reg.Submit(context.Background(), "bogus", "owner", units(1))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubmitCreatesIndexedPendingItems(t *testing.T) {
	block := make(chan struct{})
	reg := newTestRegistry(t, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		<-block
		return "", nil
	})

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(3))
	require.NoError(t, err)
	assert.Equal(t, 3, job.TotalItems)
	assert.Len(t, job.Items, 3)
	for i, item := range job.Items {
		assert.Equal(t, i, item.Index)
		assert.Equal(t, job.ID, item.JobID)
	}

	close(block)
	waitTerminal(t, reg, job.ID)
}

func TestGetStatusUnknownJob(t *testing.T) {
	reg := newTestRegistry(t, nil)
	_, err := reg.GetStatus(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetStatusReturnsDeepCopy(t *testing.T) {
	reg := newTestRegistry(t, nil)
	job, err := reg.Submit(context.Background(), testJobType, "owner", units(2))
	require.NoError(t, err)
	waitTerminal(t, reg, job.ID)

	snap, err := reg.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	snap.Items[0].Status = domain.ItemStatusPending
	snap.Status = domain.JobStatusPending

	again, err := reg.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusSuccess, again.Items[0].Status)
	assert.Equal(t, domain.JobStatusCompleted, again.Status)
}

func TestScenarioOneSuccessOneFailure(t *testing.T) {
	reg := newTestRegistry(t, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		if unit.TargetID == "asset-1" {
			return "", errors.New("backend rejected prompt")
		}
		return "r1", nil
	})

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(2))
	require.NoError(t, err)

	final := waitTerminal(t, reg, job.ID)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, 2, final.TotalItems)
	assert.Equal(t, 1, final.CompletedItems)
	assert.Equal(t, 1, final.FailedItems)
	assert.Equal(t, domain.ItemStatusSuccess, final.Items[0].Status)
	assert.Equal(t, "r1", final.Items[0].Result)
	assert.Equal(t, domain.ItemStatusFailed, final.Items[1].Status)
	assert.Empty(t, final.Items[1].Result)
	require.NotNil(t, final.CompletedAt)
}

func TestPartialFailureIsolation(t *testing.T) {
	reg := newTestRegistry(t, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		if unit.TargetID == "asset-2" {
			return "", errors.New("always fails")
		}
		return "ok", nil
	})

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(5))
	require.NoError(t, err)

	final := waitTerminal(t, reg, job.ID)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, 5, final.TotalItems)
	assert.Equal(t, 4, final.CompletedItems)
	assert.Equal(t, 1, final.FailedItems)
	for _, idx := range []int{0, 1, 3, 4} {
		assert.Equal(t, domain.ItemStatusSuccess, final.Items[idx].Status, "item %d", idx)
	}
	assert.Equal(t, domain.ItemStatusFailed, final.Items[2].Status)
}

func TestPanicInWorkFunctionFailsOnlyThatItem(t *testing.T) {
	reg := newTestRegistry(t, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		if unit.TargetID == "asset-0" {
			panic("boom")
		}
		return "ok", nil
	})

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(3))
	require.NoError(t, err)

	final := waitTerminal(t, reg, job.ID)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, domain.ItemStatusFailed, final.Items[0].Status)
	assert.Equal(t, 2, final.CompletedItems)
	assert.Equal(t, 1, final.FailedItems)
}

func TestCancelDrainsInFlightAndSkipsPending(t *testing.T) {
	started := make(chan string, 10)
	gate := make(chan struct{})
	reg := NewRegistry(Options{Concurrency: 3})
	reg.RegisterWorker(testJobType, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		started <- unit.TargetID
		<-gate
		return "done", nil
	})

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(10))
	require.NoError(t, err)

	// Wait for the three workers to pick up their first items.
	for i := 0; i < 3; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("workers did not start in time")
		}
	}

	canceled, err := reg.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, canceled.Status.Terminal())

	close(gate)
	final := waitTerminal(t, reg, job.ID)

	assert.Equal(t, domain.JobStatusCanceled, final.Status)
	assert.Equal(t, 3, final.CompletedItems+final.FailedItems)
	pending := 0
	for _, item := range final.Items {
		if item.Status == domain.ItemStatusPending {
			pending++
		}
	}
	assert.Equal(t, 7, pending)
	require.NotNil(t, final.CompletedAt)
}

func TestCancelUnknownJob(t *testing.T) {
	reg := newTestRegistry(t, nil)
	_, err := reg.Cancel(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelTerminalJobIsNoOp(t *testing.T) {
	reg := newTestRegistry(t, nil)
	job, err := reg.Submit(context.Background(), testJobType, "owner", units(2))
	require.NoError(t, err)
	final := waitTerminal(t, reg, job.ID)

	again, err := reg.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, final.Status, again.Status)
	assert.Equal(t, final.CompletedItems, again.CompletedItems)
}

func TestRetryRequiresTerminalFailedOrCanceled(t *testing.T) {
	block := make(chan struct{})
	reg := newTestRegistry(t, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		<-block
		return "", nil
	})
	job, err := reg.Submit(context.Background(), testJobType, "owner", units(1))
	require.NoError(t, err)

	_, err = reg.Retry(context.Background(), job.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	close(block)
	final := waitTerminal(t, reg, job.ID)
	require.Equal(t, domain.JobStatusCompleted, final.Status)

	// Completed jobs cannot be retried either.
	_, err = reg.Retry(context.Background(), job.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRetryResetsEverything(t *testing.T) {
	var firstRun atomic.Bool
	firstRun.Store(true)
	reg := newTestRegistry(t, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		if firstRun.Load() && unit.TargetID == "asset-2" {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(3))
	require.NoError(t, err)
	final := waitTerminal(t, reg, job.ID)
	require.Equal(t, domain.JobStatusFailed, final.Status)
	require.Equal(t, 2, final.CompletedItems)
	require.Equal(t, 1, final.FailedItems)

	firstRun.Store(false)
	reset, err := reg.Retry(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, reset.Status)
	assert.Nil(t, reset.CompletedAt)
	assert.Zero(t, reset.CompletedItems)
	assert.Zero(t, reset.FailedItems)
	for _, item := range reset.Items {
		assert.Equal(t, domain.ItemStatusPending, item.Status)
		assert.Nil(t, item.StartedAt)
		assert.Nil(t, item.CompletedAt)
		assert.Empty(t, item.Result)
	}

	second := waitTerminal(t, reg, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, second.Status)
	assert.Equal(t, 3, second.CompletedItems)
}

func TestRetryAfterCancel(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	reg := NewRegistry(Options{Concurrency: 1})
	reg.RegisterWorker(testJobType, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-gate
		return "ok", nil
	})

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(2))
	require.NoError(t, err)
	<-started
	_, err = reg.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	close(gate)
	final := waitTerminal(t, reg, job.ID)
	require.Equal(t, domain.JobStatusCanceled, final.Status)

	reset, err := reg.Retry(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusPending, reset.Status)

	second := waitTerminal(t, reg, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, second.Status)
	assert.Equal(t, 2, second.CompletedItems)
}

func TestListHistoryNewestFirstWithPagination(t *testing.T) {
	reg := newTestRegistry(t, nil)

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		job, err := reg.Submit(context.Background(), testJobType, "owner", units(1))
		require.NoError(t, err)
		ids = append(ids, job.ID)
		waitTerminal(t, reg, job.ID)
		time.Sleep(2 * time.Millisecond) // distinct createdAt ordering
	}

	page, total, err := reg.ListHistory(context.Background(), domain.JobFilter{}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	rest, total, err := reg.ListHistory(context.Background(), domain.JobFilter{}, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)

	filtered, total, err := reg.ListHistory(context.Background(), domain.JobFilter{Status: domain.JobStatusCanceled}, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, filtered)
}

// stallStore holds back terminal job writes until released, widening the
// window between a terminal status becoming visible and the run finishing.
type stallStore struct {
	release chan struct{}
}

func (s *stallStore) SaveJob(ctx context.Context, job *domain.Job) error {
	if job.Status.Terminal() {
		<-s.release
	}
	return nil
}

func (s *stallStore) SaveJobItem(ctx context.Context, item *domain.JobItem) error {
	return nil
}

func (s *stallStore) LoadJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return nil, domain.ErrNotFound
}

func (s *stallStore) ListJobs(ctx context.Context, filter domain.JobFilter, skip, take int) ([]*domain.Job, int, error) {
	return nil, 0, nil
}

func TestRetryWaitsForPriorRunToFinishPublishing(t *testing.T) {
	release := make(chan struct{})
	reg := NewRegistry(Options{Concurrency: 2, Store: &stallStore{release: release}})

	var failRun atomic.Bool
	failRun.Store(true)
	reg.RegisterWorker(testJobType, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		if failRun.Load() {
			return "", errors.New("first run fails")
		}
		return "ok", nil
	})

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(2))
	require.NoError(t, err)

	// The failed status is visible while the run's terminal persist, and
	// therefore its terminal event, is still held back.
	require.Eventually(t, func() bool {
		j, err := reg.GetStatus(context.Background(), job.ID)
		require.NoError(t, err)
		return j.Status == domain.JobStatusFailed
	}, 5*time.Second, 5*time.Millisecond)
	failRun.Store(false)

	retried := make(chan struct{})
	go func() {
		defer close(retried)
		_, err := reg.Retry(context.Background(), job.ID)
		assert.NoError(t, err)
	}()

	select {
	case <-retried:
		t.Fatal("retry returned while the prior run was still publishing")
	case <-time.After(150 * time.Millisecond):
	}

	close(release)
	<-retried

	// Anything a fresh subscriber sees now belongs to the retried run; the
	// first run's failure terminal must never reach it.
	ch, cancel := reg.Bus().Subscribe(job.ID)
	defer cancel()

	final := waitTerminal(t, reg, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, 2, final.CompletedItems)
	assert.Zero(t, final.FailedItems)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Terminal() {
				assert.Equal(t, domain.EventJobCompleted, ev.Kind)
				assert.Zero(t, ev.FailedItems)
			}
		default:
			return
		}
	}
}

func TestRetryCancellableWhileWaitingOnPriorRun(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	reg := NewRegistry(Options{Concurrency: 1, Store: &stallStore{release: release}})
	reg.RegisterWorker(testJobType, func(ctx context.Context, unit domain.WorkUnit) (string, error) {
		return "", errors.New("always fails")
	})

	job, err := reg.Submit(context.Background(), testJobType, "owner", units(1))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		j, err := reg.GetStatus(context.Background(), job.ID)
		require.NoError(t, err)
		return j.Status == domain.JobStatusFailed
	}, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = reg.Retry(ctx, job.ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
