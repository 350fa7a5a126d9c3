package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lorekeep/internal/domain"
)

// JobRepositoryPG implements domain.JobStore. Writes are idempotent upserts
// keyed by job id and (job id, idx) so executor retries and replays cannot
// duplicate rows.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job store backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// SaveJob upserts the job row and all of its item rows in one transaction.
func (r *JobRepositoryPG) SaveJob(ctx context.Context, job *domain.Job) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	jobQuery := `
INSERT INTO jobs (id, type, owner_id, status, total_items, completed_items, failed_items, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    completed_items = EXCLUDED.completed_items,
    failed_items = EXCLUDED.failed_items,
    completed_at = EXCLUDED.completed_at;
`
	_, err = tx.Exec(ctx, jobQuery,
		job.ID,
		job.Type,
		job.OwnerID,
		job.Status,
		job.TotalItems,
		job.CompletedItems,
		job.FailedItems,
		job.CreatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return storeErr(err)
	}

	for i := range job.Items {
		if err := upsertItem(ctx, tx, &job.Items[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// SaveJobItem upserts a single item row.
func (r *JobRepositoryPG) SaveJobItem(ctx context.Context, item *domain.JobItem) error {
	return upsertItem(ctx, r.pool, item)
}

// execer abstracts pool vs transaction so item upserts can run in either.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func upsertItem(ctx context.Context, db execer, item *domain.JobItem) error {
	query := `
INSERT INTO job_items (id, job_id, idx, target_id, payload, status, started_at, completed_at, result)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (job_id, idx) DO UPDATE SET
    status = EXCLUDED.status,
    started_at = EXCLUDED.started_at,
    completed_at = EXCLUDED.completed_at,
    result = EXCLUDED.result;
`
	_, err := db.Exec(ctx, query,
		item.ID,
		item.JobID,
		item.Index,
		item.TargetID,
		item.Payload,
		item.Status,
		item.StartedAt,
		item.CompletedAt,
		item.Result,
	)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// LoadJob fetches a job and its items ordered by index.
func (r *JobRepositoryPG) LoadJob(ctx context.Context, jobID string) (*domain.Job, error) {
	jobQuery := `
SELECT id, type, owner_id, status, total_items, completed_items, failed_items, created_at, completed_at
FROM jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, jobQuery, jobID)
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.Type,
		&job.OwnerID,
		&job.Status,
		&job.TotalItems,
		&job.CompletedItems,
		&job.FailedItems,
		&job.CreatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		return nil, storeErr(err)
	}

	items, err := r.loadItems(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job.Items = items
	return &job, nil
}

func (r *JobRepositoryPG) loadItems(ctx context.Context, jobID string) ([]domain.JobItem, error) {
	query := `
SELECT id, job_id, idx, target_id, payload, status, started_at, completed_at, result
FROM job_items
WHERE job_id = $1
ORDER BY idx;
`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var items []domain.JobItem
	for rows.Next() {
		var item domain.JobItem
		if err := rows.Scan(
			&item.ID,
			&item.JobID,
			&item.Index,
			&item.TargetID,
			&item.Payload,
			&item.Status,
			&item.StartedAt,
			&item.CompletedAt,
			&item.Result,
		); err != nil {
			return nil, storeErr(err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// ListJobs returns jobs newest-first with the unpaginated total. Item rows
// are not hydrated for listings; callers needing items use LoadJob.
func (r *JobRepositoryPG) ListJobs(ctx context.Context, filter domain.JobFilter, skip, take int) ([]*domain.Job, int, error) {
	query := `
SELECT id, type, owner_id, status, total_items, completed_items, failed_items, created_at, completed_at,
       COUNT(*) OVER () AS total_count
FROM jobs
WHERE ($1 = '' OR type = $1)
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR owner_id = $3)
ORDER BY created_at DESC
OFFSET $4 LIMIT $5;
`
	rows, err := r.pool.Query(ctx, query, string(filter.Type), string(filter.Status), filter.OwnerID, skip, take)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	total := 0
	for rows.Next() {
		var job domain.Job
		if err := rows.Scan(
			&job.ID,
			&job.Type,
			&job.OwnerID,
			&job.Status,
			&job.TotalItems,
			&job.CompletedItems,
			&job.FailedItems,
			&job.CreatedAt,
			&job.CompletedAt,
			&total,
		); err != nil {
			return nil, 0, storeErr(err)
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr(err)
	}
	return jobs, total, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

var _ domain.JobStore = (*JobRepositoryPG)(nil)
