package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lorekeep/internal/domain"
	"lorekeep/internal/middleware"
)

type submitJobRequest struct {
	JobType  string   `json:"job_type"`
	AssetIDs []string `json:"asset_ids"`
	Prompt   string   `json:"prompt,omitempty"`
}

type jobItemResponse struct {
	Index       int        `json:"index"`
	TargetID    string     `json:"target_id"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      string     `json:"result,omitempty"`
}

type jobResponse struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	OwnerID        string            `json:"owner_id"`
	Status         string            `json:"status"`
	TotalItems     int               `json:"total_items"`
	CompletedItems int               `json:"completed_items"`
	FailedItems    int               `json:"failed_items"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Items          []jobItemResponse `json:"items,omitempty"`
}

func toJobResponse(job *domain.Job, withItems bool) jobResponse {
	resp := jobResponse{
		ID:             job.ID,
		Type:           string(job.Type),
		OwnerID:        job.OwnerID,
		Status:         string(job.Status),
		TotalItems:     job.TotalItems,
		CompletedItems: job.CompletedItems,
		FailedItems:    job.FailedItems,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}
	if withItems {
		resp.Items = make([]jobItemResponse, len(job.Items))
		for i, item := range job.Items {
			resp.Items[i] = jobItemResponse{
				Index:       item.Index,
				TargetID:    item.TargetID,
				Status:      string(item.Status),
				StartedAt:   item.StartedAt,
				CompletedAt: item.CompletedAt,
				Result:      item.Result,
			}
		}
	}
	return resp
}

// SubmitJob accepts a bulk-generation request: one work unit per asset id.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req submitJobRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.AssetIDs) == 0 {
		a.error(w, http.StatusBadRequest, "invalid_argument", "asset_ids must not be empty")
		return
	}

	assets, err := a.Assets.GetByIDs(r.Context(), req.AssetIDs)
	if err != nil {
		a.fail(w, err)
		return
	}
	if len(assets) != len(req.AssetIDs) {
		a.error(w, http.StatusBadRequest, "invalid_argument", "one or more assets do not exist")
		return
	}

	units := make([]domain.WorkUnit, len(assets))
	for i, asset := range assets {
		units[i] = domain.WorkUnit{TargetID: asset.ID, Payload: req.Prompt}
	}

	job, err := a.Registry.Submit(r.Context(), domain.JobType(req.JobType), userID, units)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, toJobResponse(job, true))
}

// GetJobStatus serves a snapshot. Only terminal snapshots are cached: a live
// job's state changes with every item transition, so caching it would serve
// stale progress for up to the TTL.
func (a *App) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if a.Cache != nil {
		if job, ok, err := a.Cache.GetJob(r.Context(), jobID); err == nil && ok {
			a.json(w, http.StatusOK, toJobResponse(job, true))
			return
		} else if err != nil {
			a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("job cache read failed")
		}
	}

	job, err := a.Registry.GetStatus(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if a.Cache != nil && job.Status.Terminal() {
		if err := a.Cache.SetJob(r.Context(), job, a.CacheTTL); err != nil {
			a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("job cache write failed")
		}
	}
	a.json(w, http.StatusOK, toJobResponse(job, true))
}

// ListJobHistory lists jobs newest-first with optional type/status filters.
func (a *App) ListJobHistory(w http.ResponseWriter, r *http.Request) {
	skip, take := pagination(r)
	filter := domain.JobFilter{
		Type:    domain.JobType(r.URL.Query().Get("job_type")),
		Status:  domain.JobStatus(r.URL.Query().Get("status")),
		OwnerID: r.URL.Query().Get("owner_id"),
	}
	jobsList, total, err := a.Registry.ListHistory(r.Context(), filter, skip, take)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]jobResponse, len(jobsList))
	for i, job := range jobsList {
		out[i] = toJobResponse(job, false)
	}
	a.collection(w, out, paginationMeta{Skip: skip, Take: take, Total: total})
}

// CancelJob requests cooperative cancellation; idempotent on terminal jobs.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Registry.Cancel(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.invalidateJobCache(r, jobID)
	a.json(w, http.StatusOK, toJobResponse(job, true))
}

// RetryJob resets a failed or canceled job and restarts it.
func (a *App) RetryJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Registry.Retry(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.invalidateJobCache(r, jobID)
	a.json(w, http.StatusOK, toJobResponse(job, true))
}

func (a *App) invalidateJobCache(r *http.Request, jobID string) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.InvalidateJob(r.Context(), jobID); err != nil {
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("job cache invalidation failed")
	}
}
