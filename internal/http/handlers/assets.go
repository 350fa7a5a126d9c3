package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lorekeep/internal/domain"
	"lorekeep/internal/middleware"
)

type assetRequest struct {
	ParentKind  string `json:"parent_kind"`
	ParentID    string `json:"parent_id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type assetResponse struct {
	ID          string    `json:"id"`
	ParentKind  string    `json:"parent_kind"`
	ParentID    string    `json:"parent_id"`
	OwnerID     string    `json:"owner_id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PortraitURL string    `json:"portrait_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAssetResponse(a *domain.Asset) assetResponse {
	return assetResponse{
		ID:          a.ID,
		ParentKind:  string(a.ParentKind),
		ParentID:    a.ParentID,
		OwnerID:     a.OwnerID,
		Kind:        string(a.Kind),
		Name:        a.Name,
		Description: a.Description,
		PortraitURL: a.PortraitURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (a *App) CreateAsset(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	var req assetRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.ParentID == "" || req.ParentKind == "" {
		a.error(w, http.StatusBadRequest, "invalid_argument", "name, parent_kind and parent_id are required")
		return
	}
	asset := &domain.Asset{
		ID:          uuid.NewString(),
		ParentKind:  domain.ContentKind(req.ParentKind),
		ParentID:    req.ParentID,
		OwnerID:     userID,
		Kind:        domain.AssetKind(req.Kind),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := a.Assets.Create(r.Context(), asset); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toAssetResponse(asset))
}

func (a *App) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := a.Assets.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toAssetResponse(asset))
}

func (a *App) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if !a.decode(w, r, &req) {
		return
	}
	asset := &domain.Asset{
		ID:          chi.URLParam(r, "id"),
		Kind:        domain.AssetKind(req.Kind),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := a.Assets.Update(r.Context(), asset); err != nil {
		a.fail(w, err)
		return
	}
	updated, err := a.Assets.GetByID(r.Context(), asset.ID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toAssetResponse(updated))
}

func (a *App) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := a.Assets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	skip, take := pagination(r)
	assets, total, err := a.Assets.List(r.Context(), contentFilter(r), skip, take)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]assetResponse, len(assets))
	for i := range assets {
		out[i] = toAssetResponse(&assets[i])
	}
	a.collection(w, out, paginationMeta{Skip: skip, Take: take, Total: total})
}
