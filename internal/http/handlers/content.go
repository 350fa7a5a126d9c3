package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lorekeep/internal/domain"
	"lorekeep/internal/middleware"
)

type contentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type contentResponse struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parent_id,omitempty"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func contentFilter(r *http.Request) domain.ContentFilter {
	return domain.ContentFilter{
		ParentID: r.URL.Query().Get("parent_id"),
		OwnerID:  r.URL.Query().Get("owner_id"),
		Search:   r.URL.Query().Get("search"),
	}
}

// --- worlds ---

func (a *App) CreateWorld(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	var req contentRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		a.error(w, http.StatusBadRequest, "invalid_argument", "name is required")
		return
	}
	world := &domain.World{ID: uuid.NewString(), OwnerID: userID, Name: req.Name, Description: req.Description}
	if err := a.Worlds.CreateWorld(r.Context(), world); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toWorldResponse(world))
}

func (a *App) GetWorld(w http.ResponseWriter, r *http.Request) {
	world, err := a.Worlds.GetWorld(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toWorldResponse(world))
}

func (a *App) UpdateWorld(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !a.decode(w, r, &req) {
		return
	}
	world := &domain.World{ID: chi.URLParam(r, "id"), Name: req.Name, Description: req.Description}
	if err := a.Worlds.UpdateWorld(r.Context(), world); err != nil {
		a.fail(w, err)
		return
	}
	updated, err := a.Worlds.GetWorld(r.Context(), world.ID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toWorldResponse(updated))
}

func (a *App) DeleteWorld(w http.ResponseWriter, r *http.Request) {
	if err := a.Worlds.DeleteWorld(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ListWorlds(w http.ResponseWriter, r *http.Request) {
	skip, take := pagination(r)
	worlds, total, err := a.Worlds.ListWorlds(r.Context(), contentFilter(r), skip, take)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]contentResponse, len(worlds))
	for i := range worlds {
		out[i] = toWorldResponse(&worlds[i])
	}
	a.collection(w, out, paginationMeta{Skip: skip, Take: take, Total: total})
}

// TransferWorld reassigns ownership of a world and its descendants. Admin only.
func (a *App) TransferWorld(w http.ResponseWriter, r *http.Request) {
	if middleware.RoleFromContext(r.Context()) != string(domain.UserRoleAdmin) {
		a.error(w, http.StatusForbidden, "forbidden", "admin role required")
		return
	}
	var req struct {
		NewOwnerID string `json:"new_owner_id"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.NewOwnerID == "" {
		a.error(w, http.StatusBadRequest, "invalid_argument", "new_owner_id is required")
		return
	}
	if _, err := a.Users.GetByID(r.Context(), req.NewOwnerID); err != nil {
		a.fail(w, err)
		return
	}
	if err := a.Worlds.TransferWorld(r.Context(), chi.URLParam(r, "id"), req.NewOwnerID); err != nil {
		a.fail(w, err)
		return
	}
	world, err := a.Worlds.GetWorld(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toWorldResponse(world))
}

func toWorldResponse(w *domain.World) contentResponse {
	return contentResponse{ID: w.ID, OwnerID: w.OwnerID, Name: w.Name, Description: w.Description, CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt}
}

// --- campaigns ---

func (a *App) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	var req struct {
		contentRequest
		WorldID string `json:"world_id"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.WorldID == "" {
		a.error(w, http.StatusBadRequest, "invalid_argument", "name and world_id are required")
		return
	}
	if _, err := a.Worlds.GetWorld(r.Context(), req.WorldID); err != nil {
		a.fail(w, err)
		return
	}
	c := &domain.Campaign{ID: uuid.NewString(), WorldID: req.WorldID, OwnerID: userID, Name: req.Name, Description: req.Description}
	if err := a.Worlds.CreateCampaign(r.Context(), c); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toCampaignResponse(c))
}

func (a *App) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := a.Worlds.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toCampaignResponse(c))
}

func (a *App) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !a.decode(w, r, &req) {
		return
	}
	c := &domain.Campaign{ID: chi.URLParam(r, "id"), Name: req.Name, Description: req.Description}
	if err := a.Worlds.UpdateCampaign(r.Context(), c); err != nil {
		a.fail(w, err)
		return
	}
	updated, err := a.Worlds.GetCampaign(r.Context(), c.ID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toCampaignResponse(updated))
}

func (a *App) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := a.Worlds.DeleteCampaign(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	skip, take := pagination(r)
	campaigns, total, err := a.Worlds.ListCampaigns(r.Context(), contentFilter(r), skip, take)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]contentResponse, len(campaigns))
	for i := range campaigns {
		out[i] = toCampaignResponse(&campaigns[i])
	}
	a.collection(w, out, paginationMeta{Skip: skip, Take: take, Total: total})
}

func toCampaignResponse(c *domain.Campaign) contentResponse {
	return contentResponse{ID: c.ID, ParentID: c.WorldID, OwnerID: c.OwnerID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

// --- adventures ---

func (a *App) CreateAdventure(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	var req struct {
		contentRequest
		CampaignID string `json:"campaign_id"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.CampaignID == "" {
		a.error(w, http.StatusBadRequest, "invalid_argument", "name and campaign_id are required")
		return
	}
	if _, err := a.Worlds.GetCampaign(r.Context(), req.CampaignID); err != nil {
		a.fail(w, err)
		return
	}
	adv := &domain.Adventure{ID: uuid.NewString(), CampaignID: req.CampaignID, OwnerID: userID, Name: req.Name, Description: req.Description}
	if err := a.Worlds.CreateAdventure(r.Context(), adv); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toAdventureResponse(adv))
}

func (a *App) GetAdventure(w http.ResponseWriter, r *http.Request) {
	adv, err := a.Worlds.GetAdventure(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toAdventureResponse(adv))
}

func (a *App) UpdateAdventure(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !a.decode(w, r, &req) {
		return
	}
	adv := &domain.Adventure{ID: chi.URLParam(r, "id"), Name: req.Name, Description: req.Description}
	if err := a.Worlds.UpdateAdventure(r.Context(), adv); err != nil {
		a.fail(w, err)
		return
	}
	updated, err := a.Worlds.GetAdventure(r.Context(), adv.ID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toAdventureResponse(updated))
}

func (a *App) DeleteAdventure(w http.ResponseWriter, r *http.Request) {
	if err := a.Worlds.DeleteAdventure(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ListAdventures(w http.ResponseWriter, r *http.Request) {
	skip, take := pagination(r)
	advs, total, err := a.Worlds.ListAdventures(r.Context(), contentFilter(r), skip, take)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]contentResponse, len(advs))
	for i := range advs {
		out[i] = toAdventureResponse(&advs[i])
	}
	a.collection(w, out, paginationMeta{Skip: skip, Take: take, Total: total})
}

func toAdventureResponse(adv *domain.Adventure) contentResponse {
	return contentResponse{ID: adv.ID, ParentID: adv.CampaignID, OwnerID: adv.OwnerID, Name: adv.Name, Description: adv.Description, CreatedAt: adv.CreatedAt, UpdatedAt: adv.UpdatedAt}
}

// --- encounters ---

func (a *App) CreateEncounter(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	var req struct {
		contentRequest
		AdventureID string `json:"adventure_id"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.AdventureID == "" {
		a.error(w, http.StatusBadRequest, "invalid_argument", "name and adventure_id are required")
		return
	}
	if _, err := a.Worlds.GetAdventure(r.Context(), req.AdventureID); err != nil {
		a.fail(w, err)
		return
	}
	enc := &domain.Encounter{ID: uuid.NewString(), AdventureID: req.AdventureID, OwnerID: userID, Name: req.Name, Description: req.Description}
	if err := a.Worlds.CreateEncounter(r.Context(), enc); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toEncounterResponse(enc))
}

func (a *App) GetEncounter(w http.ResponseWriter, r *http.Request) {
	enc, err := a.Worlds.GetEncounter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toEncounterResponse(enc))
}

func (a *App) UpdateEncounter(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !a.decode(w, r, &req) {
		return
	}
	enc := &domain.Encounter{ID: chi.URLParam(r, "id"), Name: req.Name, Description: req.Description}
	if err := a.Worlds.UpdateEncounter(r.Context(), enc); err != nil {
		a.fail(w, err)
		return
	}
	updated, err := a.Worlds.GetEncounter(r.Context(), enc.ID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toEncounterResponse(updated))
}

func (a *App) DeleteEncounter(w http.ResponseWriter, r *http.Request) {
	if err := a.Worlds.DeleteEncounter(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ListEncounters(w http.ResponseWriter, r *http.Request) {
	skip, take := pagination(r)
	encs, total, err := a.Worlds.ListEncounters(r.Context(), contentFilter(r), skip, take)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]contentResponse, len(encs))
	for i := range encs {
		out[i] = toEncounterResponse(&encs[i])
	}
	a.collection(w, out, paginationMeta{Skip: skip, Take: take, Total: total})
}

func toEncounterResponse(enc *domain.Encounter) contentResponse {
	return contentResponse{ID: enc.ID, ParentID: enc.AdventureID, OwnerID: enc.OwnerID, Name: enc.Name, Description: enc.Description, CreatedAt: enc.CreatedAt, UpdatedAt: enc.UpdatedAt}
}
