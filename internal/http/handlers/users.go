package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lorekeep/internal/domain"
	"lorekeep/internal/middleware"
)

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role), CreatedAt: u.CreatedAt}
}

// Me returns the authenticated caller's account.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toUserResponse(user))
}

// AssignRole changes a user's role. Admin only.
func (a *App) AssignRole(w http.ResponseWriter, r *http.Request) {
	if middleware.RoleFromContext(r.Context()) != string(domain.UserRoleAdmin) {
		a.error(w, http.StatusForbidden, "forbidden", "admin role required")
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	role := domain.UserRole(req.Role)
	if role != domain.UserRoleUser && role != domain.UserRoleAdmin {
		a.error(w, http.StatusBadRequest, "invalid_argument", "unknown role")
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.Users.UpdateRole(r.Context(), id, role); err != nil {
		a.fail(w, err)
		return
	}
	user, err := a.Users.GetByID(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toUserResponse(user))
}
