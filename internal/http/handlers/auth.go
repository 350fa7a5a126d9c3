package handlers

import (
	"net/http"
	"time"

	"lorekeep/internal/middleware"
)

type tokenRequest struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// IssueToken exchanges a known email for a signed bearer token. The real
// deployment sits behind an external identity provider; this endpoint keeps
// local development and tests self-contained.
func (a *App) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		a.error(w, http.StatusBadRequest, "invalid_argument", "email is required")
		return
	}
	user, err := a.Users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		a.fail(w, err)
		return
	}
	exp := time.Now().Add(24 * time.Hour).Unix()
	token, err := middleware.SignJWT(a.JWTSecret, middleware.TokenClaims{
		Sub:    user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		Exp:    exp,
		Issuer: "lorekeep",
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: exp})
}
