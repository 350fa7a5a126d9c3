package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"lorekeep/internal/http/handlers"
	"lorekeep/internal/http/ws"
	"lorekeep/internal/infra"
	"lorekeep/internal/middleware"
)

// NewRouter assembles the public HTTP surface.
func NewRouter(cfg *infra.Config, app *handlers.App, logger zerolog.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

	stream := ws.NewStreamHandler(app.Registry, logger)

	r.Get("/v1/healthz", app.Health)
	r.Post("/v1/auth/token", app.IssueToken)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Get("/v1/me", app.Me)
		r.Post("/v1/users/{id}/role", app.AssignRole)

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.SubmitJob)
			r.Get("/", app.ListJobHistory)
			r.Get("/{job_id}", app.GetJobStatus)
			r.Post("/{job_id}/cancel", app.CancelJob)
			r.Post("/{job_id}/retry", app.RetryJob)
			r.Get("/{job_id}/events", stream.ServeHTTP)
		})

		r.Route("/v1/worlds", func(r chi.Router) {
			r.Post("/", app.CreateWorld)
			r.Get("/", app.ListWorlds)
			r.Get("/{id}", app.GetWorld)
			r.Put("/{id}", app.UpdateWorld)
			r.Delete("/{id}", app.DeleteWorld)
			r.Post("/{id}/transfer", app.TransferWorld)
		})

		r.Route("/v1/campaigns", func(r chi.Router) {
			r.Post("/", app.CreateCampaign)
			r.Get("/", app.ListCampaigns)
			r.Get("/{id}", app.GetCampaign)
			r.Put("/{id}", app.UpdateCampaign)
			r.Delete("/{id}", app.DeleteCampaign)
		})

		r.Route("/v1/adventures", func(r chi.Router) {
			r.Post("/", app.CreateAdventure)
			r.Get("/", app.ListAdventures)
			r.Get("/{id}", app.GetAdventure)
			r.Put("/{id}", app.UpdateAdventure)
			r.Delete("/{id}", app.DeleteAdventure)
		})

		r.Route("/v1/encounters", func(r chi.Router) {
			r.Post("/", app.CreateEncounter)
			r.Get("/", app.ListEncounters)
			r.Get("/{id}", app.GetEncounter)
			r.Put("/{id}", app.UpdateEncounter)
			r.Delete("/{id}", app.DeleteEncounter)
		})

		r.Route("/v1/assets", func(r chi.Router) {
			r.Post("/", app.CreateAsset)
			r.Get("/", app.ListAssets)
			r.Get("/{id}", app.GetAsset)
			r.Put("/{id}", app.UpdateAsset)
			r.Delete("/{id}", app.DeleteAsset)
		})
	})

	return r
}
