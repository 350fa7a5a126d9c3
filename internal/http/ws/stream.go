// Package ws adapts the in-process progress event bus to a websocket push
// channel. The adapter forwards each subscriber's event stream in bus order
// and closes the connection after the job's terminal event.
package ws

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lorekeep/internal/domain"
	"lorekeep/internal/jobs"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamHandler serves GET /v1/jobs/{job_id}/events.
type StreamHandler struct {
	registry *jobs.Registry
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewStreamHandler creates the websocket adapter for a registry's bus.
func NewStreamHandler(registry *jobs.Registry, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin is enforced by the CORS layer in front of the API.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	// Subscribe before checking status so no event can slip between the
	// snapshot and the subscription.
	events, cancel := h.registry.Bus().Subscribe(jobID)
	defer cancel()

	job, err := h.registry.GetStatus(r.Context(), jobID)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain client frames so close/ping-pong handling works.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	// A job that is already terminal produces no further bus events; emit
	// its terminal event so the client sees a properly ended stream.
	if job.Status.Terminal() {
		_ = h.write(conn, terminalEvent(job))
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, ev); err != nil {
				return
			}
			if ev.Terminal() {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, ev domain.ProgressEvent) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

func terminalEvent(job *domain.Job) domain.ProgressEvent {
	ev := domain.ProgressEvent{
		Kind:           domain.EventJobCompleted,
		JobID:          job.ID,
		CompletedItems: job.CompletedItems,
		FailedItems:    job.FailedItems,
	}
	if job.CompletedAt != nil {
		ev.OccurredAt = *job.CompletedAt
	}
	if job.Status == domain.JobStatusCanceled {
		ev.Kind = domain.EventJobCanceled
	}
	return ev
}
