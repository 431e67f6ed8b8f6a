// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	custom_errors "ecosystem-dashboard/internal/errors"
	"ecosystem-dashboard/internal/model"
	"ecosystem-dashboard/internal/spotlight"
)

// SnapshotReader reads the most recently published snapshot.
type SnapshotReader interface {
	LatestRaw(ctx context.Context) ([]byte, error)
	Latest(ctx context.Context) (*model.Snapshot, error)
}

// TriggerFunc starts a pipeline run without waiting for it.
type TriggerFunc func() error

// Handler is the container for API dependencies.
type Handler struct {
	snapshots SnapshotReader
	trigger   TriggerFunc
	source    spotlight.Source
	logger    *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(snapshots SnapshotReader, trigger TriggerFunc, logger *slog.Logger) http.Handler {
	return newRouter(&Handler{
		snapshots: snapshots,
		trigger:   trigger,
		source:    spotlight.Default,
		logger:    logger,
	})
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.ping)
		r.Get("/data", h.getData)
		r.Get("/spotlight", h.getSpotlight)
		r.Post("/refresh", h.refresh)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// getData serves the published snapshot as stored, without decoding it.
// GET /api/data
func (h *Handler) getData(w http.ResponseWriter, r *http.Request) {
	raw, err := h.snapshots.LatestRaw(r.Context())
	if err != nil {
		h.snapshotError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// getSpotlight draws one repository of the published snapshot.
// GET /api/spotlight
func (h *Handler) getSpotlight(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Latest(r.Context())
	if err != nil {
		h.snapshotError(w, err)
		return
	}
	repo, ok := spotlight.Pick(snap.Repos, h.source)
	if !ok {
		respondWithError(w, http.StatusNotFound, "No repositories to choose from")
		return
	}
	respondWithJSON(w, http.StatusOK, repo)
}

// refresh starts a pipeline run in the background.
// POST /api/refresh
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.trigger(); err != nil {
		if errors.Is(err, custom_errors.ErrRunInProgress) {
			respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("Failed to trigger sync run", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handler) snapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, custom_errors.ErrNoSnapshot) {
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.logger.Error("Failed to read snapshot", "error", err)
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}
