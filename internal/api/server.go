// Package api provides the HTTP server for metergrid.
// It exposes the JSON API the web front end drives: registration, reading
// submission, daily and historical queries, the consumption series, and the
// administrative consolidation trigger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metergrid/metergrid/internal/app/consolidator"
	"github.com/metergrid/metergrid/internal/domain"
	"github.com/metergrid/metergrid/internal/history"
	"github.com/metergrid/metergrid/internal/infra/sqlite"
	"github.com/metergrid/metergrid/internal/store"
)

// DrainGate is the consolidator surface the server needs: the
// Accepting/Draining flag and the drain trigger.
type DrainGate interface {
	Accepting() bool
	Drain(ctx context.Context) (consolidator.Result, error)
}

// Server is the metergrid HTTP API server.
type Server struct {
	store          *store.Store
	history        *history.Service
	cons           DrainGate
	runs           *sqlite.DB // optional drain-run history
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(st *store.Store, hist *history.Service, cons DrainGate) *Server {
	return &Server{store: st, history: hist, cons: cons}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetDrainHistory wires the drain-run history database for the admin surface.
func (s *Server) SetDrainHistory(db *sqlite.DB) { s.runs = db }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Mutating routes are gated: while a consolidation drains the
		// store, they answer 503 instead of touching shared state.
		r.Group(func(r chi.Router) {
			r.Use(s.requireAccepting)
			r.Post("/users", s.handleRegister)
			r.Post("/users/{id}/readings", s.handleSubmitReading)
		})

		r.Get("/users/{id}", s.handleProfile)
		r.Get("/users/{id}/readings", s.handleDailyReadings)
		r.Get("/users/{id}/history", s.handleHistory)
		r.Get("/users/{id}/consumption", s.handleConsumption)

		r.Post("/admin/drain", s.handleDrain)
		r.Get("/admin/drains", s.handleDrainRuns)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// requireAccepting rejects mutating requests while a drain is in progress.
func (s *Server) requireAccepting(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cons.Accepting() {
			writeError(w, http.StatusServiceUnavailable, domain.ErrDraining.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the failure shape. Callers treat a present "message" as
// the failure signal; success responses never carry one.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"message": msg,
	})
}

// writeDomainError maps a domain sentinel to an HTTP status and the
// user-facing message shape. None of these are fatal.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAllFieldsRequired), errors.Is(err, domain.ErrInvalidDate):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrMeterMismatch),
		errors.Is(err, domain.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDayComplete):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrIncompleteData):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDraining):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}
