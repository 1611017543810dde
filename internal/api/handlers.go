package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/metergrid/metergrid/internal/domain"
)

// ─── Registration ───────────────────────────────────────────────────────────

type registerRequest struct {
	Username     string `json:"username"`
	MeterID      string `json:"meter_id"`
	DwellingType string `json:"dwelling_type"`
	Region       string `json:"region"`
	Area         string `json:"area"`
}

// handleRegister creates a user and returns the generated identifier.
// POST /api/users
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := s.store.Register(domain.UserProfile{
		Username:     strings.TrimSpace(req.Username),
		MeterID:      strings.TrimSpace(req.MeterID),
		DwellingType: strings.TrimSpace(req.DwellingType),
		Region:       strings.TrimSpace(req.Region),
		Area:         strings.TrimSpace(req.Area),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user": profile,
	})
}

// handleProfile returns a registered profile.
// GET /api/users/{id}
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.Profile(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": profile,
	})
}

// ─── Reading Submission ─────────────────────────────────────────────────────

type submitReadingRequest struct {
	MeterID string  `json:"meter_id"`
	Date    string  `json:"date"` // YYYY-MM-DD
	Reading float64 `json:"reading"`
}

type readingResponse struct {
	MeterUpdateTime string  `json:"meter_update_time"`
	Reading         float64 `json:"reading"`
}

func toReadingResponse(r domain.Reading) readingResponse {
	return readingResponse{
		MeterUpdateTime: r.Time.Format(domain.TimeLayout),
		Reading:         r.Value,
	}
}

// handleSubmitReading appends a reading at the next half-hour slot.
// POST /api/users/{id}/readings
func (s *Server) handleSubmitReading(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req submitReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	reading, err := s.store.AppendReading(id, req.MeterID, date, req.Reading)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"latest_reading": toReadingResponse(reading),
	})
}

// handleDailyReadings returns the user's pending readings for a date.
// GET /api/users/{id}/readings?meter_id=…&date=YYYY-MM-DD
func (s *Server) handleDailyReadings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meterID := r.URL.Query().Get("meter_id")

	profile, err := s.store.Profile(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if profile.MeterID != meterID {
		writeDomainError(w, domain.ErrMeterMismatch)
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		// Default to the date of the user's first pending reading, as
		// the daily-query page did.
		first, ok, err := s.firstPendingDate(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !ok {
			writeDomainError(w, domain.ErrNoData)
			return
		}
		dateStr = first
	}
	date, err := domain.ParseDate(dateStr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	readings, err := s.store.DailyReadings(id, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]readingResponse, 0, len(readings))
	for _, rd := range readings {
		out = append(out, toReadingResponse(rd))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":     date.Format(domain.DateLayout),
		"readings": out,
	})
}

// firstPendingDate returns the date of the user's oldest pending reading,
// the default day shown by the daily query.
func (s *Server) firstPendingDate(id string) (string, bool, error) {
	first, ok, err := s.store.FirstReading(id)
	if err != nil || !ok {
		return "", false, err
	}
	return first.Date(), true, nil
}

// ─── History Queries ────────────────────────────────────────────────────────

// handleHistory returns the ledgered usage summary for a date.
// GET /api/users/{id}/history?meter_id=…&date=YYYY-MM-DD
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meterID := r.URL.Query().Get("meter_id")

	date, err := domain.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	usage, day, err := s.history.DailyUsageFor(id, meterID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]readingResponse, 0, len(day))
	for _, rd := range day {
		out = append(out, toReadingResponse(rd))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query_result": usage,
		"readings":     out,
	})
}

// handleConsumption returns the per-date consumption series for charting.
// GET /api/users/{id}/consumption?meter_id=…
func (s *Server) handleConsumption(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meterID := r.URL.Query().Get("meter_id")

	series, err := s.history.ConsumptionSeries(id, meterID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"daily_consumption": series,
	})
}

// ─── Administration ─────────────────────────────────────────────────────────

// handleDrain runs one full consolidation cycle.
// POST /api/admin/drain
func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	res, err := s.cons.Drain(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":       res.Users,
		"readings":    res.Readings,
		"duration_ms": res.Duration.Milliseconds(),
	})
}

// handleDrainRuns lists recent consolidation runs.
// GET /api/admin/drains?limit=N
func (s *Server) handleDrainRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "drain history not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.runs.ListDrainRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type runResponse struct {
		StartedAt  string `json:"started_at"`
		FinishedAt string `json:"finished_at"`
		Users      int    `json:"users"`
		Readings   int    `json:"readings"`
		DurationMS int64  `json:"duration_ms"`
		Success    bool   `json:"success"`
		Error      string `json:"error,omitempty"`
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			StartedAt:  run.StartedAt.Format(domain.TimeLayout),
			FinishedAt: run.FinishedAt.Format(domain.TimeLayout),
			Users:      run.Users,
			Readings:   run.Readings,
			DurationMS: run.Duration.Milliseconds(),
			Success:    run.Success,
			Error:      run.Error,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": out,
	})
}
