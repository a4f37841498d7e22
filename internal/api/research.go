package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dreampath/chatcore/internal/backend"
	"github.com/dreampath/chatcore/internal/domain"
	"github.com/dreampath/chatcore/internal/research"
)

// ResearchHandler exposes research panels and booking endpoints.
type ResearchHandler struct {
	agg    *research.Aggregator
	client *backend.Client
}

// NewResearchHandler creates a research handler.
func NewResearchHandler(agg *research.Aggregator, client *backend.Client) *ResearchHandler {
	return &ResearchHandler{agg: agg, client: client}
}

// RegisterRoutes registers research routes.
func (h *ResearchHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/research", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/latest", h.Latest)
		r.Post("/{panelID}/similar", h.Similar)
	})
	r.Post("/api/bookings", h.CreateBooking)
}

// List returns all panels, newest first.
func (h *ResearchHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"panels": h.agg.Panels(),
	})
}

// Latest returns the panel the UI should display.
func (h *ResearchHandler) Latest(w http.ResponseWriter, r *http.Request) {
	panel, ok := h.agg.Latest()
	if !ok {
		Error(w, http.StatusNotFound, "no research panels")
		return
	}
	JSON(w, http.StatusOK, panel)
}

// Similar refreshes a mentoring panel with sessions similar to the
// given reference.
func (h *ResearchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	panelID := chi.URLParam(r, "panelID")

	var req struct {
		Reference domain.MentoringSession `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.agg.FindSimilarMentors(r.Context(), panelID, req.Reference); err != nil {
		slog.Warn("similar mentors lookup failed", "panel_id", panelID, "error", err)
		Error(w, http.StatusBadGateway, "similar mentors lookup failed")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"panels": h.agg.Panels()})
}

// CreateBooking proxies booking creation. Failures surface the
// server-provided message so the UI can show it.
func (h *ResearchHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req backend.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.client.CreateBooking(r.Context(), req)
	if err != nil {
		slog.Error("booking failed", "session_id", req.SessionID, "error", err)
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) && statusErr.Message != "" {
			Error(w, http.StatusBadGateway, statusErr.Message)
			return
		}
		Error(w, http.StatusBadGateway, "booking failed, please try again")
		return
	}

	JSON(w, http.StatusOK, resp)
}
