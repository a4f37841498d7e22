package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dreampath/chatcore/internal/chat"
	"github.com/dreampath/chatcore/internal/identity"
	"github.com/dreampath/chatcore/internal/store"
)

// PanelStore is the slice of the research aggregator the chat handler
// needs: new-chat drops the accumulated panels.
type PanelStore interface {
	Clear()
}

// ChatHandler exposes session lifecycle and message exchange endpoints.
type ChatHandler struct {
	mgr     *chat.Manager
	tracker *identity.Tracker
	durable store.Store
	panels  PanelStore
}

// NewChatHandler creates a chat handler.
func NewChatHandler(mgr *chat.Manager, tracker *identity.Tracker, durable store.Store, panels PanelStore) *ChatHandler {
	return &ChatHandler{mgr: mgr, tracker: tracker, durable: durable, panels: panels}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/ensure", h.Ensure)
		r.Post("/send", h.Send)
		r.Post("/new", h.New)
		r.Get("/transcript", h.Transcript)
		r.Post("/messages/{index}/dismiss", h.Dismiss)
	})
	r.Get("/api/identity", h.Identity)
}

// Ensure adopts or creates the session for the stored user.
func (h *ChatHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	userID := chat.StoredUserID(r.Context(), h.durable)

	result, err := h.mgr.EnsureActive(r.Context(), userID)
	if err != nil {
		slog.Error("ensure active session failed", "error", err)
		Error(w, http.StatusBadGateway, "failed to establish session")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session":         result.Session,
		"restored":        result.Restored,
		"needsSurvey":     result.NeedsSurvey,
		"surveyQuestions": result.SurveyQuestions,
		"messages":        h.mgr.Transcript().Messages(),
	})
}

// New is the explicit "new chat" action.
func (h *ChatHandler) New(w http.ResponseWriter, r *http.Request) {
	userID := chat.StoredUserID(r.Context(), h.durable)

	h.panels.Clear()
	result, err := h.mgr.Reset(r.Context(), userID)
	if err != nil {
		slog.Error("reset session failed", "error", err)
		Error(w, http.StatusBadGateway, "failed to create session")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session":         result.Session,
		"needsSurvey":     result.NeedsSurvey,
		"surveyQuestions": result.SurveyQuestions,
		"messages":        h.mgr.Transcript().Messages(),
	})
}

// Send performs one message exchange.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.mgr.Send(r.Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			Error(w, http.StatusBadRequest, "message is empty")
		case errors.Is(err, chat.ErrNoActiveSession):
			Error(w, http.StatusConflict, "no active session")
		case errors.Is(err, chat.ErrExchangeInFlight):
			Error(w, http.StatusConflict, "exchange already in flight")
		default:
			slog.Error("send failed", "error", err)
			Error(w, http.StatusInternalServerError, "send failed")
		}
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"message": reply})
}

// Transcript returns the current message sequence.
func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"messages": h.mgr.Transcript().Messages(),
	})
}

// Dismiss hides a message's text and/or clears its action card. The
// two toggles are independent.
func (h *ChatHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid message index")
		return
	}

	var req struct {
		HideContent bool `json:"hideContent"`
		ClearAction bool `json:"clearAction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	transcript := h.mgr.Transcript()
	if req.HideContent {
		if err := transcript.HideContent(r.Context(), index); err != nil {
			Error(w, http.StatusNotFound, "message not found")
			return
		}
	}
	if req.ClearAction {
		if err := transcript.ClearAgentAction(r.Context(), index); err != nil {
			Error(w, http.StatusNotFound, "message not found")
			return
		}
	}

	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Identity returns the current identity snapshot.
func (h *ChatHandler) Identity(w http.ResponseWriter, r *http.Request) {
	status := h.tracker.Current()
	if status == nil {
		Error(w, http.StatusNotFound, "no identity snapshot")
		return
	}
	JSON(w, http.StatusOK, status)
}
