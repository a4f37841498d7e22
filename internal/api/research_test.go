package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dreampath/chatcore/internal/backend"
	"github.com/dreampath/chatcore/internal/domain"
	"github.com/dreampath/chatcore/internal/research"
)

func newResearchTestServer(t *testing.T, backendHandler http.Handler) (*httptest.Server, *research.Aggregator) {
	t.Helper()

	backendSrv := httptest.NewServer(backendHandler)
	t.Cleanup(backendSrv.Close)

	client := backend.NewClient(backend.Config{
		BaseURL:         backendSrv.URL,
		AgentServiceURL: backendSrv.URL,
		RequestTimeout:  2 * time.Second,
	}, nil)

	agg := research.NewAggregator(client, nil)

	r := chi.NewRouter()
	NewResearchHandler(agg, client).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, agg
}

func TestLatestWithoutPanelsIs404(t *testing.T) {
	t.Parallel()

	srv, _ := newResearchTestServer(t, http.NotFoundHandler())

	resp, err := http.Get(srv.URL + "/api/research/latest")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestLatestReturnsNewestPanel(t *testing.T) {
	t.Parallel()

	srv, agg := newResearchTestServer(t, http.NotFoundHandler())

	agg.Ingest(domain.AgentAction{Type: domain.ActionWebSearchResults, Reason: "old"})
	agg.Ingest(domain.AgentAction{Type: domain.ActionMentoringSuggestion, Reason: "new"})

	resp, err := http.Get(srv.URL + "/api/research/latest")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var panel domain.ResearchPanel
	if err := json.NewDecoder(resp.Body).Decode(&panel); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if panel.Title != "new" || panel.Type != domain.PanelMentoring {
		t.Fatalf("unexpected panel: %+v", panel)
	}
}

func TestListReturnsAllPanelsNewestFirst(t *testing.T) {
	t.Parallel()

	srv, agg := newResearchTestServer(t, http.NotFoundHandler())

	agg.Ingest(domain.AgentAction{Type: domain.ActionWebSearchResults, Reason: "old"})
	agg.Ingest(domain.AgentAction{Type: domain.ActionWebSearchResults, Reason: "new"})

	resp, err := http.Get(srv.URL + "/api/research")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Panels []domain.ResearchPanel `json:"panels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body.Panels) != 2 || body.Panels[0].Title != "new" {
		t.Fatalf("unexpected panels: %+v", body.Panels)
	}
}

func TestCreateBookingSurfacesBackendMessage(t *testing.T) {
	t.Parallel()

	srv, _ := newResearchTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "slot already taken"})
	}))

	resp := postJSON(t, srv.URL+"/api/bookings", `{"sessionId":"m-1","menteeId":"42","reason":"career pivot"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["error"] != "slot already taken" {
		t.Fatalf("expected server message to surface, got %q", body["error"])
	}
}

func TestSimilarRefreshesMentoringPanel(t *testing.T) {
	t.Parallel()

	srv, agg := newResearchTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mentoring-sessions/available" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "m-1", "title": "design systems", "topic": "engineering", "mentorName": "Ada"},
		})
	}))

	agg.Ingest(domain.AgentAction{Type: domain.ActionMentoringSuggestion})
	panel, _ := agg.Latest()

	resp := postJSON(t, srv.URL+"/api/research/"+panel.ID+"/similar",
		`{"reference":{"id":"ref","title":"Design portfolios","topic":"careers"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	updated, _ := agg.Latest()
	if updated.MentoringData == nil || len(updated.MentoringData.Sessions) != 1 {
		t.Fatalf("expected refreshed shortlist, got %+v", updated.MentoringData)
	}
}
