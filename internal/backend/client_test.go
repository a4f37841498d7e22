package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dreampath/chatcore/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:         srv.URL,
		AgentServiceURL: srv.URL,
		RequestTimeout:  2 * time.Second,
	}, nil)
	return client, srv
}

func TestStartChatSendsUserIDAsString(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/start" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sessionId": "sess-1",
			"message":   "Welcome!",
		})
	}))

	userID := int64(42)
	resp, err := client.StartChat(context.Background(), &userID)
	if err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}
	if resp.SessionID != "sess-1" || resp.Message != "Welcome!" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotBody["userId"] != "42" {
		t.Fatalf("expected userId \"42\" on the wire, got %v", gotBody["userId"])
	}
}

func TestStartChatNilUserID(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"sessionId": "sess-2", "message": "hi"})
	}))

	if _, err := client.StartChat(context.Background(), nil); err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}
	if v, present := gotBody["userId"]; !present || v != nil {
		t.Fatalf("expected explicit null userId, got %v (present=%v)", v, present)
	}
}

func TestIdentityNotFound(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.Identity(context.Background(), "sess-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAgentResultPath(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/agent-result/t1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "running"})
	}))

	task, err := client.AgentResult(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AgentResult failed: %v", err)
	}
	if task.Status != domain.TaskRunning {
		t.Fatalf("expected running, got %s", task.Status)
	}
	if task.TaskID != "t1" {
		t.Fatalf("expected task id to be filled in, got %q", task.TaskID)
	}
}

func TestSendMessageCarriesIdentityStatus(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "hi", "taskId": "t9"})
	}))

	userID := "42"
	resp, err := client.SendMessage(context.Background(), ExchangeRequest{
		SessionID: "sess-1",
		Message:   "hello",
		UserID:    &userID,
		IdentityStatus: &domain.IdentityStatus{
			SessionID:    "sess-1",
			CurrentStage: domain.StageExploration,
		},
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if resp.TaskID != "t9" {
		t.Fatalf("expected taskId t9, got %q", resp.TaskID)
	}

	status, ok := gotBody["identityStatus"].(map[string]any)
	if !ok {
		t.Fatalf("expected identityStatus object, got %v", gotBody["identityStatus"])
	}
	if status["currentStage"] != "EXPLORATION" {
		t.Fatalf("unexpected stage on the wire: %v", status["currentStage"])
	}
}

func TestCreateBookingSurfacesServerMessage(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "slot already taken"})
	}))

	_, err := client.CreateBooking(context.Background(), BookingRequest{
		SessionID: "m-1",
		MenteeID:  "42",
		Reason:    "career pivot",
	})
	if err == nil {
		t.Fatal("expected booking to fail")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Message != "slot already taken" {
		t.Fatalf("expected server message, got %q", statusErr.Message)
	}
}

func TestHistoryDecodesEntries(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/history/sess-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"role": "assistant", "message": "Welcome back", "timestamp": time.Now().UTC().Format(time.RFC3339)},
			{"role": "user", "message": "hi", "timestamp": time.Now().UTC().Format(time.RFC3339)},
		})
	}))

	entries, err := client.History(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != "assistant" || entries[0].Message != "Welcome back" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}
