// Package backend provides the JSON/HTTP client for the counseling
// backend and the agent service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dreampath/chatcore/internal/domain"
)

var (
	// ErrNotFound is returned when the backend reports 404, e.g. no
	// identity snapshot exists yet for a session.
	ErrNotFound = errors.New("not found")
)

// StatusError carries a non-2xx backend response. Message holds the
// server-provided error text when the body contained one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Code)
}

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the counseling backend root, e.g. http://localhost:3001.
	BaseURL string
	// AgentServiceURL is the agent service root used for task polling.
	AgentServiceURL string
	RequestTimeout  time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:3001",
		AgentServiceURL: "http://localhost:3002",
		RequestTimeout:  30 * time.Second,
	}
}

// Client talks to the counseling backend and the agent service.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	agentBaseURL string
	logger       *slog.Logger
}

// NewClient creates a backend client from cfg.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.AgentServiceURL == "" {
		cfg.AgentServiceURL = defaults.AgentServiceURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}

	return &Client{
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		agentBaseURL: strings.TrimRight(cfg.AgentServiceURL, "/"),
		logger:       logger,
	}
}

// StartChatResponse is the backend's reply to starting a session.
type StartChatResponse struct {
	SessionID       string   `json:"sessionId"`
	Message         string   `json:"message"`
	NeedsSurvey     bool     `json:"needsSurvey,omitempty"`
	SurveyQuestions []string `json:"surveyQuestions,omitempty"`
}

// StartChat opens a new counseling session. userID is nil when no user
// is logged in; the wire format carries it as a string.
func (c *Client) StartChat(ctx context.Context, userID *int64) (*StartChatResponse, error) {
	body := map[string]any{"userId": nil}
	if userID != nil {
		body["userId"] = fmt.Sprintf("%d", *userID)
	}

	var resp StartChatResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/chat/start", body, &resp); err != nil {
		return nil, fmt.Errorf("start chat: %w", err)
	}
	return &resp, nil
}

// HistoryEntry is one transcript entry as stored by the backend.
type HistoryEntry struct {
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// History fetches the stored transcript for a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	u := c.baseURL + "/chat/history/" + url.PathEscape(sessionID)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &entries); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return entries, nil
}

// Identity fetches the authoritative identity snapshot for a session.
// Returns ErrNotFound when no snapshot exists yet.
func (c *Client) Identity(ctx context.Context, sessionID string) (*domain.IdentityStatus, error) {
	var status domain.IdentityStatus
	u := c.baseURL + "/identity/" + url.PathEscape(sessionID)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &status); err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}
	return &status, nil
}

// ExchangeRequest carries one user message to the backend.
type ExchangeRequest struct {
	SessionID      string                 `json:"sessionId"`
	Message        string                 `json:"message"`
	UserID         *string                `json:"userId"`
	IdentityStatus *domain.IdentityStatus `json:"identityStatus"`
}

// ExchangeResponse is the synchronous reply to one exchange. TaskID,
// when present, is a handle to background agent work.
type ExchangeResponse struct {
	Message        string                 `json:"message"`
	IdentityStatus *domain.IdentityStatus `json:"identityStatus,omitempty"`
	TaskID         string                 `json:"taskId,omitempty"`
}

// SendMessage performs one message exchange.
func (c *Client) SendMessage(ctx context.Context, req ExchangeRequest) (*ExchangeResponse, error) {
	var resp ExchangeResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/chat", req, &resp); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &resp, nil
}

// AgentResult polls the agent service for the status of a task.
func (c *Client) AgentResult(ctx context.Context, taskID string) (*domain.AgentTask, error) {
	var task domain.AgentTask
	u := c.agentBaseURL + "/api/chat/agent-result/" + url.PathEscape(taskID)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &task); err != nil {
		return nil, fmt.Errorf("poll agent task: %w", err)
	}
	if task.TaskID == "" {
		task.TaskID = taskID
	}
	return &task, nil
}

// AvailableMentoringSessions lists all bookable mentoring sessions.
func (c *Client) AvailableMentoringSessions(ctx context.Context) ([]domain.MentoringSession, error) {
	var sessions []domain.MentoringSession
	u := c.baseURL + "/mentoring-sessions/available"
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &sessions); err != nil {
		return nil, fmt.Errorf("list mentoring sessions: %w", err)
	}
	return sessions, nil
}

// BookingRequest creates a booking for a mentoring session.
type BookingRequest struct {
	SessionID string `json:"sessionId"`
	MenteeID  string `json:"menteeId"`
	Reason    string `json:"reason"`
}

// BookingResponse acknowledges a created booking.
type BookingResponse struct {
	BookingID string `json:"bookingId"`
}

// CreateBooking books a mentoring session. Failures surface the
// server-provided message via StatusError.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*BookingResponse, error) {
	var resp BookingResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/mentoring-bookings", req, &resp); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return &resp, nil
}

// doJSON issues one JSON request and decodes the response into out.
// Non-2xx responses become StatusError (404 wraps ErrNotFound).
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "url", rawURL, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := serverErrorMessage(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, rawURL)
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// serverErrorMessage extracts {"error": "..."} from an error body,
// best effort.
func serverErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Error
}
