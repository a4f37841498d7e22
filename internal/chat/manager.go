package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dreampath/chatcore/internal/backend"
	"github.com/dreampath/chatcore/internal/domain"
	"github.com/dreampath/chatcore/internal/identity"
	"github.com/dreampath/chatcore/internal/store"
)

var (
	// ErrEmptyMessage rejects blank sends before any network call.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoActiveSession rejects sends before ensureActive completed.
	ErrNoActiveSession = errors.New("no active session")
	// ErrExchangeInFlight rejects a concurrent send for the session.
	ErrExchangeInFlight = errors.New("exchange already in flight")
)

// fallbackReply is appended when the exchange itself fails. The
// conversation must stay usable even when the backend does not.
const fallbackReply = "Sorry, I couldn't reach your counselor just now. Please try sending that again."

// Backend is the slice of the backend client the manager needs.
type Backend interface {
	StartChat(ctx context.Context, userID *int64) (*backend.StartChatResponse, error)
	History(ctx context.Context, sessionID string) ([]backend.HistoryEntry, error)
	SendMessage(ctx context.Context, req backend.ExchangeRequest) (*backend.ExchangeResponse, error)
}

// TaskRunner starts and tears down background poll loops.
type TaskRunner interface {
	Start(ctx context.Context, taskID string)
	StopAll()
}

// SessionBinding is the durable {sessionId, userId} record.
type SessionBinding struct {
	SessionID string `json:"sessionId"`
	UserID    *int64 `json:"userId"`
}

// EnsureResult reports the outcome of EnsureActive or Reset. Survey
// fields are a side channel for an external collaborator; the core only
// passes them through.
type EnsureResult struct {
	Session         domain.Session `json:"session"`
	Restored        bool           `json:"restored"`
	NeedsSurvey     bool           `json:"needsSurvey,omitempty"`
	SurveyQuestions []string       `json:"surveyQuestions,omitempty"`
}

// Manager owns the session lifecycle: create, restore-or-recreate and
// teardown, plus the single-flight message exchange. Restore failures
// are non-fatal and degrade to creation, so the user always ends up
// with a usable session.
type Manager struct {
	backend    Backend
	durable    store.Store
	tracker    *identity.Tracker
	tasks      TaskRunner
	transcript *Transcript
	logger     *slog.Logger

	// baseCtx outlives individual requests; poll loops hang off it so
	// a finished HTTP request does not cancel them.
	baseCtx context.Context

	mu       sync.Mutex
	session  *domain.Session
	inFlight bool
}

// NewManager wires a session manager. baseCtx should be the process
// lifetime context; cancelling it stops all background polling.
func NewManager(baseCtx context.Context, be Backend, durable store.Store, tracker *identity.Tracker, tasks TaskRunner, transcript *Transcript, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend:    be,
		durable:    durable,
		tracker:    tracker,
		tasks:      tasks,
		transcript: transcript,
		logger:     logger,
		baseCtx:    baseCtx,
	}
}

// Session returns the active session, if any.
func (m *Manager) Session() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return domain.Session{}, false
	}
	return *m.session, true
}

// Transcript exposes the message sequence.
func (m *Manager) Transcript() *Transcript {
	return m.transcript
}

// StoredUserID reads the externally-managed logged-in user record and
// returns its user id, or nil when nobody is logged in. The record is
// consumed read-only; malformed content counts as logged out.
func StoredUserID(ctx context.Context, durable store.Store) *int64 {
	raw, ok, err := durable.Get(ctx, store.KeyStoredUser)
	if err != nil || !ok {
		return nil
	}
	field := gjson.Get(raw, "userId")
	if !field.Exists() || field.Type != gjson.Number {
		return nil
	}
	id := field.Int()
	return &id
}

// EnsureActive is the top-level entry invoked once per page load. It
// adopts the stored session when it is valid and owned by ownerUserID,
// and otherwise discards it and creates a fresh one.
func (m *Manager) EnsureActive(ctx context.Context, ownerUserID *int64) (*EnsureResult, error) {
	binding, ok := m.readBinding(ctx)
	if !ok {
		// An absent or malformed binding can leave a stale identity
		// snapshot behind; the cache never outlives the binding.
		m.discardBinding(ctx)
		return m.create(ctx, ownerUserID)
	}

	stored := domain.Session{SessionID: binding.SessionID, OwnerUserID: binding.UserID}
	if !stored.OwnedBy(ownerUserID) {
		m.logger.Info("stored session owned by different user, recreating",
			"stored_user", formatUserID(binding.UserID),
			"current_user", formatUserID(ownerUserID))
		m.discardBinding(ctx)
		return m.create(ctx, ownerUserID)
	}

	if result, err := m.restore(ctx, binding); err == nil {
		return result, nil
	} else {
		m.logger.Warn("session restore failed, creating new session",
			"session_id", binding.SessionID, "error", err)
	}
	return m.create(ctx, ownerUserID)
}

// Reset is the explicit "new chat" action: it stops background work,
// clears both stores and creates a fresh session for ownerUserID.
func (m *Manager) Reset(ctx context.Context, ownerUserID *int64) (*EnsureResult, error) {
	m.tasks.StopAll()
	m.transcript.Clear(ctx)
	m.discardBinding(ctx)

	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	return m.create(ctx, ownerUserID)
}

// Send performs one message exchange. The user message is appended
// optimistically and never rolled back; on transport failure a fixed
// fallback assistant message is appended instead of a reply. The
// returned message is the assistant entry that was appended.
func (m *Manager) Send(ctx context.Context, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if m.inFlight {
		m.mu.Unlock()
		return nil, ErrExchangeInFlight
	}
	m.inFlight = true
	session := *m.session
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	m.transcript.Append(ctx, domain.Message{
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})

	req := backend.ExchangeRequest{
		SessionID:      session.SessionID,
		Message:        text,
		IdentityStatus: m.tracker.Current(),
	}
	if session.OwnerUserID != nil {
		id := fmt.Sprintf("%d", *session.OwnerUserID)
		req.UserID = &id
	}

	resp, err := m.backend.SendMessage(ctx, req)
	if err != nil {
		m.logger.Error("message exchange failed", "session_id", session.SessionID, "error", err)
		fallback := domain.Message{
			Role:      domain.RoleAssistant,
			Content:   fallbackReply,
			Timestamp: time.Now(),
		}
		m.transcript.Append(ctx, fallback)
		return &fallback, nil
	}

	reply := domain.Message{
		Role:      domain.RoleAssistant,
		Content:   resp.Message,
		Timestamp: time.Now(),
	}
	m.transcript.Append(ctx, reply)

	if resp.IdentityStatus != nil {
		m.tracker.Merge(ctx, resp.IdentityStatus)
	}
	// The exchange is complete here; background work reconciles on its
	// own schedule and must not hold up the reply.
	if resp.TaskID != "" {
		m.tasks.Start(m.baseCtx, resp.TaskID)
	}

	return &reply, nil
}

// restore adopts the stored session if the backend still has a
// non-empty transcript for it. It mutates no state on failure.
func (m *Manager) restore(ctx context.Context, binding SessionBinding) (*EnsureResult, error) {
	history, err := m.backend.History(ctx, binding.SessionID)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("restore session %s: empty history", binding.SessionID)
	}

	msgs := make([]domain.Message, 0, len(history))
	for _, entry := range history {
		role := domain.MessageRole(entry.Role)
		if role != domain.RoleUser && role != domain.RoleAssistant {
			role = domain.RoleAssistant
		}
		msgs = append(msgs, domain.Message{
			Role:      role,
			Content:   entry.Message,
			Timestamp: entry.Timestamp,
		})
	}

	session := domain.Session{
		SessionID:   binding.SessionID,
		OwnerUserID: binding.UserID,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()

	m.transcript.Replace(ctx, msgs)

	// Cache first for a fast paint, then let the backend overwrite.
	m.tracker.HydrateFromCache(ctx)
	m.tracker.HydrateFromBackend(ctx, session.SessionID)

	m.logger.Info("session restored", "session_id", session.SessionID, "messages", len(msgs))
	return &EnsureResult{Session: session, Restored: true}, nil
}

// create starts a fresh session and persists the binding.
func (m *Manager) create(ctx context.Context, ownerUserID *int64) (*EnsureResult, error) {
	resp, err := m.backend.StartChat(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	session := domain.Session{
		SessionID:   resp.SessionID,
		OwnerUserID: ownerUserID,
		CreatedAt:   time.Now(),
	}

	binding := SessionBinding{SessionID: session.SessionID, UserID: ownerUserID}
	data, err := json.Marshal(binding)
	if err != nil {
		return nil, fmt.Errorf("serialize session binding: %w", err)
	}
	if err := m.durable.Set(ctx, store.KeySessionBinding, string(data)); err != nil {
		m.logger.Warn("failed to persist session binding", "session_id", session.SessionID, "error", err)
	}

	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()

	if m.transcript.Len() == 0 && resp.Message != "" {
		m.transcript.Append(ctx, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   resp.Message,
			Timestamp: time.Now(),
		})
	}

	m.logger.Info("session created",
		"session_id", session.SessionID,
		"owner", formatUserID(ownerUserID),
		"needs_survey", resp.NeedsSurvey)

	return &EnsureResult{
		Session:         session,
		NeedsSurvey:     resp.NeedsSurvey,
		SurveyQuestions: resp.SurveyQuestions,
	}, nil
}

// readBinding loads and parses the stored binding. Malformed content is
// treated as absent.
func (m *Manager) readBinding(ctx context.Context) (SessionBinding, bool) {
	raw, ok, err := m.durable.Get(ctx, store.KeySessionBinding)
	if err != nil {
		m.logger.Warn("failed to read session binding", "error", err)
		return SessionBinding{}, false
	}
	if !ok {
		return SessionBinding{}, false
	}

	var binding SessionBinding
	if err := json.Unmarshal([]byte(raw), &binding); err != nil || binding.SessionID == "" {
		m.logger.Warn("discarding malformed session binding", "error", err)
		return SessionBinding{}, false
	}
	return binding, true
}

// discardBinding clears the session binding and the identity cache
// together; a stale identity must not outlive its session binding.
func (m *Manager) discardBinding(ctx context.Context) {
	if err := m.durable.Delete(ctx, store.KeySessionBinding); err != nil {
		m.logger.Warn("failed to clear session binding", "error", err)
	}
	m.tracker.ClearCache(ctx)
}

func formatUserID(id *int64) string {
	if id == nil {
		return "anonymous"
	}
	return fmt.Sprintf("%d", *id)
}
