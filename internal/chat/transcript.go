// Package chat owns the counseling session lifecycle and the message
// exchange with the backend.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/dreampath/chatcore/internal/domain"
	"github.com/dreampath/chatcore/internal/store"
)

// ErrMessageNotFound is returned for an out-of-range transcript index.
var ErrMessageNotFound = errors.New("message not found")

// Transcript is the ordered, append-only message sequence for the
// active session. Messages are never deleted individually; dismissal
// only toggles HideContent or clears the attached action. Every change
// is mirrored into the volatile store so a same-process page reload can
// recover it.
type Transcript struct {
	mu       sync.RWMutex
	messages []domain.Message

	volatile store.Store
	logger   *slog.Logger
}

// NewTranscript creates a transcript mirrored into volatile.
func NewTranscript(volatile store.Store, logger *slog.Logger) *Transcript {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcript{
		volatile: volatile,
		logger:   logger,
	}
}

// Append adds msg to the end of the transcript.
func (t *Transcript) Append(ctx context.Context, msg domain.Message) {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	t.mirror(ctx)
}

// Replace swaps the whole transcript, used when restoring history.
func (t *Transcript) Replace(ctx context.Context, msgs []domain.Message) {
	t.mu.Lock()
	t.messages = append([]domain.Message(nil), msgs...)
	t.mu.Unlock()
	t.mirror(ctx)
}

// Clear empties the transcript.
func (t *Transcript) Clear(ctx context.Context) {
	t.mu.Lock()
	t.messages = nil
	t.mu.Unlock()
	t.mirror(ctx)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// HideContent suppresses the text of the message at index. The attached
// agent action view, if any, stays visible.
func (t *Transcript) HideContent(ctx context.Context, index int) error {
	t.mu.Lock()
	if index < 0 || index >= len(t.messages) {
		t.mu.Unlock()
		return ErrMessageNotFound
	}
	t.messages[index].HideContent = true
	t.mu.Unlock()
	t.mirror(ctx)
	return nil
}

// ClearAgentAction dismisses the action card of the message at index
// without touching its text.
func (t *Transcript) ClearAgentAction(ctx context.Context, index int) error {
	t.mu.Lock()
	if index < 0 || index >= len(t.messages) {
		t.mu.Unlock()
		return ErrMessageNotFound
	}
	t.messages[index].AgentAction = nil
	t.mu.Unlock()
	t.mirror(ctx)
	return nil
}

func (t *Transcript) mirror(ctx context.Context) {
	t.mu.RLock()
	data, err := json.Marshal(t.messages)
	t.mu.RUnlock()
	if err != nil {
		t.logger.Warn("failed to serialize transcript", "error", err)
		return
	}
	if err := t.volatile.Set(ctx, store.KeyTranscript, string(data)); err != nil {
		t.logger.Warn("failed to mirror transcript", "error", err)
	}
}
