// Package identity tracks the backend's evolving career-identity
// assessment and mirrors it into durable storage for reload survival.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/dreampath/chatcore/internal/backend"
	"github.com/dreampath/chatcore/internal/domain"
	"github.com/dreampath/chatcore/internal/store"
)

// Fetcher fetches the authoritative identity snapshot for a session.
// Implementations return backend.ErrNotFound when no snapshot exists.
type Fetcher interface {
	Identity(ctx context.Context, sessionID string) (*domain.IdentityStatus, error)
}

// Tracker holds the latest identity snapshot. Every backend update
// replaces the snapshot wholesale; the last snapshot is also cached
// durably under a single fixed key so a reload can show something
// before the backend round-trip completes.
type Tracker struct {
	mu      sync.RWMutex
	current *domain.IdentityStatus

	durable store.Store
	fetcher Fetcher
	logger  *slog.Logger
}

// NewTracker creates a tracker backed by the durable store.
func NewTracker(durable store.Store, fetcher Fetcher, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		durable: durable,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Current returns a copy of the in-memory snapshot, or nil when none
// has been seen yet.
func (t *Tracker) Current() *domain.IdentityStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return nil
	}
	snapshot := *t.current
	return &snapshot
}

// Merge replaces the snapshot with status and persists it to the
// durable cache. Cache write failures are logged, not propagated; the
// in-memory value is authoritative for this process.
func (t *Tracker) Merge(ctx context.Context, status *domain.IdentityStatus) {
	if status == nil {
		return
	}

	t.mu.Lock()
	snapshot := *status
	t.current = &snapshot
	t.mu.Unlock()

	data, err := json.Marshal(status)
	if err != nil {
		t.logger.Warn("failed to serialize identity snapshot", "error", err)
		return
	}
	if err := t.durable.Set(ctx, store.KeyIdentityCache, string(data)); err != nil {
		t.logger.Warn("failed to cache identity snapshot", "error", err)
	}
}

// HydrateFromCache loads the cached snapshot into memory, best effort.
// Malformed cache content is treated as absent.
func (t *Tracker) HydrateFromCache(ctx context.Context) {
	raw, ok, err := t.durable.Get(ctx, store.KeyIdentityCache)
	if err != nil {
		t.logger.Warn("failed to read identity cache", "error", err)
		return
	}
	if !ok {
		return
	}

	var status domain.IdentityStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		t.logger.Warn("discarding malformed identity cache", "error", err)
		return
	}

	t.mu.Lock()
	t.current = &status
	t.mu.Unlock()
}

// HydrateFromBackend fetches the authoritative snapshot and, on
// success, overwrites both memory and cache. On 404 or any transport
// error the cache-sourced value already in memory is left in place.
func (t *Tracker) HydrateFromBackend(ctx context.Context, sessionID string) {
	status, err := t.fetcher.Identity(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			t.logger.Warn("identity hydration failed", "session_id", sessionID, "error", err)
		}
		return
	}
	t.Merge(ctx, status)
}

// ClearCache drops both the in-memory snapshot and the durable cache.
// Called when a stored session is invalidated or on explicit reset.
func (t *Tracker) ClearCache(ctx context.Context) {
	t.mu.Lock()
	t.current = nil
	t.mu.Unlock()

	if err := t.durable.Delete(ctx, store.KeyIdentityCache); err != nil {
		t.logger.Warn("failed to clear identity cache", "error", err)
	}
}
