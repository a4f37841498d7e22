// Package store provides the persistent key-value stores backing the
// chat core: a durable store that survives restarts and a volatile
// store scoped to the process lifetime.
package store

import (
	"context"
)

// Logical keys used by the orchestration layer. Writes are
// last-write-wins with no transaction discipline; two processes sharing
// the durable store can race and each ends up with a valid, possibly
// different, value.
const (
	// KeySessionBinding holds the {sessionId, userId} binding.
	KeySessionBinding = "career_chat_session"
	// KeyIdentityCache holds the serialized identity snapshot.
	KeyIdentityCache = "career_chat_identity"
	// KeyStoredUser is written by the login flow and consumed
	// read-only here to determine session ownership.
	KeyStoredUser = "dreampath:user"
	// KeyTranscript mirrors the transcript into the volatile store.
	KeyTranscript = "career_chat_transcript"
)

// Store defines typed read/write/delete over a key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes the value for key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
