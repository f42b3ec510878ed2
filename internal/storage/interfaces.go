// Package storage defines the narrow repository interfaces the core depends
// on. Concrete persistence (a key-value metadata store, an append-only
// history store) lives outside this module; these interfaces are the seam.
package storage

import (
	"context"
	"time"

	"github.com/haasonsaas/nexus-core/pkg/models"
)

// MetadataStore is a key-value store for small scalars: feature flags,
// one-time migration markers, per-user preferences.
type MetadataStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// HistoryStore appends and reads a bounded window of conversation turns for
// a session. It never mutates a previously appended entry.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, msg models.Message) error
	Recent(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
}

// ContextSnapshotStore reads point-in-time snapshots of ambient context
// (persona, memory snippets, preferences) assembled by the excluded gateway
// layer before a turn begins. The core only reads; it never writes these.
type ContextSnapshotStore interface {
	Snapshot(ctx context.Context, householdID, userID string) (map[string]any, error)
}

// LoginRecorder is consulted only by auth-adjacent tools; the core treats it
// as a write-only side effect sink, never a source of truth for identity.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}
