package ports

import (
	"context"
	"time"

	"github.com/foodgenie/foodgenie/internal/domain"
)

// VerdictStore defines the interface for persisting analysis verdicts and
// reading back a user's history.
type VerdictStore interface {
	// Save persists a verdict for the given user. Verdicts are immutable;
	// Save never updates an existing record.
	Save(ctx context.Context, userID string, verdict domain.Verdict) error

	// History returns the user's most recent verdicts, newest first,
	// capped at limit. A user with no history yields an empty slice,
	// not an error.
	History(ctx context.Context, userID string, limit int) ([]domain.Verdict, error)
}

// CacheStore defines the interface for caching serialized values, used to
// avoid repeated product database lookups. Implementations could use Redis
// or in-memory storage.
type CacheStore interface {
	// Get retrieves a cached value by key. Returns the value and true if
	// found, or nil and false if not found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with an expiration time. A zero duration means
	// the item doesn't expire.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache. Returns nil if the key
	// doesn't exist.
	Delete(ctx context.Context, key string) error
}
