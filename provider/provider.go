// Package provider defines the byte-store abstraction backing cached reads.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Add for a key (no
// prepended/appended metadata, no re-encoding, no mutation).
//
// Add carries first-write-wins semantics: when two callers race to populate
// the same key, only one value may land and the loser's value is discarded.
// The engine relies on this to resolve concurrent cache fills without locks.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs and add-if-absent writes.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Add stores value with the given TTL only when the key is absent.
	// Returns ok=false when the key already holds a value or the store
	// rejected the write under pressure. May ignore cost if unsupported.
	Add(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
