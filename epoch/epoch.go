// Package epoch tracks the per-group last-changed generation that cache keys
// embed. A missing entry reads as generation 0, so a group is always
// addressable; bumping after a write retires every key minted before it.
package epoch

import (
	"context"
	"time"
)

// Store abstracts where generations live.
// Use Local (default) for in-process generations, or Redis to share them
// across replicas and survive restarts.
type Store interface {
	// Current returns the group's generation; missing => 0.
	Current(ctx context.Context, group string) (uint64, error)
	// Bump atomically advances the generation and returns the new value.
	Bump(ctx context.Context, group string) (uint64, error)
	// Cleanup prunes long-inactive metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
