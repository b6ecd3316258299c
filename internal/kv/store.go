// Package kv provides the shared key/value store behind all persistent
// game state. Every server process sees the same data through this
// facade, which is what allows rooms to survive restarts and the
// instance pool to scale horizontally.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the backing store cannot be reached.
// Callers treat it as a transient outage: interactive operations surface
// a generic failure and background loops pause until the store recovers.
var ErrUnavailable = errors.New("kv: store unavailable")

// IsUnavailable reports whether err stems from a store outage.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Store is the operation surface the data layer is written against.
// Implementations must be safe for concurrent use.
type Store interface {
	// Hashes.
	HashSet(ctx context.Context, key string, fields map[string]string) error
	HashGet(ctx context.Context, key, field string) (string, bool, error)
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	HashDel(ctx context.Context, key string, fields ...string) error

	// Sets.
	SetAdd(ctx context.Context, key string, members ...string) error
	SetRem(ctx context.Context, key string, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetContains(ctx context.Context, key, member string) (bool, error)
	SetCard(ctx context.Context, key string) (int64, error)

	// Sorted sets, ordered by ascending score.
	SortedAdd(ctx context.Context, key string, score float64, member string) error
	SortedRem(ctx context.Context, key string, members ...string) error
	SortedRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Lists. Push prepends, so index 0 is always the newest entry.
	ListPush(ctx context.Context, key string, values ...string) error
	ListTrim(ctx context.Context, key string, start, stop int64) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ListLen(ctx context.Context, key string) (int64, error)

	// Plain strings. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)

	// Keys.
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Health.
	Ping(ctx context.Context) error
	Available() bool
	Close() error
}
