// Package store defines the server's session bookkeeping contract: a
// key/value store with set semantics mapping broker tokens to sessions
// (forward entries) and sessions to their issued tokens (reverse sets).
package store

import (
	"context"

	pkgerrors "github.com/hihaowen/easysso/pkg/platform/sentinel"
)

// ErrNotFound keeps storage-specific misses consistent across in-memory and
// Redis implementations.
var ErrNotFound = pkgerrors.ErrNotFound

// SessionStore is consumed by the server component. Implementations must make
// each single-key write or delete atomic; no cross-key transaction is assumed.
// The reverse set is authoritative: a forward entry orphaned by a concurrent
// logout/login race is tolerated and left to TTL expiry.
type SessionStore interface {
	// Get resolves a forward entry to a session id. Returns ErrNotFound
	// (possibly wrapped) when the key is absent.
	Get(ctx context.Context, key Key) (string, error)
	// Set writes a forward entry.
	Set(ctx context.Context, key Key, sessionID string) error
	// Delete removes a forward entry or an entire reverse set. Deleting an
	// absent key is not an error.
	Delete(ctx context.Context, key Key) error
	// AddMember records a token ref in a session's reverse set.
	AddMember(ctx context.Context, key Key, member Member) error
	// Members lists a session's reverse set. An absent set yields an empty
	// slice, not an error: cascade logout is idempotent.
	Members(ctx context.Context, key Key) ([]Member, error)
}
