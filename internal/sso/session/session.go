// Package session holds the server-side identity state of a login session
// (login id and login name keyed by session id) behind explicit handles.
// Every server operation works through a Handle scoped to exactly one
// session id for its lifetime, so concurrent requests never collide on
// shared session state.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hihaowen/easysso/internal/sso/models"
)

// State is the persistence backend for session identity. Absent sessions read
// as an empty LoginUser; the protocol treats "no identity" as a state, not an
// error.
type State interface {
	Get(ctx context.Context, sessionID string) (models.LoginUser, error)
	Set(ctx context.Context, sessionID string, user models.LoginUser) error
	Clear(ctx context.Context, sessionID string) error
}

// Manager hands out session handles. It owns no per-session state itself.
type Manager struct {
	state State
}

func NewManager(state State) *Manager {
	return &Manager{state: state}
}

// Acquire binds a handle to an existing session id, as supplied by a facade
// call or the ambient cookie session. The session need not hold an identity
// yet; it materializes on the first write.
func (m *Manager) Acquire(sessionID string) (*Handle, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("empty session id")
	}
	return &Handle{id: sessionID, state: m.state}, nil
}

// Start creates a handle for a brand-new session.
func (m *Manager) Start() *Handle {
	return &Handle{id: uuid.NewString(), state: m.state}
}

// Handle is one acquired session. It is bound to a single session id for its
// whole lifetime and is what server operations receive instead of ambient
// session globals.
type Handle struct {
	id    string
	state State
}

// ID returns the canonical session identifier. It never leaves the server.
func (h *Handle) ID() string { return h.id }

// Identity reads the logged-in user; an empty LoginUser means logged out or
// never logged in.
func (h *Handle) Identity(ctx context.Context) (models.LoginUser, error) {
	return h.state.Get(ctx, h.id)
}

// SetIdentity stores the logged-in user.
func (h *Handle) SetIdentity(ctx context.Context, user models.LoginUser) error {
	return h.state.Set(ctx, h.id, user)
}

// ClearIdentity removes the logged-in user, leaving the session logged out.
func (h *Handle) ClearIdentity(ctx context.Context) error {
	return h.state.Clear(ctx, h.id)
}
