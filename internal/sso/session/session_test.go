package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hihaowen/easysso/internal/sso/models"
)

func TestAcquireRequiresSessionID(t *testing.T) {
	mgr := NewManager(NewInMemoryState())
	_, err := mgr.Acquire("")
	assert.Error(t, err)
}

func TestStartCreatesDistinctSessions(t *testing.T) {
	mgr := NewManager(NewInMemoryState())
	a := mgr.Start()
	b := mgr.Start()
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestIdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewInMemoryState())
	h := mgr.Start()

	user, err := h.Identity(ctx)
	require.NoError(t, err)
	assert.True(t, user.IsEmpty(), "fresh session has no identity")

	alice := models.LoginUser{LoginID: "u1", LoginName: "Alice"}
	require.NoError(t, h.SetIdentity(ctx, alice))

	// A handle acquired later for the same id sees the same identity.
	h2, err := mgr.Acquire(h.ID())
	require.NoError(t, err)
	user, err = h2.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, user)

	require.NoError(t, h2.ClearIdentity(ctx))
	user, err = h.Identity(ctx)
	require.NoError(t, err)
	assert.True(t, user.IsEmpty())
}

func TestHandlesAreIndependentPerSession(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewInMemoryState())
	a := mgr.Start()
	b := mgr.Start()

	require.NoError(t, a.SetIdentity(ctx, models.LoginUser{LoginID: "u1", LoginName: "Alice"}))

	user, err := b.Identity(ctx)
	require.NoError(t, err)
	assert.True(t, user.IsEmpty(), "identity must not leak across sessions")
}
