package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hihaowen/easysso/internal/sso/models"
)

func TestInMemoryStoreForwardEntries(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	ref := models.TokenRef{BrokerID: "b1", Token: "t1"}

	_, err := s.Get(ctx, ForwardKey(ref))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, ForwardKey(ref), "sess-1"))
	got, err := s.Get(ctx, ForwardKey(ref))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got)

	require.NoError(t, s.Delete(ctx, ForwardKey(ref)))
	_, err = s.Get(ctx, ForwardKey(ref))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStoreReverseSet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	key := ReverseKey("sess-1")

	members, err := s.Members(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, members, "absent set reads as empty")

	m1 := EncodeMember(models.TokenRef{BrokerID: "b1", Token: "t1"})
	m2 := EncodeMember(models.TokenRef{BrokerID: "b2", Token: "t2"})
	require.NoError(t, s.AddMember(ctx, key, m1))
	require.NoError(t, s.AddMember(ctx, key, m2))
	require.NoError(t, s.AddMember(ctx, key, m1))

	members, err = s.Members(ctx, key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Member{m1, m2}, members)

	require.NoError(t, s.Delete(ctx, key))
	members, err = s.Members(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestKeySerializationIsUnambiguous(t *testing.T) {
	// A broker id containing the delimiter must not collide with a key built
	// from different fields.
	a := ForwardKey(models.TokenRef{BrokerID: "b:1", Token: "t"})
	b := ForwardKey(models.TokenRef{BrokerID: "b", Token: "1:t"})
	assert.NotEqual(t, a.String(), b.String())
}

func TestMemberRoundTrip(t *testing.T) {
	ref := models.TokenRef{BrokerID: "b:1_x", Token: "tok:en"}
	got, err := DecodeMember(EncodeMember(ref))
	require.NoError(t, err)
	assert.Equal(t, ref, got)
}

func TestDecodeMemberRejectsGarbage(t *testing.T) {
	_, err := DecodeMember(Member("no-delimiter"))
	assert.Error(t, err)
}
