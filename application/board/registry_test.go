package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(ttl time.Duration) *Registry {
	auth := newFakeAuthority()
	return NewRegistry(func() (*Board, MutableIdentity) {
		identity := &fakeIdentity{}
		return New(auth, identity, Options{}), identity
	}, ttl, nil)
}

func TestRegistryCreateAndRemove(t *testing.T) {
	r := newTestRegistry(0)
	defer r.Close()

	session := r.Create()
	require.NotEmpty(t, session.Key)

	got, ok := r.Get(session.Key)
	require.True(t, ok)
	assert.Same(t, session.Board, got.Board)

	assert.True(t, r.Remove(session.Key))
	assert.True(t, session.Board.Closed())
	_, ok = r.Get(session.Key)
	assert.False(t, ok)
	assert.False(t, r.Remove(session.Key))
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := newTestRegistry(0)
	defer r.Close()

	first, created := r.GetOrCreate("abc")
	require.True(t, created)
	second, created := r.GetOrCreate("abc")
	assert.False(t, created)
	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	r := newTestRegistry(time.Hour)
	defer r.Close()

	session := r.Create()
	assert.Zero(t, r.evictExpired(time.Now()))
	assert.Equal(t, 1, r.evictExpired(time.Now().Add(2*time.Hour)))
	assert.True(t, session.Board.Closed())
	assert.Zero(t, r.Len())
}

func TestRegistryCloseClosesBoards(t *testing.T) {
	r := newTestRegistry(0)
	a := r.Create()
	b := r.Create()

	r.Close()
	assert.True(t, a.Board.Closed())
	assert.True(t, b.Board.Closed())
	assert.Zero(t, r.Len())
}
