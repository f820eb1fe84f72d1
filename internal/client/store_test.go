package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewIdentityStore(path)

	_, err := store.LoadUser()
	require.ErrorIs(t, err, ErrNoStoredUser)

	user := StoredUser{ID: "u1", Name: "Asha", Email: "asha@example.com", Role: "tenant", Token: "tok"}
	require.NoError(t, store.SaveUser(user))

	loaded, err := store.LoadUser()
	require.NoError(t, err)
	assert.Equal(t, user, loaded)

	// Reopening the same file sees the persisted user.
	reopened := NewIdentityStore(path)
	loaded, err = reopened.LoadUser()
	require.NoError(t, err)
	assert.Equal(t, user, loaded)
}

func TestIdentityStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewIdentityStore(path)

	require.NoError(t, store.SaveUser(StoredUser{ID: "u1", Token: "tok"}))
	require.NoError(t, store.Clear())

	_, err := store.LoadUser()
	assert.ErrorIs(t, err, ErrNoStoredUser)
}

func TestIdentityStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewIdentityStore(path)

	require.NoError(t, store.SaveUser(StoredUser{ID: "u1", Token: "old"}))
	require.NoError(t, store.SaveUser(StoredUser{ID: "u1", Token: "new"}))

	loaded, err := store.LoadUser()
	require.NoError(t, err)
	assert.Equal(t, "new", loaded.Token)
}
