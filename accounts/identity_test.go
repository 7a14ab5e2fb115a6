package accounts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIdentityGeneratesDistinctKeyPairs(t *testing.T) {
	a, err := NewIdentity("alice", 1000)
	require.NoError(t, err)
	b, err := NewIdentity("bob", 1000)
	require.NoError(t, err)

	require.NotEmpty(t, a.ID)
	require.NotEmpty(t, a.PublicKey)
	require.NotEmpty(t, a.PrivateKey)
	require.NotEqual(t, a.ID, b.ID)
	require.NotEqual(t, a.PublicKey, b.PublicKey)
	require.Equal(t, int64(1000), a.CreatedAt)
	require.Zero(t, a.LastUsed)
}

func TestTouchUpdatesLastUsed(t *testing.T) {
	identity, err := NewIdentity("alice", 1000)
	require.NoError(t, err)

	identity.Touch(2000)
	require.Equal(t, int64(2000), identity.LastUsed)
}
