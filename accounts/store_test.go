package accounts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAndLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")

	identity, err := Create(path, "correct horse", 1000)
	require.NoError(t, err)

	loaded, err := Open(path).Load("correct horse")
	require.NoError(t, err)
	require.Equal(t, identity.ID, loaded.ID)
	require.Equal(t, identity.PublicKey, loaded.PublicKey)
	require.Equal(t, identity.PrivateKey, loaded.PrivateKey)
}

func TestLoadRejectsWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")
	_, err := Create(path, "correct horse", 1000)
	require.NoError(t, err)

	_, err = Open(path).Load("wrong password")
	require.Error(t, err)
}

func TestCreateRejectsShortPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")
	_, err := Create(path, "short", 1000)
	require.Error(t, err)
}

func TestCreateRefusesToOverwriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")
	_, err := Create(path, "correct horse", 1000)
	require.NoError(t, err)

	_, err = Create(path, "correct horse", 2000)
	require.Error(t, err)
}

func TestSavePersistsMutations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")
	identity, err := Create(path, "correct horse", 1000)
	require.NoError(t, err)

	identity.Touch(5000)
	store := Open(path)
	require.NoError(t, store.Save(identity, "correct horse"))

	loaded, err := store.Load("correct horse")
	require.NoError(t, err)
	require.Equal(t, int64(5000), loaded.LastUsed)
}
