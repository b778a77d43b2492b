package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_DSNLifecycle(t *testing.T) {
	m := NewWithRing(keyring.NewArrayKeyring(nil))

	_, err := m.LoadDBDSN()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SaveDBDSN("postgres://app:secret@db/sales"))
	got, err := m.LoadDBDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:secret@db/sales", got)

	require.NoError(t, m.ClearDB())
	_, err = m.LoadDBDSN()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.ClearDB())
}
