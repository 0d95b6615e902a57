package oauth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_BackupRestore(t *testing.T) {
	s := NewMemoryStorage()
	s.SetItem(keyAccessToken, "secret-access")
	s.SetItem(keyNonce, "n")

	blob, err := s.Backup()
	require.NoError(t, err)

	other := NewMemoryStorage()
	other.SetItem("stale", "x")
	require.NoError(t, other.Restore(blob))

	assert.Equal(t, 2, other.Len())
	v, ok := other.GetItem(keyAccessToken)
	assert.True(t, ok)
	assert.Equal(t, "secret-access", v)
	_, ok = other.GetItem("stale")
	assert.False(t, ok, "restore replaces the whole content")
}

func TestMemoryStorage_RestoreEmpty(t *testing.T) {
	s := NewMemoryStorage()
	s.SetItem("k", "v")
	require.NoError(t, s.Restore(""))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStorage_RestoreInvalidKeepsContent(t *testing.T) {
	s := NewMemoryStorage()
	s.SetItem("k", "v")
	assert.Error(t, s.Restore("{broken"))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStorage_RemoveAndClear(t *testing.T) {
	s := NewMemoryStorage()
	s.SetItem("a", "1")
	s.SetItem("b", "2")

	s.RemoveItem("a")
	s.RemoveItem("missing")
	assert.Equal(t, 1, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStorage_StringHidesValues(t *testing.T) {
	s := NewMemoryStorage()
	s.SetItem(keyAccessToken, "secret-access")

	out := fmt.Sprintf("%v %s", s, s)
	assert.NotContains(t, out, "secret-access")
	assert.Contains(t, out, "1 items")
}
