package nvstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.bolt")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetString(t *testing.T) {
	s := open(t)
	require.NoError(t, s.SetString("hostname", "device-one"))
	v, ok := s.GetString("hostname")
	require.True(t, ok)
	assert.Equal(t, "device-one", v)
}

func TestGetMissingKey(t *testing.T) {
	s := open(t)
	_, ok := s.GetString("does-not-exist")
	assert.False(t, ok)
}

func TestSetGetInt(t *testing.T) {
	s := open(t)
	require.NoError(t, s.SetInt("i2c.0.speed", 400))
	v, ok := s.GetInt("i2c.0.speed")
	require.True(t, ok)
	assert.EqualValues(t, 400, v)
}

func TestEraseWildcard(t *testing.T) {
	s := open(t)
	require.NoError(t, s.SetString("display.brightness", "50"))
	require.NoError(t, s.SetString("display.rotation", "90"))
	require.NoError(t, s.SetString("hostname", "kept"))
	require.NoError(t, s.EraseWildcard("display."))

	_, ok := s.GetString("display.brightness")
	assert.False(t, ok)
	_, ok = s.GetString("display.rotation")
	assert.False(t, ok)
	v, ok := s.GetString("hostname")
	require.True(t, ok)
	assert.Equal(t, "kept", v)
}

func TestValueTooLongRejected(t *testing.T) {
	s := open(t)
	long := make([]byte, 64)
	err := s.SetString("k", string(long))
	assert.Error(t, err)
}
