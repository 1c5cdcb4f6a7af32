package ota

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	capacity int
	data     []byte
	finalized bool
	boot      bool
	confirmed bool
}

func (f *fakeWriter) Write(chunk []byte) error { f.data = append(f.data, chunk...); return nil }
func (f *fakeWriter) Finalize() error           { f.finalized = true; return nil }
func (f *fakeWriter) Capacity() int             { return f.capacity }
func (f *fakeWriter) StoredSHA256() string {
	sum := sha256.Sum256(f.data)
	return hex.EncodeToString(sum[:])
}
func (f *fakeWriter) MarkBootPartition() error { f.boot = true; return nil }
func (f *fakeWriter) ConfirmValid() error      { f.confirmed = true; return nil }

func TestOTAHappyPath(t *testing.T) {
	w := &fakeWriter{capacity: 4096}
	s := NewSession()
	require.NoError(t, s.Start(1024, w))

	chunk := make([]byte, 32)
	for i := 0; i < 32; i++ {
		for j := range chunk {
			chunk[j] = byte(i)
		}
		require.NoError(t, s.Write(chunk, false))
	}

	hexHash, err := s.Finish()
	require.NoError(t, err)
	assert.Len(t, hexHash, 64)

	require.NoError(t, s.Commit(hexHash))
	assert.True(t, w.boot)

	require.NoError(t, s.Confirm())
	assert.True(t, w.confirmed)
}

func TestOTARejectsExcessLength(t *testing.T) {
	w := &fakeWriter{capacity: 4096}
	s := NewSession()
	require.NoError(t, s.Start(32, w))
	require.NoError(t, s.Write(make([]byte, 32), false))
	err := s.Write(make([]byte, 32), false)
	assert.Error(t, err)
}

func TestOTACommitMismatchFails(t *testing.T) {
	w := &fakeWriter{capacity: 4096}
	s := NewSession()
	require.NoError(t, s.Start(32, w))
	require.NoError(t, s.Write(make([]byte, 32), false))
	_, err := s.Finish()
	require.NoError(t, err)
	err = s.Commit("deadbeef")
	assert.Error(t, err)
}

func TestOTAStartAbortsPriorSession(t *testing.T) {
	w1 := &fakeWriter{capacity: 4096}
	w2 := &fakeWriter{capacity: 4096}
	s := NewSession()
	require.NoError(t, s.Start(128, w1))
	require.NoError(t, s.Start(64, w2))
	assert.Equal(t, Writing, s.State())
}
