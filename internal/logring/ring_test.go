package logring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFreshRegionRecordsCorruption(t *testing.T) {
	region := make([]byte, RegionBytes)
	r := Open(region)
	tail := r.Tail(Entries)
	require.Len(t, tail, 1)
	assert.Contains(t, tail[0], "log buffer corrupt, reinit")
}

func TestLogAndTailOrdering(t *testing.T) {
	r := Open(make([]byte, RegionBytes))
	r.Clear()
	r.Log("first")
	r.Log("second")
	r.Log("third")
	tail := r.Tail(2)
	require.Len(t, tail, 2)
	assert.Contains(t, tail[0], "second")
	assert.Contains(t, tail[1], "third")
}

func TestRingWrapsAfterCapacity(t *testing.T) {
	r := Open(make([]byte, RegionBytes))
	r.Clear()
	for i := 0; i < Entries+5; i++ {
		r.Log("entry")
	}
	tail := r.Tail(Entries)
	assert.Len(t, tail, Entries)
}

func TestRegionSizeMatchesFixedLayout(t *testing.T) {
	assert.Equal(t, 32+Entries*128, RegionBytes)
}

func TestOpenFileRecoversCursorsAndEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")

	r1, err := OpenFile(path)
	require.NoError(t, err)
	r1.Clear()
	r1.Log("first")
	r1.Log("second")
	r1.Log("third")
	wantIn, wantOut := r1.in, r1.out
	require.NoError(t, r1.Close())

	r2, err := OpenFile(path)
	require.NoError(t, err)
	defer r2.Close()

	assert.Equal(t, wantIn, r2.in)
	assert.Equal(t, wantOut, r2.out)

	tail := r2.Tail(3)
	require.Len(t, tail, 3)
	assert.Contains(t, tail[0], "first")
	assert.Contains(t, tail[1], "second")
	assert.Contains(t, tail[2], "third")
}

func TestOpenFileGrowsShortExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02}, 0o600))

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()

	tail := r.Tail(Entries)
	require.Len(t, tail, 1)
	assert.Contains(t, tail[0], "log buffer corrupt, reinit")
}
