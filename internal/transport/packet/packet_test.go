package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripFramed(t *testing.T) {
	payload := []byte("hostname test-host A_Board")
	oob := []byte{1, 2, 3, 4, 5}

	wire := Encapsulate(true, payload, oob)
	require.True(t, Valid(wire))
	require.True(t, Complete(wire))
	assert.Equal(t, HeaderLength+len(payload)+len(oob), Length(wire))

	gotPayload, gotOOB := Decapsulate(true, wire)
	assert.Equal(t, payload, gotPayload)
	assert.Equal(t, oob, gotOOB)
}

func TestRoundTripFramedNoOOB(t *testing.T) {
	payload := []byte("help")
	wire := Encapsulate(true, payload, nil)
	gotPayload, gotOOB := Decapsulate(true, wire)
	assert.Equal(t, payload, gotPayload)
	assert.Empty(t, gotOOB)
}

func TestRoundTripUnframed(t *testing.T) {
	payload := []byte("help")
	wire := Encapsulate(false, payload, nil)
	assert.Equal(t, "help\n", string(wire))
	gotPayload, gotOOB := Decapsulate(false, wire)
	assert.Equal(t, payload, gotPayload)
	assert.Empty(t, gotOOB)
}

func TestRoundTripUnframedWithOOB(t *testing.T) {
	payload := []byte("fs-write test.bin")
	oob := []byte{0xde, 0xad, 0xbe, 0xef}
	wire := Encapsulate(false, payload, oob)
	gotPayload, gotOOB := Decapsulate(false, wire)
	assert.Equal(t, payload, gotPayload)
	assert.Equal(t, oob, gotOOB)
}

func TestHeaderChecksumMismatchFails(t *testing.T) {
	wire := Encapsulate(true, []byte("x"), nil)
	wire[12] ^= 0xff // flip a header byte inside the header-checksummed bytes 0..15
	payload, oob := Decapsulate(true, wire)
	assert.Equal(t, []byte("<error>"), payload)
	assert.Empty(t, oob)
}

func TestPacketChecksumMismatchFails(t *testing.T) {
	wire := Encapsulate(true, []byte("hello"), nil)
	wire[HeaderLength] ^= 0xff // corrupt payload byte, header checksum still valid
	payload, oob := Decapsulate(true, wire)
	assert.Equal(t, []byte("<error>"), payload)
	assert.Empty(t, oob)
}

func TestLengthInvariant(t *testing.T) {
	payload := make([]byte, 37)
	oob := make([]byte, 5)
	wire := Encapsulate(true, payload, oob)
	assert.Equal(t, 24+len(payload)+len(oob), Length(wire))
}

func TestValidRejectsShortBuffer(t *testing.T) {
	assert.False(t, Valid([]byte{0x01, 0x03}))
}
