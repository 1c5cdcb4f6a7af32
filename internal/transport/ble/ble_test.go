package ble

import (
	"context"
	"crypto/aes"
	"testing"
	"time"

	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/eriksl/esp32-sub000/internal/transport/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMAC = [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

// encryptChallenge is the test-side mirror of the real central's
// encrypt step: AES-256-ECB over a single 16-byte block.
func encryptChallenge(t *testing.T, key [32]byte, plaintext [16]byte) [16]byte {
	t.Helper()
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)
	var ct [16]byte
	block.Encrypt(ct[:], plaintext[:])
	return ct
}

func validChallenge(mac [6]byte) [16]byte {
	var pt [16]byte
	copy(pt[:12], ExpectedKey(mac)[:])
	pt[12], pt[13], pt[14], pt[15] = 0x04, 0x04, 0x04, 0x04
	return pt
}

func TestExpectedKeyAndValidatePlaintext(t *testing.T) {
	pt := validChallenge(testMAC)
	assert.True(t, ValidatePlaintext(pt, testMAC))

	pt[15] = 0x00 // corrupt the fixed trailer
	assert.False(t, ValidatePlaintext(pt, testMAC))

	pt = validChallenge(testMAC)
	pt[0] ^= 0xff // corrupt the MAC-derived token
	assert.False(t, ValidatePlaintext(pt, testMAC))
}

func TestDeriveKeyIsDeterministicPerPassphraseAndMAC(t *testing.T) {
	k1 := DeriveKey("hunter2", testMAC)
	k2 := DeriveKey("hunter2", testMAC)
	assert.Equal(t, k1, k2)

	other := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	k3 := DeriveKey("hunter2", other)
	assert.NotEqual(t, k1, k3)
}

func TestOnKeyWriteAuthorizesValidChallengeOnly(t *testing.T) {
	key := DeriveKey("hunter2", testMAC)
	tr := New(testMAC, key, transport.NewQueue())

	badCT := encryptChallenge(t, key, [16]byte{})
	tr.OnKeyWrite(1, badCT)
	assert.False(t, tr.stateFor(1).authorized)

	goodCT := encryptChallenge(t, key, validChallenge(testMAC))
	tr.OnKeyWrite(1, goodCT)
	assert.True(t, tr.stateFor(1).authorized)

	// A subsequent bad challenge revokes authorization rather than
	// leaving the previous grant in place.
	tr.OnKeyWrite(1, badCT)
	assert.False(t, tr.stateFor(1).authorized)
}

func TestOnDataWriteUnauthorizedDropped(t *testing.T) {
	key := DeriveKey("hunter2", testMAC)
	in := transport.NewQueue()
	tr := New(testMAC, key, in)

	tr.OnDataWrite(context.Background(), 1, []byte("info\n"))

	assert.Equal(t, 1, tr.stateFor(1).unauthorizedAccess)
	assert.Equal(t, 0, in.Len())
}

func authorize(t *testing.T, tr *Transport, key [32]byte, connID uint64) {
	t.Helper()
	ct := encryptChallenge(t, key, validChallenge(testMAC))
	tr.OnKeyWrite(connID, ct)
	require.True(t, tr.stateFor(connID).authorized)
}

func TestOnDataWriteReassemblesFragmentedPacket(t *testing.T) {
	key := DeriveKey("hunter2", testMAC)
	in := transport.NewQueue()
	tr := New(testMAC, key, in)
	authorize(t, tr, key, 7)

	wire := packet.Encapsulate(true, []byte("hostname"), nil)
	require.Greater(t, len(wire), packet.HeaderLength)

	ctx := context.Background()
	tr.OnDataWrite(ctx, 7, wire[:packet.HeaderLength])
	assert.Equal(t, 0, in.Len(), "must not deliver before the declared length is reached")

	tr.OnDataWrite(ctx, 7, wire[packet.HeaderLength:])
	require.Equal(t, 1, in.Len())

	msg, err := in.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, transport.OriginBLE, msg.Origin)
	assert.True(t, msg.Packetised)
	assert.Equal(t, wire, msg.Payload)
	assert.Empty(t, tr.stateFor(7).buffer)
}

func TestOnDataWriteDefragTimeoutClearsBuffer(t *testing.T) {
	original := defragTimeout
	defragTimeout = 20 * time.Millisecond
	defer func() { defragTimeout = original }()

	key := DeriveKey("hunter2", testMAC)
	in := transport.NewQueue()
	tr := New(testMAC, key, in)
	authorize(t, tr, key, 3)

	wire := packet.Encapsulate(true, []byte("hostname"), nil)
	tr.OnDataWrite(context.Background(), 3, wire[:packet.HeaderLength])

	require.Eventually(t, func() bool {
		cs := tr.stateFor(3)
		cs.mu.Lock()
		defer cs.mu.Unlock()
		return cs.defragmentationTimeouts == 1 && len(cs.buffer) == 0
	}, time.Second, 5*time.Millisecond)
}

type fakeIndicator struct {
	chunks [][]byte
}

func (f *fakeIndicator) Indicate(data []byte) error {
	f.chunks = append(f.chunks, append([]byte(nil), data...))
	return nil
}

func TestSendFragmentsAcrossMTU(t *testing.T) {
	key := DeriveKey("hunter2", testMAC)
	tr := New(testMAC, key, transport.NewQueue())
	tr.mtu = 4 // chunkSize = mtu + packet.HeaderLength + 8 = 36

	ind := &fakeIndicator{}
	tr.RegisterIndicator(9, ind)

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}

	err := tr.Send(transport.Message{Payload: payload, Addr: connAddress{connID: 9}})
	require.NoError(t, err)
	assert.Greater(t, len(ind.chunks), 1)

	var reassembled []byte
	for _, c := range ind.chunks {
		reassembled = append(reassembled, c...)
	}
	assert.Equal(t, payload, reassembled)
}
