// Package ble implements the BLE GATT CLI transport: one primary
// service (0xabf0) with a data characteristic (0xabf1, write+indicate)
// and a key characteristic (0xabf2, write-only AES-256 challenge),
// grounded on the go-ble/ble peripheral wiring in
// other_examples/srgg-blecli and the DFU-style auth flow in
// other_examples/rcaelers-nrf-dfu.
package ble

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/eriksl/esp32-sub000/internal/transport/packet"
	"github.com/go-ble/ble"
	"golang.org/x/crypto/pbkdf2"
)

const (
	ServiceUUID = "abf0"
	DataCharUUID = "abf1"
	KeyCharUUID  = "abf2"

	maxIndicationRetries = 16
	indicationBackoff    = 100 * time.Millisecond
)

// defragTimeout is a var rather than a const so tests can shrink it
// instead of sleeping out the production 10s window.
var defragTimeout = 10 * time.Second

// ExpectedKey derives the 12-byte authentication token from a MAC
// address exactly as specified: the first six bytes are the MAC
// XORed with 0x55, the next six are the reversed MAC XORed with 0xAA.
func ExpectedKey(mac [6]byte) [12]byte {
	var out [12]byte
	for i := 0; i < 6; i++ {
		out[i] = mac[i] ^ 0x55
	}
	for i := 0; i < 6; i++ {
		out[6+i] = mac[5-i] ^ 0xAA
	}
	return out
}

// ValidatePlaintext checks the decrypted 16-byte challenge against
// the expected per-MAC token and the fixed trailer.
func ValidatePlaintext(plaintext [16]byte, mac [6]byte) bool {
	if plaintext[12] != 0x04 || plaintext[13] != 0x04 || plaintext[14] != 0x04 || plaintext[15] != 0x04 {
		return false
	}
	want := ExpectedKey(mac)
	for i := 0; i < 12; i++ {
		if plaintext[i] != want[i] {
			return false
		}
	}
	return true
}

// Decrypt decrypts a 16-byte AES-256-ECB ciphertext block with key.
func Decrypt(key [32]byte, ciphertext [16]byte) ([16]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return [16]byte{}, err
	}
	var out [16]byte
	block.Decrypt(out[:], ciphertext[:])
	return out, nil
}

var _ cipher.Block // referenced only for documentation of the ECB shape used

const pbkdf2Iterations = 100000

// DeriveKey derives the 32-byte AES key provisioned into a device from
// an operator-chosen passphrase and the device's MAC, so the key never
// has to be generated or transcribed as raw bytes during setup.
func DeriveKey(passphrase string, mac [6]byte) [32]byte {
	var key [32]byte
	copy(key[:], pbkdf2.Key([]byte(passphrase), mac[:], pbkdf2Iterations, 32, sha256.New))
	return key
}

type connAddress struct{ connID uint64 }

func (connAddress) Origin() transport.Origin { return transport.OriginBLE }

// connState is the per-connection reassembly/auth state.
type connState struct {
	mu                  sync.Mutex
	authorized          bool
	unauthorizedAccess  int
	defragmentationTimeouts int
	buffer              []byte
	defragTimer         *time.Timer
	indicator           Indicator
}

// Transport owns the GATT server and the per-connection state table.
type Transport struct {
	mac  [6]byte
	key  [32]byte
	in   *transport.Queue
	mtu  int

	mu    sync.Mutex
	conns map[uint64]*connState
}

func New(mac [6]byte, key [32]byte, in *transport.Queue) *Transport {
	return &Transport{mac: mac, key: key, in: in, mtu: 180, conns: map[uint64]*connState{}}
}

func (t *Transport) stateFor(connID uint64) *connState {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.conns[connID]
	if !ok {
		cs = &connState{}
		t.conns[connID] = cs
	}
	return cs
}

// RegisterIndicator associates the per-connection indicate primitive
// the go-ble/ble peripheral hands out once a central subscribes to
// the data characteristic, so Send can reach the right connection.
func (t *Transport) RegisterIndicator(connID uint64, ind Indicator) {
	t.stateFor(connID).indicator = ind
}

func (t *Transport) Disconnect(connID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, connID)
}

// OnKeyWrite handles a write to 0xabf2: authorized is reset first,
// then re-validated against the decrypted challenge.
func (t *Transport) OnKeyWrite(connID uint64, ciphertext [16]byte) {
	cs := t.stateFor(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.authorized = false

	plaintext, err := Decrypt(t.key, ciphertext)
	if err != nil {
		return
	}
	cs.authorized = ValidatePlaintext(plaintext, t.mac)
}

// OnDataWrite handles a write to 0xabf1. Writes while unauthorized are
// dropped and only bump the counter.
func (t *Transport) OnDataWrite(ctx context.Context, connID uint64, data []byte) {
	cs := t.stateFor(connID)
	cs.mu.Lock()
	if !cs.authorized {
		cs.unauthorizedAccess++
		cs.mu.Unlock()
		return
	}
	cs.buffer = append(cs.buffer, data...)

	if packet.Valid(cs.buffer) {
		if packet.Complete(cs.buffer) {
			payload := append([]byte(nil), cs.buffer...)
			cs.buffer = nil
			t.cancelDefragLocked(cs)
			cs.mu.Unlock()
			_ = t.in.Push(ctx, transport.Message{
				Origin: transport.OriginBLE, MTU: t.mtu, Packetised: true,
				Payload: payload, Addr: connAddress{connID: connID},
			})
			return
		}
		t.armDefragLocked(ctx, cs, connID)
		cs.mu.Unlock()
		return
	}

	// Not a valid packet at all: treat the buffer itself as a raw line.
	payload := append([]byte(nil), cs.buffer...)
	cs.buffer = nil
	t.cancelDefragLocked(cs)
	cs.mu.Unlock()
	_ = t.in.Push(ctx, transport.Message{
		Origin: transport.OriginBLE, MTU: t.mtu, Packetised: false,
		Payload: payload, Addr: connAddress{connID: connID},
	})
}

func (t *Transport) armDefragLocked(ctx context.Context, cs *connState, connID uint64) {
	if cs.defragTimer != nil {
		cs.defragTimer.Stop()
	}
	cs.defragTimer = time.AfterFunc(defragTimeout, func() {
		cs.mu.Lock()
		cs.defragmentationTimeouts++
		cs.buffer = nil
		cs.mu.Unlock()
	})
}

func (t *Transport) cancelDefragLocked(cs *connState) {
	if cs.defragTimer != nil {
		cs.defragTimer.Stop()
		cs.defragTimer = nil
	}
}

// Indicator is the characteristic write/indicate primitive the real
// go-ble/ble peripheral provides per connection.
type Indicator interface {
	Indicate(data []byte) error
}

// Send implements transport.Sender: it resolves the connection's
// indicator from msg.Addr and fragments the outbound payload into
// chunks of at most mtu+header+8 bytes, retrying each indicate up to
// 16 times with a 100ms backoff on an out-of-memory condition.
func (t *Transport) Send(msg transport.Message) error {
	addr, ok := msg.Addr.(connAddress)
	if !ok {
		return nil
	}
	cs := t.stateFor(addr.connID)
	if cs.indicator == nil {
		return errOOMExhausted
	}
	return t.sendTo(msg, cs.indicator)
}

func (t *Transport) sendTo(msg transport.Message, ind Indicator) error {
	chunkSize := t.mtu + packet.HeaderLength + 8
	payload := msg.Payload
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > chunkSize {
			chunk = chunk[:chunkSize]
		}
		if err := t.sendChunkWithRetry(ind, chunk); err != nil {
			return err
		}
		payload = payload[len(chunk):]
	}
	return nil
}

func (t *Transport) sendChunkWithRetry(ind Indicator, chunk []byte) error {
	for attempt := 0; attempt < maxIndicationRetries; attempt++ {
		err := ind.Indicate(chunk)
		if err == nil {
			return nil
		}
		if !isOutOfMemory(err) {
			return err
		}
		time.Sleep(indicationBackoff)
	}
	return errOOMExhausted
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errOOMExhausted = sentinelError("ble indication retries exhausted")

func isOutOfMemory(err error) bool {
	return err != nil && err.Error() == "out of memory"
}

// NewGATTService builds the device's primary service and its two
// characteristics on the real go-ble/ble peripheral stack: 0xabf1 is
// write-with-response plus indicate, 0xabf2 is write-only.
func (t *Transport) NewGATTService(onData func(connID uint64, data []byte), onKey func(connID uint64, ciphertext [16]byte)) *ble.Service {
	svc := ble.NewService(ble.MustParse(ServiceUUID))

	data := ble.NewCharacteristic(ble.MustParse(DataCharUUID))
	data.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		onData(connID(req), req.Data())
	}))
	data.HandleIndicate(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		<-n.Context().Done()
	}))
	svc.AddCharacteristic(data)

	key := ble.NewCharacteristic(ble.MustParse(KeyCharUUID))
	key.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		var ct [16]byte
		copy(ct[:], req.Data())
		onKey(connID(req), ct)
	}))
	svc.AddCharacteristic(key)

	return svc
}

// connID derives a stable per-connection key from the request's
// connection handle; go-ble/ble threads the same *ble.Conn through
// every request on a connection.
func connID(req ble.Request) uint64 {
	return uint64(req.Conn().(interface{ ID() uint64 }).ID())
}
