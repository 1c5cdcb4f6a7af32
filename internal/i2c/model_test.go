package i2c

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	sent    [][]byte
	muxMask byte
	present map[byte]bool
}

func newFake() *fakeController { return &fakeController{present: map[byte]bool{0x70: true}} }

func (f *fakeController) Send(addr byte, data []byte) error {
	f.sent = append(f.sent, append([]byte{addr}, data...))
	return nil
}
func (f *fakeController) Receive(addr byte, n int) ([]byte, error) { return make([]byte, n), nil }
func (f *fakeController) SendReceive(addr byte, out []byte, n int) ([]byte, error) {
	return make([]byte, n), nil
}
func (f *fakeController) Probe(addr byte) bool { return f.present[addr] }
func (f *fakeController) SetMux(bus int) error { f.muxMask = byte(bus); return nil }

func TestMuxDetectionEnablesEightBuses(t *testing.T) {
	fc := newFake()
	rt := NewRuntime(Main0, fc, 100)
	rt.DetectMux()
	assert.Equal(t, 8, rt.Buses())
}

func TestNoMuxRestrictsToBusZero(t *testing.T) {
	fc := newFake()
	delete(fc.present, 0x70)
	rt := NewRuntime(Main0, fc, 100)
	rt.DetectMux()
	assert.Equal(t, 1, rt.Buses())
	require.Error(t, rt.SetBus(1))
	require.NoError(t, rt.SetBus(0))
}

func TestDuplicateSlaveRejected(t *testing.T) {
	fc := newFake()
	rt := NewRuntime(Main0, fc, 100)
	s := Slave{Module: Main0, Bus: 0, Address: 0x23, Name: "bh1750"}
	require.NoError(t, rt.Register(s, false))
	err := rt.Register(s, false)
	assert.Error(t, err)
}

func TestConstrainedModuleRejectsNoConstrainedDrivers(t *testing.T) {
	fc := newFake()
	rt := NewRuntime(UlpRtc, fc, 100)
	s := Slave{Module: UlpRtc, Bus: 0, Address: 0x44, Name: "sht3x"}
	err := rt.Register(s, true)
	assert.Error(t, err)
}
