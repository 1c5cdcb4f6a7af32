// Package ulpctrl implements the ULP I²C back-end: a restricted
// op-set controller that cannot address a slave and write a single
// stray byte the way the Main controller can, and cannot receive at
// all. Every unsupported operation fails explicitly rather than
// silently emulating something close to it.
package ulpctrl

import "github.com/eriksl/esp32-sub000/internal/fault"

// Transport is the minimal primitive the ULP hardware actually
// exposes: write 1 or 2 bytes to a slave address, or read 1 byte
// after writing 1 byte (register-read shape). A real implementation
// backs this with RTC_I2C registers; tests substitute a fake.
type Transport interface {
	WriteBytes(addr byte, b []byte) error
	WriteThenReadByte(addr byte, reg byte) (byte, error)
}

type Controller struct {
	t Transport
}

func New(t Transport) *Controller { return &Controller{t: t} }

// Send sets the slave address and the first byte as "register"; if
// more than one byte follows it writes the remainder, and if exactly
// one byte is given it substitutes a 1-byte read as the documented
// workaround (the ULP hardware cannot issue a pure 1-byte write).
func (c *Controller) Send(addr byte, data []byte) error {
	if len(data) == 0 {
		return fault.New(fault.Transient, "ulp controller: zero-byte send unsupported")
	}
	if len(data) == 1 {
		_, err := c.t.WriteThenReadByte(addr, data[0])
		return err
	}
	return c.t.WriteBytes(addr, data)
}

// Receive is not supported by the ULP controller.
func (c *Controller) Receive(addr byte, n int) ([]byte, error) {
	return nil, fault.New(fault.Transient, "ulp controller: receive unsupported")
}

// SendReceive only supports a single write byte followed by a read.
func (c *Controller) SendReceive(addr byte, out []byte, n int) ([]byte, error) {
	if len(out) != 1 || n != 1 {
		return nil, fault.New(fault.Transient, "ulp controller: only 1-byte send_receive supported")
	}
	b, err := c.t.WriteThenReadByte(addr, out[0])
	if err != nil {
		return nil, err
	}
	return []byte{b}, nil
}

// Probe is emulated via a 1-byte write followed by a 1-byte read,
// per the documented mux/probe workaround.
func (c *Controller) Probe(addr byte) bool {
	_, err := c.t.WriteThenReadByte(addr, 0x00)
	return err == nil
}

// SetMux writes the one-hot mask as a two-byte repeated write, which
// the mux chip accepts even though the ULP controller cannot issue a
// single-byte write.
func (c *Controller) SetMux(bus int) error {
	mask := byte(0x00)
	if bus != 0 {
		mask = 1 << uint(bus-1)
	}
	return c.t.WriteBytes(0x70, []byte{mask, mask})
}
