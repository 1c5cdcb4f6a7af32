package linuxctrl

import (
	"os"

	"github.com/eriksl/esp32-sub000/internal/fault"
)

// Controller is the Main I²C back-end: full START/ADDR/STOP control
// over a real bus, implementing i2c.BusController.
type Controller struct {
	file *os.File
	fd   uintptr
}

// Open opens devicePath (e.g. "/dev/i2c-1") for ioctl-based transfers.
func Open(devicePath string) (*Controller, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fault.Wrapf(fault.Transient, err, "open %s", devicePath)
	}
	return &Controller{file: f, fd: f.Fd()}, nil
}

func (c *Controller) Close() error { return c.file.Close() }

// Send performs START, ADDR|W, len(data) bytes, STOP.
func (c *Controller) Send(addr byte, data []byte) error {
	if len(data) == 0 {
		return c.Probe0(addr)
	}
	msg := i2cMsg{addr: uint16(addr), flags: 0, len: uint16(len(data)), buf: &data[0]}
	if err := transfer(c.fd, []i2cMsg{msg}); err != nil {
		return fault.Wrapf(fault.Transient, err, "i2c send to 0x%02x", addr)
	}
	return nil
}

// Probe0 performs the zero-byte-write probe the Main controller uses
// for device presence detection.
func (c *Controller) Probe0(addr byte) error {
	if err := setSlave(c.fd, addr); err != nil {
		return fault.Wrapf(fault.Transient, err, "i2c probe 0x%02x", addr)
	}
	_, err := c.file.Write(nil)
	if err != nil {
		return fault.Wrapf(fault.Transient, err, "i2c probe 0x%02x", addr)
	}
	return nil
}

// Receive performs START, ADDR|R, (n-1)*ACK, 1*NACK, STOP.
func (c *Controller) Receive(addr byte, n int) ([]byte, error) {
	buf := make([]byte, n)
	msg := i2cMsg{addr: uint16(addr), flags: msgRD, len: uint16(n), buf: &buf[0]}
	if err := transfer(c.fd, []i2cMsg{msg}); err != nil {
		return nil, fault.Wrapf(fault.Transient, err, "i2c receive from 0x%02x", addr)
	}
	return buf, nil
}

// SendReceive performs a combined write-then-read with a repeated
// START between the two phases.
func (c *Controller) SendReceive(addr byte, out []byte, n int) ([]byte, error) {
	in := make([]byte, n)
	msgs := []i2cMsg{
		{addr: uint16(addr), flags: 0, len: uint16(len(out)), buf: dataPtr(out)},
		{addr: uint16(addr), flags: msgRD, len: uint16(n), buf: &in[0]},
	}
	if err := transfer(c.fd, msgs); err != nil {
		return nil, fault.Wrapf(fault.Transient, err, "i2c send_receive 0x%02x", addr)
	}
	return in, nil
}

// Probe performs a zero-byte write and reports presence.
func (c *Controller) Probe(addr byte) bool {
	return c.Probe0(addr) == nil
}

// SetMux writes the one-hot mask for the requested downstream bus
// (0 means root / no mux bank selected).
func (c *Controller) SetMux(bus int) error {
	if bus == 0 {
		return c.Send(0x70, []byte{0x00})
	}
	return c.Send(0x70, []byte{1 << uint(bus-1)})
}

func dataPtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}
