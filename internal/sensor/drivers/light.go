// Package drivers holds one representative sensor implementation per
// device class named for the poller: auto-ranged ambient light,
// plain temperature, CRC-protected temperature+humidity, and
// OTP-calibrated temperature+humidity+pressure.
package drivers

import (
	"fmt"

	"github.com/eriksl/esp32-sub000/internal/i2c"
	"github.com/eriksl/esp32-sub000/internal/sensor"
)

// Light is a BH1750-class ambient-light sensor: one-shot continuous
// H-resolution mode, auto-ranged across three opcodes by adjusting
// the sensor's internal measurement-time register rather than just
// scaling in software, matching the real device's behavior.
type Light struct {
	address byte
}

func NewLight(address byte) *Light { return &Light{address: address} }

func (l *Light) Addresses() []byte { return []byte{l.address} }

func (l *Light) Info() sensor.Info {
	return sensor.Info{Name: "bh1750", Types: []sensor.ValueType{sensor.VisibleLight}, Precision: 1}
}

var lightRanges = []sensor.RangeStep{
	{Opcodes: []byte{0x23}, Up: 50000, Down: 0, Overflow: 65535, Factor: 1.0 / 1.2},     // low res, wide range
	{Opcodes: []byte{0x13}, Up: 50000, Down: 1000, Overflow: 65535, Factor: 1.0 / 1.2},  // H-resolution
	{Opcodes: []byte{0x20}, Up: 1 << 62, Down: 1000, Overflow: 65535, Factor: 1.0 / 3.6}, // H2-resolution, highest sensitivity
}

type lightState struct {
	ranger *sensor.AutoRanger
}

func (l *Light) Detect(bus i2c.BusController, addr byte) sensor.State {
	if !bus.Probe(addr) {
		return sensor.NotFound
	}
	return sensor.Found
}

func (l *Light) Init(r *sensor.Record, bus i2c.BusController) error {
	r.Private = &lightState{ranger: sensor.NewAutoRanger(lightRanges, 1)}
	return bus.Send(l.address, lightRanges[1].Opcodes)
}

// Poll either measures or steps the range, never both: a raw count
// at exactly threshold.up steps up; one below threshold.down steps
// down; values strictly between leave the range untouched and report.
func (l *Light) Poll(r *sensor.Record, bus i2c.BusController) error {
	st := r.Private.(*lightState)
	raw, err := bus.Receive(l.address, 2)
	if err != nil {
		return err
	}
	count := float64(raw[0])*256 + float64(raw[1])

	if st.ranger.Adjust(count) {
		return bus.Send(l.address, st.ranger.Current().Opcodes)
	}

	value := st.ranger.Convert(count)
	r.Values[sensor.VisibleLight] = sensor.Reading{Value: value}
	return nil
}

func (l *Light) Dump(r *sensor.Record) string {
	v := r.Values[sensor.VisibleLight]
	return fmt.Sprintf("light=%.1flux", v.Value)
}
