package drivers

import (
	"fmt"

	"github.com/eriksl/esp32-sub000/internal/i2c"
	"github.com/eriksl/esp32-sub000/internal/sensor"
)

// Temperature is a TMP75/LM75-class device: one configuration byte,
// a two-byte big-endian signed temperature register at 1/256 °C
// resolution.
type Temperature struct {
	address byte
}

func NewTemperature(address byte) *Temperature { return &Temperature{address: address} }

func (t *Temperature) Addresses() []byte { return []byte{t.address} }

func (t *Temperature) Info() sensor.Info {
	return sensor.Info{Name: "tmp75", Types: []sensor.ValueType{sensor.Temperature}, Precision: 2}
}

func (t *Temperature) Detect(bus i2c.BusController, addr byte) sensor.State {
	if !bus.Probe(addr) {
		return sensor.NotFound
	}
	return sensor.Found
}

func (t *Temperature) Init(r *sensor.Record, bus i2c.BusController) error {
	return bus.Send(t.address, []byte{0x01, 0x60}) // config: 12-bit resolution
}

func (t *Temperature) Poll(r *sensor.Record, bus i2c.BusController) error {
	raw, err := bus.SendReceive(t.address, []byte{0x00}, 2)
	if err != nil {
		return err
	}
	value := float64(int16(uint16(raw[0])<<8|uint16(raw[1]))) / 256.0
	r.Values[sensor.Temperature] = sensor.Reading{Value: value}
	return nil
}

func (t *Temperature) Dump(r *sensor.Record) string {
	return fmt.Sprintf("temperature=%.2fC", r.Values[sensor.Temperature].Value)
}
