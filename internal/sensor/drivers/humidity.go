package drivers

import (
	"fmt"

	"github.com/eriksl/esp32-sub000/internal/fault"
	"github.com/eriksl/esp32-sub000/internal/i2c"
	"github.com/eriksl/esp32-sub000/internal/sensor"
)

// Humidity is an SHT3x-class temperature+humidity device. Each
// measurement reply is six bytes: 2-byte temperature + CRC-8, 2-byte
// humidity + CRC-8, polynomial 0x31 init 0xFF — rejecting a reading
// whose CRC doesn't match is the entire point of exercising this
// driver.
type Humidity struct {
	address byte
}

func NewHumidity(address byte) *Humidity { return &Humidity{address: address} }

func (h *Humidity) Addresses() []byte { return []byte{h.address} }

func (h *Humidity) Info() sensor.Info {
	return sensor.Info{Name: "sht3x", Types: []sensor.ValueType{sensor.Temperature, sensor.Humidity}, Precision: 2}
}

func (h *Humidity) Detect(bus i2c.BusController, addr byte) sensor.State {
	if !bus.Probe(addr) {
		return sensor.NotFound
	}
	return sensor.Found
}

func (h *Humidity) Init(r *sensor.Record, bus i2c.BusController) error {
	return bus.Send(h.address, []byte{0x30, 0xA2}) // soft reset
}

func (h *Humidity) Poll(r *sensor.Record, bus i2c.BusController) error {
	if err := bus.Send(h.address, []byte{0x24, 0x00}); err != nil { // high-repeatability, no clock stretch
		return err
	}
	raw, err := bus.Receive(h.address, 6)
	if err != nil {
		return err
	}
	if sensor.CRC8SHT(raw[0:2]) != raw[2] || sensor.CRC8SHT(raw[3:5]) != raw[5] {
		return fault.New(fault.Protocol, "sht3x: crc mismatch")
	}

	rawT := uint16(raw[0])<<8 | uint16(raw[1])
	rawRH := uint16(raw[3])<<8 | uint16(raw[4])

	temp := -45 + 175*(float64(rawT)/65535.0)
	rh := 100 * (float64(rawRH) / 65535.0)

	r.Values[sensor.Temperature] = sensor.Reading{Value: temp}
	r.Values[sensor.Humidity] = sensor.Reading{Value: rh}
	return nil
}

func (h *Humidity) Dump(r *sensor.Record) string {
	return fmt.Sprintf("temperature=%.2fC humidity=%.2f%%", r.Values[sensor.Temperature].Value, r.Values[sensor.Humidity].Value)
}
