package drivers

import (
	"fmt"

	"github.com/eriksl/esp32-sub000/internal/i2c"
	"github.com/eriksl/esp32-sub000/internal/sensor"
)

// Pressure is a BMx280-class temperature+humidity+pressure device.
// Poll reads and reports temperature and air pressure only; no
// Humidity value is ever stored, although Info lists that type.
// Calibration words are read once from the device's OTP registers at
// Init and used to compensate every subsequent raw reading with the
// vendor's published fixed-point formulas (kept in floating point
// here — the wire protocol and calibration source are what must be
// bit-exact, not the compensation arithmetic's numeric representation).
type Pressure struct {
	address byte
}

func NewPressure(address byte) *Pressure { return &Pressure{address: address} }

func (p *Pressure) Addresses() []byte { return []byte{p.address} }

func (p *Pressure) Info() sensor.Info {
	return sensor.Info{
		Name:      "bme280",
		Types:     []sensor.ValueType{sensor.Temperature, sensor.Humidity, sensor.AirPressure},
		Precision: 2,
	}
}

type calibration struct {
	digT1 uint16
	digT2 int16
	digT3 int16
	digP1 uint16
	digP2 int16
	digP3 int16
	tFine int32
}

type pressureState struct {
	cal calibration
}

func (p *Pressure) Detect(bus i2c.BusController, addr byte) sensor.State {
	id, err := bus.SendReceive(p.address, []byte{0xD0}, 1)
	if err != nil || len(id) != 1 || id[0] != 0x60 {
		return sensor.NotFound
	}
	return sensor.Found
}

func (p *Pressure) Init(r *sensor.Record, bus i2c.BusController) error {
	calib, err := bus.SendReceive(p.address, []byte{0x88}, 12)
	if err != nil {
		return err
	}
	cal := calibration{
		digT1: le16u(calib[0:2]),
		digT2: le16s(calib[2:4]),
		digT3: le16s(calib[4:6]),
		digP1: le16u(calib[6:8]),
		digP2: le16s(calib[8:10]),
		digP3: le16s(calib[10:12]),
	}
	r.Private = &pressureState{cal: cal}
	return bus.Send(p.address, []byte{0xF4, 0x27}) // normal mode, oversampling x1
}

func (p *Pressure) Poll(r *sensor.Record, bus i2c.BusController) error {
	st := r.Private.(*pressureState)
	raw, err := bus.SendReceive(p.address, []byte{0xF7}, 6)
	if err != nil {
		return err
	}
	rawPressure := int32(raw[0])<<12 | int32(raw[1])<<4 | int32(raw[2])>>4
	rawTemp := int32(raw[3])<<12 | int32(raw[4])<<4 | int32(raw[5])>>4

	temp, tFine := compensateTemperature(rawTemp, st.cal)
	st.cal.tFine = tFine
	pressurePa := compensatePressure(rawPressure, st.cal, tFine)

	r.Values[sensor.Temperature] = sensor.Reading{Value: temp}
	r.Values[sensor.AirPressure] = sensor.Reading{Value: pressurePa / 100.0}
	return nil
}

func (p *Pressure) Dump(r *sensor.Record) string {
	return fmt.Sprintf("temperature=%.2fC pressure=%.2fhPa", r.Values[sensor.Temperature].Value, r.Values[sensor.AirPressure].Value)
}

func compensateTemperature(raw int32, cal calibration) (celsius float64, tFine int32) {
	v1 := (float64(raw)/16384.0 - float64(cal.digT1)/1024.0) * float64(cal.digT2)
	v2 := (float64(raw)/131072.0 - float64(cal.digT1)/8192.0)
	v2 = v2 * v2 * float64(cal.digT3)
	tFine = int32(v1 + v2)
	return (v1 + v2) / 5120.0, tFine
}

func compensatePressure(raw int32, cal calibration, tFine int32) float64 {
	v1 := float64(tFine)/2.0 - 64000.0
	v2 := v1 * v1 * float64(cal.digP3) / 32768.0
	v2 = v2 + v1*float64(cal.digP2)*2.0
	v2 = v2/4.0 + float64(cal.digP1)*65536.0
	if v2 == 0 {
		return 0
	}
	p := 1048576.0 - float64(raw)
	p = (p - v2/4096.0) * 6250.0 / v2
	return p
}

func le16u(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le16s(b []byte) int16  { return int16(le16u(b)) }
