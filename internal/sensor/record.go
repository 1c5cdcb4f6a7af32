// Package sensor implements the per-device polling state machine,
// auto-ranging, and the fixed-order detection table described for the
// I²C sensor fleet.
package sensor

import (
	"time"

	"github.com/eriksl/esp32-sub000/internal/i2c"
)

type ValueType int

const (
	VisibleLight ValueType = iota
	Temperature
	Humidity
	AirPressure
)

func (v ValueType) String() string {
	switch v {
	case VisibleLight:
		return "light"
	case Temperature:
		return "temperature"
	case Humidity:
		return "humidity"
	case AirPressure:
		return "pressure"
	default:
		return "unknown"
	}
}

type Reading struct {
	Value float64
	Stamp time.Time
}

type State int

const (
	Found State = iota
	NotFound
	Disabled
)

// Info is the static descriptor every driver provides: which value
// types it can produce, how many significant digits to print, and the
// two flags governing detection.
type Info struct {
	Name           string
	Types          []ValueType
	Precision      int
	ForceDetect    bool
	NoConstrained  bool
}

// Record is the live per-slave sensor entry the poller cycles
// through. Private holds the driver's own scratch state as a tagged
// variant (the concrete Driver knows its own type), never an untyped
// allocation.
type Record struct {
	Slave   i2c.Slave
	Info    Info
	Values  map[ValueType]Reading
	State   State
	Driver  Driver
	Private interface{}
}

func NewRecord(slave i2c.Slave, info Info, driver Driver) *Record {
	return &Record{Slave: slave, Info: info, Values: map[ValueType]Reading{}, Driver: driver, State: NotFound}
}
