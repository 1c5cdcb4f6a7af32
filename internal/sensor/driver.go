package sensor

import "github.com/eriksl/esp32-sub000/internal/i2c"

// Phase is the per-record measurement state machine: a single poll
// tick either measures or performs an auto-range adjustment, never
// both in the same tick.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseReset
	PhaseReady
	PhaseMeasuring
	PhaseFinished
)

// Driver is the capability every physical sensor implements,
// replacing the function-pointer-plus-void* private state shape with
// one Go interface per device class. A Record's Private field holds
// whatever concrete state a Driver instance needs between calls.
type Driver interface {
	Info() Info
	Detect(bus i2c.BusController, addr byte) State
	Init(r *Record, bus i2c.BusController) error
	Poll(r *Record, bus i2c.BusController) error
	Dump(r *Record) string
}
