// Package i2c models the module/bus/slave registry and the two
// incompatible controller back-ends (main peripheral, ULP restricted
// controller) behind one capability interface.
package i2c

import (
	"fmt"
	"sync"

	"github.com/eriksl/esp32-sub000/internal/fault"
)

type Module int

const (
	Main0 Module = iota
	Main1
	UlpRtc
)

func (m Module) String() string {
	switch m {
	case Main0:
		return "main0"
	case Main1:
		return "main1"
	case UlpRtc:
		return "ulp-rtc"
	default:
		return "unknown"
	}
}

// Constrained reports whether m is the restricted ULP controller,
// which some sensor drivers refuse to register on (no_constrained).
func (m Module) Constrained() bool { return m == UlpRtc }

const muxAddress = 0x70

// BusController is the capability both back-ends satisfy. Unsupported
// operations return an explicit fault.Transient "unsupported" error
// rather than silently emulating, except for the documented mux/probe
// workarounds each implementation applies internally.
type BusController interface {
	Send(addr byte, data []byte) error
	Receive(addr byte, n int) ([]byte, error)
	SendReceive(addr byte, out []byte, n int) ([]byte, error)
	Probe(addr byte) bool
	SetMux(bus int) error
}

// Slave is one registered device address on a bus.
type Slave struct {
	Module  Module
	Bus     int
	Address byte
	Name    string
}

func (s Slave) Key() string { return fmt.Sprintf("%s/%d/0x%02x", s.Module, s.Bus, s.Address) }

// Runtime is the per-module registry state: selected bus cache, speed,
// mux presence, and the registered slaves of each bus.
type Runtime struct {
	mu         sync.Mutex
	module     Module
	controller BusController
	speedKHz   int
	hasMux     bool
	selected   int
	slaves     map[string]Slave // keyed by Slave.Key()
}

func NewRuntime(module Module, controller BusController, speedKHz int) *Runtime {
	return &Runtime{module: module, controller: controller, speedKHz: speedKHz, selected: -1, slaves: map[string]Slave{}}
}

// DetectMux writes 0x00 then 0xFF to address 0x70 and then probes that
// address; if both writes succeed and the probe answers, 8 downstream
// buses become available. The written values are not read back.
func (r *Runtime) DetectMux() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.controller.Send(muxAddress, []byte{0x00}); err != nil {
		r.hasMux = false
		return
	}
	if err := r.controller.Send(muxAddress, []byte{0xff}); err != nil {
		r.hasMux = false
		return
	}
	r.hasMux = r.controller.Probe(muxAddress)
}

func (r *Runtime) Buses() int {
	if r.hasMux {
		return 8
	}
	return 1
}

// SetBus selects bus on the mux if it differs from the cached
// selection and the mux is present; called immediately before every
// I/O on the module.
func (r *Runtime) SetBus(bus int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasMux {
		if bus != 0 {
			return fault.New(fault.Validation, "no mux present, only bus 0 is valid")
		}
		return nil
	}
	if r.selected == bus {
		return nil
	}
	if err := r.controller.SetMux(bus); err != nil {
		return err
	}
	r.selected = bus
	return nil
}

func (r *Runtime) Register(s Slave, noConstrained bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if noConstrained && r.module.Constrained() {
		return fault.New(fault.Validation, "driver refuses constrained module")
	}
	if _, exists := r.slaves[s.Key()]; exists {
		return fault.New(fault.Validation, "slave already registered")
	}
	r.slaves[s.Key()] = s
	return nil
}

func (r *Runtime) Unregister(s Slave) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slaves, s.Key())
}

func (r *Runtime) Slaves() []Slave {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Slave, 0, len(r.slaves))
	for _, s := range r.slaves {
		out = append(out, s)
	}
	return out
}

func (r *Runtime) Controller() BusController { return r.controller }

func (r *Runtime) SpeedKHz() int { return r.speedKHz }

func (r *Runtime) SetSpeedKHz(khz int) { r.mu.Lock(); r.speedKHz = khz; r.mu.Unlock() }
