package i2c

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eriksl/esp32-sub000/internal/fault"
)

// Registry owns every compiled-in module's Runtime, guarded by its own
// mutex for structure mutations (module lookup), matching the
// data_mutex/module_mutex split: per-module I/O takes the Runtime's
// own lock, registry-wide listing takes this one.
type Registry struct {
	mu      sync.RWMutex
	modules map[Module]*Runtime
}

func NewRegistry() *Registry {
	return &Registry{modules: map[Module]*Runtime{}}
}

func (r *Registry) AddModule(m Module, rt *Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m] = rt
}

func (r *Registry) Module(m Module) (*Runtime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.modules[m]
	return rt, ok
}

func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.modules))
	for m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Info renders the `i2c-info` text: one line per module with its
// speed, mux presence, and registered slave count.
func (r *Registry) Info() string {
	var b strings.Builder
	for _, m := range r.Modules() {
		rt, _ := r.Module(m)
		fmt.Fprintf(&b, "%s: speed=%dkHz buses=%d slaves=%d\n", m, rt.SpeedKHz(), rt.Buses(), len(rt.Slaves()))
	}
	return b.String()
}

func (r *Registry) SetSpeed(m Module, khz int) error {
	rt, ok := r.Module(m)
	if !ok {
		return fault.Newf(fault.Validation, "unknown i2c module %d", m)
	}
	rt.SetSpeedKHz(khz)
	return nil
}
