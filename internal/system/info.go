package system

import (
	"fmt"
	"strings"

	"github.com/eriksl/esp32-sub000/internal/sensor"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostMemoryInfo answers `info-memory` with the host's system-wide
// memory totals as the closest available analogue to the original's heap/psram
// counters, grounded on the teacher's gopsutil usage in its own info
// reporting surface.
func hostMemoryInfo() string {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return "memory: unavailable"
	}
	return fmt.Sprintf("memory: total=%d used=%d free=%d percent=%.1f%%", vm.Total, vm.Used, vm.Free, vm.UsedPercent)
}

func sensorJSON(t *sensor.Table) string {
	var b strings.Builder
	b.WriteString("[")
	for i, r := range t.Records() {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "{%q:%q,%q:%q}", "slave", r.Slave.Key(), "values", r.Driver.Dump(r))
	}
	b.WriteString("]")
	return b.String()
}
