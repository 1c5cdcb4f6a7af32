package sensor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eriksl/esp32-sub000/internal/i2c"
	"go.uber.org/zap"
)

// Counters is the per-cycle bookkeeping the original tracks per
// module: probes attempted, devices found/confirmed/disabled, and
// poll outcomes.
type Counters struct {
	SensorsProbed    int
	SensorsFound     int
	SensorsConfirmed int
	SensorsDisabled  int
	PollRun          int
	PollOK           int
	PollError        int
	PollSkipped      int
}

// Table is the shared, mutex-guarded set of live records, read by
// command handlers and written by the poller — the data_mutex of the
// original restated as a Go RWMutex.
type Table struct {
	mu       sync.RWMutex
	records  []*Record
	counters map[i2c.Module]*Counters
}

func NewTable() *Table {
	return &Table{counters: map[i2c.Module]*Counters{}}
}

func (t *Table) add(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, r)
}

func (t *Table) remove(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, rr := range t.records {
		if rr == r {
			t.records = append(t.records[:i], t.records[i+1:]...)
			return
		}
	}
}

func (t *Table) Records() []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Record, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Table) occupied(module i2c.Module, bus int, addr byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.records {
		if r.Slave.Module == module && r.Slave.Bus == bus && r.Slave.Address == addr {
			return true
		}
	}
	return false
}

func (t *Table) counterFor(m i2c.Module) *Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counters[m]
	if !ok {
		c = &Counters{}
		t.counters[m] = c
	}
	return c
}

// Poller owns one (module, bus) set of candidate drivers and runs the
// detect-then-1Hz-poll loop described for the sensor engine.
type Poller struct {
	module     i2c.Module
	bus        int
	runtime    *i2c.Runtime
	candidates []Driver
	table      *Table
	log        *zap.Logger
	interval   time.Duration
}

func NewPoller(module i2c.Module, bus int, runtime *i2c.Runtime, candidates []Driver, table *Table, log *zap.Logger) *Poller {
	return &Poller{module: module, bus: bus, runtime: runtime, candidates: candidates, table: table, log: log, interval: time.Second}
}

// DetectAll runs the fixed-order detection pass once, at startup.
func (p *Poller) DetectAll() {
	counters := p.table.counterFor(p.module)
	ctrl := p.runtime.Controller()
	for _, drv := range p.candidates {
		info := drv.Info()
		if info.NoConstrained && p.module.Constrained() {
			continue // not_considered
		}

		// Candidate addresses come from the driver; the poller probes
		// each one itself (unless ForceDetect), registers the slave at
		// that address, and only then asks the driver's Detect.
		for _, addr := range candidateAddresses(drv) {
			if p.table.occupied(p.module, p.bus, addr) {
				continue // skipped: shadowed by an earlier registration
			}
			counters.SensorsProbed++
			if !info.ForceDetect && !p.runtime.Controller().Probe(addr) {
				continue
			}

			slave := i2c.Slave{Module: p.module, Bus: p.bus, Address: addr, Name: info.Name}
			if err := p.runtime.Register(slave, info.NoConstrained); err != nil {
				continue
			}

			rec := NewRecord(slave, info, drv)
			switch drv.Detect(ctrl, addr) {
			case Found:
				counters.SensorsFound++
				if err := drv.Init(rec, ctrl); err != nil {
					p.runtime.Unregister(slave)
					continue
				}
				rec.State = Found
				counters.SensorsConfirmed++
				p.table.add(rec)
			case Disabled:
				rec.State = Disabled
				counters.SensorsDisabled++
				p.table.add(rec) // occupies the address, blocking later collisions
			case NotFound:
				p.runtime.Unregister(slave)
			}
		}
	}
}

// candidateAddresses is a placeholder seam: a real driver advertises
// the address(es) it might live at. Kept as a free function so
// drivers/ implementations stay pure protocol code.
func candidateAddresses(d Driver) []byte {
	if a, ok := d.(interface{ Addresses() []byte }); ok {
		return a.Addresses()
	}
	return nil
}

// Run cycles Poll across every live record on this (module, bus) at
// the configured interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.cycle()
		}
	}
}

func (p *Poller) cycle() {
	counters := p.table.counterFor(p.module)
	if err := p.runtime.SetBus(p.bus); err != nil {
		counters.PollSkipped++
		return
	}
	for _, rec := range p.table.Records() {
		if rec.Slave.Module != p.module || rec.Slave.Bus != p.bus || rec.State != Found {
			continue
		}
		counters.PollRun++
		if err := rec.Driver.Poll(rec, p.runtime.Controller()); err != nil {
			counters.PollError++
			p.log.Warn("sensor poll failed", zap.String("slave", rec.Slave.Key()), zap.Error(err))
			continue
		}
		counters.PollOK++
	}
}

// DumpText renders the `sensor-dump` response.
func DumpText(t *Table) string {
	var b strings.Builder
	for _, r := range t.Records() {
		fmt.Fprintf(&b, "%s: %s\n", r.Slave.Key(), r.Driver.Dump(r))
	}
	return b.String()
}

// StatsText renders the `sensor-stats` response.
func StatsText(t *Table) string {
	var b strings.Builder
	t.mu.RLock()
	defer t.mu.RUnlock()
	for m, c := range t.counters {
		fmt.Fprintf(&b, "%s: probed=%d found=%d confirmed=%d disabled=%d run=%d ok=%d error=%d skipped=%d\n",
			m, c.SensorsProbed, c.SensorsFound, c.SensorsConfirmed, c.SensorsDisabled, c.PollRun, c.PollOK, c.PollError, c.PollSkipped)
	}
	return b.String()
}
