// Package system is the composition root: one System value owns every
// subsystem explicitly as a field, built once by New, replacing the
// per-module package-level singletons the original relied on.
package system

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/eriksl/esp32-sub000/internal/command"
	"github.com/eriksl/esp32-sub000/internal/diag"
	"github.com/eriksl/esp32-sub000/internal/fault"
	"github.com/eriksl/esp32-sub000/internal/i2c"
	"github.com/eriksl/esp32-sub000/internal/logring"
	"github.com/eriksl/esp32-sub000/internal/notify"
	"github.com/eriksl/esp32-sub000/internal/nvstore"
	"github.com/eriksl/esp32-sub000/internal/ota"
	"github.com/eriksl/esp32-sub000/internal/sensor"
	"github.com/eriksl/esp32-sub000/internal/transport"
	"go.uber.org/zap"
)

type componentState struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// System owns the I²C registry, sensor table, config store, OTA
// session, notification controller, log ring, and the inbound and
// outbound queues. The dispatcher and transports are built by the
// caller and run under Spawn. Nothing here is a package-level var;
// every dependent grabs what it needs through this struct.
type System struct {
	Log *zap.Logger

	Config   *nvstore.Store
	I2C      *i2c.Registry
	Sensors  *sensor.Table
	OTA      *ota.Session
	LogRing  *logring.Ring
	Notify   *notify.Controller

	Inbound  *transport.Queue
	Outbound *transport.Queue

	hostname     string
	hostnameDesc string

	mu         sync.Mutex
	components map[string]*componentState

	otaWriter ota.Writer

	diagMu     sync.Mutex
	diagEvents int
	diagLast   diag.ContentionEvent
}

type Config struct {
	Log         *zap.Logger
	ConfigStore *nvstore.Store
	I2C         *i2c.Registry
	Sensors     *sensor.Table
	LogRing     *logring.Ring
	Emitter     notify.Emitter
	OTAWriter   ota.Writer
}

func New(cfg Config) *System {
	s := &System{
		Log:        cfg.Log,
		Config:     cfg.ConfigStore,
		I2C:        cfg.I2C,
		Sensors:    cfg.Sensors,
		OTA:        ota.NewSession(),
		LogRing:    cfg.LogRing,
		Notify:     notify.NewController(cfg.Emitter),
		Inbound:    transport.NewQueue(),
		Outbound:   transport.NewQueue(),
		components: map[string]*componentState{},
		otaWriter:  cfg.OTAWriter,
	}

	if name, ok := s.Config.GetString("hostname"); ok {
		s.hostname = name
	} else {
		s.hostname = "esp32-sub000"
	}
	if desc, ok := s.Config.GetString("hostname_desc"); ok {
		s.hostnameDesc = desc
	}
	return s
}

// Spawn runs fn in its own goroutine under a derived, cancellable
// context and registers it under name for process-list/process-stop.
func (s *System) Spawn(ctx context.Context, name string, fn func(context.Context) error) {
	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.components[name] = &componentState{cancel: cancel, done: done}
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := fn(cctx); err != nil && cctx.Err() == nil {
			s.Log.Error("component exited", zap.String("component", name), zap.Error(err))
		}
	}()
}

func (s *System) ProcessList() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for name, cs := range s.components {
		state := "running"
		select {
		case <-cs.done:
			state = "stopped"
		default:
		}
		fmt.Fprintf(&b, "%s\t%s\n", name, state)
	}
	return b.String()
}

func (s *System) ProcessStop(name string) error {
	s.mu.Lock()
	cs, ok := s.components[name]
	s.mu.Unlock()
	if !ok {
		return fault.Newf(fault.Validation, "no such component: %s", name)
	}
	cs.cancel()
	return nil
}

// --- command.Host implementation ---

func (s *System) Hostname() (string, string) { return s.hostname, s.hostnameDesc }

func (s *System) SetHostname(name, desc string) {
	s.hostname = name
	s.hostnameDesc = desc
	_ = s.Config.SetString("hostname", name)
	_ = s.Config.SetString("hostname_desc", desc)
}

func (s *System) ConfigGetInt(key string) (int64, bool)    { return s.Config.GetInt(key) }
func (s *System) ConfigGetString(key string) (string, bool) { return s.Config.GetString(key) }
func (s *System) ConfigSetInt(key string, v int64) error    { return s.Config.SetInt(key, v) }
func (s *System) ConfigSetString(key, v string) error       { return s.Config.SetString(key, v) }
func (s *System) ConfigErase(key string) error              { return s.Config.Erase(key) }
func (s *System) ConfigEraseWildcard(prefix string) error   { return s.Config.EraseWildcard(prefix) }
func (s *System) ConfigDump() map[string]string             { return s.Config.Dump() }

func (s *System) I2CInfo() string { return s.I2C.Info() }
func (s *System) I2CSetSpeed(module int, khz int) error {
	return s.I2C.SetSpeed(i2c.Module(module), khz)
}

func (s *System) SensorDump() string     { return sensor.DumpText(s.Sensors) }
func (s *System) SensorInfoText() string { return sensor.DumpText(s.Sensors) }
func (s *System) SensorJSON() string     { return sensorJSON(s.Sensors) }
func (s *System) SensorStats() string    { return sensor.StatsText(s.Sensors) }

func (s *System) OTAStart(length int) error {
	return s.OTA.Start(length, s.otaWriter)
}
func (s *System) OTAWrite(data []byte, isChecksum bool) error {
	return s.OTA.Write(data, isChecksum)
}
func (s *System) OTAFinish() (string, error) { return s.OTA.Finish() }
func (s *System) OTACommit(expectedHex string) error {
	return s.OTA.Commit(expectedHex)
}
func (s *System) OTAConfirm() error { return s.OTA.Confirm() }

func (s *System) LogText(n int) string {
	return strings.Join(s.LogRing.Tail(n), "\n")
}
func (s *System) LogClear()               { s.LogRing.Clear() }
func (s *System) LogInfo() string         { return s.LogRing.Info() }
func (s *System) LogSetMonitor(e bool)    { s.LogRing.SetMonitor(e) }

// DiagRecordContention is the sink a diag.Tracer is constructed with:
// every kprobe-observed I²C ioctl failure is tallied and mirrored into
// the log ring so it survives alongside the rest of the device's
// operational history.
func (s *System) DiagRecordContention(ev diag.ContentionEvent) {
	s.diagMu.Lock()
	s.diagEvents++
	s.diagLast = ev
	s.diagMu.Unlock()
	s.LogRing.Log(fmt.Sprintf("i2c bus contention: minor=%d ret=%d", ev.Minor, ev.RetCode))
}

func (s *System) DiagInfo() string {
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	if s.diagEvents == 0 {
		return "contention_events=0"
	}
	return fmt.Sprintf("contention_events=%d last_minor=%d last_ret=%d", s.diagEvents, s.diagLast.Minor, s.diagLast.RetCode)
}

func (s *System) BoardInfo() string {
	return fmt.Sprintf("hostname=%s board=esp32-sub000-host", s.hostname)
}
func (s *System) CLIInfo() string       { return s.ProcessList() }
func (s *System) MemoryInfo() string    { return hostMemoryInfo() }
func (s *System) PartitionInfo() string { return "partitions: factory, ota_0, ota_1, nvs" }

func (s *System) Reset() {
	s.Log.Warn("reset requested")
}

// Abort is the controlled-abort path for fault.Hard errors that
// escape the dispatcher: it logs the cause at Fatal, which flushes
// the zap core and calls os.Exit(1), mirroring the firmware's
// abort-and-reboot behavior on an unrecoverable condition.
func (s *System) Abort(err error) {
	s.Log.Fatal("hard error: aborting", zap.Error(err))
}

var _ command.Host = (*System)(nil)
