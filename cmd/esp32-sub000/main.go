// Command esp32-sub000 runs the device-side process: command
// dispatcher, the console, TCP and UDP CLI transports, the I²C sensor
// poller, the config store, notification LED, and log ring. The BLE
// transport is not started by this process.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/eriksl/esp32-sub000/internal/command"
	"github.com/eriksl/esp32-sub000/internal/diag"
	"github.com/eriksl/esp32-sub000/internal/i2c"
	"github.com/eriksl/esp32-sub000/internal/i2c/linuxctrl"
	"github.com/eriksl/esp32-sub000/internal/logring"
	"github.com/eriksl/esp32-sub000/internal/notify"
	"github.com/eriksl/esp32-sub000/internal/nvstore"
	"github.com/eriksl/esp32-sub000/internal/sensor"
	"github.com/eriksl/esp32-sub000/internal/sensor/drivers"
	"github.com/eriksl/esp32-sub000/internal/system"
	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/eriksl/esp32-sub000/internal/transport/console"
	"github.com/eriksl/esp32-sub000/internal/transport/tcpd"
	"github.com/eriksl/esp32-sub000/internal/transport/udpd"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "esp32-sub000.bolt", "path to the persistent config store")
	logPath := flag.String("log-region", "esp32-sub000.logring", "path to the persistent log ring sidecar file")
	i2cDevice := flag.String("i2c-device", "/dev/i2c-1", "Main I2C controller device node")
	tcpAddr := flag.String("tcp-addr", "[::]:24", "TCP CLI listen address")
	udpAddr := flag.String("udp-addr", "[::]:24", "UDP CLI listen address")
	serialDevice := flag.String("serial-device", "", "USB-serial console device node (stdio is used if empty)")
	serialBaud := flag.Int("serial-baud", 115200, "USB-serial console baud rate")
	flag.Parse()

	log, _ := zap.NewProduction()
	defer log.Sync()

	store, err := nvstore.Open(*configPath)
	if err != nil {
		log.Fatal("open config store", zap.Error(err))
	}
	defer store.Close()

	ring, err := logring.OpenFile(*logPath)
	if err != nil {
		log.Fatal("open log region", zap.Error(err))
	}
	defer ring.Close()

	registry := i2c.NewRegistry()
	ctrl, err := linuxctrl.Open(*i2cDevice)
	if err != nil {
		log.Warn("i2c controller unavailable, running without sensors", zap.Error(err))
	} else {
		defer ctrl.Close()
		rt := i2c.NewRuntime(i2c.Main0, ctrl, 100)
		rt.DetectMux()
		registry.AddModule(i2c.Main0, rt)
	}

	sensorTable := sensor.NewTable()

	sys := system.New(system.Config{
		Log:         log,
		ConfigStore: store,
		I2C:         registry,
		Sensors:     sensorTable,
		LogRing:     ring,
		Emitter:     noopEmitter{},
	})

	aliases := command.NewAliases()
	table := command.Build(sys, aliases)
	dispatcher := command.NewDispatcher(table, aliases, log, sys.Inbound, sys.Outbound)
	dispatcher.SetAbort(sys.Abort)

	tracer, err := diag.NewTracer(sys.DiagRecordContention)
	if err != nil {
		log.Warn("bus contention tracer unavailable", zap.Error(err))
	} else {
		defer tracer.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sys.Spawn(ctx, "dispatcher", dispatcher.Run)
	sys.Spawn(ctx, "notify-led", sys.Notify.Run)

	if rt, ok := registry.Module(i2c.Main0); ok {
		candidates := []sensor.Driver{
			drivers.NewLight(0x23),
			drivers.NewTemperature(0x48),
			drivers.NewHumidity(0x44),
			drivers.NewPressure(0x76),
		}
		poller := sensor.NewPoller(i2c.Main0, 0, rt, candidates, sensorTable, log)
		poller.DetectAll()
		sys.Spawn(ctx, "sensor-poller-main0-0", poller.Run)
	}

	senders := map[transport.Origin]transport.Sender{}

	if tcpTransport, err := tcpd.Listen(*tcpAddr, sys.Inbound); err != nil {
		log.Error("tcp listen failed", zap.Error(err))
	} else {
		senders[transport.OriginTCP] = tcpTransport
		sys.Spawn(ctx, "tcp", tcpTransport.Run)
	}

	if udpTransport, err := udpd.Listen(*udpAddr, sys.Inbound); err != nil {
		log.Error("udp listen failed", zap.Error(err))
	} else {
		senders[transport.OriginUDP] = udpTransport
		sys.Spawn(ctx, "udp", udpTransport.Run)
	}

	var consoleRW io.ReadWriter = stdioReadWriter{}
	if *serialDevice != "" {
		port, err := console.OpenSerial(*serialDevice, *serialBaud)
		if err != nil {
			log.Fatal("open serial console", zap.Error(err))
		}
		consoleRW = port
	}
	consoleTransport := console.New(consoleRW, func() string {
		name, _ := sys.Hostname()
		return name
	}, sys.Inbound)
	senders[transport.OriginConsole] = consoleTransport
	sys.Spawn(ctx, "console", consoleTransport.Run)

	sendWorker := transport.NewSendWorker(sys.Outbound, senders)
	sys.Spawn(ctx, "send-worker", sendWorker.Run)

	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "shutting down")
}

type noopEmitter struct{}

func (noopEmitter) Emit(duty int, color notify.RGB) {}

// stdioReadWriter adapts the process's stdin/stdout to the io.ReadWriter
// the console transport expects, standing in for a real tarm/serial
// port when esp32-sub000 runs detached from an actual USB-serial link.
type stdioReadWriter struct{}

func (stdioReadWriter) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioReadWriter) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
