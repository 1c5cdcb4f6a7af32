package command

import (
	"fmt"
	"strings"

	"github.com/eriksl/esp32-sub000/internal/fault"
)

func bound(f float64) *float64 { return &f }

// Build assembles the static, compile-time command table. Order is
// the order `help` lists commands in, matching the original's
// deterministic listing guarantee.
func Build(h Host, aliases *Aliases) *Table {
	descs := []Descriptor{
		{Name: "help", Alias: "?", Help: "list commands", Handler: helpHandler(nil)},
		{Name: "hostname", Help: "show or set hostname",
			Params: []Spec{{Kind: Word, UpperBound: bound(63)}, {Kind: Word, UpperBound: bound(63)}},
			Handler: func(c *Call) error {
				if c.Params[0].String == "" {
					name, desc := h.Hostname()
					c.Result = fmt.Sprintf("hostname: %s (%s)", name, desc)
					return nil
				}
				desc := strings.ReplaceAll(c.Params[1].String, "_", " ")
				h.SetHostname(c.Params[0].String, desc)
				c.Result = fmt.Sprintf("hostname: %s (%s)", c.Params[0].String, desc)
				return nil
			}},
		{Name: "alias", Help: "define a command alias",
			Params: []Spec{{Kind: Word, Required: true}, {Kind: RawTail}},
			Handler: func(c *Call) error {
				aliases.Set(c.Params[0].String, c.Params[1].String)
				c.Result = fmt.Sprintf("alias: %s -> %s", c.Params[0].String, c.Params[1].String)
				return nil
			}},

		{Name: "config-show", Help: "dump config store", Handler: func(c *Call) error {
			c.Result = configDumpText(h)
			return nil
		}},
		{Name: "config-dump", Help: "dump config store", Handler: func(c *Call) error {
			c.Result = configDumpText(h)
			return nil
		}},
		{Name: "config-info", Help: "config store summary", Handler: func(c *Call) error {
			c.Result = fmt.Sprintf("config: %d keys", len(h.ConfigDump()))
			return nil
		}},
		{Name: "config-erase", Help: "erase a config key",
			Params: []Spec{{Kind: Word, Required: true}},
			Handler: func(c *Call) error {
				if err := h.ConfigErase(c.Params[0].String); err != nil {
					return err
				}
				c.Result = "OK"
				return nil
			}},
		{Name: "config-set-int", Help: "set a signed config key",
			Params: []Spec{{Kind: Word, Required: true}, {Kind: SignedInt, Required: true}},
			Handler: func(c *Call) error {
				if err := h.ConfigSetInt(c.Params[0].String, c.Params[1].Int); err != nil {
					return err
				}
				c.Result = "OK"
				return nil
			}},
		{Name: "config-set-uint", Help: "set an unsigned config key",
			Params: []Spec{{Kind: Word, Required: true}, {Kind: UnsignedInt, Required: true}},
			Handler: func(c *Call) error {
				if err := h.ConfigSetInt(c.Params[0].String, int64(c.Params[1].Uint)); err != nil {
					return err
				}
				c.Result = "OK"
				return nil
			}},
		{Name: "config-set-string", Help: "set a string config key",
			Params: []Spec{{Kind: Word, Required: true}, {Kind: RawTail, UpperBound: bound(63)}},
			Handler: func(c *Call) error {
				if err := h.ConfigSetString(c.Params[0].String, c.Params[1].String); err != nil {
					return err
				}
				c.Result = "OK"
				return nil
			}},

		{Name: "i2c-info", Help: "dump i2c bus/device registry", Handler: func(c *Call) error {
			c.Result = h.I2CInfo()
			return nil
		}},
		{Name: "i2c-speed", Help: "set i2c bus speed",
			Params: []Spec{{Kind: UnsignedInt, Required: true}, {Kind: UnsignedInt, Required: true, LowerBound: bound(1), UpperBound: bound(1000)}},
			Handler: func(c *Call) error {
				if err := h.I2CSetSpeed(int(c.Params[0].Uint), int(c.Params[1].Uint)); err != nil {
					return err
				}
				c.Result = "OK"
				return nil
			}},

		{Name: "sensor-dump", Help: "dump raw sensor values", Handler: func(c *Call) error { c.Result = h.SensorDump(); return nil }},
		{Name: "sensor-info", Help: "dump sensor registry", Handler: func(c *Call) error { c.Result = h.SensorInfoText(); return nil }},
		{Name: "sensor-json", Help: "dump sensor values as JSON", Handler: func(c *Call) error { c.Result = h.SensorJSON(); return nil }},
		{Name: "sensor-stats", Help: "dump sensor poll counters", Handler: func(c *Call) error { c.Result = h.SensorStats(); return nil }},

		{Name: "ota-start", Help: "begin an OTA session",
			Params: []Spec{{Kind: UnsignedInt, Required: true}},
			Handler: func(c *Call) error {
				if err := h.OTAStart(int(c.Params[0].Uint)); err != nil {
					return err
				}
				c.Result = "OK"
				return nil
			}},
		{Name: "ota-write", Help: "write one OTA chunk",
			Params: []Spec{{Kind: UnsignedInt, Required: true}, {Kind: UnsignedInt, Required: true, LowerBound: bound(0), UpperBound: bound(1)}},
			Handler: func(c *Call) error {
				declared := int(c.Params[0].Uint)
				if declared != len(c.OOB) {
					return fault.Newf(fault.Validation, "chunk length %d does not match oob length %d", declared, len(c.OOB))
				}
				if err := h.OTAWrite(c.OOB, c.Params[1].Uint == 1); err != nil {
					return err
				}
				c.Result = "OK"
				return nil
			}},
		{Name: "ota-finish", Help: "finalize OTA write and hash", Handler: func(c *Call) error {
			hash, err := h.OTAFinish()
			if err != nil {
				return err
			}
			c.Result = hash
			return nil
		}},
		{Name: "ota-commit", Help: "verify hash and mark boot partition",
			Params: []Spec{{Kind: Word, Required: true}},
			Handler: func(c *Call) error {
				if err := h.OTACommit(c.Params[0].String); err != nil {
					return err
				}
				c.Result = "OK"
				return nil
			}},
		{Name: "ota-confirm", Help: "cancel rollback after reboot", Handler: func(c *Call) error {
			if err := h.OTAConfirm(); err != nil {
				return err
			}
			c.Result = "OK"
			return nil
		}},

		{Name: "log", Help: "print recent log entries",
			Params: []Spec{{Kind: UnsignedInt, LowerBound: bound(0), UpperBound: bound(62)}},
			Handler: func(c *Call) error {
				n := 62
				if c.Params[0].Uint != 0 {
					n = int(c.Params[0].Uint)
				}
				c.Result = h.LogText(n)
				return nil
			}},
		{Name: "log-clear", Help: "clear the log ring", Handler: func(c *Call) error { h.LogClear(); c.Result = "OK"; return nil }},
		{Name: "log-info", Help: "log ring cursors", Handler: func(c *Call) error { c.Result = h.LogInfo(); return nil }},
		{Name: "log-monitor", Help: "toggle console log echo",
			Params: []Spec{{Kind: UnsignedInt, Required: true, LowerBound: bound(0), UpperBound: bound(1)}},
			Handler: func(c *Call) error {
				h.LogSetMonitor(c.Params[0].Uint == 1)
				c.Result = "OK"
				return nil
			}},

		{Name: "process-list", Alias: "ps", Help: "list running components", Handler: func(c *Call) error { c.Result = h.ProcessList(); return nil }},
		{Name: "process-stop", Alias: "kill", Help: "stop a component",
			Params: []Spec{{Kind: Word, Required: true}},
			Handler: func(c *Call) error {
				if err := h.ProcessStop(c.Params[0].String); err != nil {
					return err
				}
				c.Result = "OK"
				return nil
			}},

		{Name: "info", Help: "general device info", Handler: func(c *Call) error { c.Result = h.BoardInfo(); return nil }},
		{Name: "info-board", Help: "board identification", Handler: func(c *Call) error { c.Result = h.BoardInfo(); return nil }},
		{Name: "info-cli", Help: "CLI transport stats", Handler: func(c *Call) error { c.Result = h.CLIInfo(); return nil }},
		{Name: "info-memory", Help: "heap/memory stats", Handler: func(c *Call) error { c.Result = h.MemoryInfo(); return nil }},
		{Name: "info-partitions", Help: "flash partition table", Handler: func(c *Call) error { c.Result = h.PartitionInfo(); return nil }},
		{Name: "diag-bus", Help: "i2c bus contention counters (kprobe tracer)", Handler: func(c *Call) error { c.Result = h.DiagInfo(); return nil }},

		{Name: "reset", Help: "reboot the device", Handler: func(c *Call) error { c.Result = "OK"; h.Reset(); return nil }},
		{Name: "run", Help: "run a stored command script",
			Params: []Spec{{Kind: RawTail}},
			Handler: func(c *Call) error { c.Result = "ERROR: scripting not available on this build"; return nil }},
		{Name: "write", Help: "raw diagnostic write",
			Params: []Spec{{Kind: RawTail}},
			Handler: func(c *Call) error { c.Result = "OK"; return nil }},

		// Named but out-of-scope collaborators (spec.md §1): display
		// paging/rendering, filesystem, low-level IO register access,
		// Wi-Fi/BLE stack control. These must still be recognized by
		// name and validate their parameters; the actual peripheral
		// work is an external collaborator's job.
		{Name: "bt-info", Help: "bluetooth radio info", Handler: stub("bt-info")},
		{Name: "console-info", Help: "console transport stats", Handler: stub("console-info")},
		{Name: "display-brightness", Help: "set display brightness 0..100",
			Params: []Spec{{Kind: UnsignedInt, Required: true, LowerBound: bound(0), UpperBound: bound(100)}},
			Handler: stub("display-brightness")},
		{Name: "display-configure", Help: "configure display", Params: []Spec{{Kind: RawTail}}, Handler: stub("display-configure")},
		{Name: "display-erase", Help: "erase display", Handler: stub("display-erase")},
		{Name: "display-info", Help: "display capabilities", Handler: stub("display-info")},
		{Name: "display-page-add-text", Help: "add a text page", Params: []Spec{{Kind: RawTail}}, Handler: stub("display-page-add-text")},
		{Name: "display-page-add-image", Help: "add an image page", Params: []Spec{{Kind: RawTail}}, Handler: stub("display-page-add-image")},
		{Name: "display-page-remove", Help: "remove a page",
			Params: []Spec{{Kind: UnsignedInt, Required: true}}, Handler: stub("display-page-remove")},
		{Name: "fs-read", Help: "read a file",
			Params: []Spec{{Kind: Word, Required: true, LowerBound: bound(1), UpperBound: bound(64)}, {Kind: UnsignedInt}, {Kind: UnsignedInt, LowerBound: bound(0), UpperBound: bound(4096)}},
			Handler: stub("fs-read")},
		{Name: "fs-checksum", Help: "checksum a file", Params: []Spec{{Kind: Word, Required: true}}, Handler: stub("fs-checksum")},
		{Name: "fs-erase", Help: "delete a file", Params: []Spec{{Kind: Word, Required: true}}, Handler: stub("fs-erase")},
		{Name: "fs-format", Help: "format the filesystem", Handler: stub("fs-format")},
		{Name: "fs-info", Help: "filesystem usage", Handler: stub("fs-info")},
		{Name: "fs-list", Help: "list files", Handler: stub("fs-list")},
		{Name: "fs-write", Help: "write a file", Params: []Spec{{Kind: Word, Required: true}}, Handler: stub("fs-write")},
		{Name: "io-dump", Help: "dump IO registers", Handler: stub("io-dump")},
		{Name: "io-read", Help: "read an IO register", Params: []Spec{{Kind: UnsignedInt, Required: true, Base: 16}}, Handler: stub("io-read")},
		{Name: "io-stats", Help: "IO subsystem stats", Handler: stub("io-stats")},
		{Name: "io-write", Help: "write an IO register",
			Params: []Spec{{Kind: UnsignedInt, Required: true, Base: 16}, {Kind: UnsignedInt, Required: true, Base: 16}}, Handler: stub("io-write")},
		{Name: "ipv6-slaac", Help: "enable/disable SLAAC", Params: []Spec{{Kind: UnsignedInt, LowerBound: bound(0), UpperBound: bound(1)}}, Handler: stub("ipv6-slaac")},
		{Name: "ipv6-static", Help: "set a static IPv6 address", Params: []Spec{{Kind: Word, Required: true}}, Handler: stub("ipv6-static")},
		{Name: "wlan-client-config", Help: "set wlan client ssid/password",
			Params: []Spec{{Kind: Word, Required: true}, {Kind: Word}}, Handler: stub("wlan-client-config")},
		{Name: "wlan-info", Help: "wlan association info", Handler: stub("wlan-info")},
		{Name: "wlan-ip-info", Help: "wlan IP configuration", Handler: stub("wlan-ip-info")},
	}

	t := NewTable(descs)
	// help needs the fully-built table to list every command, so wire
	// it after construction.
	for i := range t.ordered {
		if t.ordered[i].Name == "help" {
			t.ordered[i].Handler = helpHandler(t)
			t.byName["help"] = &t.ordered[i]
			t.byName["?"] = &t.ordered[i]
		}
	}
	return t
}

func stub(name string) HandlerFunc {
	return func(c *Call) error {
		c.Result = fmt.Sprintf("%s: not available (external collaborator)", name)
		return nil
	}
}

func helpHandler(t *Table) HandlerFunc {
	return func(c *Call) error {
		var b strings.Builder
		b.WriteString("HELP\n")
		if t != nil {
			for _, d := range t.Ordered() {
				fmt.Fprintf(&b, "%s\t%s\t%s\n", d.Name, d.Alias, d.Help)
			}
		}
		c.Result = b.String()
		return nil
	}
}

func configDumpText(h Host) string {
	dump := h.ConfigDump()
	keys := make([]string, 0, len(dump))
	for k := range dump {
		keys = append(keys, k)
	}
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %s\n", k, dump[k])
	}
	return b.String()
}
