package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/eriksl/esp32-sub000/internal/fault"
	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/eriksl/esp32-sub000/internal/transport/packet"
	"go.uber.org/zap"
)

// Table holds the ordered, name-and-alias-indexed command set. Order
// is preserved for deterministic `help` listing, grounded on the
// original's statically-ordered command table.
type Table struct {
	ordered []Descriptor
	byName  map[string]*Descriptor
}

func NewTable(descs []Descriptor) *Table {
	t := &Table{ordered: descs, byName: make(map[string]*Descriptor, len(descs)*2)}
	for i := range descs {
		d := &t.ordered[i]
		t.byName[d.Name] = d
		if d.Alias != "" {
			t.byName[d.Alias] = d
		}
	}
	return t
}

func (t *Table) Lookup(name string) (*Descriptor, bool) {
	d, ok := t.byName[name]
	return d, ok
}

func (t *Table) Ordered() []Descriptor { return t.ordered }

// Aliases maps a user-defined alias word to its substitution text,
// separate from the compile-time command-alias shorthand (`?` for
// `help`, `ps` for `process-list`): this is the runtime `alias`
// command's table.
type Aliases struct {
	subst map[string]string
}

func NewAliases() *Aliases { return &Aliases{subst: make(map[string]string)} }

func (a *Aliases) Set(word, substitution string) { a.subst[word] = substitution }

func (a *Aliases) Expand(line string) string {
	fields := splitFields(line)
	if len(fields) == 0 {
		return line
	}
	if sub, ok := a.subst[fields[0]]; ok {
		return sub + line[len(fields[0]):]
	}
	return line
}

// Dispatcher is the single consumer of the inbound queue. It
// processes one message at a time, guaranteeing per-origin FIFO
// response ordering by construction.
type Dispatcher struct {
	table   *Table
	aliases *Aliases
	log     *zap.Logger
	in      *transport.Queue
	out     *transport.Queue
	abort   func(error)
}

func NewDispatcher(table *Table, aliases *Aliases, log *zap.Logger, in, out *transport.Queue) *Dispatcher {
	return &Dispatcher{table: table, aliases: aliases, log: log, in: in, out: out}
}

// SetAbort installs the controlled-abort hook invoked for fault.Hard
// handler errors (system.System.Abort in production). Tests that
// never set one fall back to a bare panic.
func (d *Dispatcher) SetAbort(fn func(error)) { d.abort = fn }

// Run consumes the inbound queue until ctx is cancelled. Every code
// path inside produces exactly one outbound message per inbound
// message, per the propagation rule: handler errors never escape
// unresponded.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		msg, err := d.in.Pop(ctx)
		if err != nil {
			return err
		}
		resp := d.process(msg)
		if err := d.out.Push(ctx, resp); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) process(msg transport.Message) transport.Message {
	line, oob := packet.Decapsulate(msg.Packetised, msg.Payload)
	result, resultOOB := d.execute(msg, string(line), oob)

	wire := packet.Encapsulate(msg.Packetised, []byte(result), resultOOB)
	return transport.Message{
		Origin:     msg.Origin,
		MTU:        msg.MTU,
		Packetised: msg.Packetised,
		Payload:    wire,
		Addr:       msg.Addr,
	}
}

func (d *Dispatcher) execute(msg transport.Message, line string, oob []byte) (string, []byte) {
	if string(line) == "<error>" {
		return "<error>", nil
	}

	expanded := d.aliases.Expand(line)
	fields := splitFields(expanded)
	if len(fields) == 0 {
		return "ERROR: empty command", nil
	}

	name := fields[0]
	desc, ok := d.table.Lookup(name)
	if !ok {
		return fmt.Sprintf("ERROR: unknown command %q", name), nil
	}

	rest := fields[1:]
	params := make([]Value, 0, len(desc.Params))
	for i, spec := range desc.Params {
		if spec.Kind == RawTail {
			tail := rawTail(expanded, name, i)
			if tail == "" && spec.Required {
				return fmt.Sprintf("ERROR: missing required parameter %d", i+1), nil
			}
			v, err := spec.parse(tail)
			if err != nil {
				return "ERROR: " + err.Error(), nil
			}
			params = append(params, v)
			rest = nil
			break
		}

		if i >= len(rest) {
			if spec.Required {
				return fmt.Sprintf("ERROR: missing required parameter %d", i+1), nil
			}
			params = append(params, Value{Kind: spec.Kind})
			continue
		}

		v, err := spec.parse(rest[i])
		if err != nil {
			return "ERROR: " + err.Error(), nil
		}
		params = append(params, v)
	}

	if len(desc.Params) > 0 && desc.Params[len(desc.Params)-1].Kind != RawTail && len(rest) > len(desc.Params) {
		return "ERROR: too many parameters", nil
	}
	if len(desc.Params) == 0 && len(rest) > 0 {
		return "ERROR: too many parameters", nil
	}

	call := &Call{Origin: msg.Origin, MTU: msg.MTU, OOB: oob, Params: params}
	if err := desc.Handler(call); err != nil {
		d.log.Warn("handler error", zap.String("command", name), zap.Error(err))
		if fault.Is(err, fault.Hard) {
			if d.abort != nil {
				d.abort(err)
			}
			panic(err) // controlled abort, per the hard-error propagation rule
		}
		return "ERROR: " + err.Error(), nil
	}
	return call.Result, call.ResultOOB
}

// rawTail returns the remainder of the line after the command name
// and the preceding positional parameters, with exactly one leading
// whitespace run stripped.
func rawTail(line, name string, paramIndex int) string {
	rest := strings.TrimPrefix(line, name)
	fields := strings.Fields(rest)
	cursor := rest
	for i := 0; i < paramIndex && i < len(fields); i++ {
		idx := strings.Index(cursor, fields[i])
		cursor = cursor[idx+len(fields[i]):]
	}
	return strings.TrimLeft(cursor, " \t")
}
