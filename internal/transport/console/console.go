// Package console implements the USB-serial line-editing transport:
// an 8-slot, 64-char history ring with emacs-ish control-key editing,
// grounded on the original's console.cpp feature list and the
// read-loop shape of the teacher's cgminer TCP client.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/tarm/serial"
)

const (
	historySlots = 8
	maxLineChars = 64
)

type noAddress struct{}

func (noAddress) Origin() transport.Origin { return transport.OriginConsole }

// Transport drives one tty-shaped ReadWriter (a real *tarm/serial.Port
// in production, any io.ReadWriter in tests).
type Transport struct {
	rw       io.ReadWriter
	hostname func() string
	history  [historySlots]string
	histIdx  int
	buf      []rune
	cursor   int
	slot     int
	out      *transport.Queue
	mtu      int
}

func New(rw io.ReadWriter, hostnameFn func() string, out *transport.Queue) *Transport {
	return &Transport{rw: rw, hostname: hostnameFn, out: out, mtu: 4096}
}

// OpenSerial opens a real USB-serial device node at the given baud
// rate for use as New's io.ReadWriter, the production path when
// esp32-sub000 runs against actual hardware rather than a detached
// process's stdio.
func OpenSerial(device string, baud int) (io.ReadWriter, error) {
	return serial.OpenPort(&serial.Config{Name: device, Baud: baud})
}

func (t *Transport) Send(msg transport.Message) error {
	_, err := t.rw.Write(msg.Payload)
	if err == nil {
		t.printPrompt()
	}
	return err
}

// Run reads raw bytes byte-by-byte off the tty and drives the editor
// state machine described in the CLI transport section: printable
// runes append and echo; BS/DEL erase one; ^W erases a word; ^U clears
// the line; ^R redraws; ^C abandons; ^@ dumps history; ESC [ A/B walks
// history.
func (t *Transport) Run(ctx context.Context) error {
	r := bufio.NewReader(t.rw)
	t.printPrompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b, err := r.ReadByte()
		if err != nil {
			return err
		}

		switch {
		case b == '\r' || b == '\n':
			t.commit(ctx)
		case b == 0x08 || b == 0x7f:
			t.eraseOne()
		case b == 0x17:
			t.eraseWord()
		case b == 0x15:
			t.clearLine()
		case b == 0x12:
			t.redraw()
		case b == 0x03:
			t.abandon()
		case b == 0x00:
			t.printHistory()
		case b == 0x1b:
			t.handleEscape(r)
		case b >= 0x20 && b < 0x7f:
			t.appendRune(rune(b))
		}
	}
}

func (t *Transport) appendRune(r rune) {
	if len(t.buf) >= maxLineChars {
		return
	}
	t.buf = append(t.buf, r)
	fmt.Fprintf(t.rw, "%c", r)
}

func (t *Transport) eraseOne() {
	if len(t.buf) == 0 {
		return
	}
	t.buf = t.buf[:len(t.buf)-1]
	fmt.Fprint(t.rw, "\b \b")
}

func (t *Transport) eraseWord() {
	s := strings.TrimRight(string(t.buf), " ")
	if idx := strings.LastIndexByte(s, ' '); idx >= 0 {
		for len(t.buf) > idx+1 {
			t.eraseOne()
		}
	} else {
		for len(t.buf) > 0 {
			t.eraseOne()
		}
	}
}

func (t *Transport) clearLine() {
	for len(t.buf) > 0 {
		t.eraseOne()
	}
}

func (t *Transport) redraw() {
	t.printPrompt()
	fmt.Fprint(t.rw, string(t.buf))
}

func (t *Transport) abandon() {
	t.buf = nil
	fmt.Fprint(t.rw, "\n")
	t.printPrompt()
}

func (t *Transport) printHistory() {
	for i, h := range t.history {
		fmt.Fprintf(t.rw, "%d: %s\n", i, h)
	}
}

func (t *Transport) handleEscape(r *bufio.Reader) {
	b1, err := r.ReadByte()
	if err != nil || b1 != '[' {
		return
	}
	b2, err := r.ReadByte()
	if err != nil {
		return
	}
	switch b2 {
	case 'A':
		t.histIdx = (t.histIdx - 1 + historySlots) % historySlots
		t.loadHistory()
	case 'B':
		t.histIdx = (t.histIdx + 1) % historySlots
		t.loadHistory()
	}
}

func (t *Transport) loadHistory() {
	t.buf = []rune(t.history[t.histIdx])
	t.redraw()
}

func (t *Transport) commit(ctx context.Context) {
	line := strings.TrimSpace(string(t.buf))
	t.buf = nil
	fmt.Fprint(t.rw, "\n")

	if line == "" {
		t.printPrompt()
		return
	}

	if handled := t.handleBangShorthand(line); handled {
		t.printPrompt()
		return
	}

	t.history[t.slot%historySlots] = line
	t.slot++

	_ = t.out.Push(ctx, transport.Message{
		Origin:     transport.OriginConsole,
		MTU:        t.mtu,
		Packetised: false,
		Payload:    []byte(line + "\n"),
		Addr:       noAddress{},
	})
}

// handleBangShorthand implements `!N` (select history slot N) and
// `!!` (previous) without executing the line.
func (t *Transport) handleBangShorthand(line string) bool {
	if line == "!!" {
		t.histIdx = (t.slot - 1 + historySlots) % historySlots
		t.loadHistory()
		return true
	}
	if strings.HasPrefix(line, "!") {
		if n, err := strconv.Atoi(line[1:]); err == nil && n >= 0 && n < historySlots {
			t.histIdx = n
			t.loadHistory()
			return true
		}
	}
	return false
}

func (t *Transport) printPrompt() {
	fmt.Fprintf(t.rw, "%s [%d]> ", t.hostname(), t.slot%historySlots)
}
