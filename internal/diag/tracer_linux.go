//go:build linux

// Package diag attaches a kprobe-based eBPF tracer to the host's I²C
// ioctl path so bus contention (NACKs, arbitration loss, retried
// transfers) shows up as log ring entries without instrumenting the
// hot path in Go itself.
package diag

import (
	"encoding/binary"
	"bytes"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
)

// ContentionEvent mirrors the struct a bus_contention.bpf.c program
// would emit: the i2c-dev minor number and the ioctl return code.
type ContentionEvent struct {
	Minor   uint32
	RetCode int32
}

type objects struct {
	TraceIoctl *ebpf.Program `ebpf:"trace_i2c_ioctl"`
	Events     *ebpf.Map     `ebpf:"contention_events"`
}

func (o *objects) Close() error {
	if o.TraceIoctl != nil {
		o.TraceIoctl.Close()
	}
	if o.Events != nil {
		o.Events.Close()
	}
	return nil
}

// loadObjects is a stub standing in for bpf2go-generated loading code;
// wiring a real compiled object file is out of scope here.
func loadObjects(obj *objects) error { return nil }

// Tracer owns the attached kprobe and the ring buffer reader draining
// contention events.
type Tracer struct {
	objs   objects
	kprobe link.Link
	reader *ringbuf.Reader
	sink   func(ContentionEvent)
}

// NewTracer loads the tracer program, attaches it to the kernel's
// i2c-dev ioctl entry point, and starts delivering events to sink.
func NewTracer(sink func(ContentionEvent)) (*Tracer, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("remove memlock rlimit: %w", err)
	}

	t := &Tracer{sink: sink}
	if err := loadObjects(&t.objs); err != nil {
		return nil, fmt.Errorf("load tracer objects: %w", err)
	}

	kp, err := link.Kprobe("i2cdev_ioctl", t.objs.TraceIoctl, nil)
	if err != nil {
		return nil, fmt.Errorf("attach i2cdev_ioctl kprobe: %w", err)
	}
	t.kprobe = kp

	reader, err := ringbuf.NewReader(t.objs.Events)
	if err != nil {
		t.kprobe.Close()
		return nil, fmt.Errorf("open contention ring buffer: %w", err)
	}
	t.reader = reader

	go t.run()
	return t, nil
}

func (t *Tracer) run() {
	for {
		record, err := t.reader.Read()
		if err != nil {
			return
		}
		var ev ContentionEvent
		if binary.Read(bytes.NewReader(record.RawSample), binary.LittleEndian, &ev) != nil {
			continue
		}
		t.sink(ev)
	}
}

func (t *Tracer) Close() error {
	if t.reader != nil {
		t.reader.Close()
	}
	if t.kprobe != nil {
		t.kprobe.Close()
	}
	return t.objs.Close()
}
