//go:build !linux

package diag

import "errors"

// ContentionEvent mirrors the Linux build's event shape so callers can
// stay platform-independent.
type ContentionEvent struct {
	Minor   uint32
	RetCode int32
}

type Tracer struct{}

// NewTracer always fails off Linux: the kprobe tracer has no portable
// equivalent.
func NewTracer(sink func(ContentionEvent)) (*Tracer, error) {
	return nil, errors.New("diag: bus contention tracer requires linux")
}

func (t *Tracer) Close() error { return nil }
