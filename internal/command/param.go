package command

import (
	"strconv"
	"strings"

	"github.com/eriksl/esp32-sub000/internal/fault"
)

// Kind enumerates the parameter value shapes a CommandDescriptor can
// declare, mirroring the original's ParameterSpec.kind.
type Kind int

const (
	UnsignedInt Kind = iota
	SignedInt
	Float
	Word
	RawTail
)

// Spec declares one positional parameter of a command.
type Spec struct {
	Kind        Kind
	Required    bool
	Base        int // integer radix, 0 = auto (strconv base 0)
	LowerBound  *float64
	UpperBound  *float64
	Description string
}

// Value holds one parsed parameter, tagged by kind so handlers can
// retrieve the concrete type without an untyped interface{} cast at
// every call site.
type Value struct {
	Kind   Kind
	Uint   uint64
	Int    int64
	Float  float64
	String string
}

func (s Spec) parse(raw string) (Value, error) {
	switch s.Kind {
	case UnsignedInt:
		n, err := strconv.ParseUint(raw, s.Base, 64)
		if err != nil {
			return Value{}, fault.Newf(fault.Validation, "invalid unsigned value: %s", raw)
		}
		if err := s.checkBounds(float64(n), raw); err != nil {
			return Value{}, err
		}
		return Value{Kind: s.Kind, Uint: n}, nil
	case SignedInt:
		n, err := strconv.ParseInt(raw, s.Base, 64)
		if err != nil {
			return Value{}, fault.Newf(fault.Validation, "invalid signed value: %s", raw)
		}
		if err := s.checkBounds(float64(n), raw); err != nil {
			return Value{}, err
		}
		return Value{Kind: s.Kind, Int: n}, nil
	case Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fault.Newf(fault.Validation, "invalid float value: %s", raw)
		}
		if err := s.checkBounds(f, raw); err != nil {
			return Value{}, err
		}
		return Value{Kind: s.Kind, Float: f}, nil
	case Word, RawTail:
		if err := s.checkBounds(float64(len(raw)), raw); err != nil {
			return Value{}, err
		}
		return Value{Kind: s.Kind, String: raw}, nil
	default:
		return Value{}, fault.New(fault.Hard, "unknown parameter kind")
	}
}

func (s Spec) checkBounds(v float64, raw string) error {
	if s.LowerBound != nil && v < *s.LowerBound {
		return fault.Newf(fault.Validation, "invalid value: %s, smaller than lower bound: %v", raw, *s.LowerBound)
	}
	if s.UpperBound != nil && v > *s.UpperBound {
		return fault.Newf(fault.Validation, "invalid value: %s, larger than upper bound: %v", raw, *s.UpperBound)
	}
	return nil
}

func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '\t' })
}
