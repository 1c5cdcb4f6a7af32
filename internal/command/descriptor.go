package command

import "github.com/eriksl/esp32-sub000/internal/transport"

// Call is the parsed request handed to a handler function.
type Call struct {
	Origin     transport.Origin
	MTU        int
	OOB        []byte
	Params     []Value
	Result     string
	ResultOOB  []byte
}

// HandlerFunc executes one command. It mutates Call.Result/ResultOOB
// on success. A returned error is turned by the dispatcher into an
// "ERROR: <error>" response, per the original's "errors are delivered
// as responses" rule; a fault.Hard error aborts the process instead.
type HandlerFunc func(*Call) error

// Descriptor is one compile-time command table entry.
type Descriptor struct {
	Name    string
	Alias   string
	Help    string
	Params  []Spec
	Handler HandlerFunc
}
