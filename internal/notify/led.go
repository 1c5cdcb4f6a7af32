// Package notify drives the addressable notification LED through a
// table of named, four-phase patterns.
package notify

import (
	"context"
	"sync"
	"time"
)

type RGB struct{ R, G, B byte }

type Phase struct {
	DutyShift uint
	HoldMS    int
	Color     RGB
}

func (p Phase) Duty() int { return (1 << p.DutyShift) - 1 }

func (p Phase) Hold() time.Duration {
	ms := p.HoldMS
	if ms == 0 {
		ms = 100
	}
	return time.Duration(ms) * time.Millisecond
}

type Kind int

const (
	Idle Kind = iota
	Associating
	Associated
	IPv4Acquired
	IPv6Acquired
	OTAStart
	OTAProgress
	OTASuccess
	OTAFailure
	BLEConnected
	ConfigReset
	Error
)

var patterns = map[Kind][4]Phase{
	Idle:         {{0, 1000, RGB{0, 0, 0}}, {0, 1000, RGB{0, 0, 0}}, {0, 1000, RGB{0, 0, 0}}, {0, 1000, RGB{0, 0, 0}}},
	Associating:  {{2, 200, RGB{0, 0, 255}}, {0, 200, RGB{0, 0, 0}}, {2, 200, RGB{0, 0, 255}}, {0, 200, RGB{0, 0, 0}}},
	Associated:   {{3, 100, RGB{0, 0, 255}}, {0, 900, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}},
	IPv4Acquired: {{3, 100, RGB{0, 255, 0}}, {0, 900, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}},
	IPv6Acquired: {{3, 100, RGB{0, 255, 255}}, {0, 900, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}},
	OTAStart:     {{4, 150, RGB{255, 255, 0}}, {0, 150, RGB{0, 0, 0}}, {4, 150, RGB{255, 255, 0}}, {0, 150, RGB{0, 0, 0}}},
	OTAProgress:  {{4, 75, RGB{255, 255, 0}}, {0, 75, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}},
	OTASuccess:   {{4, 300, RGB{0, 255, 0}}, {0, 0, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}},
	OTAFailure:   {{4, 150, RGB{255, 0, 0}}, {0, 150, RGB{0, 0, 0}}, {4, 150, RGB{255, 0, 0}}, {0, 150, RGB{0, 0, 0}}},
	BLEConnected: {{3, 100, RGB{128, 0, 255}}, {0, 900, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}},
	ConfigReset:  {{4, 100, RGB{255, 0, 255}}, {0, 100, RGB{0, 0, 0}}, {4, 100, RGB{255, 0, 255}}, {0, 100, RGB{0, 0, 0}}},
	Error:        {{4, 500, RGB{255, 0, 0}}, {0, 500, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}, {0, 0, RGB{0, 0, 0}}},
}

// Emitter is the external collaborator (the physical LED driver) the
// Controller pushes each phase's duty/color to.
type Emitter interface {
	Emit(duty int, color RGB)
}

type Controller struct {
	mu       sync.Mutex
	active   Kind
	pattern  [4]Phase
	emitter  Emitter
	changeCh chan struct{}
}

func NewController(emitter Emitter) *Controller {
	c := &Controller{emitter: emitter, changeCh: make(chan struct{}, 1)}
	c.Notify(Idle)
	return c
}

// Notify swaps the active pattern; the running Run loop cuts the
// current phase's hold short and restarts at phase 0 of the new
// pattern (patterns loop forever until replaced).
func (c *Controller) Notify(kind Kind) {
	c.mu.Lock()
	c.active = kind
	c.pattern = patterns[kind]
	c.mu.Unlock()
	select {
	case c.changeCh <- struct{}{}:
	default:
	}
}

func (c *Controller) Active() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) Run(ctx context.Context) error {
	phaseIdx := 0
	for {
		c.mu.Lock()
		phase := c.pattern[phaseIdx]
		c.mu.Unlock()

		c.emitter.Emit(phase.Duty(), phase.Color)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.changeCh:
			phaseIdx = 0
			continue
		case <-time.After(phase.Hold()):
			phaseIdx = (phaseIdx + 1) % 4
		}
	}
}
