package transport

import (
	"context"

	"github.com/eriksl/esp32-sub000/internal/fault"
)

// Capacity is the fixed bound on both the inbound and outbound
// queues, matching the eight-slot FIFOs of the task-based original.
const Capacity = 8

const canary = uint32(0xC0DE1975)

type slot struct {
	headCanary uint32
	msg        Message
	tailCanary uint32
}

// Queue is a bounded FIFO of Messages. Push blocks when full; Pop
// blocks when empty. Both respect context cancellation. When Strict
// is set, Pop asserts the canary values surrounding each slot before
// handing the message back — the development-time use-after-free
// check the original ran with queue canaries enabled.
type Queue struct {
	Strict bool
	ch     chan slot
}

func NewQueue() *Queue {
	return &Queue{ch: make(chan slot, Capacity)}
}

func (q *Queue) Push(ctx context.Context, m Message) error {
	s := slot{headCanary: canary, msg: m, tailCanary: canary}
	select {
	case q.ch <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Pop(ctx context.Context) (Message, error) {
	select {
	case s := <-q.ch:
		if q.Strict && (s.headCanary != canary || s.tailCanary != canary) {
			return Message{}, fault.New(fault.Hard, "queue canary mismatch")
		}
		return s.msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (q *Queue) Len() int { return len(q.ch) }
