package transport

import "context"

// SendWorker consumes the outbound queue and hands each message to the
// transport its Origin names, preserving per-origin FIFO order since
// this is the single consumer of that queue.
type SendWorker struct {
	out     *Queue
	senders map[Origin]Sender
}

func NewSendWorker(out *Queue, senders map[Origin]Sender) *SendWorker {
	return &SendWorker{out: out, senders: senders}
}

func (w *SendWorker) Run(ctx context.Context) error {
	for {
		msg, err := w.out.Pop(ctx)
		if err != nil {
			return err
		}
		sender, ok := w.senders[msg.Origin]
		if !ok {
			continue
		}
		_ = sender.Send(msg)
	}
}
