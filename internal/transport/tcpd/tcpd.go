// Package tcpd implements the single-connection-at-a-time TCP CLI
// transport on port 24, grounded on the teacher's cgminer_client.go
// read-until-short-read loop shape, retargeted to the 24-byte packet
// header instead of a null-terminated JSON payload.
package tcpd

import (
	"context"
	"net"
	"time"

	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/eriksl/esp32-sub000/internal/transport/packet"
)

const (
	Port       = 24
	OutboundMTU = 16 * 1024
	pollTimeout = time.Second
)

type connAddress struct{ conn net.Conn }

func (connAddress) Origin() transport.Origin { return transport.OriginTCP }

type Transport struct {
	listener net.Listener
	in       *transport.Queue
	sendErrors int
}

func Listen(addr string, in *transport.Queue) (*Transport, error) {
	l, err := net.Listen("tcp6", addr)
	if err != nil {
		return nil, err
	}
	return &Transport{listener: l, in: in}, nil
}

func (t *Transport) Close() error { return t.listener.Close() }

// Run accepts one connection at a time, as the original's single
// listening socket does: each connection is served to completion
// before the next Accept, so a new connection waits until the current
// one ends.
func (t *Transport) Run(ctx context.Context) error {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return err
		}
		t.serve(ctx, conn)
	}
}

func (t *Transport) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(pollTimeout))
		n, err := conn.Read(tmp)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		buf = append(buf, tmp[:n]...)

		if packet.Valid(buf) {
			if !packet.Complete(buf) {
				continue // keep reading up to the declared length
			}
			_ = t.in.Push(ctx, transport.Message{
				Origin: transport.OriginTCP, MTU: OutboundMTU, Packetised: true,
				Payload: append([]byte(nil), buf...), Addr: connAddress{conn: conn},
			})
			buf = buf[:0]
			continue
		}

		if n := indexByte(buf, '\n'); n >= 0 {
			_ = t.in.Push(ctx, transport.Message{
				Origin: transport.OriginTCP, MTU: OutboundMTU, Packetised: false,
				Payload: append([]byte(nil), buf[:n+1]...), Addr: connAddress{conn: conn},
			})
			buf = buf[n+1:]
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// Send fragments the outbound payload into ≤16KiB chunks and writes
// each in turn; any write error terminates the connection.
func (t *Transport) Send(msg transport.Message) error {
	addr, ok := msg.Addr.(connAddress)
	if !ok {
		return nil
	}
	payload := msg.Payload
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > OutboundMTU {
			chunk = chunk[:OutboundMTU]
		}
		if _, err := addr.conn.Write(chunk); err != nil {
			t.sendErrors++
			_ = addr.conn.Close()
			return err
		}
		payload = payload[len(chunk):]
	}
	return nil
}
