// Package udpd implements the unbound IPv6 datagram CLI transport on
// port 24: one recvfrom is one inbound message, no cross-datagram
// reassembly.
package udpd

import (
	"context"
	"net"

	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/eriksl/esp32-sub000/internal/transport/packet"
)

const (
	Port = 24
	// The UDP path never fragments a reply across datagrams: Send
	// writes each reply as one datagram whatever its size, matching
	// the original's no-reassembly contract. OutboundMTU is only the
	// MTU recorded on inbound messages; nothing caps a reply at it.
	OutboundMTU = 1200
)

type sockAddress struct{ addr net.Addr }

func (sockAddress) Origin() transport.Origin { return transport.OriginUDP }

type Transport struct {
	conn             *net.UDPConn
	in               *transport.Queue
	receiveIncomplete int
}

func Listen(addr string, in *transport.Queue) (*Transport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp6", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp6", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Transport{conn: conn, in: in}, nil
}

func (t *Transport) Close() error { return t.conn.Close() }

func (t *Transport) Run(ctx context.Context) error {
	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, raddr, err := t.conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		datagram := append([]byte(nil), buf[:n]...)

		if packet.Valid(datagram) {
			if !packet.Complete(datagram) {
				t.receiveIncomplete++
				continue // partial frame: dropped, no reassembly across datagrams
			}
			_ = t.in.Push(ctx, transport.Message{
				Origin: transport.OriginUDP, MTU: OutboundMTU, Packetised: true,
				Payload: datagram, Addr: sockAddress{addr: raddr},
			})
			continue
		}

		_ = t.in.Push(ctx, transport.Message{
			Origin: transport.OriginUDP, MTU: OutboundMTU, Packetised: false,
			Payload: datagram, Addr: sockAddress{addr: raddr},
		})
	}
}

func (t *Transport) Send(msg transport.Message) error {
	addr, ok := msg.Addr.(sockAddress)
	if !ok {
		return nil
	}
	_, err := t.conn.WriteTo(msg.Payload, addr.addr)
	return err
}
