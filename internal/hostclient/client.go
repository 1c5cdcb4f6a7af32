// Package hostclient is the host-side counterpart of the device's CLI
// transports: a thin client that frames a command line, writes it to
// a net.Conn, and reads back the framed response, grounded on the
// request/response shape of the teacher's internal/client/api.go HTTP
// client (retargeted from JSON-over-HTTP to the packet codec).
package hostclient

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/eriksl/esp32-sub000/internal/transport/packet"
)

// Client owns one long-lived connection to a device's TCP CLI port.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// Dial connects to addr (host:port) over TCP.
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn), timeout: 5 * time.Second}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Command sends line framed (as the device expects from its TCP
// transport) and returns the decapsulated response text.
func (c *Client) Command(line string) (string, error) {
	wire := packet.Encapsulate(true, []byte(line), nil)
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", err
	}
	if _, err := c.conn.Write(wire); err != nil {
		return "", fmt.Errorf("write command: %w", err)
	}

	header := make([]byte, packet.HeaderLength)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", err
	}
	if _, err := fillExactly(c.reader, header); err != nil {
		return "", fmt.Errorf("read response header: %w", err)
	}
	length := packet.Length(header)
	if length < packet.HeaderLength {
		return "", fmt.Errorf("bad response header")
	}
	body := make([]byte, length-packet.HeaderLength)
	if _, err := fillExactly(c.reader, body); err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	full := append(header, body...)
	text, _ := packet.Decapsulate(true, full)
	return string(text), nil
}

func fillExactly(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
