package hostclient

import (
	"bufio"
	"context"
	"net"
	"testing"

	"github.com/eriksl/esp32-sub000/internal/transport/packet"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		header := make([]byte, packet.HeaderLength)
		if _, err := fillExactly(bufio.NewReader(conn), header); err != nil {
			return
		}
		length := packet.Length(header)
		body := make([]byte, length-packet.HeaderLength)
		_, _ = conn.Read(body)

		reply := packet.Encapsulate(true, []byte("hostname: esp32-sub000 ()"), nil)
		_, _ = conn.Write(reply)
	}()

	c, err := Dial(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Command("hostname")
	require.NoError(t, err)
	require.Equal(t, "hostname: esp32-sub000 ()", resp)
}
