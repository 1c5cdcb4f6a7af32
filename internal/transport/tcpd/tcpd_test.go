package tcpd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/eriksl/esp32-sub000/internal/transport/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeAccumulatesFragmentedPacket(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	in := transport.NewQueue()
	tr := &Transport{in: in}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		tr.serve(ctx, server)
		close(done)
	}()

	wire := packet.Encapsulate(true, []byte("hostname"), nil)
	require.Greater(t, len(wire), packet.HeaderLength)

	// Write the header and payload as two separate short writes so a
	// single conn.Read cannot possibly return the whole packet.
	_, err := client.Write(wire[:packet.HeaderLength])
	require.NoError(t, err)

	select {
	case <-time.After(100 * time.Millisecond):
	case <-done:
		t.Fatal("serve exited before the full packet arrived")
	}
	assert.Equal(t, 0, in.Len(), "must not deliver on a partial header-only read")

	_, err = client.Write(wire[packet.HeaderLength:])
	require.NoError(t, err)

	msg, err := in.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, transport.OriginTCP, msg.Origin)
	assert.True(t, msg.Packetised)
	assert.Equal(t, wire, msg.Payload)

	cancel()
	client.Close()
	<-done
}

func TestServeHandlesUnframedLineOnNewline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	in := transport.NewQueue()
	tr := &Transport{in: in}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		tr.serve(ctx, server)
		close(done)
	}()

	_, err := client.Write([]byte("hostname\n"))
	require.NoError(t, err)

	msg, err := in.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, transport.OriginTCP, msg.Origin)
	assert.False(t, msg.Packetised)
	assert.Equal(t, []byte("hostname\n"), msg.Payload)

	cancel()
	client.Close()
	<-done
}

func TestSendFragmentsAcrossOutboundMTU(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	tr := &Transport{in: transport.NewQueue()}

	payload := make([]byte, OutboundMTU+10)
	for i := range payload {
		payload[i] = byte(i)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- tr.Send(transport.Message{Payload: payload, Addr: connAddress{conn: server}})
	}()

	buf := make([]byte, len(payload))
	_, err := readFull(client, buf)
	require.NoError(t, err)
	require.NoError(t, <-errc)
	assert.Equal(t, payload, buf)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
