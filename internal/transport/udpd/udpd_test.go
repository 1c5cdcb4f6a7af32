package udpd

import (
	"context"
	"testing"
	"time"

	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/eriksl/esp32-sub000/internal/transport/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenReceiveAndReplyRoundTrip(t *testing.T) {
	srv, err := Listen("[::1]:0", transport.NewQueue())
	require.NoError(t, err)
	defer srv.Close()

	client, err := Listen("[::1]:0", transport.NewQueue())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	_, err = client.conn.WriteTo([]byte("hostname\n"), srv.conn.LocalAddr())
	require.NoError(t, err)

	msg, err := srv.in.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, transport.OriginUDP, msg.Origin)
	assert.False(t, msg.Packetised)
	assert.Equal(t, []byte("hostname\n"), msg.Payload)

	require.NoError(t, srv.Send(transport.Message{Payload: []byte("pong"), Addr: msg.Addr}))

	buf := make([]byte, 64)
	_ = client.conn.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := client.conn.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf[:n]))
}

func TestReceiveDropsIncompletePacketisedDatagram(t *testing.T) {
	srv, err := Listen("[::1]:0", transport.NewQueue())
	require.NoError(t, err)
	defer srv.Close()

	client, err := Listen("[::1]:0", transport.NewQueue())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	wire := packet.Encapsulate(true, []byte("hostname"), nil)
	_, err = client.conn.WriteTo(wire[:packet.HeaderLength], srv.conn.LocalAddr())
	require.NoError(t, err)

	// The UDP transport never reassembles across datagrams: a
	// header-only frame is simply dropped and counted.
	require.Eventually(t, func() bool { return srv.receiveIncomplete == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, srv.in.Len())
}
