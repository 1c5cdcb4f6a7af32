package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProbeRespondingHost(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer conn.Close()

	go func() {
		buf := make([]byte, 64)
		n, raddr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		require.Equal(t, "info\n", string(buf[:n]))
		_, _ = conn.WriteTo([]byte("hostname=esp32-sub000"), raddr)
	}()

	port := conn.LocalAddr().(*net.UDPAddr).Port
	result := probe("127.0.0.1", port, time.Second)
	require.True(t, result.Responding)
	require.Equal(t, "hostname=esp32-sub000", result.Info)
}

func TestProbeUnreachableHost(t *testing.T) {
	result := probe("127.0.0.1", 1, 50*time.Millisecond)
	require.False(t, result.Responding)
}
