package command

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/eriksl/esp32-sub000/internal/transport/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTable() *Table {
	return NewTable([]Descriptor{
		{
			Name: "help",
			Alias: "?",
			Help: "list commands",
			Handler: func(c *Call) error {
				c.Result = "HELP\nhelp\t?\tlist commands\nhostname\t\tshow or set hostname\n"
				return nil
			},
		},
		{
			Name: "hostname",
			Help: "show or set hostname",
			Params: []Spec{
				{Kind: Word, Required: false},
				{Kind: Word, Required: false},
			},
			Handler: func(c *Call) error {
				if c.Params[0].String == "" {
					c.Result = "hostname: current"
					return nil
				}
				desc := strings.ReplaceAll(c.Params[1].String, "_", " ")
				c.Result = fmt.Sprintf("hostname: %s (%s)", c.Params[0].String, desc)
				return nil
			},
		},
	})
}

func runOnce(t *testing.T, msg transport.Message) transport.Message {
	t.Helper()
	in := transport.NewQueue()
	out := transport.NewQueue()
	d := NewDispatcher(testTable(), NewAliases(), zap.NewNop(), in, out)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, in.Push(ctx, msg))

	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	resp, err := out.Pop(ctx)
	require.NoError(t, err)
	return resp
}

func TestUnframedHelp(t *testing.T) {
	resp := runOnce(t, transport.Message{Origin: transport.OriginConsole, Packetised: false, Payload: []byte("help\n")})
	payload, _ := packet.Decapsulate(false, resp.Payload)
	assert.True(t, strings.HasPrefix(string(payload), "HELP\n"))
}

func TestFramedHostnameSetAndGet(t *testing.T) {
	req := packet.Encapsulate(true, []byte("hostname test-host A_Board"), nil)
	resp := runOnce(t, transport.Message{Origin: transport.OriginTCP, Packetised: true, Payload: req})
	payload, _ := packet.Decapsulate(true, resp.Payload)
	assert.Equal(t, "hostname: test-host (A Board)", string(payload))
}

func TestUnknownCommand(t *testing.T) {
	resp := runOnce(t, transport.Message{Origin: transport.OriginConsole, Packetised: false, Payload: []byte("bogus\n")})
	payload, _ := packet.Decapsulate(false, resp.Payload)
	assert.Equal(t, `ERROR: unknown command "bogus"`, string(payload))
}

func TestOneOutboundPerInbound(t *testing.T) {
	in := transport.NewQueue()
	out := transport.NewQueue()
	d := NewDispatcher(testTable(), NewAliases(), zap.NewNop(), in, out)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() { _ = d.Run(ctx) }()

	for i := 0; i < 5; i++ {
		require.NoError(t, in.Push(ctx, transport.Message{Origin: transport.OriginUDP, Payload: []byte("help\n")}))
	}
	for i := 0; i < 5; i++ {
		_, err := out.Pop(ctx)
		require.NoError(t, err)
	}
}
