package console

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/eriksl/esp32-sub000/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeRW is an io.ReadWriter over an in-memory byte stream: writes go
// through Run's stdin half, echoed output lands in out.
type pipeRW struct {
	mu  sync.Mutex
	in  *bytes.Buffer
	out bytes.Buffer
}

func (p *pipeRW) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.in.Len() == 0 {
		return 0, io.EOF
	}
	return p.in.Read(b)
}

func (p *pipeRW) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func runLine(t *testing.T, line string) (*transport.Queue, *pipeRW) {
	t.Helper()
	rw := &pipeRW{in: bytes.NewBufferString(line)}
	out := transport.NewQueue()
	tr := New(rw, func() string { return "esp32-sub000" }, out)
	err := tr.Run(context.Background())
	require.ErrorIs(t, err, io.EOF)
	return out, rw
}

func TestCommitPushesLineAndEchoesPrompt(t *testing.T) {
	out, rw := runLine(t, "hostname\r")

	require.Equal(t, 1, out.Len())
	msg, err := out.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, transport.OriginConsole, msg.Origin)
	assert.False(t, msg.Packetised)
	assert.Equal(t, "hostname\n", string(msg.Payload))
	assert.Contains(t, rw.out.String(), "esp32-sub000")
}

func TestEraseOneRemovesLastRune(t *testing.T) {
	// "abc" then backspace then enter commits "ab".
	out, _ := runLine(t, "abc\b\r")

	require.Equal(t, 1, out.Len())
	msg, err := out.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ab\n", string(msg.Payload))
}

func TestBlankLineIsNotCommitted(t *testing.T) {
	out, _ := runLine(t, "\r")
	assert.Equal(t, 0, out.Len())
}

func TestHistoryBangShorthandDoesNotCommit(t *testing.T) {
	out, _ := runLine(t, "hostname\r!0\r")

	// "hostname" commits once; "!0" re-selects history slot 0 into the
	// edit buffer without emitting a second command on its own.
	require.Equal(t, 1, out.Len())
	msg, err := out.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hostname\n", string(msg.Payload))
}
