package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordEmitter struct {
	duties []int
	colors []RGB
}

func (r *recordEmitter) Emit(duty int, color RGB) {
	r.duties = append(r.duties, duty)
	r.colors = append(r.colors, color)
}

func TestNotifySwapsPattern(t *testing.T) {
	e := &recordEmitter{}
	c := NewController(e)
	assert.Equal(t, Idle, c.Active())
	c.Notify(OTAStart)
	assert.Equal(t, OTAStart, c.Active())
}

func TestRunEmitsPhases(t *testing.T) {
	e := &recordEmitter{}
	c := NewController(e)
	c.Notify(OTASuccess)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	require.NotEmpty(t, e.duties)
}
