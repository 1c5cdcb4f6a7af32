package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSteps() []RangeStep {
	return []RangeStep{
		{Up: 50000, Down: 0, Factor: 1},
		{Up: 50000, Down: 1000, Factor: 1},
		{Up: 1 << 62, Down: 1000, Factor: 1},
	}
}

func TestAutoRangeStepsDownOneBelowDownThreshold(t *testing.T) {
	a := NewAutoRanger(testSteps(), 2)
	stepped := a.Adjust(999)
	assert.True(t, stepped)
	assert.Equal(t, 1, a.Index())
}

func TestAutoRangeStaysOneBelowUpThreshold(t *testing.T) {
	a := NewAutoRanger(testSteps(), 1)
	stepped := a.Adjust(49999)
	assert.False(t, stepped)
	assert.Equal(t, 1, a.Index())
}

func TestAutoRangeStepsUpAtExactThreshold(t *testing.T) {
	a := NewAutoRanger(testSteps(), 1)
	stepped := a.Adjust(50000)
	assert.True(t, stepped)
	assert.Equal(t, 2, a.Index())
}

func TestAutoRangeStaysAtFloorDown(t *testing.T) {
	a := NewAutoRanger(testSteps(), 0)
	stepped := a.Adjust(0)
	assert.False(t, stepped)
	assert.Equal(t, 0, a.Index())
}
