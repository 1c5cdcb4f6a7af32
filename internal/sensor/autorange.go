package sensor

// RangeStep describes one entry of an auto-ranging ladder: the
// opcode(s) to send to select this range, the raw-count thresholds at
// which the poller should step up or down, the raw value that
// indicates overflow, and the linear factor that converts a raw count
// in this range to physical units.
type RangeStep struct {
	Opcodes   []byte
	Up        float64
	Down      float64
	Overflow  float64
	Factor    float64
}

// AutoRanger walks a RangeStep ladder. Scaling adjustments happen
// between measurement cycles: Adjust returns true only when a step was
// taken (the new index is then available from Index), signalling the
// caller that this poll tick must not also report a value.
type AutoRanger struct {
	steps []RangeStep
	index int
}

func NewAutoRanger(steps []RangeStep, start int) *AutoRanger {
	return &AutoRanger{steps: steps, index: start}
}

func (a *AutoRanger) Index() int { return a.index }

func (a *AutoRanger) Current() RangeStep { return a.steps[a.index] }

// Adjust steps the range up or down based on raw, per the boundary
// rule: raw == Up steps up; raw == Down-1 steps down; anything between
// leaves the index unchanged.
func (a *AutoRanger) Adjust(raw float64) (stepped bool) {
	step := a.steps[a.index]
	if raw >= step.Up && a.index < len(a.steps)-1 {
		a.index++
		return true
	}
	if raw < step.Down && a.index > 0 {
		a.index--
		return true
	}
	return false
}

func (a *AutoRanger) Convert(raw float64) float64 {
	return raw * a.steps[a.index].Factor
}
