package pattern

import (
	"go-epg/euclid"
)

// DefaultPitch is the note every step plays
const DefaultPitch uint8 = 60

// Timing is the transport resolution patterns are measured in
type Timing struct {
	PPQN         int // ticks per quarter note
	StepsPerBeat int
}

// StepDuration is the length of one step in ticks
func (t Timing) StepDuration() int64 {
	if t.StepsPerBeat <= 0 {
		return 0
	}
	return int64(t.PPQN / t.StepsPerBeat)
}

// Duration is the loop length in ticks of a pattern with steps steps
func (t Timing) Duration(steps int) int64 {
	if t.StepsPerBeat <= 0 {
		return 0
	}
	return int64(steps * t.PPQN / t.StepsPerBeat)
}

// Step is one slot of a pattern, timed relative to the loop start
type Step struct {
	Pitch    uint8
	Velocity uint8 // 100 on a pulse, 0 on a rest
	Start    int64
	Duration int64
}

// Scheduled is a step occurrence placed on the transport timeline
type Scheduled struct {
	Track int
	Tick  int64
	Step  Step
}

// Pattern is a euclidean rhythm plus its playback state
type Pattern struct {
	Steps    int
	Pulses   int
	Rotation int
	Euclid   []bool

	Channel int
	Name    string

	Position int64 // playhead within the loop, in ticks
	Duration int64 // loop length in ticks

	CanvasX, CanvasY float64

	IsOn         bool
	OffPosition  int64
	LastPosition int64
	Selected     bool
}

// clone returns a copy that shares nothing with p
func (p *Pattern) clone() Pattern {
	c := *p
	c.Euclid = append([]bool(nil), p.Euclid...)
	return c
}

// clampSettings enforces 1 <= steps <= 64 and 0 <= pulses, rotation <= steps
func (p *Pattern) clampSettings() {
	p.Steps = max(1, min(euclid.MaxSteps, p.Steps))
	p.Pulses = max(0, min(p.Steps, p.Pulses))
	p.Rotation = max(0, min(p.Steps, p.Rotation))
}

// Spec holds the settings for a new pattern; zero steps/pulses use the defaults 16/4
type Spec struct {
	Steps    int
	Pulses   int
	Rotation int
	Name     string
	Position int64
	CanvasX  float64
	CanvasY  float64
}

// StepEvents turns a bit sequence into timed steps
func StepEvents(seq []bool, t Timing, pitch uint8) []Step {
	d := t.StepDuration()
	steps := make([]Step, len(seq))
	for i, on := range seq {
		var vel uint8
		if on {
			vel = 100
		}
		steps[i] = Step{
			Pitch:    pitch,
			Velocity: vel,
			Start:    int64(i) * d,
			Duration: d,
		}
	}
	return steps
}

// offReached reports whether off lies in the span travelled from last to pos,
// treating pos < last as a wrap past the loop end.
func offReached(last, off, pos int64) bool {
	if last <= pos {
		return last <= off && off <= pos
	}
	return off >= last || off <= pos
}
