// Package param holds processor parameters that UI edits and MIDI remote control both write to.
package param

import (
	"math"

	"go-epg/remote"
)

// Spec describes a parameter
type Spec struct {
	Key          string
	Label        string
	Min, Max     int
	Value        int
	Controllable bool // may be bound to a MIDI CC
}

// Param is an integer parameter with a [Min,Max] range.
type Param struct {
	spec  Spec
	value int

	// OnChange runs after the value changed, with the clamped new value
	OnChange func(p *Param, value int)

	remoteState remote.State
	remoteData  remote.Binding
}

// New creates a parameter, clamping the initial value into range
func New(spec Spec) *Param {
	if spec.Max < spec.Min {
		spec.Max = spec.Min
	}
	p := &Param{spec: spec, remoteState: remote.StateUnassigned}
	p.value = p.clamp(spec.Value)
	return p
}

func (p *Param) clamp(v int) int {
	return max(p.spec.Min, min(p.spec.Max, v))
}

func (p *Param) Key() string            { return p.spec.Key }
func (p *Param) Label() string          { return p.spec.Label }
func (p *Param) Min() int               { return p.spec.Min }
func (p *Param) Max() int               { return p.spec.Max }
func (p *Param) Value() int             { return p.value }
func (p *Param) MIDIControllable() bool { return p.spec.Controllable }

// SetRange changes the bounds and re-clamps the value without firing OnChange.
func (p *Param) SetRange(lo, hi int) {
	if hi < lo {
		hi = lo
	}
	p.spec.Min, p.spec.Max = lo, hi
	p.value = p.clamp(p.value)
}

// Set stores v clamped to range and reports whether the value changed.
func (p *Param) Set(v int) bool {
	v = p.clamp(v)
	if v == p.value {
		return false
	}
	p.value = v
	if p.OnChange != nil {
		p.OnChange(p, v)
	}
	return true
}

// Sync stores v without firing OnChange; used when the owner changed the value itself.
func (p *Param) Sync(v int) {
	p.value = p.clamp(v)
}

// SetNormalized maps v in [0,1] onto the range, rounding to the nearest integer.
func (p *Param) SetNormalized(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = math.Max(0, math.Min(1, v))
	span := float64(p.spec.Max - p.spec.Min)
	p.Set(p.spec.Min + int(math.Round(v*span)))
}

// Normalized returns the value mapped onto [0,1].
func (p *Param) Normalized() float64 {
	if p.spec.Max == p.spec.Min {
		return 0
	}
	return float64(p.value-p.spec.Min) / float64(p.spec.Max-p.spec.Min)
}

func (p *Param) SetRemoteState(s remote.State) {
	p.remoteState = s
}

func (p *Param) RemoteState() remote.State {
	return p.remoteState
}

func (p *Param) SetRemoteData(b remote.Binding) {
	p.remoteData = b
}

// RemoteData returns the CC binding, zero when unassigned.
func (p *Param) RemoteData() remote.Binding {
	return p.remoteData
}
