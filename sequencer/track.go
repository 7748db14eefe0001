package sequencer

import (
	"go-epg/euclid"
	"go-epg/graph"
	"go-epg/param"
	"go-epg/pattern"
)

// Parameter keys of a pattern node
const (
	ParamSteps    = "steps"
	ParamPulses   = "pulses"
	ParamRotation = "rotation"
)

// Track ties one pattern of the engine to its node in the graph.
// Tracks are kept in engine order.
type Track struct {
	Node *graph.Node

	steps    *param.Param
	pulses   *param.Param
	rotation *param.Param
}

func newTrackParams(p pattern.Pattern) []*param.Param {
	return []*param.Param{
		param.New(param.Spec{Key: ParamSteps, Label: "Steps", Min: 1, Max: euclid.MaxSteps, Value: p.Steps, Controllable: true}),
		param.New(param.Spec{Key: ParamPulses, Label: "Pulses", Min: 0, Max: p.Steps, Value: p.Pulses, Controllable: true}),
		param.New(param.Spec{Key: ParamRotation, Label: "Rotation", Min: 0, Max: p.Steps, Value: p.Rotation, Controllable: true}),
	}
}

func newTrack(n *graph.Node) *Track {
	return &Track{
		Node:     n,
		steps:    n.Param(ParamSteps),
		pulses:   n.Param(ParamPulses),
		rotation: n.Param(ParamRotation),
	}
}

// sync copies the engine's clamped settings back into the parameters
func (t *Track) sync(p pattern.Pattern) {
	t.steps.Sync(p.Steps)
	t.pulses.SetRange(0, p.Steps)
	t.pulses.Sync(p.Pulses)
	t.rotation.SetRange(0, p.Steps)
	t.rotation.Sync(p.Rotation)
}
