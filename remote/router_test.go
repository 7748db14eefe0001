package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParam struct {
	key          string
	controllable bool
	value        float64
	states       []State
	data         Binding
}

func (p *fakeParam) Key() string             { return p.key }
func (p *fakeParam) MIDIControllable() bool  { return p.controllable }
func (p *fakeParam) SetNormalized(v float64) { p.value = v }
func (p *fakeParam) SetRemoteState(s State)  { p.states = append(p.states, s) }
func (p *fakeParam) SetRemoteData(b Binding) { p.data = b }

func (p *fakeParam) lastState() State {
	if len(p.states) == 0 {
		return ""
	}
	return p.states[len(p.states)-1]
}

type fakeProcessor struct {
	id     string
	params []*fakeParam
}

func (p *fakeProcessor) ID() string { return p.id }
func (p *fakeProcessor) Parameters() []Parameter {
	out := make([]Parameter, len(p.params))
	for i, param := range p.params {
		out[i] = param
	}
	return out
}

func newProcessor(id string, keys ...string) *fakeProcessor {
	p := &fakeProcessor{id: id}
	for _, k := range keys {
		p.params = append(p.params, &fakeParam{key: k, controllable: true})
	}
	return p
}

func cc(channel, controller, value uint8) []byte {
	return []byte{0xB0 | (channel - 1), controller, value}
}

func TestNormalModeDispatch(t *testing.T) {
	r := NewRouter()
	proc := newProcessor("p1", "steps")
	r.RegisterProcessor(proc)
	steps := proc.params[0]
	r.AssignParameter(steps, 3, 20)

	r.HandleMessage(cc(3, 20, 127))
	assert.Equal(t, 1.0, steps.value)
	r.HandleMessage([]byte{0xB2, 20, 0})
	assert.Equal(t, 0.0, steps.value)

	r.HandleMessage(cc(4, 20, 64))
	r.HandleMessage([]byte{0x92, 20, 64})
	r.HandleMessage([]byte{0xB2})
	assert.Equal(t, 0.0, steps.value)
	assert.Equal(t, Stats{Dispatched: 2, Unmatched: 1, Ignored: 2}, r.Stats())
}

func TestLearnModeIsSingleShot(t *testing.T) {
	r := NewRouter()
	proc := newProcessor("p1", "pulses", "rotation")
	r.RegisterProcessor(proc)
	pulses, rotation := proc.params[0], proc.params[1]

	r.ToggleLearnMode(true)
	assert.Equal(t, ModeLearn, r.Mode())
	assert.Equal(t, StateEnter, pulses.lastState())
	assert.Equal(t, StateEnter, rotation.lastState())

	// no selection: ignored
	r.HandleMessage(cc(1, 7, 100))
	assert.Empty(t, r.Assignments())

	r.SelectParameter(pulses)
	assert.Equal(t, StateSelected, pulses.lastState())
	r.HandleMessage(cc(1, 7, 100))

	a, ok := r.AssignmentOf(pulses)
	require.True(t, ok)
	assert.Equal(t, uint8(1), a.Channel)
	assert.Equal(t, uint8(7), a.Controller)
	assert.Equal(t, 0.0, pulses.value, "learning does not move the value")
	assert.Equal(t, Binding{Channel: 1, Controller: 7}, pulses.data)

	// one binding per learn session: back to normal, selection gone
	assert.Equal(t, ModeNormal, r.Mode())
	assert.Nil(t, r.SelectedParameter())
	assert.Equal(t, StateExit, rotation.lastState())
	assert.Contains(t, pulses.states, StateDeselected)
	assert.Equal(t, StateAssigned, pulses.lastState(), "bound parameter reads assigned after learning")

	r.HandleMessage(cc(1, 8, 100))
	assert.Len(t, r.Assignments(), 1)
	r.HandleMessage(cc(1, 7, 127))
	assert.Equal(t, 1.0, pulses.value)
	assert.Equal(t, Stats{Dispatched: 1, Unmatched: 1, Ignored: 1, Learned: 1}, r.Stats())
}

func TestLeavingLearnKeepsAssignedState(t *testing.T) {
	r := NewRouter()
	proc := newProcessor("p1", "pulses", "rotation")
	r.RegisterProcessor(proc)
	pulses, rotation := proc.params[0], proc.params[1]
	r.AssignParameter(pulses, 1, 20)

	r.ToggleLearnMode(true)
	assert.Equal(t, StateEnter, pulses.lastState())
	r.ToggleLearnMode(false)
	assert.Equal(t, StateAssigned, pulses.lastState())
	assert.Equal(t, StateExit, rotation.lastState())
}

func TestSelectDeselectsPrevious(t *testing.T) {
	r := NewRouter()
	a, b := &fakeParam{key: "a"}, &fakeParam{key: "b"}
	r.SelectParameter(a)
	r.SelectParameter(b)
	assert.Equal(t, []State{StateSelected, StateDeselected}, a.states)
	assert.Same(t, b, r.SelectedParameter())

	r.ToggleLearnMode(true)
	assert.Nil(t, r.SelectedParameter(), "toggling drops the selection")
	assert.Equal(t, StateDeselected, b.lastState())
}

func TestDuplicateAssignmentIsNoop(t *testing.T) {
	saves := 0
	r := NewRouter(WithAutoSave(func() { saves++ }))
	p := &fakeParam{key: "steps", controllable: true}

	r.AssignParameter(p, 2, 10)
	r.AssignParameter(p, 2, 10)
	assert.Len(t, r.Assignments(), 1)
	assert.Len(t, r.lookup, 1)
	assert.Equal(t, 1, saves)
}

func TestReassigningParameterEvictsOldKey(t *testing.T) {
	r := NewRouter()
	p := &fakeParam{key: "steps"}
	r.AssignParameter(p, 1, 10)
	r.AssignParameter(p, 1, 11)

	require.Len(t, r.Assignments(), 1)
	_, ok := r.Lookup(1, 10)
	assert.False(t, ok)
	got, ok := r.Lookup(1, 11)
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, Binding{Channel: 1, Controller: 11}, p.data)
}

func TestReassigningKeyEvictsOldParameter(t *testing.T) {
	r := NewRouter()
	a, b := &fakeParam{key: "a"}, &fakeParam{key: "b"}
	r.AssignParameter(a, 5, 1)
	r.AssignParameter(b, 5, 1)

	require.Len(t, r.Assignments(), 1)
	_, ok := r.AssignmentOf(a)
	assert.False(t, ok)
	assert.Equal(t, StateUnassigned, a.lastState())
	assert.True(t, a.data.IsZero())

	r.HandleMessage(cc(5, 1, 127))
	assert.Equal(t, 1.0, b.value)
	assert.Equal(t, 0.0, a.value)
}

func TestInvalidAssignmentIgnored(t *testing.T) {
	r := NewRouter()
	p := &fakeParam{key: "a"}
	r.AssignParameter(p, 0, 1)
	r.AssignParameter(p, 17, 1)
	r.AssignParameter(p, 1, 128)
	r.AssignParameter(nil, 1, 1)
	assert.Empty(t, r.Assignments())
}

func TestUnassign(t *testing.T) {
	saves := 0
	r := NewRouter(WithAutoSave(func() { saves++ }))
	a, b := &fakeParam{key: "a"}, &fakeParam{key: "b"}
	r.AssignParameter(a, 1, 1)
	before := r.Assignments()

	r.UnassignParameter(b)
	assert.Equal(t, before, r.Assignments())
	assert.Equal(t, 1, saves)

	r.UnassignParameter(a)
	assert.Empty(t, r.Assignments())
	_, ok := r.Lookup(1, 1)
	assert.False(t, ok)
	assert.Equal(t, StateUnassigned, a.lastState())
	assert.Equal(t, 2, saves)

	r.HandleMessage(cc(1, 1, 127))
	assert.Equal(t, 0.0, a.value)
}

func TestRegisterProcessor(t *testing.T) {
	r := NewRouter()
	none := &fakeProcessor{id: "none", params: []*fakeParam{{key: "x"}}}
	r.RegisterProcessor(none)
	assert.Empty(t, r.Processors(), "no controllable params: no-op")

	mixed := &fakeProcessor{id: "mixed", params: []*fakeParam{
		{key: "steps", controllable: true},
		{key: "name"},
	}}
	r.RegisterProcessor(mixed)
	r.RegisterProcessor(mixed)
	require.Len(t, r.Processors(), 1)
	params := r.ControllableParameters("mixed")
	require.Len(t, params, 1)
	assert.Equal(t, "steps", params[0].Key())
	assert.Nil(t, r.ControllableParameters("none"))
}

func TestUnregisterDropsAssignments(t *testing.T) {
	r := NewRouter()
	proc := newProcessor("p", "a", "b")
	r.RegisterProcessor(proc)
	r.AssignParameter(proc.params[0], 1, 1)
	r.SelectParameter(proc.params[1])

	r.UnregisterProcessor(proc)
	assert.Empty(t, r.Processors())
	assert.Empty(t, r.Assignments())
	assert.Nil(t, r.SelectedParameter())

	r.UnregisterProcessor(proc)
	r.UnregisterProcessor(nil)
}

type fixture struct {
	router *Router
	procs  []*fakeProcessor
}

// three processors, five parameters
func newFixture() fixture {
	r := NewRouter()
	procs := []*fakeProcessor{
		newProcessor("epg-1", "steps", "pulses"),
		newProcessor("epg-2", "rotation"),
		newProcessor("out-1", "velocity", "channel"),
	}
	for _, p := range procs {
		r.RegisterProcessor(p)
	}
	return fixture{router: r, procs: procs}
}

type triple struct {
	param      Parameter
	channel    uint8
	controller uint8
}

func triples(r *Router) []triple {
	var out []triple
	for _, a := range r.Assignments() {
		out = append(out, triple{a.Param, a.Channel, a.Controller})
	}
	return out
}

func TestDataClearSetDataRoundTrip(t *testing.T) {
	f := newFixture()
	r := f.router
	r.AssignParameter(f.procs[0].params[0], 1, 20)
	r.AssignParameter(f.procs[0].params[1], 1, 21)
	r.AssignParameter(f.procs[1].params[0], 2, 20)
	r.AssignParameter(f.procs[2].params[0], 16, 0)
	r.AssignParameter(f.procs[2].params[1], 16, 127)
	want := triples(r)

	data := r.Data()
	require.Len(t, data, 5)
	assert.Equal(t, Data{ProcessorID: "epg-1", ParamKey: "steps", ParamRemoteData: Binding{Channel: 1, Controller: 20}}, data[0])

	r.Clear()
	assert.Empty(t, r.Assignments())
	assert.Len(t, r.Processors(), 3, "clear keeps processors registered")

	r.SetData(data)
	assert.Equal(t, want, triples(r))
	assert.Len(t, r.lookup, 5)
}

func TestSetDataSkipsUnresolved(t *testing.T) {
	f := newFixture()
	r := f.router
	r.SetData([]Data{
		{ProcessorID: "gone", ParamKey: "steps", ParamRemoteData: Binding{Channel: 1, Controller: 1}},
		{ProcessorID: "epg-1", ParamKey: "missing", ParamRemoteData: Binding{Channel: 1, Controller: 2}},
		{ProcessorID: "epg-2", ParamKey: "rotation", ParamRemoteData: Binding{Channel: 3, Controller: 3}},
	})
	require.Len(t, r.Assignments(), 1)
	assert.Same(t, f.procs[1].params[0], r.Assignments()[0].Param)
}

func TestResetUnregisters(t *testing.T) {
	f := newFixture()
	f.router.AssignParameter(f.procs[0].params[0], 1, 1)
	f.router.Reset()
	assert.Empty(t, f.router.Processors())
	assert.Empty(t, f.router.Assignments())
	assert.Empty(t, f.router.Data())
}

type recordingView struct {
	nopView
	visible bool
	added   []string
	removed []string
}

func (v *recordingView) ToggleVisibility(on bool)    { v.visible = on }
func (v *recordingView) AddParameter(p Parameter)    { v.added = append(v.added, p.Key()) }
func (v *recordingView) RemoveParameter(p Parameter) { v.removed = append(v.removed, p.Key()) }

func TestViewReceivesHints(t *testing.T) {
	v := &recordingView{}
	r := NewRouter(WithView(v))
	p := &fakeParam{key: "steps"}

	r.ToggleLearnMode(true)
	assert.True(t, v.visible)
	r.AssignParameter(p, 1, 1)
	r.UnassignParameter(p)
	assert.Equal(t, []string{"steps"}, v.added)
	assert.Equal(t, []string{"steps"}, v.removed)
}
