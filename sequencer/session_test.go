package sequencer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-epg/debug"
	"go-epg/graph"
	"go-epg/midi"
	"go-epg/pattern"
)

type recordingSender struct {
	port   string
	events []midi.Event
	err    error
}

func (r *recordingSender) Send(port string, events []midi.Event) error {
	r.port = port
	r.events = append(r.events, events...)
	return r.err
}

func newTestSession() (*Session, *recordingSender) {
	out := &recordingSender{}
	s := NewSession(Options{
		Name:       "test",
		Timing:     pattern.Timing{PPQN: 480, StepsPerBeat: 4},
		BPM:        120,
		Sender:     out,
		OutputPort: "synth",
	})
	return s, out
}

func cc(channel, controller, value uint8) []byte {
	return []byte{0xB0 | (channel - 1), controller, value}
}

func TestCreatePatternWiresNode(t *testing.T) {
	s, _ := newTestSession()
	i := s.CreatePattern(pattern.Spec{Steps: 8, Pulses: 3})
	assert.Equal(t, 0, i)

	tr, ok := s.Track(i)
	require.True(t, ok)
	assert.Equal(t, graph.KindPattern, tr.Node.Kind())
	consumers := s.Graph().Consumers(tr.Node.ID())
	require.Len(t, consumers, 1)
	assert.Same(t, s.Output(), consumers[0])

	require.Len(t, s.Router().Processors(), 1)
	assert.Len(t, s.Router().ControllableParameters(tr.Node.ID()), 3)
	assert.Equal(t, 8, tr.Node.Param(ParamSteps).Value())
	assert.Equal(t, 8, tr.Node.Param(ParamPulses).Max())
	assert.True(t, s.Dirty())
}

func TestAdvanceSendsNotes(t *testing.T) {
	s, out := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 8, Pulses: 3})

	assert.Nil(t, s.Advance(960), "stopped transport does nothing")

	s.Play()
	events := s.Advance(960)
	require.Len(t, events, 6)

	var got []string
	for _, e := range events {
		got = append(got, e.String())
	}
	assert.Equal(t, []string{
		"on ch=1 n=60 v=100 @0",
		"off ch=1 n=60 v=0 @120",
		"on ch=1 n=60 v=100 @360",
		"off ch=1 n=60 v=0 @480",
		"on ch=1 n=60 v=100 @720",
		"off ch=1 n=60 v=0 @840",
	}, got)
	assert.Equal(t, events, out.events)
	assert.Equal(t, "synth", out.port)
}

func TestAdvanceUsesPatternChannel(t *testing.T) {
	s, _ := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 4, Pulses: 4})
	s.CreatePattern(pattern.Spec{Steps: 4, Pulses: 4})

	s.Play()
	events := s.Advance(1)
	require.Len(t, events, 2)
	assert.Equal(t, uint8(0), events[0].Channel)
	assert.Equal(t, uint8(1), events[1].Channel)
}

func TestNoteOffBeforeRetrigger(t *testing.T) {
	s, _ := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 4, Pulses: 4})
	s.Play()

	s.Advance(120)
	events := s.Advance(120)
	require.Len(t, events, 2)
	assert.Equal(t, midi.NoteOff, events[0].Type)
	assert.Equal(t, midi.NoteOn, events[1].Type)
	assert.Equal(t, int64(120), events[1].Tick)
}

func TestStopReleasesHeldNotes(t *testing.T) {
	s, out := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 4, Pulses: 4})
	s.Play()
	s.Advance(10)
	require.Len(t, out.events, 1)

	s.Stop()
	require.Len(t, out.events, 2)
	assert.Equal(t, midi.NoteOff, out.events[1].Type)
	assert.False(t, s.Playing())

	s.Play()
	assert.Equal(t, int64(0), s.Scheduler().Tick())
}

func TestSendErrorIsKept(t *testing.T) {
	s, out := newTestSession()
	out.err = errors.New("port gone")
	s.CreatePattern(pattern.Spec{Steps: 4, Pulses: 4})
	s.Play()
	s.Advance(10)
	assert.EqualError(t, s.SendErr(), "port gone")

	out.err = nil
	s.Advance(120)
	assert.NoError(t, s.SendErr())
}

func TestRemoteControlDrivesPattern(t *testing.T) {
	s, _ := newTestSession()
	i := s.CreatePattern(pattern.Spec{Steps: 8, Pulses: 3})
	tr, _ := s.Track(i)
	s.ClearDirty()

	s.Router().AssignParameter(tr.Node.Param(ParamPulses), 1, 20)
	s.Router().AssignParameter(tr.Node.Param(ParamSteps), 1, 21)
	assert.True(t, s.Dirty())

	s.HandleMIDI(cc(1, 20, 127))
	p, _ := s.Engine().Pattern(i)
	assert.Equal(t, 8, p.Pulses)

	// shrinking steps pulls pulses and its range down with it
	s.HandleMIDI(cc(1, 21, 0))
	p, _ = s.Engine().Pattern(i)
	assert.Equal(t, 1, p.Steps)
	assert.Equal(t, 1, p.Pulses)
	assert.Equal(t, 1, tr.Node.Param(ParamPulses).Value())
	assert.Equal(t, 1, tr.Node.Param(ParamPulses).Max())
	assert.Equal(t, []bool{true}, p.Euclid)
}

func TestLearnSelected(t *testing.T) {
	s, _ := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 16, Pulses: 4})

	s.ToggleLearn()
	s.LearnSelected(ParamRotation)
	s.HandleMIDI(cc(2, 74, 10))
	assert.False(t, s.Router().Learning())

	a := s.Router().Assignments()
	require.Len(t, a, 1)
	assert.Equal(t, ParamRotation, a[0].Param.Key())
	assert.Equal(t, uint8(2), a[0].Channel)
	assert.Equal(t, uint8(74), a[0].Controller)

	st := s.State()
	require.Len(t, st.Assignments, 1)
	assert.Equal(t, "#1", st.Assignments[0].Pattern)

	s.UnassignSelected(ParamRotation)
	assert.Empty(t, s.Router().Assignments())
}

func TestAdjustSelected(t *testing.T) {
	s, _ := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 8, Pulses: 3})
	s.CreatePattern(pattern.Spec{Steps: 16, Pulses: 4})

	s.SelectNext(1)
	assert.Equal(t, 0, s.Engine().Selected())
	s.AdjustSelected(ParamPulses, 2)
	p, _ := s.Engine().Pattern(0)
	assert.Equal(t, 5, p.Pulses)

	s.SelectNext(-1)
	assert.Equal(t, 1, s.Engine().Selected())
}

func TestDeletePattern(t *testing.T) {
	s, _ := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 8, Pulses: 3})
	s.CreatePattern(pattern.Spec{Steps: 16, Pulses: 4})
	first, _ := s.Track(0)
	second, _ := s.Track(1)
	s.Router().AssignParameter(first.Node.Param(ParamSteps), 1, 1)

	require.NoError(t, s.DeletePattern(0))
	assert.Nil(t, s.Graph().Node(first.Node.ID()))
	assert.Empty(t, s.Router().Assignments())
	assert.Len(t, s.Router().Processors(), 1)
	assert.Equal(t, []*graph.Node{second.Node}, s.Output().Sources())

	// the remaining track follows its pattern to index 0
	second.Node.Param(ParamPulses).Set(7)
	p, _ := s.Engine().Pattern(0)
	assert.Equal(t, 7, p.Pulses)

	assert.ErrorIs(t, s.DeletePattern(5), pattern.ErrNoPattern)
}

func TestSnapshotRestore(t *testing.T) {
	s, _ := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 8, Pulses: 3, Name: "kick"})
	s.CreatePattern(pattern.Spec{Steps: 12, Pulses: 5, Rotation: 2})
	s.SetBPM(96)
	t0, _ := s.Track(0)
	t1, _ := s.Track(1)
	s.Router().AssignParameter(t0.Node.Param(ParamPulses), 1, 20)
	s.Router().AssignParameter(t1.Node.Param(ParamRotation), 3, 21)

	snap := s.Snapshot()
	assert.Equal(t, 96, snap.BPM)
	assert.Len(t, snap.Nodes, 3)
	assert.Len(t, snap.Connections, 2)

	restored, _ := newTestSession()
	restored.Restore(snap)
	assert.False(t, restored.Dirty())
	assert.Equal(t, 96, restored.Clock().BPM)
	assert.Equal(t, s.Engine().Data(), restored.Engine().Data())
	assert.Equal(t, s.Router().Data(), restored.Router().Data())
	assert.Equal(t, s.Graph().Connections(), restored.Graph().Connections())

	r0, _ := restored.Track(0)
	assert.Equal(t, t0.Node.ID(), r0.Node.ID())
	r1, _ := restored.Track(1)
	assert.Equal(t, 5, r1.Node.Param(ParamPulses).Value())

	restored.HandleMIDI(cc(1, 20, 0))
	p, _ := restored.Engine().Pattern(0)
	assert.Equal(t, 0, p.Pulses)
}

func TestRestoreWithoutConnections(t *testing.T) {
	s, _ := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 8, Pulses: 3})
	snap := s.Snapshot()
	snap.Connections = nil
	snap.Nodes = nil

	restored, _ := newTestSession()
	restored.Restore(snap)
	assert.Equal(t, 1, restored.Output().NumSources())
}

func TestChangeOnDeletedTrackIsLogged(t *testing.T) {
	var buf bytes.Buffer
	debug.EnableWriter(&buf, "debug")
	defer debug.Disable()

	s, _ := newTestSession()
	s.CreatePattern(pattern.Spec{Steps: 8, Pulses: 3})
	s.CreatePattern(pattern.Spec{Steps: 16, Pulses: 4})
	gone, _ := s.Track(0)
	require.NoError(t, s.DeletePattern(0))

	gone.Node.Param(ParamPulses).Set(5)
	assert.Contains(t, buf.String(), "change on detached track")
	p, _ := s.Engine().Pattern(0)
	assert.Equal(t, 4, p.Pulses, "remaining pattern untouched")
}
