package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-epg/midi"
	"go-epg/param"
)

func note(n uint8) midi.Event {
	return midi.Event{Type: midi.NoteOn, Note: n, Velocity: 100}
}

func TestPullOutputConcatenatesInConnectionOrder(t *testing.T) {
	g := New(nil)
	a := g.AddNode(KindPattern, "a")
	b := g.AddNode(KindPattern, "b")
	out := g.AddNode(KindOutput, "out")

	require.True(t, g.Connect(b.ID(), out.ID()))
	require.True(t, g.Connect(a.ID(), out.ID()))

	a.Emit(note(1), note(2))
	b.Emit(note(3))

	assert.Equal(t, []midi.Event{note(3), note(1), note(2)}, out.PullOutput())
	assert.Empty(t, out.PullOutput(), "second pull in the same tick is empty")
	assert.Zero(t, a.Pending())
	assert.Zero(t, b.Pending())
}

func TestDisconnectExcludesBufferedData(t *testing.T) {
	g := New(nil)
	a := g.AddNode(KindPattern, "a")
	b := g.AddNode(KindPattern, "b")
	out := g.AddNode(KindOutput, "out")
	g.Connect(a.ID(), out.ID())
	g.Connect(b.ID(), out.ID())

	a.Emit(note(1))
	b.Emit(note(2))
	require.True(t, g.Disconnect(a.ID(), out.ID()))

	assert.Equal(t, []midi.Event{note(2)}, out.PullOutput())
	assert.Equal(t, 1, a.Pending(), "removed source keeps its buffer")
	assert.Equal(t, 1, out.NumSources())
	assert.Len(t, out.Sources(), out.NumSources())
}

func TestDisconnectAbsentIsNoop(t *testing.T) {
	g := New(nil)
	a := g.AddNode(KindPattern, "a")
	out := g.AddNode(KindOutput, "out")

	assert.False(t, out.Disconnect(a))
	assert.False(t, g.Disconnect(a.ID(), out.ID()))
	assert.False(t, g.Disconnect("missing", out.ID()))
	assert.False(t, out.HasInputs())
}

func TestConnectRejectsDuplicatesAndSelf(t *testing.T) {
	g := New(nil)
	a := g.AddNode(KindPattern, "a")
	out := g.AddNode(KindOutput, "out")

	assert.True(t, out.Connect(a))
	assert.False(t, out.Connect(a))
	assert.False(t, out.Connect(out))
	assert.False(t, out.Connect(nil))
	assert.Equal(t, 1, out.NumSources())
	assert.True(t, out.HasInputs())
}

func TestFanOutSecondConsumerStarves(t *testing.T) {
	g := New(nil)
	src := g.AddNode(KindPattern, "src")
	first := g.AddNode(KindOutput, "first")
	second := g.AddNode(KindOutput, "second")
	g.Connect(src.ID(), first.ID())
	g.Connect(src.ID(), second.ID())

	assert.Len(t, g.Consumers(src.ID()), 2)

	src.Emit(note(7))
	assert.Len(t, first.PullOutput(), 1)
	assert.Empty(t, second.PullOutput())
}

func TestRemoveNodeLeavesNoDanglingSources(t *testing.T) {
	g := New(nil)
	a := g.AddNode(KindPattern, "a")
	b := g.AddNode(KindPattern, "b")
	thru := g.AddNode(KindThru, "thru")
	out := g.AddNode(KindOutput, "out")
	g.Connect(a.ID(), thru.ID())
	g.Connect(a.ID(), out.ID())
	g.Connect(b.ID(), out.ID())

	require.True(t, g.RemoveNode(a.ID()))
	assert.False(t, g.RemoveNode(a.ID()))
	assert.Nil(t, g.Node(a.ID()))
	assert.False(t, thru.HasInputs())
	assert.Equal(t, []*Node{b}, out.Sources())
	assert.Len(t, g.Nodes(), 3)
	assert.Equal(t, []Connection{{SourceID: b.ID(), DestinationID: out.ID()}}, g.Connections())
}

func TestForwardRelaysThroughChain(t *testing.T) {
	g := New(nil)
	src := g.AddNode(KindPattern, "src")
	thru := g.AddNode(KindThru, "thru")
	out := g.AddNode(KindOutput, "out")
	g.Connect(src.ID(), thru.ID())
	g.Connect(thru.ID(), out.ID())

	src.Emit(note(1), note(2))
	assert.Equal(t, 2, thru.Forward())
	assert.Equal(t, []midi.Event{note(1), note(2)}, out.PullOutput())
}

func TestNodeParameters(t *testing.T) {
	g := New(nil)
	steps := param.New(param.Spec{Key: "steps", Min: 1, Max: 64, Value: 16, Controllable: true})
	n := g.AddNodeWithID("fixed", KindPattern, "p", steps)

	assert.Same(t, n, g.AddNodeWithID("fixed", KindThru, "other"))
	assert.Same(t, steps, n.Param("steps"))
	assert.Nil(t, n.Param("nope"))
	require.Len(t, n.Parameters(), 1)
	assert.Equal(t, "steps", n.Parameters()[0].Key())
}
