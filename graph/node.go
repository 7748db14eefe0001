package graph

import (
	charmlog "github.com/charmbracelet/log"

	"go-epg/midi"
	"go-epg/param"
	"go-epg/remote"
)

// Kind tags what a node does in the network
type Kind string

const (
	KindPattern Kind = "epg"    // euclidean pattern track source
	KindOutput  Kind = "output" // MIDI out port
	KindThru    Kind = "thru"   // relays its input unchanged
)

// Node is a processor in the network. Connections are recorded only as
// membership in the consumer's source list.
type Node struct {
	id     string
	kind   Kind
	name   string
	params []*param.Param

	sources []*Node
	out     []midi.Event

	logger *charmlog.Logger
}

func (n *Node) ID() string   { return n.id }
func (n *Node) Kind() Kind   { return n.kind }
func (n *Node) Name() string { return n.name }

// Params returns the node's parameters in declaration order
func (n *Node) Params() []*param.Param {
	return n.params
}

// Param finds a parameter by key
func (n *Node) Param(key string) *param.Param {
	for _, p := range n.params {
		if p.Key() == key {
			return p
		}
	}
	return nil
}

// Parameters exposes the node as a remote.Processor
func (n *Node) Parameters() []remote.Parameter {
	out := make([]remote.Parameter, len(n.params))
	for i, p := range n.params {
		out[i] = p
	}
	return out
}

// Sources returns a copy of the source list
func (n *Node) Sources() []*Node {
	return append([]*Node(nil), n.sources...)
}

// NumSources always equals len(Sources())
func (n *Node) NumSources() int {
	return len(n.sources)
}

// HasInputs is true iff at least one source is connected
func (n *Node) HasInputs() bool {
	return len(n.sources) > 0
}

func (n *Node) indexOf(src *Node) int {
	for i, s := range n.sources {
		if s == src {
			return i
		}
	}
	return -1
}

// Connect appends src to the source list. Nil, self and duplicate
// connections are rejected and reported as false.
func (n *Node) Connect(src *Node) bool {
	if src == nil || src == n {
		return false
	}
	if n.indexOf(src) >= 0 {
		n.logger.Debug("duplicate connection ignored", "src", src.label(), "dst", n.label())
		return false
	}
	n.sources = append(n.sources, src)
	n.logger.Debug("connect", "src", src.label(), "dst", n.label())
	return true
}

// Disconnect removes src by identity; absent sources are ignored.
func (n *Node) Disconnect(src *Node) bool {
	i := n.indexOf(src)
	if i < 0 {
		n.logger.Debug("disconnect of unknown source ignored", "dst", n.label())
		return false
	}
	n.sources = append(n.sources[:i], n.sources[i+1:]...)
	n.logger.Debug("disconnect", "src", src.label(), "dst", n.label())
	return true
}

// Emit appends events to this node's output buffer
func (n *Node) Emit(events ...midi.Event) {
	n.out = append(n.out, events...)
}

// Pending returns how many events are buffered for consumers
func (n *Node) Pending() int {
	return len(n.out)
}

// drain hands out the buffer and leaves it empty
func (n *Node) drain() []midi.Event {
	out := n.out
	n.out = nil
	return out
}

// PullOutput concatenates, in source order, the buffered output of every
// source and clears those buffers. A second pull in the same tick returns
// nothing from sources already drained, including by another consumer.
func (n *Node) PullOutput() []midi.Event {
	var events []midi.Event
	for _, src := range n.sources {
		events = append(events, src.drain()...)
	}
	return events
}

// Forward moves pulled input into this node's own output buffer.
func (n *Node) Forward() int {
	events := n.PullOutput()
	n.Emit(events...)
	return len(events)
}

func (n *Node) label() string {
	if n.name != "" {
		return string(n.kind) + ":" + n.name
	}
	return string(n.kind) + ":" + n.id
}
