// Package graph is the processor network: nodes, their connections and pull-based event delivery.
package graph

import (
	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"go-epg/debug"
	"go-epg/param"
)

// Graph owns the nodes of one project
type Graph struct {
	nodes  []*Node
	byID   map[string]*Node
	logger *charmlog.Logger
}

// New creates an empty graph. A nil logger uses the "graph" debug logger.
func New(logger *charmlog.Logger) *Graph {
	if logger == nil {
		logger = debug.Logger("graph")
	}
	return &Graph{
		byID:   make(map[string]*Node),
		logger: logger,
	}
}

// AddNode creates a node with a fresh id
func (g *Graph) AddNode(kind Kind, name string, params ...*param.Param) *Node {
	return g.AddNodeWithID(uuid.NewString(), kind, name, params...)
}

// AddNodeWithID creates a node with a known id (project restore).
// An existing node with the same id is returned unchanged.
func (g *Graph) AddNodeWithID(id string, kind Kind, name string, params ...*param.Param) *Node {
	if n, ok := g.byID[id]; ok {
		return n
	}
	n := &Node{
		id:     id,
		kind:   kind,
		name:   name,
		params: params,
		logger: g.logger,
	}
	g.nodes = append(g.nodes, n)
	g.byID[id] = n
	g.logger.Debug("add node", "node", n.label())
	return n
}

// Node returns the node with id, or nil
func (g *Graph) Node(id string) *Node {
	return g.byID[id]
}

// Nodes returns all nodes in insertion order
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// RemoveNode deletes a node and disconnects it from every consumer.
func (g *Graph) RemoveNode(id string) bool {
	n, ok := g.byID[id]
	if !ok {
		return false
	}
	for _, c := range g.nodes {
		c.Disconnect(n)
	}
	n.sources = nil
	n.out = nil
	delete(g.byID, id)
	for i, x := range g.nodes {
		if x == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	g.logger.Debug("remove node", "node", n.label())
	return true
}

// Connect makes src a source of dst. When src already feeds another
// consumer a warning is logged: the first consumer to pull drains it.
func (g *Graph) Connect(srcID, dstID string) bool {
	src, dst := g.byID[srcID], g.byID[dstID]
	if src == nil || dst == nil {
		return false
	}
	others := g.Consumers(srcID)
	if !dst.Connect(src) {
		return false
	}
	if len(others) > 0 {
		g.logger.Warn("fan-out: source feeds several consumers, only the first to pull sees its events",
			"src", src.label(), "consumers", len(others)+1)
	}
	return true
}

// Disconnect removes src from dst's sources
func (g *Graph) Disconnect(srcID, dstID string) bool {
	src, dst := g.byID[srcID], g.byID[dstID]
	if src == nil || dst == nil {
		return false
	}
	return dst.Disconnect(src)
}

// Consumers returns the nodes that have id as a source
func (g *Graph) Consumers(id string) []*Node {
	src := g.byID[id]
	if src == nil {
		return nil
	}
	var out []*Node
	for _, n := range g.nodes {
		if n.indexOf(src) >= 0 {
			out = append(out, n)
		}
	}
	return out
}

// Connection is a (source, destination) pair, used for snapshots
type Connection struct {
	SourceID      string `json:"sourceID"`
	DestinationID string `json:"destinationID"`
}

// Connections lists every edge, grouped by destination in node order
func (g *Graph) Connections() []Connection {
	var out []Connection
	for _, n := range g.nodes {
		for _, s := range n.sources {
			out = append(out, Connection{SourceID: s.id, DestinationID: n.id})
		}
	}
	return out
}
