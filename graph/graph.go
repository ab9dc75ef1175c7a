// Package graph provides the graph model the network coordinator
// instantiates: nodes, edges, initializers, and exported ports, plus the
// JSON and YAML definition formats.
package graph

import (
	"fmt"

	"github.com/berrylands/noflo/errors"
)

// Node declares a process in the graph. Component names a loadable
// component; a node without one is a reserved placeholder.
type Node struct {
	ID        string
	Component string
	Metadata  map[string]any
}

// EndpointRef addresses a port on a node. Index is set only for
// addressable ports.
type EndpointRef struct {
	Node  string
	Port  string
	Index *int
}

func (r EndpointRef) String() string {
	if r.Index != nil {
		return fmt.Sprintf("%s.%s[%d]", r.Node, r.Port, *r.Index)
	}
	return fmt.Sprintf("%s.%s", r.Node, r.Port)
}

// Edge connects an outport to an inport
type Edge struct {
	From     EndpointRef
	To       EndpointRef
	Metadata map[string]any
}

// Initializer binds a literal value to an inport; the coordinator sends
// it as an initial packet on every start
type Initializer struct {
	Data     any
	To       EndpointRef
	Metadata map[string]any
}

// PortRef exports an inner node port under a public name
type PortRef struct {
	Process string
	Port    string
}

// Graph describes a network as data
type Graph struct {
	Name          string
	CaseSensitive bool
	Properties    map[string]any
	Nodes         []Node
	Edges         []Edge
	Initializers  []Initializer
	Inports       map[string]PortRef
	Outports      map[string]PortRef
}

// New creates an empty graph
func New(name string) *Graph {
	return &Graph{
		Name:       name,
		Properties: make(map[string]any),
		Inports:    make(map[string]PortRef),
		Outports:   make(map[string]PortRef),
	}
}

// AddNode appends a node declaration
func (g *Graph) AddNode(id, componentName string, metadata map[string]any) *Node {
	g.Nodes = append(g.Nodes, Node{ID: id, Component: componentName, Metadata: metadata})
	return &g.Nodes[len(g.Nodes)-1]
}

// GetNode looks up a node by id
func (g *Graph) GetNode(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// RemoveNode deletes a node and every edge and initializer touching it
func (g *Graph) RemoveNode(id string) error {
	idx := -1
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.WrapInvalid(errors.ErrNodeNotFound, "Graph", "RemoveNode", fmt.Sprintf("node %s lookup", id))
	}
	g.Nodes = append(g.Nodes[:idx], g.Nodes[idx+1:]...)

	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.From.Node != id && e.To.Node != id {
			edges = append(edges, e)
		}
	}
	g.Edges = edges

	inits := g.Initializers[:0]
	for _, i := range g.Initializers {
		if i.To.Node != id {
			inits = append(inits, i)
		}
	}
	g.Initializers = inits
	return nil
}

// RenameNode rewrites a node id everywhere it is referenced
func (g *Graph) RenameNode(oldID, newID string) error {
	if _, exists := g.GetNode(newID); exists {
		return errors.WrapInvalid(errors.ErrNodeExists, "Graph", "RenameNode", fmt.Sprintf("node %s collision", newID))
	}
	node, ok := g.GetNode(oldID)
	if !ok {
		return errors.WrapInvalid(errors.ErrNodeNotFound, "Graph", "RenameNode", fmt.Sprintf("node %s lookup", oldID))
	}
	node.ID = newID
	for i := range g.Edges {
		if g.Edges[i].From.Node == oldID {
			g.Edges[i].From.Node = newID
		}
		if g.Edges[i].To.Node == oldID {
			g.Edges[i].To.Node = newID
		}
	}
	for i := range g.Initializers {
		if g.Initializers[i].To.Node == oldID {
			g.Initializers[i].To.Node = newID
		}
	}
	for name, ref := range g.Inports {
		if ref.Process == oldID {
			ref.Process = newID
			g.Inports[name] = ref
		}
	}
	for name, ref := range g.Outports {
		if ref.Process == oldID {
			ref.Process = newID
			g.Outports[name] = ref
		}
	}
	return nil
}

// AddEdge appends a connection between two node ports
func (g *Graph) AddEdge(from, to EndpointRef, metadata map[string]any) *Edge {
	g.Edges = append(g.Edges, Edge{From: from, To: to, Metadata: metadata})
	return &g.Edges[len(g.Edges)-1]
}

// RemoveEdge deletes every edge matching the given endpoints
func (g *Graph) RemoveEdge(from, to EndpointRef) {
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.From.Node == from.Node && e.From.Port == from.Port &&
			e.To.Node == to.Node && e.To.Port == to.Port {
			continue
		}
		edges = append(edges, e)
	}
	g.Edges = edges
}

// AddInitial appends an initializer for an inport
func (g *Graph) AddInitial(data any, to EndpointRef, metadata map[string]any) *Initializer {
	g.Initializers = append(g.Initializers, Initializer{Data: data, To: to, Metadata: metadata})
	return &g.Initializers[len(g.Initializers)-1]
}

// RemoveInitial deletes every initializer targeting the given inport
func (g *Graph) RemoveInitial(to EndpointRef) {
	inits := g.Initializers[:0]
	for _, i := range g.Initializers {
		if i.To.Node == to.Node && i.To.Port == to.Port {
			continue
		}
		inits = append(inits, i)
	}
	g.Initializers = inits
}

// AddInport exports an inner inport under a public name
func (g *Graph) AddInport(public, process, port string) {
	if g.Inports == nil {
		g.Inports = make(map[string]PortRef)
	}
	g.Inports[public] = PortRef{Process: process, Port: port}
}

// AddOutport exports an inner outport under a public name
func (g *Graph) AddOutport(public, process, port string) {
	if g.Outports == nil {
		g.Outports = make(map[string]PortRef)
	}
	g.Outports[public] = PortRef{Process: process, Port: port}
}
