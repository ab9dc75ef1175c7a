package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeOperations(t *testing.T) {
	g := New("test")
	g.AddNode("A", "Repeat", nil)
	g.AddNode("B", "Sink", map[string]any{"x": 1})

	node, ok := g.GetNode("A")
	require.True(t, ok)
	assert.Equal(t, "Repeat", node.Component)

	_, ok = g.GetNode("missing")
	assert.False(t, ok)
}

func TestRemoveNodeCascades(t *testing.T) {
	g := New("test")
	g.AddNode("A", "Repeat", nil)
	g.AddNode("B", "Sink", nil)
	g.AddEdge(EndpointRef{Node: "A", Port: "out"}, EndpointRef{Node: "B", Port: "in"}, nil)
	g.AddInitial("x", EndpointRef{Node: "A", Port: "in"}, nil)

	require.NoError(t, g.RemoveNode("A"))
	assert.Empty(t, g.Edges)
	assert.Empty(t, g.Initializers)
	assert.Len(t, g.Nodes, 1)

	require.Error(t, g.RemoveNode("missing"))
}

func TestRenameNodeRewritesReferences(t *testing.T) {
	g := New("test")
	g.AddNode("A", "Repeat", nil)
	g.AddNode("B", "Sink", nil)
	g.AddEdge(EndpointRef{Node: "A", Port: "out"}, EndpointRef{Node: "B", Port: "in"}, nil)
	g.AddInitial("x", EndpointRef{Node: "A", Port: "in"}, nil)
	g.AddInport("in", "A", "in")

	require.NoError(t, g.RenameNode("A", "A2"))
	assert.Equal(t, "A2", g.Edges[0].From.Node)
	assert.Equal(t, "A2", g.Initializers[0].To.Node)
	assert.Equal(t, "A2", g.Inports["in"].Process)

	require.Error(t, g.RenameNode("A2", "B"))
	require.Error(t, g.RenameNode("missing", "C"))
}

func TestRemoveEdgeAndInitial(t *testing.T) {
	g := New("test")
	g.AddNode("A", "Repeat", nil)
	g.AddNode("B", "Sink", nil)
	g.AddEdge(EndpointRef{Node: "A", Port: "out"}, EndpointRef{Node: "B", Port: "in"}, nil)
	g.AddInitial("x", EndpointRef{Node: "A", Port: "in"}, nil)

	g.RemoveEdge(EndpointRef{Node: "A", Port: "out"}, EndpointRef{Node: "B", Port: "in"})
	assert.Empty(t, g.Edges)

	g.RemoveInitial(EndpointRef{Node: "A", Port: "in"})
	assert.Empty(t, g.Initializers)
}

func TestParseJSON(t *testing.T) {
	definition := []byte(`{
		"properties": {"name": "pipeline"},
		"processes": {
			"A": {"component": "Repeat"},
			"B": {"component": "Sink", "metadata": {"x": 1}}
		},
		"connections": [
			{"src": {"process": "A", "port": "OUT"}, "tgt": {"process": "B", "port": "IN"}},
			{"data": "hello", "tgt": {"process": "A", "port": "IN"}}
		],
		"inports": {"in": {"process": "A", "port": "IN"}}
	}`)

	g, err := ParseJSON(definition)
	require.NoError(t, err)
	assert.Equal(t, "pipeline", g.Name)
	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	// Port names are lowercased unless the graph is case sensitive
	assert.Equal(t, "out", g.Edges[0].From.Port)
	assert.Equal(t, "in", g.Edges[0].To.Port)
	require.Len(t, g.Initializers, 1)
	assert.Equal(t, "hello", g.Initializers[0].Data)
	assert.Equal(t, PortRef{Process: "A", Port: "in"}, g.Inports["in"])
}

func TestParseJSONCaseSensitive(t *testing.T) {
	definition := []byte(`{
		"caseSensitive": true,
		"processes": {"A": {"component": "Repeat"}},
		"connections": [
			{"data": 1, "tgt": {"process": "A", "port": "MixedCase"}}
		]
	}`)

	g, err := ParseJSON(definition)
	require.NoError(t, err)
	assert.Equal(t, "MixedCase", g.Initializers[0].To.Port)
}

func TestParseJSONRejectsUnknownProcess(t *testing.T) {
	definition := []byte(`{
		"processes": {"A": {"component": "Repeat"}},
		"connections": [
			{"src": {"process": "A", "port": "out"}, "tgt": {"process": "GHOST", "port": "in"}}
		]
	}`)

	_, err := ParseJSON(definition)
	require.Error(t, err)
}

func TestParseJSONRejectsInvalidShape(t *testing.T) {
	// tgt missing the required port field
	definition := []byte(`{
		"processes": {"A": {"component": "Repeat"}},
		"connections": [
			{"data": 1, "tgt": {"process": "A"}}
		]
	}`)

	_, err := ParseJSON(definition)
	require.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	definition := []byte(`
properties:
  name: pipeline
processes:
  A:
    component: Repeat
  B:
    component: Sink
connections:
  - src: {process: A, port: out}
    tgt: {process: B, port: in}
  - data: hello
    tgt: {process: A, port: in}
`)

	g, err := ParseYAML(definition)
	require.NoError(t, err)
	assert.Equal(t, "pipeline", g.Name)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)
	assert.Len(t, g.Initializers, 1)
}

func TestMarshalRoundTrip(t *testing.T) {
	g := New("round")
	g.AddNode("A", "Repeat", nil)
	g.AddNode("B", "Sink", nil)
	g.AddEdge(EndpointRef{Node: "A", Port: "out"}, EndpointRef{Node: "B", Port: "in"}, nil)
	g.AddInitial("x", EndpointRef{Node: "A", Port: "in"}, nil)
	g.AddInport("in", "A", "in")

	data, err := g.MarshalJSON()
	require.NoError(t, err)

	parsed, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "round", parsed.Name)
	assert.Len(t, parsed.Nodes, 2)
	assert.Len(t, parsed.Edges, 1)
	assert.Len(t, parsed.Initializers, 1)
	assert.Equal(t, PortRef{Process: "A", Port: "in"}, parsed.Inports["in"])
}
