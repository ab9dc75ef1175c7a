package network_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrylands/noflo/component"
	"github.com/berrylands/noflo/graph"
	"github.com/berrylands/noflo/loader"
	"github.com/berrylands/noflo/network"
	"github.com/berrylands/noflo/socket"
	"github.com/berrylands/noflo/subgraph"
)

// innerGraph wires X(Repeat) -> Y(Sink) and exports X.in as "in"
func innerGraph() *graph.Graph {
	g := graph.New("inner")
	g.AddNode("X", "Repeat", nil)
	g.AddNode("Y", "Sink", nil)
	g.AddEdge(
		graph.EndpointRef{Node: "X", Port: "out"},
		graph.EndpointRef{Node: "Y", Port: "in"}, nil)
	g.AddInport("in", "X", "in")
	return g
}

func innerRegistry(t *testing.T) *loader.Registry {
	t.Helper()
	registry := loader.NewRegistry(nil)
	require.NoError(t, registry.Register("Repeat", func(metadata map[string]any) (component.Component, error) {
		return newRepeatComponent(), nil
	}))
	require.NoError(t, registry.Register("Sink", func(metadata map[string]any) (component.Component, error) {
		return newSinkComponent(), nil
	}))
	return registry
}

func collectIPEvents(net *network.Network) (func() []network.IPPayload, func()) {
	var mu sync.Mutex
	var payloads []network.IPPayload
	unsub := net.Subscribe(network.EventIP, func(ev network.Event) {
		payload, ok := ev.Payload.(network.IPPayload)
		if !ok {
			return
		}
		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()
	})
	return func() []network.IPPayload {
		mu.Lock()
		defer mu.Unlock()
		out := make([]network.IPPayload, len(payloads))
		copy(out, payloads)
		return out
	}, unsub
}

func TestSubgraphProvenance(t *testing.T) {
	parentRegistry := loader.NewRegistry(nil)
	require.NoError(t, parentRegistry.Register("Sub", func(metadata map[string]any) (component.Component, error) {
		return subgraph.New(innerGraph(), network.Options{Loader: innerRegistry(t)})
	}))

	g := graph.New("parent")
	g.AddNode("S", "Sub", nil)
	g.AddInitial("ping", graph.EndpointRef{Node: "S", Port: "in"}, nil)

	net, err := network.New(g, network.Options{Loader: parentRegistry})
	require.NoError(t, err)
	require.NoError(t, net.Connect())

	payloads, _ := collectIPEvents(net)
	require.NoError(t, net.Start())

	var tagged []network.IPPayload
	for _, payload := range payloads() {
		if len(payload.Subgraph) > 0 {
			tagged = append(tagged, payload)
		}
	}
	require.NotEmpty(t, tagged)
	found := false
	for _, payload := range tagged {
		if payload.Data == "ping" {
			assert.Equal(t, []string{"S"}, payload.Subgraph)
			found = true
		}
	}
	assert.True(t, found, "inner packet should reach the parent with provenance")

	require.NoError(t, net.Stop())
}

func TestNestedSubgraphProvenance(t *testing.T) {
	midRegistry := loader.NewRegistry(nil)
	require.NoError(t, midRegistry.Register("Sub", func(metadata map[string]any) (component.Component, error) {
		return subgraph.New(innerGraph(), network.Options{Loader: innerRegistry(t)})
	}))

	midGraph := graph.New("mid")
	midGraph.AddNode("M", "Sub", nil)
	midGraph.AddInport("in", "M", "in")

	parentRegistry := loader.NewRegistry(nil)
	require.NoError(t, parentRegistry.Register("Sub2", func(metadata map[string]any) (component.Component, error) {
		return subgraph.New(midGraph, network.Options{Loader: midRegistry})
	}))

	g := graph.New("outer")
	g.AddNode("T", "Sub2", nil)
	g.AddInitial("pong", graph.EndpointRef{Node: "T", Port: "in"}, nil)

	net, err := network.New(g, network.Options{Loader: parentRegistry})
	require.NoError(t, err)
	require.NoError(t, net.Connect())

	payloads, _ := collectIPEvents(net)
	require.NoError(t, net.Start())

	found := false
	for _, payload := range payloads() {
		if payload.Data == "pong" && len(payload.Subgraph) == 2 {
			assert.Equal(t, []string{"T", "M"}, payload.Subgraph)
			found = true
		}
	}
	assert.True(t, found, "two-level nesting should tag outermost id first")

	require.NoError(t, net.Stop())
}

func TestSubgraphDebugPropagation(t *testing.T) {
	parentRegistry := loader.NewRegistry(nil)
	require.NoError(t, parentRegistry.Register("Sub", func(metadata map[string]any) (component.Component, error) {
		return subgraph.New(innerGraph(), network.Options{Loader: innerRegistry(t)})
	}))

	g := graph.New("parent")
	g.AddNode("S", "Sub", nil)

	net, err := network.New(g, network.Options{Loader: parentRegistry})
	require.NoError(t, err)
	require.NoError(t, net.Connect())

	net.SetDebug(true)
	process, ok := net.GetNode("S")
	require.True(t, ok)
	sub, ok := process.Component.(network.SubgraphComponent)
	require.True(t, ok)
	inner := sub.Network()
	require.NotNil(t, inner)
	// The inner network's sockets carry the debug flag as well
	require.NotEmpty(t, inner.Connections())
	for _, conn := range inner.Connections() {
		internal, ok := conn.(*socket.InternalSocket)
		require.True(t, ok)
		assert.True(t, internal.IsDebug())
	}
}
