package eventbridge

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrylands/noflo/component"
	"github.com/berrylands/noflo/graph"
	"github.com/berrylands/noflo/ip"
	"github.com/berrylands/noflo/loader"
	"github.com/berrylands/noflo/network"
)

// capturePublisher records published messages in order
type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *capturePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *capturePublisher) published() ([]string, [][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subjects := make([]string, len(p.subjects))
	copy(subjects, p.subjects)
	payloads := make([][]byte, len(p.payloads))
	copy(payloads, p.payloads)
	return subjects, payloads
}

func testNetwork(t *testing.T) *network.Network {
	t.Helper()
	registry := loader.NewRegistry(nil)
	require.NoError(t, registry.Register("Echo", func(metadata map[string]any) (component.Component, error) {
		c := component.New(component.Options{})
		in := c.InPorts().Add("in", component.PortOptions{})
		out := c.OutPorts().Add("out", component.PortOptions{})
		in.OnIP(func(packet *ip.IP) {
			c.Activate()
			out.Post(packet)
			c.Deactivate()
		})
		return c, nil
	}))
	require.NoError(t, registry.Register("Drop", func(metadata map[string]any) (component.Component, error) {
		c := component.New(component.Options{})
		c.InPorts().Add("in", component.PortOptions{})
		return c, nil
	}))

	g := graph.New("bridged")
	g.AddNode("A", "Echo", nil)
	g.AddNode("B", "Drop", nil)
	g.AddEdge(
		graph.EndpointRef{Node: "A", Port: "out"},
		graph.EndpointRef{Node: "B", Port: "in"}, nil)
	g.AddInitial("hello", graph.EndpointRef{Node: "A", Port: "in"}, nil)

	net, err := network.New(g, network.Options{Loader: registry})
	require.NoError(t, err)
	require.NoError(t, net.Connect())
	return net
}

func TestBridgePublishesLifecycle(t *testing.T) {
	net := testNetwork(t)
	pub := &capturePublisher{}
	bridge := New(net, pub, "noflo.test", nil)
	bridge.Attach()

	require.NoError(t, net.Start())
	require.NoError(t, net.Stop())

	subjects, payloads := pub.published()
	require.NotEmpty(t, subjects)
	assert.Contains(t, subjects, "noflo.test.start")
	assert.Contains(t, subjects, "noflo.test.ip")
	assert.Contains(t, subjects, "noflo.test.end")

	for _, data := range payloads {
		var envelope Envelope
		require.NoError(t, json.Unmarshal(data, &envelope))
		assert.NotEmpty(t, envelope.ID)
		assert.NotEmpty(t, envelope.Kind)
		assert.False(t, envelope.Time.IsZero())
	}
}

func TestBridgeDetachStopsForwarding(t *testing.T) {
	net := testNetwork(t)
	pub := &capturePublisher{}
	bridge := New(net, pub, "", nil)
	bridge.Attach()
	bridge.Detach()

	require.NoError(t, net.Start())
	require.NoError(t, net.Stop())

	subjects, _ := pub.published()
	assert.Empty(t, subjects)
}

func TestBridgeDefaultPrefix(t *testing.T) {
	net := testNetwork(t)
	pub := &capturePublisher{}
	bridge := New(net, pub, "", nil)
	bridge.Attach()

	require.NoError(t, net.Start())
	subjects, _ := pub.published()
	require.NotEmpty(t, subjects)
	assert.Contains(t, subjects, "noflo.network.start")
	require.NoError(t, net.Stop())
}
