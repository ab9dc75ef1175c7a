// Package subgraph provides a component whose implementation is itself a
// network. The embedding coordinator relays the inner network's events
// with provenance tags, so nesting composes to arbitrary depth.
package subgraph

import (
	"fmt"

	"github.com/berrylands/noflo/component"
	"github.com/berrylands/noflo/errors"
	"github.com/berrylands/noflo/graph"
	"github.com/berrylands/noflo/ip"
	"github.com/berrylands/noflo/network"
	"github.com/berrylands/noflo/socket"
)

// Component runs an inner network and proxies the graph's exported ports
// to its own inports and outports
type Component struct {
	*component.Base
	net *network.Network
}

// New builds the component: the inner network is created and connected,
// exported ports are wired, and only then does the component report
// ready.
func New(g *graph.Graph, opts network.Options) (*Component, error) {
	base := component.New(component.Options{
		Icon:       "sitemap",
		DeferReady: true,
	})
	net, err := network.New(g, opts)
	if err != nil {
		return nil, err
	}
	c := &Component{
		Base: base,
		net:  net,
	}
	if err := c.net.Connect(); err != nil {
		return nil, err
	}
	if err := c.wireExports(g); err != nil {
		return nil, err
	}
	c.SetReady()
	return c, nil
}

// wireExports binds the graph's exported ports to inner process ports
// through internal sockets
func (c *Component) wireExports(g *graph.Graph) error {
	for public, ref := range g.Inports {
		process, ok := c.net.GetNode(ref.Process)
		if !ok || process.Component == nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: exported inport %s targets unknown process %s", errors.ErrNodeNotFound, public, ref.Process),
				"Subgraph", "wireExports", "inport export")
		}
		inner, ok := process.Component.InPorts().Get(ref.Port)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: exported inport %s targets missing port %s.%s", errors.ErrPortNotFound, public, ref.Process, ref.Port),
				"Subgraph", "wireExports", "inport export")
		}
		carrier := socket.New(nil)
		carrier.SetTo(&socket.Endpoint{Node: ref.Process, Port: ref.Port})
		inner.Attach(carrier)

		outer := c.InPorts().Add(public, component.PortOptions{Description: ref.Process + "." + ref.Port})
		outer.OnIP(func(packet *ip.IP) {
			carrier.Post(packet)
		})
	}

	for public, ref := range g.Outports {
		process, ok := c.net.GetNode(ref.Process)
		if !ok || process.Component == nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: exported outport %s targets unknown process %s", errors.ErrNodeNotFound, public, ref.Process),
				"Subgraph", "wireExports", "outport export")
		}
		inner, ok := process.Component.OutPorts().Get(ref.Port)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: exported outport %s targets missing port %s.%s", errors.ErrPortNotFound, public, ref.Process, ref.Port),
				"Subgraph", "wireExports", "outport export")
		}
		carrier := socket.New(nil)
		carrier.SetFrom(&socket.Endpoint{Node: ref.Process, Port: ref.Port})
		inner.Attach(carrier)

		outer := c.OutPorts().Add(public, component.PortOptions{Description: ref.Process + "." + ref.Port})
		carrier.OnIP(func(packet *ip.IP) {
			outer.Post(packet)
		})
	}
	return nil
}

// Network exposes the inner network; this is the subgraph capability the
// coordinator detects
func (c *Component) Network() *network.Network {
	return c.net
}

// Start brings the inner network up, then the component itself
func (c *Component) Start() error {
	if err := c.net.Start(); err != nil {
		return err
	}
	return c.Base.Start()
}

// Shutdown stops the inner network, then the component itself
func (c *Component) Shutdown() error {
	if err := c.net.Stop(); err != nil {
		return err
	}
	return c.Base.Shutdown()
}
