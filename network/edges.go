package network

import (
	"fmt"

	"github.com/berrylands/noflo/errors"
	"github.com/berrylands/noflo/graph"
	"github.com/berrylands/noflo/socket"
)

// ensureNode resolves a node id to a process with a component, blocking
// until the component reports ready. There is no timeout: a component
// that never becomes ready holds up network setup indefinitely.
func (n *Network) ensureNode(id, direction string) (*Process, error) {
	process, ok := n.GetNode(id)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no process defined for %s node %s", errors.ErrNodeNotFound, direction, id),
			"Network", "ensureNode", fmt.Sprintf("node %s lookup", id))
	}
	if process.Component == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no component defined for %s node %s", errors.ErrNoComponent, direction, id),
			"Network", "ensureNode", fmt.Sprintf("node %s component lookup", id))
	}
	if !process.Component.IsReady() {
		ready := make(chan struct{})
		process.Component.OnReady(func() {
			close(ready)
		})
		<-ready
	}
	return process, nil
}

// connectPort binds one socket end to a port on a process. The inbound
// flag selects the receiving end. Addressable ports attach with the
// index; others ignore it.
func (n *Network) connectPort(s socket.Socket, process *Process, portName string, index *int, inbound bool) error {
	if inbound {
		s.SetTo(&socket.Endpoint{Node: process.ID, Port: portName, Index: index})
		if process.Component == nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: No inport '%s' defined in process %s (%s)", errors.ErrPortNotFound, portName, process.ID, s.ID()),
				"Network", "connectPort", "inport lookup")
		}
		port, ok := process.Component.InPorts().Get(portName)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: No inport '%s' defined in process %s (%s)", errors.ErrPortNotFound, portName, process.ID, s.ID()),
				"Network", "connectPort", "inport lookup")
		}
		if port.IsAddressable() && index != nil {
			port.Attach(s, *index)
			return nil
		}
		port.Attach(s)
		return nil
	}

	s.SetFrom(&socket.Endpoint{Node: process.ID, Port: portName, Index: index})
	if process.Component == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: No outport '%s' defined in process %s (%s)", errors.ErrPortNotFound, portName, process.ID, s.ID()),
			"Network", "connectPort", "outport lookup")
	}
	port, ok := process.Component.OutPorts().Get(portName)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: No outport '%s' defined in process %s (%s)", errors.ErrPortNotFound, portName, process.ID, s.ID()),
			"Network", "connectPort", "outport lookup")
	}
	if port.IsAddressable() && index != nil {
		port.Attach(s, *index)
		return nil
	}
	port.Attach(s)
	return nil
}

// AddEdge creates and attaches a socket for a graph edge. The inbound
// side attaches first so a synchronous send from the outbound side
// already has a destination. The socket joins the registry only when
// both attachments succeed.
func (n *Network) AddEdge(edge graph.Edge) (socket.Socket, error) {
	from, err := n.ensureNode(edge.From.Node, "outbound")
	if err != nil {
		return nil, err
	}
	s := socket.New(edge.Metadata)
	s.SetDebug(n.isDebug())
	to, err := n.ensureNode(edge.To.Node, "inbound")
	if err != nil {
		return nil, err
	}

	n.subscribeSocket(s, from)
	if err := n.connectPort(s, to, edge.To.Port, edge.To.Index, true); err != nil {
		return nil, err
	}
	if err := n.connectPort(s, from, edge.From.Port, edge.From.Index, false); err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.connections = append(n.connections, s)
	n.mu.Unlock()
	n.logger.Debug("Added edge", "socket", s.ID())
	n.mtr.recordSocketAdded()
	return s, nil
}

// RemoveEdge detaches and removes every registered socket whose
// receiving end is the edge's inport, whatever its source. The outport
// side is detached only for sockets whose source matches the edge.
func (n *Network) RemoveEdge(edge graph.Edge) error {
	n.mu.Lock()
	conns := make([]socket.Socket, len(n.connections))
	copy(conns, n.connections)
	n.mu.Unlock()

	for _, conn := range conns {
		to := conn.To()
		if to == nil || to.Node != edge.To.Node || to.Port != edge.To.Port {
			continue
		}
		if process, ok := n.GetNode(to.Node); ok && process.Component != nil {
			if port, ok := process.Component.InPorts().Get(to.Port); ok {
				port.Detach(conn)
			}
		}
		if from := conn.From(); from != nil && edge.From.Node != "" {
			if from.Node == edge.From.Node && from.Port == edge.From.Port {
				if process, ok := n.GetNode(from.Node); ok && process.Component != nil {
					if port, ok := process.Component.OutPorts().Get(from.Port); ok {
						port.Detach(conn)
					}
				}
			}
		}
		n.removeConnection(conn)
	}
	return nil
}

// AddInitial creates the socket for an initializer and records the
// pending packet. When the network is already running the packet goes
// out immediately; a quiescent but not explicitly stopped network is
// restarted first.
func (n *Network) AddInitial(initializer graph.Initializer) (socket.Socket, error) {
	to, err := n.ensureNode(initializer.To.Node, "inbound")
	if err != nil {
		return nil, err
	}
	s := socket.New(initializer.Metadata)
	s.SetDebug(n.isDebug())
	n.subscribeSocket(s, nil)
	if err := n.connectPort(s, to, initializer.To.Port, initializer.To.Index, true); err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.connections = append(n.connections, s)
	record := initial{socket: s, data: initializer.Data}
	n.initials = append(n.initials, record)
	n.nextInitials = append(n.nextInitials, record)
	stopped := n.stopped
	n.mu.Unlock()
	n.mtr.recordSocketAdded()

	if n.IsRunning() {
		n.sendInitials()
	} else if !stopped {
		n.setStarted(true)
		n.sendInitials()
	}
	return s, nil
}

// RemoveInitial detaches and removes the initializer's socket along with
// its pending records
func (n *Network) RemoveInitial(initializer graph.Initializer) error {
	n.mu.Lock()
	conns := make([]socket.Socket, len(n.connections))
	copy(conns, n.connections)
	n.mu.Unlock()

	for _, conn := range conns {
		to := conn.To()
		if to == nil || to.Node != initializer.To.Node || to.Port != initializer.To.Port {
			continue
		}
		if conn.From() != nil {
			// Regular edge, not an initializer carrier
			continue
		}
		if process, ok := n.GetNode(to.Node); ok && process.Component != nil {
			if port, ok := process.Component.InPorts().Get(to.Port); ok {
				port.Detach(conn)
			}
		}
		n.removeConnection(conn)

		n.mu.Lock()
		initials := n.initials[:0]
		for _, record := range n.initials {
			if record.socket != conn {
				initials = append(initials, record)
			}
		}
		n.initials = initials
		nextInitials := n.nextInitials[:0]
		for _, record := range n.nextInitials {
			if record.socket != conn {
				nextInitials = append(nextInitials, record)
			}
		}
		n.nextInitials = nextInitials
		n.mu.Unlock()
	}
	return nil
}

// AddDefaults wires a carrier socket to every inport of the node that
// declares a default value and has nothing attached yet
func (n *Network) AddDefaults(id string) error {
	process, ok := n.GetNode(id)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrNodeNotFound, id),
			"Network", "AddDefaults", fmt.Sprintf("node %s lookup", id))
	}
	if process.Component == nil {
		return nil
	}
	if !process.Component.IsReady() {
		ready := make(chan struct{})
		process.Component.OnReady(func() {
			close(ready)
		})
		<-ready
	}

	for portName, port := range process.Component.InPorts().Ports() {
		if !port.HasDefault() || port.IsAttached() {
			continue
		}
		s := socket.New(nil)
		s.SetDebug(n.isDebug())
		n.subscribeSocket(s, nil)
		if err := n.connectPort(s, process, portName, nil, true); err != nil {
			return err
		}
		n.mu.Lock()
		n.connections = append(n.connections, s)
		n.defaults = append(n.defaults, s)
		n.mu.Unlock()
		n.mtr.recordSocketAdded()
	}
	return nil
}

// removeConnection drops a socket from the registry and defaults list
func (n *Network) removeConnection(s socket.Socket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, conn := range n.connections {
		if conn == s {
			n.connections = append(n.connections[:i], n.connections[i+1:]...)
			break
		}
	}
	for i, conn := range n.defaults {
		if conn == s {
			n.defaults = append(n.defaults[:i], n.defaults[i+1:]...)
			break
		}
	}
}
