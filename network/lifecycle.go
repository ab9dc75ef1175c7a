package network

import (
	"fmt"

	"github.com/berrylands/noflo/errors"
	"github.com/berrylands/noflo/ip"
)

// yieldEvery bounds synchronous recursion during Connect: after this
// many elements the connector gives the scheduler a turn
const yieldEvery = 100

// yield blocks until the scheduler has run one turn
func (n *Network) yield() {
	done := make(chan struct{})
	n.sched.Schedule(func() {
		close(done)
	})
	<-done
}

// Connect instantiates the graph in four strictly ordered phases: nodes,
// edges, initializers, defaults. Elements within a phase run
// sequentially; any error aborts the whole connect.
func (n *Network) Connect() error {
	for i, node := range n.graph.Nodes {
		if i > 0 && i%yieldEvery == 0 {
			n.yield()
		}
		if _, err := n.AddNode(node); err != nil {
			return errors.Wrap(err, "Network", "Connect", fmt.Sprintf("node %s instantiation", node.ID))
		}
	}
	for i, edge := range n.graph.Edges {
		if i > 0 && i%yieldEvery == 0 {
			n.yield()
		}
		if _, err := n.AddEdge(edge); err != nil {
			return errors.Wrap(err, "Network", "Connect", fmt.Sprintf("edge %s -> %s wiring", edge.From, edge.To))
		}
	}
	for i, initializer := range n.graph.Initializers {
		if i > 0 && i%yieldEvery == 0 {
			n.yield()
		}
		if _, err := n.AddInitial(initializer); err != nil {
			return errors.Wrap(err, "Network", "Connect", fmt.Sprintf("initializer for %s wiring", initializer.To))
		}
	}
	for i, node := range n.graph.Nodes {
		if i > 0 && i%yieldEvery == 0 {
			n.yield()
		}
		if err := n.AddDefaults(node.ID); err != nil {
			return errors.Wrap(err, "Network", "Connect", fmt.Sprintf("node %s defaults wiring", node.ID))
		}
	}
	n.logger.Debug("Network connected",
		"nodes", len(n.graph.Nodes),
		"edges", len(n.graph.Edges),
		"initializers", len(n.graph.Initializers))
	return nil
}

// startComponents starts every process component; components already
// started are skipped
func (n *Network) startComponents() error {
	for _, process := range n.Processes() {
		if process.Component == nil {
			continue
		}
		if process.Component.IsStarted() {
			continue
		}
		if err := process.Component.Start(); err != nil {
			return errors.Wrap(err, "Network", "startComponents", fmt.Sprintf("process %s start", process.ID))
		}
		n.mtr.recordProcessStarted()
	}
	return nil
}

// sendInitials posts every pending initial packet and drains the list.
// The batch is deferred by one scheduler turn so subscribers attached
// during the same turn still observe the packets.
func (n *Network) sendInitials() {
	done := make(chan struct{})
	n.sched.Schedule(func() {
		defer close(done)
		n.mu.Lock()
		batch := n.initials
		n.initials = nil
		n.mu.Unlock()
		for _, record := range batch {
			packet := ip.NewData(record.data)
			packet.Initial = true
			packet.WithMetadata("initial", true)
			record.socket.Post(packet)
			n.mtr.recordInitialSent()
		}
	})
	<-done
}

// sendDefaults fires each default carrier socket, except where the
// target inport has picked up additional sockets since the default was
// wired (a subgraph inport already fed from the parent)
func (n *Network) sendDefaults() {
	for _, s := range n.Defaults() {
		to := s.To()
		if to == nil {
			continue
		}
		process, ok := n.GetNode(to.Node)
		if !ok || process.Component == nil {
			continue
		}
		port, ok := process.Component.InPorts().Get(to.Port)
		if !ok {
			continue
		}
		if len(port.Sockets()) != 1 {
			continue
		}
		s.Connect()
		s.Send(nil)
		s.Disconnect()
	}
}

// Start brings the network up: refresh initials from nextInitials so
// restarts re-fire them, clear the event buffer, start the components,
// send initials and defaults, then transition to started. Starting a
// started network performs a full stop first.
func (n *Network) Start() error {
	n.mu.Lock()
	if n.debounceTimer != nil {
		n.abortDebounce = true
	}
	started := n.started
	n.mu.Unlock()

	if started {
		if err := n.Stop(); err != nil {
			return err
		}
		return n.Start()
	}

	n.mu.Lock()
	n.initials = make([]initial, len(n.nextInitials))
	copy(n.initials, n.nextInitials)
	n.eventBuffer = nil
	n.mu.Unlock()

	if err := n.startComponents(); err != nil {
		return err
	}
	n.sendInitials()
	n.sendDefaults()
	n.setStarted(true)
	n.logger.Info("Network started", "graph", n.graph.Name)
	return nil
}

// Stop tears the network down: disconnect every connected socket, shut
// every started component down, then transition to stopped
func (n *Network) Stop() error {
	n.mu.Lock()
	if n.debounceTimer != nil {
		n.abortDebounce = true
	}
	started := n.started
	n.mu.Unlock()

	if !started {
		n.mu.Lock()
		n.stopped = true
		n.mu.Unlock()
		return nil
	}

	for _, s := range n.Connections() {
		if s.IsConnected() {
			s.Disconnect()
		}
	}

	for _, process := range n.Processes() {
		if process.Component == nil {
			continue
		}
		if !process.Component.IsStarted() {
			continue
		}
		if err := process.Component.Shutdown(); err != nil {
			return errors.Wrap(err, "Network", "Stop", fmt.Sprintf("process %s shutdown", process.ID))
		}
	}

	n.setStarted(false)
	n.mu.Lock()
	n.stopped = true
	n.mu.Unlock()
	n.logger.Info("Network stopped", "graph", n.graph.Name)
	return nil
}

// Restart performs a full stop followed by a start; initial packets are
// re-fired
func (n *Network) Restart() error {
	if err := n.Stop(); err != nil {
		return err
	}
	return n.Start()
}

// Shutdown stops the network and discards every process record along
// with its sockets and initial packets. The network can be connected
// again afterwards.
func (n *Network) Shutdown() error {
	if err := n.Stop(); err != nil {
		return err
	}
	for _, process := range n.Processes() {
		if err := n.RemoveNode(process.ID); err != nil {
			return err
		}
	}
	n.mu.Lock()
	n.connections = nil
	n.defaults = nil
	n.initials = nil
	n.nextInitials = nil
	n.mu.Unlock()
	return nil
}

// GetActiveProcesses lists the ids of processes with in-flight load or
// open legacy connections. A network that is not started has no active
// processes.
func (n *Network) GetActiveProcesses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var active []string
	if !n.started {
		return active
	}
	for id, process := range n.processes {
		if process.Component == nil {
			continue
		}
		if process.Component.Load() > 0 {
			active = append(active, id)
		}
		if process.openConnections > 0 {
			active = append(active, id)
		}
	}
	return active
}

// checkIfFinished runs whenever a process's load drops to zero and on a
// legacy source's last disconnect. A network that looks
// quiescent gets a debounced re-check; only if it is still quiescent
// after the delay does the run-state flip and end fire. A concurrent
// activation aborts the pending check.
func (n *Network) checkIfFinished() {
	if n.IsRunning() {
		return
	}
	n.mu.Lock()
	n.abortDebounce = false
	if n.debounceTimer != nil {
		n.debounceTimer.Stop()
	}
	n.debounceGen++
	gen := n.debounceGen
	n.debounceTimer = n.sched.ScheduleAfter(endDebounceDelay, func() {
		n.mu.Lock()
		if n.debounceGen != gen {
			// A newer debounce superseded this one
			n.mu.Unlock()
			return
		}
		aborted := n.abortDebounce
		n.debounceTimer = nil
		n.mu.Unlock()
		if aborted {
			return
		}
		if n.IsRunning() {
			return
		}
		n.setStarted(false)
	})
	n.mu.Unlock()
}
