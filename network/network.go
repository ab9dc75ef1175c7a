// Package network implements the coordinator of a flow-based program: it
// instantiates the processes and sockets a graph describes, injects
// initial packets and port defaults, multiplexes runtime events, and
// detects when a long-lived network has finished.
package network

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/berrylands/noflo/component"
	"github.com/berrylands/noflo/errors"
	"github.com/berrylands/noflo/graph"
	"github.com/berrylands/noflo/loader"
	"github.com/berrylands/noflo/metric"
	"github.com/berrylands/noflo/socket"
)

// endDebounceDelay is how long the network must stay quiescent after the
// last deactivation before the end event fires
const endDebounceDelay = 50 * time.Millisecond

// Process is an instantiated component bound to a graph node. A record
// without a component is a reserved placeholder.
type Process struct {
	ID            string
	Component     component.Component
	ComponentName string

	// openConnections tracks legacy connection-based activity; owned by
	// the coordinator, not the component
	openConnections int

	unsubscribes []func()
}

// initial pairs an attached socket with the data to post on start
type initial struct {
	socket socket.Socket
	data   any
}

// SubgraphComponent is the capability interface for components whose
// implementation is itself a network
type SubgraphComponent interface {
	component.Component
	Network() *Network
}

// Options configures a Network
type Options struct {
	// Loader resolves component references; required for graphs whose
	// nodes name components
	Loader loader.Loader
	// Scheduler paces deferred work; defaults to the goroutine-backed one
	Scheduler Scheduler
	// Logger receives structured coordinator logs; nil discards
	Logger *slog.Logger
	// Metrics enables prometheus instrumentation when set
	Metrics *metric.Registry
	// Debug propagates socket tracing through the network and every
	// subgraph
	Debug bool
}

// Network coordinates the processes and sockets of one graph
type Network struct {
	graph  *graph.Graph
	loader loader.Loader
	sched  Scheduler
	logger *slog.Logger
	mtr    *networkMetrics

	mu           sync.Mutex
	processes    map[string]*Process
	connections  []socket.Socket
	defaults     []socket.Socket
	initials     []initial
	nextInitials []initial

	listeners      map[EventKind][]listenerEntry
	nextListenerID int
	eventBuffer    []Event

	started     bool
	stopped     bool
	startupDate time.Time
	debug       bool

	debounceTimer Timer
	debounceGen   int
	abortDebounce bool
}

// New creates a network for the given graph. The graph is not
// instantiated until Connect is called.
func New(g *graph.Graph, opts Options) (*Network, error) {
	if g == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidGraph, "Network", "New", "graph validation")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = NewScheduler()
	}
	mtr, err := newNetworkMetrics(opts.Metrics)
	if err != nil {
		logger.Error("Failed to initialize network metrics", "error", err)
		mtr = nil
	}
	return &Network{
		graph:     g,
		loader:    opts.Loader,
		sched:     sched,
		logger:    logger,
		mtr:       mtr,
		processes: make(map[string]*Process),
		listeners: make(map[EventKind][]listenerEntry),
		stopped:   true,
		debug:     opts.Debug,
	}, nil
}

// Graph returns the graph this network instantiates
func (n *Network) Graph() *graph.Graph {
	return n.graph
}

// AddNode registers a process for a graph node. Registration is
// idempotent by id: a second call returns the existing record without
// reloading the component. Nodes without a component are stored as
// placeholders.
func (n *Network) AddNode(node graph.Node) (*Process, error) {
	n.mu.Lock()
	if existing, ok := n.processes[node.ID]; ok {
		n.mu.Unlock()
		return existing, nil
	}
	n.mu.Unlock()

	process := &Process{ID: node.ID}

	// No component defined; register the placeholder and return
	if node.Component == "" {
		n.mu.Lock()
		n.processes[process.ID] = process
		n.mu.Unlock()
		return process, nil
	}

	if n.loader == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no loader configured for component %s", errors.ErrComponentUnknown, node.Component),
			"Network", "AddNode", fmt.Sprintf("node %s instantiation", node.ID))
	}

	instance, err := n.loader.Load(node.Component, node.Metadata)
	if err != nil {
		return nil, err
	}
	instance.SetNodeID(node.ID)
	process.Component = instance
	process.ComponentName = node.Component

	// Subgraphs relay their inner events before node-level subscription
	if _, ok := instance.(SubgraphComponent); ok {
		n.subscribeSubgraph(process)
	}
	n.subscribeNode(process)

	n.mu.Lock()
	n.processes[process.ID] = process
	n.mu.Unlock()

	n.logger.Debug("Added node", "node", node.ID, "component", node.Component)
	n.mtr.recordNodeAdded()
	return process, nil
}

// GetNode looks up a process by node id
func (n *Network) GetNode(id string) (*Process, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.processes[id]
	return p, ok
}

// Processes returns the current process records
func (n *Network) Processes() []*Process {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Process, 0, len(n.processes))
	for _, p := range n.processes {
		out = append(out, p)
	}
	return out
}

// RemoveNode shuts the node's component down and removes the record.
// The record survives a failed shutdown.
func (n *Network) RemoveNode(id string) error {
	n.mu.Lock()
	process, ok := n.processes[id]
	n.mu.Unlock()
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrNodeNotFound, id),
			"Network", "RemoveNode", fmt.Sprintf("node %s lookup", id))
	}

	if process.Component != nil {
		if err := process.Component.Shutdown(); err != nil {
			return errors.Wrap(err, "Network", "RemoveNode", fmt.Sprintf("node %s shutdown", id))
		}
	}
	for _, unsub := range process.unsubscribes {
		unsub()
	}

	n.mu.Lock()
	delete(n.processes, id)
	n.mu.Unlock()
	n.logger.Debug("Removed node", "node", id)
	return nil
}

// RenameNode rewrites a process id. Renaming onto an existing id is an
// error.
func (n *Network) RenameNode(oldID, newID string) error {
	n.mu.Lock()
	process, ok := n.processes[oldID]
	if !ok {
		n.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrNodeNotFound, oldID),
			"Network", "RenameNode", fmt.Sprintf("node %s lookup", oldID))
	}
	if _, exists := n.processes[newID]; exists {
		n.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrNodeExists, newID),
			"Network", "RenameNode", fmt.Sprintf("node %s collision", newID))
	}
	delete(n.processes, oldID)
	process.ID = newID
	n.processes[newID] = process
	n.mu.Unlock()

	if process.Component != nil {
		process.Component.SetNodeID(newID)
	}
	return nil
}

// Connections returns the live sockets
func (n *Network) Connections() []socket.Socket {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]socket.Socket, len(n.connections))
	copy(out, n.connections)
	return out
}

// Defaults returns the default-value carrier sockets
func (n *Network) Defaults() []socket.Socket {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]socket.Socket, len(n.defaults))
	copy(out, n.defaults)
	return out
}

// IsStarted reports whether the network is started
func (n *Network) IsStarted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.started
}

// IsStopped reports whether the network is stopped: true from New until
// the first start, and again after Stop
func (n *Network) IsStopped() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stopped
}

// IsRunning reports whether any process is currently active
func (n *Network) IsRunning() bool {
	return len(n.GetActiveProcesses()) > 0
}

// Uptime reports how long the network has been running; zero when the
// network is not started
func (n *Network) Uptime() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started || n.startupDate.IsZero() {
		return 0
	}
	return time.Since(n.startupDate)
}

// StartupDate returns when the network was first started
func (n *Network) StartupDate() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.startupDate
}

// setStarted transitions the run-state bits and emits start or end.
// Transitions into the current state are no-ops.
func (n *Network) setStarted(started bool) {
	n.mu.Lock()
	if n.started == started {
		n.mu.Unlock()
		return
	}

	if started {
		if n.startupDate.IsZero() {
			n.startupDate = time.Now()
		}
		n.started = true
		n.stopped = false
		payload := StartPayload{Start: n.startupDate}
		n.mu.Unlock()
		n.mtr.recordStarted(true)
		n.bufferedEmit(EventStart, payload)
		return
	}

	uptime := time.Duration(0)
	if !n.startupDate.IsZero() {
		uptime = time.Since(n.startupDate)
	}
	n.started = false
	payload := EndPayload{
		Start:  n.startupDate,
		End:    time.Now(),
		Uptime: uptime,
	}
	n.mu.Unlock()
	n.mtr.recordStarted(false)
	n.bufferedEmit(EventEnd, payload)
}

// SetDebug toggles socket tracing on every socket and recursively in
// every subgraph network
func (n *Network) SetDebug(active bool) {
	n.mu.Lock()
	n.debug = active
	conns := make([]socket.Socket, len(n.connections))
	copy(conns, n.connections)
	procs := make([]*Process, 0, len(n.processes))
	for _, p := range n.processes {
		procs = append(procs, p)
	}
	n.mu.Unlock()

	for _, s := range conns {
		s.SetDebug(active)
	}
	for _, p := range procs {
		if p.Component == nil {
			continue
		}
		if sub, ok := p.Component.(SubgraphComponent); ok && sub.Network() != nil {
			sub.Network().SetDebug(active)
		}
	}
}

// isDebug reads the debug flag
func (n *Network) isDebug() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.debug
}
