// Package noflo is a flow-based programming runtime. A program is a
// directed graph of black-box processes exchanging Information Packets
// over typed sockets; the network coordinator brings such a graph to
// life, drives its execution, and tears it back down.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│         Network Coordinator         │  Staged instantiation,
//	│ (connect, start, stop, observation) │  quiescence detection
//	└─────────────────────────────────────┘
//	           ↓ orchestrates
//	┌─────────────────────────────────────┐
//	│            Components               │  Inports, outports,
//	│     (loaded through a registry)     │  load accounting
//	└─────────────────────────────────────┘
//	           ↓ communicate via
//	┌─────────────────────────────────────┐
//	│             Sockets                 │  Ordered point-to-point
//	│    (edges, initials, defaults)      │  packet delivery
//	└─────────────────────────────────────┘
//
// Package layout:
//
//   - graph: nodes, edges and initializers as data; JSON/YAML formats
//   - component: the component contract, port model and Base runtime
//   - socket: the in-process socket implementation
//   - ip: the Information Packet value type
//   - loader: component factory registry
//   - network: the coordinator itself
//   - subgraph: components implemented by an embedded network
//   - eventbridge: event republication over NATS
//   - metric: prometheus registration
//
// # Usage
//
//	registry := loader.NewRegistry(logger)
//	registry.Register("Repeat", repeatFactory)
//
//	g, _ := graph.LoadFile("pipeline.json")
//	net, _ := network.New(g, network.Options{Loader: registry, Logger: logger})
//	if err := net.Connect(); err != nil { ... }
//	if err := net.Start(); err != nil { ... }
//
// The network emits start, end, ip, process-error and icon events
// through Network.Subscribe; once processes have been active and then
// all stay inactive for the debounce window, the network ends on its
// own. A network whose processes never activate ends only on Stop.
package noflo
