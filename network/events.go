package network

import (
	"time"

	"github.com/berrylands/noflo/component"
	"github.com/berrylands/noflo/ip"
	"github.com/berrylands/noflo/socket"
)

// EventKind identifies a coordinator event
type EventKind string

// Coordinator event kinds. The legacy kinds are synthesized from ip
// events for subscribers of the older connection-oriented protocol.
const (
	EventStart        EventKind = "start"
	EventEnd          EventKind = "end"
	EventIP           EventKind = "ip"
	EventProcessError EventKind = "process-error"
	EventIcon         EventKind = "icon"
	EventError        EventKind = "error"

	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
	EventBeginGroup EventKind = "begingroup"
	EventEndGroup   EventKind = "endgroup"
	EventData       EventKind = "data"
)

// Event is one entry on the coordinator's event stream
type Event struct {
	Kind    EventKind
	Payload any
}

// StartPayload accompanies the start event
type StartPayload struct {
	Start time.Time
}

// EndPayload accompanies the end event
type EndPayload struct {
	Start  time.Time
	End    time.Time
	Uptime time.Duration
}

// IPPayload accompanies ip events and their legacy derivatives. Subgraph
// holds provenance node ids, outermost first, when the packet originated
// inside a nested network.
type IPPayload struct {
	ID       string
	Kind     ip.Kind
	Socket   socket.Socket
	Data     any
	Metadata map[string]any
	Subgraph []string
}

// ProcessErrorPayload accompanies process-error events
type ProcessErrorPayload struct {
	ID       string
	Error    error
	Process  string
	Subgraph []string
}

// IconPayload accompanies icon events
type IconPayload struct {
	ID   string
	Icon string
}

// SocketPayload accompanies legacy connect and disconnect events
type SocketPayload struct {
	ID     string
	Socket socket.Socket
}

type listenerEntry struct {
	id int
	fn func(Event)
}

// Subscribe registers a handler for one event kind and returns its
// unsubscribe function
func (n *Network) Subscribe(kind EventKind, fn func(Event)) (unsubscribe func()) {
	n.mu.Lock()
	n.nextListenerID++
	id := n.nextListenerID
	n.listeners[kind] = append(n.listeners[kind], listenerEntry{id: id, fn: fn})
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		entries := n.listeners[kind]
		for i, e := range entries {
			if e.id == id {
				n.listeners[kind] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

func (n *Network) hasListeners(kind EventKind) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners[kind]) > 0
}

// emit delivers an event to its subscribers immediately
func (n *Network) emit(kind EventKind, payload any) {
	n.mu.Lock()
	entries := n.listeners[kind]
	fns := make([]func(Event), len(entries))
	for i, e := range entries {
		fns[i] = e.fn
	}
	n.mu.Unlock()
	n.mtr.recordEvent(string(kind))
	for _, fn := range fns {
		fn(Event{Kind: kind, Payload: payload})
	}
}

// bufferedEmit routes an event through the pre-start buffer. Icon,
// error, process-error and end events always go out immediately;
// everything else emitted before the network starts is held and flushed
// in order right after the start event.
func (n *Network) bufferedEmit(kind EventKind, payload any) {
	switch kind {
	case EventIcon, EventError, EventProcessError, EventEnd:
		n.emit(kind, payload)
		return
	}

	n.mu.Lock()
	if !n.started {
		n.eventBuffer = append(n.eventBuffer, Event{Kind: kind, Payload: payload})
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	n.emit(kind, payload)

	if kind == EventStart {
		// Once the network has started the held events can go out
		n.mu.Lock()
		buffered := n.eventBuffer
		n.eventBuffer = nil
		n.mu.Unlock()
		for _, ev := range buffered {
			n.emit(ev.Kind, ev.Payload)
		}
	}

	if kind == EventIP {
		// Synthesize the legacy events from the packet kind
		ipPayload, ok := payload.(IPPayload)
		if !ok {
			return
		}
		switch ipPayload.Kind {
		case ip.OpenBracket:
			n.emit(EventBeginGroup, ipPayload)
		case ip.CloseBracket:
			n.emit(EventEndGroup, ipPayload)
		case ip.Data:
			n.emit(EventData, ipPayload)
		}
	}
}

// subscribeSocket re-emits socket traffic as coordinator events. For
// legacy sources the open-connection count on the process record is
// maintained and the quiescence detector runs on last disconnect.
func (n *Network) subscribeSocket(s socket.Socket, source *Process) {
	s.OnIP(func(packet *ip.IP) {
		if n.isDebug() {
			n.logger.Debug("Socket fired", "socket", s.ID(), "kind", string(packet.Kind))
		}
		n.bufferedEmit(EventIP, IPPayload{
			ID:       s.ID(),
			Kind:     packet.Kind,
			Socket:   s,
			Data:     packet.Data,
			Metadata: packet.Metadata,
		})
	})
	s.OnError(func(err error) {
		if !n.hasListeners(EventProcessError) {
			// Nobody to deliver to; surface instead of swallowing
			panic(err)
		}
		id := ""
		if source != nil {
			id = source.ID
		}
		n.bufferedEmit(EventProcessError, ProcessErrorPayload{
			ID:      id,
			Error:   err,
			Process: id,
		})
	})

	if source == nil || source.Component == nil || !component.IsLegacy(source.Component) {
		return
	}
	// Legacy components signal activity through connection state
	s.OnConnect(func() {
		n.mu.Lock()
		source.openConnections++
		n.mu.Unlock()
		n.bufferedEmit(EventConnect, SocketPayload{ID: s.ID(), Socket: s})
	})
	s.OnDisconnect(func() {
		n.mu.Lock()
		source.openConnections--
		if source.openConnections < 0 {
			source.openConnections = 0
		}
		last := source.openConnections == 0
		n.mu.Unlock()
		n.bufferedEmit(EventDisconnect, SocketPayload{ID: s.ID(), Socket: s})
		if last {
			n.checkIfFinished()
		}
	})
}

// subscribeNode wires a process into activation tracking and icon relay
func (n *Network) subscribeNode(process *Process) {
	c := process.Component
	if c == nil {
		return
	}
	unsubActivate := c.OnActivate(func(load int) {
		n.mu.Lock()
		if n.debounceTimer != nil {
			n.abortDebounce = true
		}
		n.mu.Unlock()
	})
	unsubDeactivate := c.OnDeactivate(func(load int) {
		if load > 0 {
			return
		}
		n.checkIfFinished()
	})
	process.unsubscribes = append(process.unsubscribes, unsubActivate, unsubDeactivate)

	if h, ok := component.AsHasIcon(c); ok {
		unsubIcon := h.OnIcon(func(icon string) {
			n.bufferedEmit(EventIcon, IconPayload{ID: process.ID, Icon: icon})
		})
		process.unsubscribes = append(process.unsubscribes, unsubIcon)
	}
}

// subscribeSubgraph relays a child network's ip and process-error
// events, tagging each with the embedding node's id so provenance
// survives arbitrary nesting
func (n *Network) subscribeSubgraph(process *Process) {
	c := process.Component
	if c == nil {
		return
	}
	if !c.IsReady() {
		c.OnReady(func() {
			n.subscribeSubgraph(process)
		})
		return
	}
	sub, ok := c.(SubgraphComponent)
	if !ok || sub.Network() == nil {
		return
	}
	inner := sub.Network()
	inner.SetDebug(n.isDebug())

	unsubIP := inner.Subscribe(EventIP, func(ev Event) {
		payload, ok := ev.Payload.(IPPayload)
		if !ok {
			return
		}
		payload.Subgraph = append([]string{process.ID}, payload.Subgraph...)
		n.bufferedEmit(EventIP, payload)
	})
	unsubErr := inner.Subscribe(EventProcessError, func(ev Event) {
		payload, ok := ev.Payload.(ProcessErrorPayload)
		if !ok {
			return
		}
		if !n.hasListeners(EventProcessError) {
			panic(payload.Error)
		}
		payload.Subgraph = append([]string{process.ID}, payload.Subgraph...)
		n.bufferedEmit(EventProcessError, payload)
	})
	process.unsubscribes = append(process.unsubscribes, unsubIP, unsubErr)
}
