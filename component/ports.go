package component

import (
	"sync"

	"github.com/berrylands/noflo/ip"
	"github.com/berrylands/noflo/socket"
)

// PortOptions configures a port at registration time
type PortOptions struct {
	// Addressable ports expose indexed slots and accept multiple sockets
	// at distinct indexes
	Addressable bool
	// Default is injected by the coordinator when no other socket feeds
	// the port; only meaningful when HasDefault is true
	Default    any
	HasDefault bool
	// Required ports must be attached for the component to operate;
	// informational for tooling
	Required    bool
	Description string
}

// InPort is a named inbound endpoint on a component
type InPort struct {
	name string
	opts PortOptions

	mu       sync.Mutex
	sockets  []socket.Socket
	detach   map[socket.Socket]func()
	handlers []func(*ip.IP)
}

// NewInPort creates an inport with the given options
func NewInPort(name string, opts PortOptions) *InPort {
	return &InPort{
		name:   name,
		opts:   opts,
		detach: make(map[socket.Socket]func()),
	}
}

// Name returns the port name
func (p *InPort) Name() string { return p.name }

// IsAddressable reports whether the port exposes indexed slots
func (p *InPort) IsAddressable() bool { return p.opts.Addressable }

// HasDefault reports whether the port declares a default value
func (p *InPort) HasDefault() bool { return p.opts.HasDefault }

// Default returns the declared default value
func (p *InPort) Default() any { return p.opts.Default }

// Attach binds a socket to the port. For addressable ports the optional
// index selects the slot; without one the socket is appended.
func (p *InPort) Attach(s socket.Socket, index ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var slot *int
	if p.opts.Addressable && len(index) > 0 {
		idx := index[0]
		for len(p.sockets) <= idx {
			p.sockets = append(p.sockets, nil)
		}
		p.sockets[idx] = s
		slot = &idx
	} else {
		p.sockets = append(p.sockets, s)
	}

	if p.opts.HasDefault {
		def := p.opts.Default
		s.SetDataDelegate(func() any { return def })
	}

	p.detach[s] = s.OnIP(func(packet *ip.IP) {
		p.deliver(packet, slot)
	})
}

func (p *InPort) deliver(packet *ip.IP, index *int) {
	if index != nil {
		packet = packet.Clone()
		packet.Index = index
	}
	p.mu.Lock()
	handlers := make([]func(*ip.IP), len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()
	for _, fn := range handlers {
		fn(packet)
	}
}

// Detach unbinds a socket and stops delivery from it
func (p *InPort) Detach(s socket.Socket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if unsub, ok := p.detach[s]; ok {
		unsub()
		delete(p.detach, s)
	}
	for i, attached := range p.sockets {
		if attached == s {
			p.sockets = append(p.sockets[:i], p.sockets[i+1:]...)
			break
		}
	}
}

// IsAttached reports whether any socket feeds the port
func (p *InPort) IsAttached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sockets {
		if s != nil {
			return true
		}
	}
	return false
}

// Sockets returns the currently attached sockets
func (p *InPort) Sockets() []socket.Socket {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]socket.Socket, 0, len(p.sockets))
	for _, s := range p.sockets {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// OnIP registers a packet handler. Addressable ports deliver clones
// carrying the slot index.
func (p *InPort) OnIP(fn func(*ip.IP)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

// OutPort is a named outbound endpoint on a component
type OutPort struct {
	name string
	opts PortOptions

	mu      sync.Mutex
	sockets []socket.Socket
}

// NewOutPort creates an outport with the given options
func NewOutPort(name string, opts PortOptions) *OutPort {
	return &OutPort{name: name, opts: opts}
}

// Name returns the port name
func (p *OutPort) Name() string { return p.name }

// IsAddressable reports whether the port exposes indexed slots
func (p *OutPort) IsAddressable() bool { return p.opts.Addressable }

// Attach binds a socket to the port
func (p *OutPort) Attach(s socket.Socket, index ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.Addressable && len(index) > 0 {
		idx := index[0]
		for len(p.sockets) <= idx {
			p.sockets = append(p.sockets, nil)
		}
		p.sockets[idx] = s
		return
	}
	p.sockets = append(p.sockets, s)
}

// Detach unbinds a socket
func (p *OutPort) Detach(s socket.Socket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, attached := range p.sockets {
		if attached == s {
			p.sockets = append(p.sockets[:i], p.sockets[i+1:]...)
			return
		}
	}
}

// IsAttached reports whether any socket is bound
func (p *OutPort) IsAttached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sockets {
		if s != nil {
			return true
		}
	}
	return false
}

// Sockets returns the currently attached sockets
func (p *OutPort) Sockets() []socket.Socket {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]socket.Socket, 0, len(p.sockets))
	for _, s := range p.sockets {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Post delivers a packet on every attached socket
func (p *OutPort) Post(packet *ip.IP) {
	for _, s := range p.Sockets() {
		s.Post(packet)
	}
}

// Send delivers a data packet on every attached socket
func (p *OutPort) Send(data any) {
	p.Post(ip.NewData(data))
}

// PostIndex delivers a packet on the socket at the given slot
func (p *OutPort) PostIndex(index int, packet *ip.IP) {
	p.mu.Lock()
	var s socket.Socket
	if index >= 0 && index < len(p.sockets) {
		s = p.sockets[index]
	}
	p.mu.Unlock()
	if s != nil {
		s.Post(packet)
	}
}

// InPorts maps port names to inports
type InPorts struct {
	mu    sync.Mutex
	ports map[string]*InPort
}

// NewInPorts creates an empty inport collection
func NewInPorts() *InPorts {
	return &InPorts{ports: make(map[string]*InPort)}
}

// Add registers an inport under its name and returns it
func (ps *InPorts) Add(name string, opts PortOptions) *InPort {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	port := NewInPort(name, opts)
	ps.ports[name] = port
	return port
}

// Get looks up an inport by name
func (ps *InPorts) Get(name string) (*InPort, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	port, ok := ps.ports[name]
	return port, ok
}

// Ports returns a copy of the name to port mapping
func (ps *InPorts) Ports() map[string]*InPort {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make(map[string]*InPort, len(ps.ports))
	for name, port := range ps.ports {
		out[name] = port
	}
	return out
}

// OutPorts maps port names to outports
type OutPorts struct {
	mu    sync.Mutex
	ports map[string]*OutPort
}

// NewOutPorts creates an empty outport collection
func NewOutPorts() *OutPorts {
	return &OutPorts{ports: make(map[string]*OutPort)}
}

// Add registers an outport under its name and returns it
func (ps *OutPorts) Add(name string, opts PortOptions) *OutPort {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	port := NewOutPort(name, opts)
	ps.ports[name] = port
	return port
}

// Get looks up an outport by name
func (ps *OutPorts) Get(name string) (*OutPort, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	port, ok := ps.ports[name]
	return port, ok
}

// Ports returns a copy of the name to port mapping
func (ps *OutPorts) Ports() map[string]*OutPort {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make(map[string]*OutPort, len(ps.ports))
	for name, port := range ps.ports {
		out[name] = port
	}
	return out
}
