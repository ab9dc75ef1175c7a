package component

import "sync"

// emitter is a minimal ordered handler registry with removal
type emitter[T any] struct {
	nextID   int
	handlers []emitterEntry[T]
}

type emitterEntry[T any] struct {
	id int
	fn func(T)
}

func (e *emitter[T]) add(fn func(T)) int {
	e.nextID++
	e.handlers = append(e.handlers, emitterEntry[T]{id: e.nextID, fn: fn})
	return e.nextID
}

func (e *emitter[T]) remove(id int) {
	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
			return
		}
	}
}

func (e *emitter[T]) snapshot() []func(T) {
	fns := make([]func(T), len(e.handlers))
	for i, h := range e.handlers {
		fns[i] = h.fn
	}
	return fns
}

// Options configures a Base component
type Options struct {
	// Icon exposed through the HasIcon capability
	Icon string
	// Legacy marks the component as using connection-based activity
	// accounting instead of load counting
	Legacy bool
	// DeferReady leaves the component not ready until SetReady is called
	DeferReady bool
	Description string
}

// Base is the reference Component implementation. Concrete components
// embed it, register ports, and drive Activate/Deactivate around their
// packet handling.
type Base struct {
	inPorts  *InPorts
	outPorts *OutPorts

	mu          sync.Mutex
	nodeID      string
	ready       bool
	readyFns    []func()
	started     bool
	load        int
	icon        string
	legacy      bool
	description string

	activateEmitter   emitter[int]
	deactivateEmitter emitter[int]
	iconEmitter       emitter[string]
}

var (
	_ Component        = (*Base)(nil)
	_ HasIcon          = (*Base)(nil)
	_ LegacyActivation = (*Base)(nil)
)

// New creates a Base component. Unless DeferReady is set the component
// reports ready immediately.
func New(opts Options) *Base {
	return &Base{
		inPorts:     NewInPorts(),
		outPorts:    NewOutPorts(),
		ready:       !opts.DeferReady,
		icon:        opts.Icon,
		legacy:      opts.Legacy,
		description: opts.Description,
	}
}

// InPorts returns the inbound port collection
func (b *Base) InPorts() *InPorts { return b.inPorts }

// OutPorts returns the outbound port collection
func (b *Base) OutPorts() *OutPorts { return b.outPorts }

// IsReady reports whether the component has finished initializing
func (b *Base) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// OnReady invokes fn immediately when ready, otherwise once on the ready
// transition
func (b *Base) OnReady(fn func()) {
	b.mu.Lock()
	if b.ready {
		b.mu.Unlock()
		fn()
		return
	}
	b.readyFns = append(b.readyFns, fn)
	b.mu.Unlock()
}

// SetReady transitions the component to ready and fires pending waiters
func (b *Base) SetReady() {
	b.mu.Lock()
	if b.ready {
		b.mu.Unlock()
		return
	}
	b.ready = true
	waiters := b.readyFns
	b.readyFns = nil
	b.mu.Unlock()
	for _, fn := range waiters {
		fn()
	}
}

// IsStarted reports whether the component is running
func (b *Base) IsStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// Start marks the component started
func (b *Base) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
	return nil
}

// Shutdown marks the component stopped
func (b *Base) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
	return nil
}

// Load reports the number of in-flight activations
func (b *Base) Load() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load
}

// Activate increments load and notifies subscribers. Components call it
// when they begin handling a packet.
func (b *Base) Activate() {
	b.mu.Lock()
	b.load++
	load := b.load
	fns := b.activateEmitter.snapshot()
	b.mu.Unlock()
	for _, fn := range fns {
		fn(load)
	}
}

// Deactivate decrements load and notifies subscribers
func (b *Base) Deactivate() {
	b.mu.Lock()
	if b.load > 0 {
		b.load--
	}
	load := b.load
	fns := b.deactivateEmitter.snapshot()
	b.mu.Unlock()
	for _, fn := range fns {
		fn(load)
	}
}

// OnActivate subscribes to activation events
func (b *Base) OnActivate(fn func(load int)) func() {
	b.mu.Lock()
	id := b.activateEmitter.add(fn)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.activateEmitter.remove(id)
	}
}

// OnDeactivate subscribes to deactivation events
func (b *Base) OnDeactivate(fn func(load int)) func() {
	b.mu.Lock()
	id := b.deactivateEmitter.add(fn)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.deactivateEmitter.remove(id)
	}
}

// NodeID returns the graph node this instance is bound to
func (b *Base) NodeID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nodeID
}

// SetNodeID binds the instance to a graph node
func (b *Base) SetNodeID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodeID = id
}

// Description returns the human-readable component description
func (b *Base) Description() string { return b.description }

// Icon returns the current icon
func (b *Base) Icon() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.icon
}

// SetIcon changes the icon and notifies subscribers
func (b *Base) SetIcon(icon string) {
	b.mu.Lock()
	b.icon = icon
	fns := b.iconEmitter.snapshot()
	b.mu.Unlock()
	for _, fn := range fns {
		fn(icon)
	}
}

// OnIcon subscribes to icon changes
func (b *Base) OnIcon(fn func(icon string)) func() {
	b.mu.Lock()
	id := b.iconEmitter.add(fn)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.iconEmitter.remove(id)
	}
}

// IsLegacy reports whether the component uses connection-based accounting
func (b *Base) IsLegacy() bool { return b.legacy }
