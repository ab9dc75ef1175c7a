// Package socket provides the point-to-point ordered channel between two
// ports. The coordinator consumes the Socket interface; InternalSocket is
// the in-process implementation used for all local wiring.
package socket

import (
	"fmt"
	"strings"
	"sync"

	"github.com/berrylands/noflo/ip"
)

// Endpoint identifies one end of a socket. Index is set only when the
// bound port is addressable.
type Endpoint struct {
	Node  string
	Port  string
	Index *int
}

func (e *Endpoint) String() string {
	if e == nil {
		return ""
	}
	if e.Index != nil {
		return fmt.Sprintf("%s %s[%d]", e.Node, strings.ToUpper(e.Port), *e.Index)
	}
	return fmt.Sprintf("%s %s", e.Node, strings.ToUpper(e.Port))
}

// Socket is the transport contract the coordinator and ports consume.
type Socket interface {
	// Post delivers a packet to the receiving end
	Post(packet *ip.IP)
	// Connect opens a legacy connection
	Connect()
	// Send transmits data over a legacy connection; nil data falls back
	// to the data delegate when one is set
	Send(data any)
	// Disconnect closes a legacy connection
	Disconnect()
	// IsConnected reports whether a legacy connection is open
	IsConnected() bool

	// ID describes the socket's wiring for diagnostics
	ID() string

	From() *Endpoint
	To() *Endpoint
	SetFrom(*Endpoint)
	SetTo(*Endpoint)

	Metadata() map[string]any
	SetDebug(active bool)
	SetDataDelegate(fn func() any)

	// EmitError surfaces a transport error to subscribers
	EmitError(err error)

	OnIP(fn func(*ip.IP)) (unsubscribe func())
	OnError(fn func(error)) (unsubscribe func())
	OnConnect(fn func()) (unsubscribe func())
	OnDisconnect(fn func()) (unsubscribe func())
}

// InternalSocket is the default in-process socket. Delivery is
// synchronous and ordered: handlers run on the caller's goroutine in
// subscription order.
type InternalSocket struct {
	mu           sync.Mutex
	from         *Endpoint
	to           *Endpoint
	metadata     map[string]any
	connected    bool
	debug        bool
	dataDelegate func() any

	ipHandlers         handlerList[*ip.IP]
	errHandlers        handlerList[error]
	connectHandlers    handlerList[struct{}]
	disconnectHandlers handlerList[struct{}]
}

// New creates an unattached socket carrying the given edge metadata
func New(metadata map[string]any) *InternalSocket {
	return &InternalSocket{metadata: metadata}
}

// handlerList keeps ordered handlers with stable removal
type handlerList[T any] struct {
	nextID   int
	handlers []handlerEntry[T]
}

type handlerEntry[T any] struct {
	id int
	fn func(T)
}

func (l *handlerList[T]) add(fn func(T)) int {
	l.nextID++
	l.handlers = append(l.handlers, handlerEntry[T]{id: l.nextID, fn: fn})
	return l.nextID
}

func (l *handlerList[T]) remove(id int) {
	for i, h := range l.handlers {
		if h.id == id {
			l.handlers = append(l.handlers[:i], l.handlers[i+1:]...)
			return
		}
	}
}

func (l *handlerList[T]) snapshot() []func(T) {
	fns := make([]func(T), len(l.handlers))
	for i, h := range l.handlers {
		fns[i] = h.fn
	}
	return fns
}

// Post delivers a packet to every subscriber in order
func (s *InternalSocket) Post(packet *ip.IP) {
	if packet == nil {
		return
	}
	s.mu.Lock()
	fns := s.ipHandlers.snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(packet)
	}
}

// Connect opens a legacy connection and notifies subscribers
func (s *InternalSocket) Connect() {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = true
	fns := s.connectHandlers.snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(struct{}{})
	}
}

// Send transmits data as a data packet. A nil payload falls back to the
// data delegate, which ports with default values install at attach time.
func (s *InternalSocket) Send(data any) {
	s.mu.Lock()
	if data == nil && s.dataDelegate != nil {
		data = s.dataDelegate()
	}
	s.mu.Unlock()
	s.Post(ip.NewData(data))
}

// Disconnect closes a legacy connection and notifies subscribers
func (s *InternalSocket) Disconnect() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	fns := s.disconnectHandlers.snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(struct{}{})
	}
}

// IsConnected reports whether a legacy connection is open
func (s *InternalSocket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// EmitError surfaces a transport error to subscribers
func (s *InternalSocket) EmitError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	fns := s.errHandlers.snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// ID describes the socket's wiring, like "A OUT -> IN B". Sockets
// carrying initial packets or defaults have no source process and render
// as "DATA -> IN B".
func (s *InternalSocket) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromStr := func(e *Endpoint) string {
		if e.Index != nil {
			return fmt.Sprintf("%s %s[%d]", e.Node, strings.ToUpper(e.Port), *e.Index)
		}
		return fmt.Sprintf("%s %s", e.Node, strings.ToUpper(e.Port))
	}
	toStr := func(e *Endpoint) string {
		if e.Index != nil {
			return fmt.Sprintf("%s[%d] %s", strings.ToUpper(e.Port), *e.Index, e.Node)
		}
		return fmt.Sprintf("%s %s", strings.ToUpper(e.Port), e.Node)
	}
	switch {
	case s.from == nil && s.to == nil:
		return "UNDEFINED"
	case s.from != nil && s.to == nil:
		return fmt.Sprintf("%s -> ANON", fromStr(s.from))
	case s.from == nil:
		return fmt.Sprintf("DATA -> %s", toStr(s.to))
	default:
		return fmt.Sprintf("%s -> %s", fromStr(s.from), toStr(s.to))
	}
}

// From returns the sending endpoint, nil for IIP and default carriers
func (s *InternalSocket) From() *Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.from
}

// To returns the receiving endpoint
func (s *InternalSocket) To() *Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.to
}

// SetFrom binds the sending endpoint
func (s *InternalSocket) SetFrom(e *Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.from = e
}

// SetTo binds the receiving endpoint
func (s *InternalSocket) SetTo(e *Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = e
}

// Metadata returns the edge metadata this socket carries
func (s *InternalSocket) Metadata() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// SetDebug sets the debug flag reported by IsDebug; the socket itself
// does not trace
func (s *InternalSocket) SetDebug(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug = active
}

// IsDebug reports whether debug tracing is active
func (s *InternalSocket) IsDebug() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debug
}

// SetDataDelegate installs the fallback payload producer used by Send(nil)
func (s *InternalSocket) SetDataDelegate(fn func() any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataDelegate = fn
}

// OnIP subscribes to packet delivery
func (s *InternalSocket) OnIP(fn func(*ip.IP)) func() {
	s.mu.Lock()
	id := s.ipHandlers.add(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.ipHandlers.remove(id)
	}
}

// OnError subscribes to transport errors
func (s *InternalSocket) OnError(fn func(error)) func() {
	s.mu.Lock()
	id := s.errHandlers.add(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.errHandlers.remove(id)
	}
}

// OnConnect subscribes to legacy connection open
func (s *InternalSocket) OnConnect(fn func()) func() {
	s.mu.Lock()
	id := s.connectHandlers.add(func(struct{}) { fn() })
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.connectHandlers.remove(id)
	}
}

// OnDisconnect subscribes to legacy connection close
func (s *InternalSocket) OnDisconnect(fn func()) func() {
	s.mu.Lock()
	id := s.disconnectHandlers.add(func(struct{}) { fn() })
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.disconnectHandlers.remove(id)
	}
}
