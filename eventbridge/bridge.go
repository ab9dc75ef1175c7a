// Package eventbridge republishes coordinator events onto NATS subjects
// so external tooling can observe a running network. Each event kind maps
// to its own subject under a configurable prefix.
package eventbridge

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/berrylands/noflo/errors"
	"github.com/berrylands/noflo/network"
)

// Publisher is the transport contract; *nats.Conn satisfies it
type Publisher interface {
	Publish(subject string, data []byte) error
}

// forwardedKinds are the event kinds the bridge republishes
var forwardedKinds = []network.EventKind{
	network.EventStart,
	network.EventEnd,
	network.EventIP,
	network.EventProcessError,
	network.EventIcon,
}

// Envelope is the wire format published for every event
type Envelope struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

// Bridge republishes one network's events through a Publisher
type Bridge struct {
	net    *network.Network
	pub    Publisher
	prefix string
	logger *slog.Logger

	unsubscribes []func()
}

// New creates a bridge for the given network. Events are published to
// "<prefix>.<kind>" subjects.
func New(net *network.Network, pub Publisher, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if prefix == "" {
		prefix = "noflo.network"
	}
	return &Bridge{
		net:    net,
		pub:    pub,
		prefix: prefix,
		logger: logger,
	}
}

// Attach subscribes the bridge to the network's event stream
func (b *Bridge) Attach() {
	for _, kind := range forwardedKinds {
		eventKind := kind
		unsub := b.net.Subscribe(eventKind, func(ev network.Event) {
			b.forward(eventKind, ev)
		})
		b.unsubscribes = append(b.unsubscribes, unsub)
	}
}

// Detach unsubscribes the bridge from the network
func (b *Bridge) Detach() {
	for _, unsub := range b.unsubscribes {
		unsub()
	}
	b.unsubscribes = nil
}

func (b *Bridge) forward(kind network.EventKind, ev network.Event) {
	envelope := Envelope{
		ID:      uuid.NewString(),
		Kind:    string(kind),
		Time:    time.Now(),
		Payload: wirePayload(ev.Payload),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		b.logger.Error("Failed to encode network event", "kind", string(kind), "error", err)
		return
	}
	subject := b.prefix + "." + string(kind)
	if err := b.pub.Publish(subject, data); err != nil {
		err = errors.WrapTransient(err, "Bridge", "forward", "event publication")
		b.logger.Error("Failed to publish network event", "subject", subject, "error", err)
	}
}

// wirePayload maps event payloads onto JSON-friendly shapes
func wirePayload(payload any) any {
	switch p := payload.(type) {
	case network.StartPayload:
		return map[string]any{"start": p.Start}
	case network.EndPayload:
		return map[string]any{
			"start":     p.Start,
			"end":       p.End,
			"uptime_ms": p.Uptime.Milliseconds(),
		}
	case network.IPPayload:
		out := map[string]any{
			"id":   p.ID,
			"type": string(p.Kind),
			"data": p.Data,
		}
		if len(p.Subgraph) > 0 {
			out["subgraph"] = p.Subgraph
		}
		if len(p.Metadata) > 0 {
			out["metadata"] = p.Metadata
		}
		return out
	case network.ProcessErrorPayload:
		out := map[string]any{
			"id":      p.ID,
			"process": p.Process,
		}
		if p.Error != nil {
			out["error"] = p.Error.Error()
		}
		if len(p.Subgraph) > 0 {
			out["subgraph"] = p.Subgraph
		}
		return out
	case network.IconPayload:
		return map[string]any{"id": p.ID, "icon": p.Icon}
	default:
		return payload
	}
}
