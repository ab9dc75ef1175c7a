package eventbridge

import (
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/berrylands/noflo/network"
)

// *nats.Conn is the production Publisher
var _ Publisher = (*nats.Conn)(nil)

// NewNATS creates a bridge publishing through a NATS connection
func NewNATS(net *network.Network, nc *nats.Conn, prefix string, logger *slog.Logger) *Bridge {
	return New(net, nc, prefix, logger)
}
