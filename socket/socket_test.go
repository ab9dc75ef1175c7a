package socket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrylands/noflo/ip"
)

func TestPostDeliversInOrder(t *testing.T) {
	s := New(nil)
	var got []any
	s.OnIP(func(packet *ip.IP) {
		got = append(got, packet.Data)
	})

	s.Post(ip.NewData("one"))
	s.Post(ip.NewData("two"))
	s.Post(ip.NewData("three"))
	assert.Equal(t, []any{"one", "two", "three"}, got)
}

func TestPostToMultipleSubscribers(t *testing.T) {
	s := New(nil)
	first := 0
	second := 0
	s.OnIP(func(*ip.IP) { first++ })
	unsub := s.OnIP(func(*ip.IP) { second++ })

	s.Post(ip.NewData(1))
	unsub()
	s.Post(ip.NewData(2))

	assert.Equal(t, 2, first)
	assert.Equal(t, 1, second)
}

func TestConnectDisconnectLifecycle(t *testing.T) {
	s := New(nil)
	var events []string
	s.OnConnect(func() { events = append(events, "connect") })
	s.OnDisconnect(func() { events = append(events, "disconnect") })

	assert.False(t, s.IsConnected())
	s.Connect()
	assert.True(t, s.IsConnected())
	// Connecting twice is a no-op
	s.Connect()
	s.Disconnect()
	assert.False(t, s.IsConnected())
	s.Disconnect()

	assert.Equal(t, []string{"connect", "disconnect"}, events)
}

func TestSendUsesDataDelegate(t *testing.T) {
	s := New(nil)
	var got []any
	s.OnIP(func(packet *ip.IP) {
		got = append(got, packet.Data)
	})

	s.SetDataDelegate(func() any { return 42 })
	s.Send(nil)
	s.Send("explicit")

	assert.Equal(t, []any{42, "explicit"}, got)
}

func TestEmitError(t *testing.T) {
	s := New(nil)
	boom := errors.New("boom")
	var got error
	s.OnError(func(err error) { got = err })
	s.EmitError(boom)
	require.Equal(t, boom, got)
}

func TestID(t *testing.T) {
	s := New(nil)
	assert.Equal(t, "UNDEFINED", s.ID())

	s.SetTo(&Endpoint{Node: "B", Port: "in"})
	assert.Equal(t, "DATA -> IN B", s.ID())

	s.SetFrom(&Endpoint{Node: "A", Port: "out"})
	assert.Equal(t, "A OUT -> IN B", s.ID())

	idx := 2
	s.SetTo(&Endpoint{Node: "B", Port: "in", Index: &idx})
	assert.Equal(t, "A OUT -> IN[2] B", s.ID())
}

func TestMetadata(t *testing.T) {
	s := New(map[string]any{"route": 1})
	assert.Equal(t, map[string]any{"route": 1}, s.Metadata())
}
