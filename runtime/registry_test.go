package runtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"chat-gateway/domain"
	apperrors "chat-gateway/errors"
	"chat-gateway/observability"

	"github.com/stretchr/testify/require"
)

type stubSink struct {
	frames chan []byte
	closed atomic.Bool
}

func newStubSink() *stubSink {
	return &stubSink{frames: make(chan []byte, 64)}
}

func (s *stubSink) Push(frame []byte) error {
	if s.closed.Load() {
		return apperrors.ErrConnectionClosed
	}
	select {
	case s.frames <- frame:
		return nil
	default:
		return apperrors.ErrQueueFull
	}
}

func (s *stubSink) Close() { s.closed.Store(true) }

func newTestRegistry(edgeBuffer int) (*Registry, chan domain.PresenceEdge) {
	edges := make(chan domain.PresenceEdge, edgeBuffer)
	return NewRegistry(slog.Default(), observability.NewMonitoring(), edges), edges
}

func newTestSession(identity domain.Identity) (*Session, *stubSink) {
	sink := newStubSink()
	sess := NewSession(domain.NewConnection(identity, domain.Profile{Username: "u-" + string(identity)}), sink)
	return sess, sink
}

func TestRegistry_Register_First_Connection_Emits_Rising_Edge(t *testing.T) {
	req := require.New(t)
	registry, edges := newTestRegistry(8)
	sess, _ := newTestSession("alice")

	// Given nobody is connected
	req.False(registry.IsOnline("alice"))

	// When the identity's first connection registers
	req.NoError(registry.Register(sess))

	// Then the identity is online and exactly one rising edge was emitted
	req.True(registry.IsOnline("alice"))
	req.Len(edges, 1)
	edge := <-edges
	req.Equal(domain.Identity("alice"), edge.Identity)
	req.True(edge.Online)
	req.Equal(sess.ID, edge.Conn.ID)
}

func TestRegistry_Register_Second_Device_Is_Not_A_Transition(t *testing.T) {
	req := require.New(t)
	registry, edges := newTestRegistry(8)
	first, _ := newTestSession("alice")
	second, _ := newTestSession("alice")

	// Given the identity is already online
	req.NoError(registry.Register(first))
	<-edges

	// When a second device connects
	req.NoError(registry.Register(second))

	// Then no further edge is emitted and both connections are indexed
	req.Empty(edges)
	req.Len(registry.ConnectionsFor("alice"), 2)
}

func TestRegistry_Unregister_Last_Connection_Emits_Falling_Edge(t *testing.T) {
	req := require.New(t)
	registry, edges := newTestRegistry(8)
	first, _ := newTestSession("alice")
	second, _ := newTestSession("alice")
	req.NoError(registry.Register(first))
	req.NoError(registry.Register(second))
	<-edges

	// When one of two devices disconnects
	req.True(registry.Unregister(first.ID))

	// Then the identity stays online and no edge is emitted
	req.True(registry.IsOnline("alice"))
	req.Empty(edges)

	// When the last device disconnects
	req.True(registry.Unregister(second.ID))

	// Then the identity is offline and exactly one falling edge was emitted
	req.False(registry.IsOnline("alice"))
	req.Len(edges, 1)
	edge := <-edges
	req.False(edge.Online)
	req.Equal(domain.Identity("alice"), edge.Identity)
}

func TestRegistry_Unregister_Unknown_Connection_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	registry, edges := newTestRegistry(8)
	sess, _ := newTestSession("alice")

	req.False(registry.Unregister(sess.ID))
	req.Empty(edges)
}

func TestRegistry_ConnectionsFor_Unknown_Identity_Is_Empty(t *testing.T) {
	req := require.New(t)
	registry, _ := newTestRegistry(8)

	req.Empty(registry.ConnectionsFor("ghost"))
	req.False(registry.IsOnline("ghost"))
	req.Empty(registry.OnlineSnapshot())
}

// Edge computation must be atomic with the mutation: many devices of one
// identity racing to connect must produce exactly one rising edge, and
// racing to disconnect exactly one falling edge.
func TestRegistry_Concurrent_Devices_Produce_One_Edge_Per_Transition(t *testing.T) {
	req := require.New(t)
	const devices = 32
	registry, edges := newTestRegistry(devices * 2)

	sessions := make([]*Session, devices)
	for i := range sessions {
		sessions[i], _ = newTestSession("alice")
	}

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			_ = registry.Register(s)
		}(sess)
	}
	wg.Wait()

	req.Len(edges, 1)
	req.True((<-edges).Online)
	req.Len(registry.ConnectionsFor("alice"), devices)

	for _, sess := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			registry.Unregister(s.ID)
		}(sess)
	}
	wg.Wait()

	req.Len(edges, 1)
	req.False((<-edges).Online)
	req.False(registry.IsOnline("alice"))
}

func TestRegistry_Shutdown_Refuses_New_Registrations(t *testing.T) {
	req := require.New(t)
	registry, edges := newTestRegistry(8)
	existing, _ := newTestSession("alice")
	late, _ := newTestSession("bob")
	req.NoError(registry.Register(existing))
	<-edges

	// When shutdown begins
	remaining := registry.Shutdown()

	// Then existing sessions are handed back for draining and new
	// registrations are refused
	req.Len(remaining, 1)
	req.ErrorIs(registry.Register(late), apperrors.ErrShuttingDown)
}

func TestRegistry_AllExcept_Skips_The_Trigger(t *testing.T) {
	req := require.New(t)
	registry, _ := newTestRegistry(8)
	alice, _ := newTestSession("alice")
	bob, _ := newTestSession("bob")
	req.NoError(registry.Register(alice))
	req.NoError(registry.Register(bob))

	others := registry.AllExcept(alice.ID)
	req.Len(others, 1)
	req.Equal(bob.ID, others[0].ID)
}
