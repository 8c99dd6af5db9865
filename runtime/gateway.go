package runtime

import (
	"context"
	"log/slog"

	"chat-gateway/domain"
	"chat-gateway/domain/event"
	"chat-gateway/observability"
)

// Gateway ties the registry, the room tracker, and the router into the
// connection lifecycle. It is the only component that mutates shared
// state on connect and disconnect, which keeps the cleanup sequence in
// one place and exactly once per connection.
type Gateway struct {
	log      *slog.Logger
	registry *Registry
	rooms    *Rooms
	router   *Router
	mon      *observability.Monitoring
}

func NewGateway(log *slog.Logger, registry *Registry, rooms *Rooms,
	router *Router, mon *observability.Monitoring) *Gateway {
	return &Gateway{
		log:      log,
		registry: registry,
		rooms:    rooms,
		router:   router,
		mon:      mon,
	}
}

// Register records an authenticated session. All handshake validation
// happened before this point; registration itself never fails except
// during shutdown drain.
func (g *Gateway) Register(sess *Session) error {
	if err := g.registry.Register(sess); err != nil {
		return err
	}
	g.mon.ConnectionOpened()
	g.log.Info("User connected",
		"user_id", sess.Identity, "username", sess.Profile.Username, "conn_id", sess.ID)
	return nil
}

// Disconnect runs the cleanup sequence for a session: close the sink so
// no further frame can reach the transport, drop room memberships, then
// unregister (which emits the falling presence edge if this was the
// identity's last connection). The sync.Once guard makes the sequence
// idempotent no matter how many times the transport reports the close.
func (g *Gateway) Disconnect(sess *Session) {
	sess.cleanup.Do(func() {
		sess.sink.Close()
		g.rooms.LeaveAll(sess.ID)
		g.registry.Unregister(sess.ID)
		g.mon.ConnectionClosed()
		g.log.Info("User disconnected",
			"user_id", sess.Identity, "username", sess.Profile.Username, "conn_id", sess.ID)
	})
}

// HandleEvent forwards one inbound client event to the router.
func (g *Gateway) HandleEvent(ctx context.Context, sess *Session, env event.Envelope) error {
	return g.router.HandleEvent(ctx, sess, env)
}

// NotifyRoom pushes an event to all current members of a room. Exposed
// to external collaborators such as the REST layer.
func (g *Gateway) NotifyRoom(room domain.RoomID, eventName string, payload any) {
	frame, err := event.Encode(eventName, payload)
	if err != nil {
		g.log.Error("Failed to encode room notification", "event", eventName, "error", err)
		return
	}
	for _, id := range g.rooms.MembersOf(room) {
		if s, ok := g.registry.Get(id); ok {
			g.router.push(s, frame)
		}
	}
}

// NotifyIdentity pushes an event to every live connection of an identity.
func (g *Gateway) NotifyIdentity(identity domain.Identity, eventName string, payload any) {
	frame, err := event.Encode(eventName, payload)
	if err != nil {
		g.log.Error("Failed to encode identity notification", "event", eventName, "error", err)
		return
	}
	g.router.deliver(g.registry.ConnectionsFor(identity), frame)
}

// IsOnline reports whether the identity has at least one live connection.
func (g *Gateway) IsOnline(identity domain.Identity) bool {
	return g.registry.IsOnline(identity)
}

// OnlineSnapshot returns the identities currently online.
func (g *Gateway) OnlineSnapshot() []domain.Identity {
	return g.registry.OnlineSnapshot()
}

// Shutdown drains the gateway: new registrations are refused first,
// then every remaining connection goes through the normal disconnect
// sequence so presence edges and store writes still fire.
func (g *Gateway) Shutdown() {
	remaining := g.registry.Shutdown()
	g.log.Info("Draining gateway", "connections", len(remaining))
	for _, sess := range remaining {
		g.Disconnect(sess)
	}
}
