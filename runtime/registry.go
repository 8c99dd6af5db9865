package runtime

import (
	"log/slog"
	"sync"
	"time"

	"chat-gateway/domain"
	apperrors "chat-gateway/errors"
	"chat-gateway/observability"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry is the thread-safe bidirectional index of identity to live
// connections. It is one of the two authoritative shared structures of
// the gateway (the other is Rooms); every other component derives its
// view from read snapshots taken here.
//
// Presence edges are computed inside the same critical section as the
// mutation that causes them. Two connections of the same identity racing
// to connect or disconnect therefore can never double-broadcast or
// suppress a transition: the zero-to-nonzero check and the insert happen
// under one lock.
type Registry struct {
	mu         sync.RWMutex
	closed     bool
	sessions   map[uuid.UUID]*Session
	byIdentity map[domain.Identity]map[uuid.UUID]*Session

	edges chan<- domain.PresenceEdge
	log   *slog.Logger
	mon   *observability.Monitoring
}

func NewRegistry(log *slog.Logger, mon *observability.Monitoring, edges chan<- domain.PresenceEdge) *Registry {
	return &Registry{
		sessions:   make(map[uuid.UUID]*Session),
		byIdentity: make(map[domain.Identity]map[uuid.UUID]*Session),
		edges:      edges,
		log:        log,
		mon:        mon,
	}
}

// Register inserts a session. If this is the identity's first live
// connection, a rising presence edge is emitted before the lock is
// released, keeping edge order consistent with mutation order.
// Registrations are refused once shutdown has begun.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return apperrors.ErrShuttingDown
	}

	r.sessions[s.ID] = s
	owned, ok := r.byIdentity[s.Identity]
	if !ok {
		owned = make(map[uuid.UUID]*Session)
		r.byIdentity[s.Identity] = owned
	}
	first := len(owned) == 0
	owned[s.ID] = s

	if first {
		r.emitEdge(domain.PresenceEdge{
			Identity: s.Identity,
			Conn:     s.Connection,
			Online:   true,
			At:       time.Now().UTC(),
		})
	}
	return nil
}

// Unregister removes a session by connection id and reports whether it
// was still registered. If this was the identity's last connection, a
// falling presence edge is emitted under the same lock.
func (r *Registry) Unregister(connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return false
	}
	delete(r.sessions, connID)

	owned := r.byIdentity[s.Identity]
	delete(owned, connID)
	if len(owned) == 0 {
		delete(r.byIdentity, s.Identity)
		r.emitEdge(domain.PresenceEdge{
			Identity: s.Identity,
			Conn:     s.Connection,
			Online:   false,
			At:       time.Now().UTC(),
		})
	}
	return true
}

// emitEdge hands a transition to the presence worker. The send is
// non-blocking because it happens under the registry lock; the buffer is
// sized for bursts and a drop is counted and logged.
func (r *Registry) emitEdge(edge domain.PresenceEdge) {
	select {
	case r.edges <- edge:
	default:
		r.mon.EdgeDropped()
		r.log.Warn("Presence edge buffer full, dropping transition",
			"identity", edge.Identity, "online", edge.Online)
	}
}

// Get resolves a connection id to its session.
func (r *Registry) Get(connID uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// ConnectionsFor returns a snapshot of the identity's live sessions.
// An unknown identity yields an empty slice, not an error.
func (r *Registry) ConnectionsFor(identity domain.Identity) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.byIdentity[identity])
}

// IsOnline reports whether the identity has at least one live connection.
func (r *Registry) IsOnline(identity domain.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identity]) > 0
}

// OnlineSnapshot returns every identity with at least one live connection.
func (r *Registry) OnlineSnapshot() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.byIdentity)
}

// AllExcept snapshots every session except the given connection. Used
// for presence broadcasts, which never echo to the trigger.
func (r *Registry) AllExcept(connID uuid.UUID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == connID {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown flips the registry into draining mode: new registrations are
// refused from this point on. It returns a snapshot of the remaining
// sessions so the caller can close them.
func (r *Registry) Shutdown() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return lo.Values(r.sessions)
}
