package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-gateway/contract"
	"chat-gateway/domain"
	"chat-gateway/domain/event"
	"chat-gateway/observability"
	"chat-gateway/runtime"
)

// PresenceWorker consumes the rising and falling edges produced by the
// connection registry and turns each one into exactly one broadcast:
// userOnline for a zero-to-one transition, userOffline for a
// one-to-zero transition. The broadcast goes to every live connection
// except the one that triggered the edge.
//
// Each edge also updates the user store with the new presence state and
// timestamp. That write is advisory: it runs in its own goroutine with
// its own timeout, and a failure is logged without ever delaying or
// failing the live broadcast.
type PresenceWorker struct {
	log          *slog.Logger
	edges        <-chan domain.PresenceEdge
	registry     *runtime.Registry
	users        contract.UserStore
	mon          *observability.Monitoring
	storeTimeout time.Duration
}

func NewPresenceWorker(log *slog.Logger, edges <-chan domain.PresenceEdge,
	registry *runtime.Registry, users contract.UserStore,
	mon *observability.Monitoring, storeTimeout time.Duration) *PresenceWorker {
	return &PresenceWorker{
		log:          log,
		edges:        edges,
		registry:     registry,
		users:        users,
		mon:          mon,
		storeTimeout: storeTimeout,
	}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.log.Debug("Stopping presence worker")
			return ctx.Err()
		case edge, ok := <-w.edges:
			if !ok {
				return nil
			}
			w.broadcast(edge)
			go w.persist(edge)
		}
	}
}

// drain flushes edges buffered before cancellation so the shutdown
// sequence still persists the final offline transitions.
func (w *PresenceWorker) drain() {
	for {
		select {
		case edge := <-w.edges:
			w.broadcast(edge)
			w.persist(edge)
		default:
			return
		}
	}
}

func (w *PresenceWorker) broadcast(edge domain.PresenceEdge) {
	frame, err := w.encode(edge)
	if err != nil {
		w.log.Error("Failed to encode presence event", "error", err)
		return
	}

	targets := w.registry.AllExcept(edge.Conn.ID)
	for _, s := range targets {
		if err := s.Push(frame); err != nil {
			w.mon.PushFailed()
			continue
		}
		w.mon.FrameDelivered()
	}
	w.mon.PresenceEdge()
	w.log.Debug("Presence transition broadcast",
		"user_id", edge.Identity, "online", edge.Online, "targets", len(targets))
}

func (w *PresenceWorker) encode(edge domain.PresenceEdge) ([]byte, error) {
	if edge.Online {
		return event.Encode(event.UserOnline, event.UserOnlinePayload{
			UserID:   string(edge.Identity),
			IsOnline: true,
		})
	}
	return event.Encode(event.UserOffline, event.UserOfflinePayload{
		UserID:   string(edge.Identity),
		IsOnline: false,
		LastSeen: edge.At,
	})
}

func (w *PresenceWorker) persist(edge domain.PresenceEdge) {
	ctx, cancel := context.WithTimeout(context.Background(), w.storeTimeout)
	defer cancel()

	if err := w.users.SetPresence(ctx, edge.Identity, edge.Online, edge.At); err != nil {
		w.mon.StoreWriteFailed()
		w.log.Warn("Presence store write failed",
			"user_id", edge.Identity, "online", edge.Online, "error", err)
	}
}
