//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-gateway/domain"
	"context"
	"reflect"
	"time"
)

// EventSink is one connection's outbound side. Push enqueues a
// ready-to-send frame and never blocks: a full queue or a closed
// connection is reported as an error and the frame is dropped.
type EventSink interface {
	Push(frame []byte) error
	Close()
}

// TokenResolver turns the bearer credential presented at handshake time
// into an authenticated identity.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// UserStore is the external user collaborator. GetProfile is called once
// per handshake; SetPresence is advisory and written fire-and-forget on
// every presence transition.
type UserStore interface {
	GetProfile(ctx context.Context, identity domain.Identity) (domain.Profile, error)
	SetPresence(ctx context.Context, identity domain.Identity, online bool, lastSeen time.Time) error
}

// MessageStore is the external append-only message collaborator. The
// gateway only relays real-time notifications; storage failures never
// block or fail a delivery pass.
type MessageStore interface {
	StoreMessage(ctx context.Context, room domain.RoomID, message []byte) error
	MarkDelivered(ctx context.Context, messageID string, identity domain.Identity) error
	MarkRead(ctx context.Context, messageID string, identity domain.Identity) error
}

// Notifier is the surface exposed to external collaborators such as a
// REST layer creating a conversation.
type Notifier interface {
	NotifyRoom(room domain.RoomID, eventName string, payload any)
	NotifyIdentity(identity domain.Identity, eventName string, payload any)
	IsOnline(identity domain.Identity) bool
	OnlineSnapshot() []domain.Identity
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
