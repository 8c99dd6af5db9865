package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"chat-gateway/domain"
	"chat-gateway/domain/event"
	apperrors "chat-gateway/errors"
	"chat-gateway/mocks"
	"chat-gateway/observability"
	"chat-gateway/runtime"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type stubSink struct {
	frames chan []byte
	closed atomic.Bool
}

func newStubSink() *stubSink {
	return &stubSink{frames: make(chan []byte, 16)}
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

type presenceFixture struct {
	registry *runtime.Registry
	edges    chan domain.PresenceEdge
	users    *mocks.MockUserStore
	worker   *PresenceWorker
	cancel   context.CancelFunc
}

// The registry gets its own edge channel so that registering observer
// sessions does not feed the worker under test; edges are injected by
// hand instead.
func newPresenceFixture(t *testing.T) *presenceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := slog.Default()
	mon := observability.NewMonitoring()

	registryEdges := make(chan domain.PresenceEdge, 64)
	registry := runtime.NewRegistry(log, mon, registryEdges)

	edges := make(chan domain.PresenceEdge, 8)
	users := mocks.NewMockUserStore(ctrl)
	worker := NewPresenceWorker(log, edges, registry, users, mon, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = worker.Run(ctx) }()
	t.Cleanup(cancel)

	return &presenceFixture{registry: registry, edges: edges, users: users, worker: worker, cancel: cancel}
}

func (f *presenceFixture) observe(t *testing.T, identity domain.Identity) *stubSink {
	t.Helper()
	sink := newStubSink()
	sess := runtime.NewSession(domain.NewConnection(identity, domain.Profile{}), sink)
	require.NoError(t, f.registry.Register(sess))
	return sink
}

func awaitFrame(t *testing.T, sink *stubSink) (string, json.RawMessage) {
	t.Helper()
	select {
	case frame := <-sink.frames:
		env, err := event.Decode(frame)
		require.NoError(t, err)
		return env.Event, env.Data
	case <-time.After(time.Second):
		t.Fatal("expected a frame, got none")
		return "", nil
	}
}

func TestPresenceWorker_Broadcasts_Rising_Edge_And_Persists(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	observer := f.observe(t, "observer")

	mover := domain.NewConnection("mover", domain.Profile{})
	at := time.Now().UTC()

	persisted := make(chan struct{})
	f.users.EXPECT().
		SetPresence(gomock.Any(), domain.Identity("mover"), true, at).
		DoAndReturn(func(context.Context, domain.Identity, bool, time.Time) error {
			close(persisted)
			return nil
		}).
		Times(1)

	// When the identity's first connection produces a rising edge
	f.edges <- domain.PresenceEdge{Identity: "mover", Conn: mover, Online: true, At: at}

	// Then every other connection is told exactly once
	name, data := awaitFrame(t, observer)
	req.Equal(event.UserOnline, name)
	var online event.UserOnlinePayload
	req.NoError(json.Unmarshal(data, &online))
	req.Equal("mover", online.UserID)
	req.True(online.IsOnline)

	// And the store was updated out of band
	select {
	case <-persisted:
	case <-time.After(time.Second):
		t.Fatal("presence never reached the store")
	}
}

func TestPresenceWorker_Falling_Edge_Carries_LastSeen(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	observer := f.observe(t, "observer")
	f.users.EXPECT().SetPresence(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	at := time.Now().UTC().Truncate(time.Millisecond)
	f.edges <- domain.PresenceEdge{
		Identity: "mover",
		Conn:     domain.NewConnection("mover", domain.Profile{}),
		Online:   false,
		At:       at,
	}

	name, data := awaitFrame(t, observer)
	req.Equal(event.UserOffline, name)
	var offline event.UserOfflinePayload
	req.NoError(json.Unmarshal(data, &offline))
	req.Equal("mover", offline.UserID)
	req.False(offline.IsOnline)
	req.WithinDuration(at, offline.LastSeen, time.Second)
}

func TestPresenceWorker_Does_Not_Echo_To_The_Trigger(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	f.users.EXPECT().SetPresence(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	// Given the triggering connection is itself registered
	triggerSink := newStubSink()
	trigger := runtime.NewSession(domain.NewConnection("mover", domain.Profile{}), triggerSink)
	req.NoError(f.registry.Register(trigger))
	observer := f.observe(t, "observer")

	f.edges <- domain.PresenceEdge{Identity: "mover", Conn: trigger.Connection, Online: true, At: time.Now()}

	// The observer hears about it, the trigger does not
	name, _ := awaitFrame(t, observer)
	req.Equal(event.UserOnline, name)
	select {
	case frame := <-triggerSink.frames:
		t.Fatalf("trigger received its own presence broadcast: %s", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPresenceWorker_Store_Failure_Never_Blocks_The_Broadcast(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	observer := f.observe(t, "observer")

	f.users.EXPECT().
		SetPresence(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(context.DeadlineExceeded).
		AnyTimes()

	f.edges <- domain.PresenceEdge{
		Identity: "mover",
		Conn:     domain.NewConnection("mover", domain.Profile{}),
		Online:   true,
		At:       time.Now(),
	}

	name, _ := awaitFrame(t, observer)
	req.Equal(event.UserOnline, name)
}
