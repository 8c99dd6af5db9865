package ws

import (
	"log/slog"
	"testing"
	"time"

	apperrors "chat-gateway/errors"

	"github.com/stretchr/testify/require"
)

func testOptions(queue int) Options {
	return Options{
		SendQueueSize:  queue,
		WriteWait:      time.Second,
		PongWait:       time.Minute,
		MaxMessageSize: 1 << 20,
	}
}

// Push semantics are testable without a live socket: the queue and the
// closed flag sit in front of the write pump.
func TestClient_Push_Reports_A_Full_Queue(t *testing.T) {
	req := require.New(t)
	client := NewClient(slog.Default(), nil, testOptions(1))

	req.NoError(client.Push([]byte(`{"event":"a"}`)))
	req.ErrorIs(client.Push([]byte(`{"event":"b"}`)), apperrors.ErrQueueFull)
}

func TestClient_Push_After_Close_Is_Refused(t *testing.T) {
	req := require.New(t)
	client := NewClient(slog.Default(), nil, testOptions(8))

	client.Close()

	req.ErrorIs(client.Push([]byte(`{"event":"a"}`)), apperrors.ErrConnectionClosed)
}

func TestClient_Close_Is_Idempotent(t *testing.T) {
	client := NewClient(slog.Default(), nil, testOptions(8))

	client.Close()
	client.Close()
}
