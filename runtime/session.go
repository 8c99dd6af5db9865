// Package runtime holds the shared state of the gateway: the connection
// registry, the room membership tracker, and the event router that fans
// events out to live connections. It orchestrates delivery without
// containing transport or persistence logic.
package runtime

import (
	"sync"

	"chat-gateway/contract"
	"chat-gateway/domain"
)

// Session binds one live connection to its outbound sink. The cleanup
// guard ensures the disconnect sequence runs exactly once even when the
// transport reports the disconnect multiple times or concurrently with
// an in-flight push.
type Session struct {
	domain.Connection
	sink    contract.EventSink
	cleanup sync.Once
}

func NewSession(conn domain.Connection, sink contract.EventSink) *Session {
	return &Session{Connection: conn, sink: sink}
}

// Push enqueues one frame on the session's outbound queue. It never
// blocks; a full queue or closed connection surfaces as an error.
func (s *Session) Push(frame []byte) error {
	return s.sink.Push(frame)
}
