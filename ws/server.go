package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"chat-gateway/auth"
	"chat-gateway/domain"
	"chat-gateway/domain/event"
	apperrors "chat-gateway/errors"
	"chat-gateway/runtime"

	"github.com/gorilla/websocket"
)

// Server upgrades authenticated HTTP requests into gateway sessions.
// The authentication gate runs before the upgrade: a rejected handshake
// closes the transport immediately and no gateway state is created.
type Server struct {
	log      *slog.Logger
	gate     *auth.Gate
	gateway  *runtime.Gateway
	opts     Options
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, gate *auth.Gate, gateway *runtime.Gateway, opts Options) *Server {
	return &Server{
		log:     log,
		gate:    gate,
		gateway: gateway,
		opts:    opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, profile, err := s.gate.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, apperrors.ErrIdentityNotFound) {
			status = http.StatusNotFound
		}
		s.log.Debug("Handshake rejected", "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := NewClient(s.log, conn, s.opts)
	sess := runtime.NewSession(domain.NewConnection(identity, profile), client)

	if err := s.gateway.Register(sess); err != nil {
		// Shutdown drain: the socket is open but no state exists yet.
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(func(env event.Envelope) {
		if err := s.gateway.HandleEvent(context.Background(), sess, env); err != nil {
			s.log.Debug("Event rejected",
				"event", env.Event, "user_id", sess.Identity, "error", err)
		}
	})
	s.gateway.Disconnect(sess)
}

// bearerToken extracts the credential from the Authorization header or,
// for browser websocket clients that cannot set headers, from the token
// query parameter.
func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") || strings.HasPrefix(authz, "bearer ") {
		return authz[len("Bearer "):]
	}
	return r.URL.Query().Get("token")
}
