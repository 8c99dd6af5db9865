package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-gateway/contract"
	"chat-gateway/domain"
	"chat-gateway/domain/event"
	apperrors "chat-gateway/errors"
	"chat-gateway/observability"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Router computes the exact delivery target set for each inbound event
// and pushes to it. Delivery is at-most-once per target connection per
// event instance: a failed push is counted and logged, never retried,
// and never aborts the rest of the pass. A target set that turns out
// empty is a no-op, not an error, since recipients may have legitimately
// disconnected.
type Router struct {
	log      *slog.Logger
	registry *Registry
	rooms    *Rooms
	messages contract.MessageStore
	validate *validator.Validate
	mon      *observability.Monitoring

	// storeTimeout bounds the fire-and-forget writes to the message
	// store so an unhealthy store cannot pile up goroutines forever.
	storeTimeout time.Duration
}

func NewRouter(log *slog.Logger, registry *Registry, rooms *Rooms,
	messages contract.MessageStore, mon *observability.Monitoring,
	storeTimeout time.Duration) *Router {
	return &Router{
		log:          log,
		registry:     registry,
		rooms:        rooms,
		messages:     messages,
		validate:     validator.New(),
		mon:          mon,
		storeTimeout: storeTimeout,
	}
}

// HandleEvent dispatches one inbound client event. Unknown event names
// and invalid payloads are reported to the caller; both leave the
// gateway state untouched.
func (r *Router) HandleEvent(ctx context.Context, sess *Session, env event.Envelope) error {
	r.mon.EventRouted()

	switch env.Event {
	case event.JoinConversation:
		return r.handleJoin(sess, env.Data)
	case event.LeaveConversation:
		return r.handleLeave(sess, env.Data)
	case event.Typing:
		return r.handleTyping(sess, env.Data)
	case event.SendMessage:
		return r.handleSendMessage(sess, env.Data)
	case event.MessageRead:
		return r.handleReceipt(sess, env.Data, event.MessageRead)
	case event.MessageDelivered:
		return r.handleReceipt(sess, env.Data, event.MessageDelivered)
	case event.CallUser:
		return r.handleCallUser(sess, env.Data)
	case event.AnswerCall:
		return r.handleAnswerCall(sess, env.Data)
	case event.RejectCall:
		return r.handleCallPeer(sess, env.Data, event.CallRejected)
	case event.EndCall:
		return r.handleCallPeer(sess, env.Data, event.CallEnded)
	case event.IceCandidate:
		return r.handleIceCandidate(sess, env.Data)
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownEvent, env.Event)
	}
}

// The conversation id travels as a bare JSON string for join and leave,
// matching the original client emits.
func (r *Router) handleJoin(sess *Session, data json.RawMessage) error {
	var room string
	if err := json.Unmarshal(data, &room); err != nil || room == "" {
		return fmt.Errorf("joinConversation: invalid conversation id")
	}
	r.rooms.Join(domain.RoomID(room), sess.ID)
	r.log.Debug("Connection joined conversation",
		"conn_id", sess.ID, "user_id", sess.Identity, "conversation_id", room)
	return nil
}

func (r *Router) handleLeave(sess *Session, data json.RawMessage) error {
	var room string
	if err := json.Unmarshal(data, &room); err != nil || room == "" {
		return fmt.Errorf("leaveConversation: invalid conversation id")
	}
	r.rooms.Leave(domain.RoomID(room), sess.ID)
	r.log.Debug("Connection left conversation",
		"conn_id", sess.ID, "user_id", sess.Identity, "conversation_id", room)
	return nil
}

// Typing indicators are ephemeral: room members only, no persistence,
// no delivery guarantee.
func (r *Router) handleTyping(sess *Session, data json.RawMessage) error {
	var in event.TypingPayload
	if err := r.decode(data, &in); err != nil {
		return fmt.Errorf("typing: %w", err)
	}

	frame, err := event.Encode(event.UserTyping, event.UserTypingPayload{
		UserID:         string(sess.Identity),
		Username:       sess.Profile.Username,
		ConversationID: in.ConversationID,
		IsTyping:       in.IsTyping,
	})
	if err != nil {
		return err
	}
	r.deliver(r.roomTargets(domain.RoomID(in.ConversationID), sess.ID), frame)
	return nil
}

// handleSendMessage relays a full message in real time. Delivery is
// intentionally dual: the room's members receive it for active viewers,
// and every connection of every participant receives it so a client
// with the chat closed still updates its list. The union is deduplicated
// per connection, and only the sending connection is excluded, so the
// sender's other devices stay in sync. Persistence is handed to the
// message store out of band and never blocks the relay.
func (r *Router) handleSendMessage(sess *Session, data json.RawMessage) error {
	var in event.MessagePayload
	if err := r.decode(data, &in); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}

	frame, err := event.Encode(event.NewMessage, data)
	if err != nil {
		return err
	}

	targets := make(map[uuid.UUID]*Session)
	for _, s := range r.roomTargets(domain.RoomID(in.ConversationID), sess.ID) {
		targets[s.ID] = s
	}
	for _, participant := range in.Participants {
		for _, s := range r.registry.ConnectionsFor(domain.Identity(participant)) {
			if s.ID == sess.ID {
				continue
			}
			targets[s.ID] = s
		}
	}
	for _, s := range targets {
		r.push(s, frame)
	}

	r.storeAsync(func(ctx context.Context) error {
		return r.messages.StoreMessage(ctx, domain.RoomID(in.ConversationID), data)
	})
	return nil
}

func (r *Router) handleReceipt(sess *Session, data json.RawMessage, name string) error {
	var in event.ReceiptPayload
	if err := r.decode(data, &in); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	frame, err := event.Encode(name, event.ReceiptNotice{
		MessageID: in.MessageID,
		UserID:    string(sess.Identity),
	})
	if err != nil {
		return err
	}
	r.deliver(r.roomTargets(domain.RoomID(in.ConversationID), sess.ID), frame)

	r.storeAsync(func(ctx context.Context) error {
		if name == event.MessageRead {
			return r.messages.MarkRead(ctx, in.MessageID, sess.Identity)
		}
		return r.messages.MarkDelivered(ctx, in.MessageID, sess.Identity)
	})
	return nil
}

// Call signaling is identity-addressed, not room-addressed: every device
// of the target rings.
func (r *Router) handleCallUser(sess *Session, data json.RawMessage) error {
	var in event.CallOfferPayload
	if err := r.decode(data, &in); err != nil {
		return fmt.Errorf("callUser: %w", err)
	}

	frame, err := event.Encode(event.IncomingCall, event.IncomingCallPayload{
		From:     string(sess.Identity),
		Offer:    in.Offer,
		CallType: in.CallType,
		Caller: event.Caller{
			Username: sess.Profile.Username,
			Avatar:   sess.Profile.Avatar,
		},
	})
	if err != nil {
		return err
	}
	r.deliver(r.registry.ConnectionsFor(domain.Identity(in.To)), frame)
	return nil
}

func (r *Router) handleAnswerCall(sess *Session, data json.RawMessage) error {
	var in event.CallAnswerPayload
	if err := r.decode(data, &in); err != nil {
		return fmt.Errorf("answerCall: %w", err)
	}

	frame, err := event.Encode(event.CallAnswered, event.CallAnsweredPayload{
		From:   string(sess.Identity),
		Answer: in.Answer,
	})
	if err != nil {
		return err
	}
	r.deliver(r.registry.ConnectionsFor(domain.Identity(in.To)), frame)
	return nil
}

func (r *Router) handleCallPeer(sess *Session, data json.RawMessage, name string) error {
	var in event.CallHangupPayload
	if err := r.decode(data, &in); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	frame, err := event.Encode(name, event.CallPeerPayload{From: string(sess.Identity)})
	if err != nil {
		return err
	}
	r.deliver(r.registry.ConnectionsFor(domain.Identity(in.To)), frame)
	return nil
}

func (r *Router) handleIceCandidate(sess *Session, data json.RawMessage) error {
	var in event.IceCandidatePayload
	if err := r.decode(data, &in); err != nil {
		return fmt.Errorf("iceCandidate: %w", err)
	}

	frame, err := event.Encode(event.IceCandidate, event.IceCandidateNotice{
		From:      string(sess.Identity),
		Candidate: in.Candidate,
	})
	if err != nil {
		return err
	}
	r.deliver(r.registry.ConnectionsFor(domain.Identity(in.To)), frame)
	return nil
}

func (r *Router) decode(data json.RawMessage, into any) error {
	if err := json.Unmarshal(data, into); err != nil {
		return err
	}
	return r.validate.Struct(into)
}

// roomTargets resolves the room's member connections minus the sender.
// Membership ids and sessions live in two separately locked indices, so
// a member that disconnected between the two lookups simply resolves to
// nothing.
func (r *Router) roomTargets(room domain.RoomID, exclude uuid.UUID) []*Session {
	memberIDs := r.rooms.MembersOf(room)
	sessions := make([]*Session, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == exclude {
			continue
		}
		if s, ok := r.registry.Get(id); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

func (r *Router) deliver(targets []*Session, frame []byte) {
	for _, s := range targets {
		r.push(s, frame)
	}
}

func (r *Router) push(s *Session, frame []byte) {
	if err := s.Push(frame); err != nil {
		r.mon.PushFailed()
		r.log.Debug("Dropping frame for unreachable connection",
			"conn_id", s.ID, "user_id", s.Identity, "error", err)
		return
	}
	r.mon.FrameDelivered()
}

// storeAsync runs a persistence call without coupling it to the
// delivery path. Failures are counted and logged only.
func (r *Router) storeAsync(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.storeTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			r.mon.StoreWriteFailed()
			r.log.Warn("Message store write failed", "error", err)
		}
	}()
}
