package event

import (
	"encoding/json"
	"time"
)

// Inbound payloads. Validation tags are enforced by the router before
// any routing happens; an invalid payload drops the frame.

type TypingPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	IsTyping       bool   `json:"isTyping"`
}

// MessagePayload carries the full message object relayed by the client.
// Only the fields the router needs are decoded; the original bytes are
// forwarded untouched so client-side shapes survive the relay.
type MessagePayload struct {
	ID             string   `json:"_id"`
	ConversationID string   `json:"conversation" validate:"required"`
	Participants   []string `json:"participants"`
}

type ReceiptPayload struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
}

type CallOfferPayload struct {
	To       string          `json:"to" validate:"required"`
	Offer    json.RawMessage `json:"offer"`
	CallType string          `json:"callType"`
}

type CallAnswerPayload struct {
	To     string          `json:"to" validate:"required"`
	Answer json.RawMessage `json:"answer"`
}

type CallHangupPayload struct {
	To string `json:"to" validate:"required"`
}

type IceCandidatePayload struct {
	To        string          `json:"to" validate:"required"`
	Candidate json.RawMessage `json:"candidate"`
}

// Outbound payloads.

type UserOnlinePayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type UserOfflinePayload struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

type UserTypingPayload struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type ReceiptNotice struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

type Caller struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type IncomingCallPayload struct {
	From     string          `json:"from"`
	Offer    json.RawMessage `json:"offer"`
	CallType string          `json:"callType"`
	Caller   Caller          `json:"caller"`
}

type CallAnsweredPayload struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
}

type CallPeerPayload struct {
	From string `json:"from"`
}

type IceCandidateNotice struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}
