// Package event defines the wire-level events exchanged with clients.
// Event names and payload shapes follow the socket protocol of the
// chat application and must stay stable for client compatibility.
package event

import "encoding/json"

// Inbound event names (client -> gateway).
const (
	JoinConversation  = "joinConversation"
	LeaveConversation = "leaveConversation"
	Typing            = "typing"
	SendMessage       = "sendMessage"
	MessageRead       = "messageRead"
	MessageDelivered  = "messageDelivered"
	CallUser          = "callUser"
	AnswerCall        = "answerCall"
	RejectCall        = "rejectCall"
	EndCall           = "endCall"
	IceCandidate      = "iceCandidate"
)

// Outbound event names (gateway -> client).
const (
	UserOnline   = "userOnline"
	UserOffline  = "userOffline"
	UserTyping   = "userTyping"
	NewMessage   = "newMessage"
	IncomingCall = "incomingCall"
	CallAnswered = "callAnswered"
	CallRejected = "callRejected"
	CallEnded    = "callEnded"
)

// Envelope is the frame exchanged on the websocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode marshals a payload into a ready-to-send frame.
func Encode(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}

// Decode parses one inbound frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(frame, &env)
	return env, err
}
