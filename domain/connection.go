// Package domain contains core concepts of the chat gateway.
// This file defines identities and live connections.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the opaque authenticated user identifier.
// It is established once per connection and immutable for its lifetime.
type Identity string

// RoomID identifies the real-time routing group of one conversation.
// Rooms have no lifecycle of their own: one exists as soon as a
// connection joins it and vanishes when the last member leaves.
type RoomID string

// Profile is the minimal user profile cached on a connection at
// handshake time. It is used for enriching outbound events
// (typing indicators, call offers) without a store round-trip.
type Profile struct {
	Username string
	Avatar   string
}

// Connection describes one live transport session. An identity may own
// several concurrent connections (one per device or tab), but a
// connection belongs to exactly one identity.
type Connection struct {
	ID        uuid.UUID
	Identity  Identity
	Profile   Profile
	CreatedAt time.Time
}

func NewConnection(identity Identity, profile Profile) Connection {
	return Connection{
		ID:        uuid.New(),
		Identity:  identity,
		Profile:   profile,
		CreatedAt: time.Now().UTC(),
	}
}
