package domain

import "time"

// PresenceEdge is a single online/offline transition for one identity.
// Edges are produced by the connection registry under its own lock, so
// for a given identity they are emitted in transition order. Registering
// a second device while already online produces no edge.
type PresenceEdge struct {
	Identity Identity
	// Conn is the connection whose registration or removal caused the
	// transition. The presence broadcast excludes it, mirroring a
	// socket-level broadcast that never echoes to the trigger.
	Conn   Connection
	Online bool
	At     time.Time
}
