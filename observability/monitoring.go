// Package observability aggregates live gateway counters for telemetry.
package observability

import "sync/atomic"

// Monitoring collects gateway-wide counters. All methods are safe for
// concurrent use; counters are atomics so the hot delivery path never
// takes a lock.
type Monitoring struct {
	connectionsOpened  atomic.Uint64
	connectionsClosed  atomic.Uint64
	currentConnections atomic.Int64
	eventsRouted       atomic.Uint64
	framesDelivered    atomic.Uint64
	pushFailures       atomic.Uint64
	presenceEdges      atomic.Uint64
	edgesDropped       atomic.Uint64
	storeWriteFailures atomic.Uint64
}

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	ConnectionsOpened  uint64 `json:"connections_opened"`
	ConnectionsClosed  uint64 `json:"connections_closed"`
	CurrentConnections int64  `json:"current_connections"`
	EventsRouted       uint64 `json:"events_routed"`
	FramesDelivered    uint64 `json:"frames_delivered"`
	PushFailures       uint64 `json:"push_failures"`
	PresenceEdges      uint64 `json:"presence_edges"`
	EdgesDropped       uint64 `json:"edges_dropped"`
	StoreWriteFailures uint64 `json:"store_write_failures"`
}

func NewMonitoring() *Monitoring { return &Monitoring{} }

func (m *Monitoring) ConnectionOpened() {
	m.connectionsOpened.Add(1)
	m.currentConnections.Add(1)
}

func (m *Monitoring) ConnectionClosed() {
	m.connectionsClosed.Add(1)
	m.currentConnections.Add(-1)
}

func (m *Monitoring) EventRouted()      { m.eventsRouted.Add(1) }
func (m *Monitoring) FrameDelivered()   { m.framesDelivered.Add(1) }
func (m *Monitoring) PushFailed()       { m.pushFailures.Add(1) }
func (m *Monitoring) PresenceEdge()     { m.presenceEdges.Add(1) }
func (m *Monitoring) EdgeDropped()      { m.edgesDropped.Add(1) }
func (m *Monitoring) StoreWriteFailed() { m.storeWriteFailures.Add(1) }

func (m *Monitoring) Snapshot() Stats {
	return Stats{
		ConnectionsOpened:  m.connectionsOpened.Load(),
		ConnectionsClosed:  m.connectionsClosed.Load(),
		CurrentConnections: m.currentConnections.Load(),
		EventsRouted:       m.eventsRouted.Load(),
		FramesDelivered:    m.framesDelivered.Load(),
		PushFailures:       m.pushFailures.Load(),
		PresenceEdges:      m.presenceEdges.Load(),
		EdgesDropped:       m.edgesDropped.Load(),
		StoreWriteFailures: m.storeWriteFailures.Load(),
	}
}
