package realtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// wsOpen gauges the number of connections currently joined to any room.
	wsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections_open",
		Help: "Current number of joined websocket connections.",
	})

	// wsDelivered counts events handed to a member's outbound buffer.
	wsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_ws_broadcast_delivered_total",
		Help: "Total events delivered to room members.",
	})

	// wsDropped counts members lost to buffer overflow during broadcast.
	wsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_ws_broadcast_dropped_total",
		Help: "Total members dropped because their send buffer overflowed.",
	})
)

func init() {
	prometheus.MustRegister(wsOpen, wsDelivered, wsDropped)
}

// room holds the live member set of a single room. Each room has its own
// lock so unrelated rooms never contend on membership or broadcast.
type room struct {
	mu      sync.RWMutex
	members map[string]*Connection // connection id -> connection
}

// Registry tracks which live connections are joined to which room and
// provides the fan-out primitive. Membership is never persisted; a room's
// durable lifetime is tied to its ChatRoom row, so entries with zero members
// stay addressable for future joins.
//
// A Registry instance is constructed once per process and injected into the
// websocket handler; scaling across processes would swap the implementation
// behind the same methods, not change callers.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

// getOrCreateRoom returns the member set for roomID, creating it on demand.
func (g *Registry) getOrCreateRoom(roomID string) *room {
	g.mu.RLock()
	r := g.rooms[roomID]
	g.mu.RUnlock()
	if r != nil {
		return r
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if r = g.rooms[roomID]; r == nil {
		r = &room{members: make(map[string]*Connection)}
		g.rooms[roomID] = r
	}
	return r
}

// Add joins a connection to the room's member set and starts its write loop.
func (g *Registry) Add(roomID string, conn *Connection) {
	r := g.getOrCreateRoom(roomID)
	r.mu.Lock()
	if _, exists := r.members[conn.ID]; !exists {
		r.members[conn.ID] = conn
		wsOpen.Inc()
	}
	r.mu.Unlock()

	conn.Start()
}

// Remove detaches a connection from the room's member set. It is idempotent
// and safe to call concurrently with Broadcast; once it returns, the
// connection can never again receive a broadcast for that room. The room
// entry itself is retained for future joins.
func (g *Registry) Remove(roomID string, conn *Connection) {
	g.mu.RLock()
	r := g.rooms[roomID]
	g.mu.RUnlock()
	if r == nil {
		return
	}

	r.mu.Lock()
	if _, exists := r.members[conn.ID]; exists {
		delete(r.members, conn.ID)
		wsOpen.Dec()
	}
	r.mu.Unlock()
}

// Broadcast delivers payload to every connection currently joined to roomID,
// skipping excludeConnID when non-empty (the echo-suppression policy is
// decided by the caller). Delivery to each member is best-effort and
// independent: a slow or failed member is dropped from the room without
// blocking delivery to the rest. Broadcasting to an empty or unknown room is
// not an error; it simply delivers to no one.
//
// It returns the number of members whose buffers accepted the event.
func (g *Registry) Broadcast(roomID string, payload []byte, excludeConnID string) int {
	g.mu.RLock()
	r := g.rooms[roomID]
	g.mu.RUnlock()
	if r == nil {
		return 0
	}

	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.members))
	for _, conn := range r.members {
		if excludeConnID != "" && conn.ID == excludeConnID {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err != nil {
			// Send already closed the connection on overflow; drop the
			// membership so later broadcasts skip it.
			g.Remove(roomID, conn)
			wsDropped.Inc()
			continue
		}
		delivered++
		wsDelivered.Inc()
	}
	return delivered
}

// Members returns the number of connections currently joined to roomID.
func (g *Registry) Members(roomID string) int {
	g.mu.RLock()
	r := g.rooms[roomID]
	g.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Close terminates every tracked connection and clears all member sets.
// Used on server shutdown.
func (g *Registry) Close() {
	g.mu.Lock()
	rooms := g.rooms
	g.rooms = make(map[string]*room)
	g.mu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		for id, conn := range r.members {
			delete(r.members, id)
			wsOpen.Dec()
			conn.Close(1001, "server shutting down")
		}
		r.mu.Unlock()
	}
}
