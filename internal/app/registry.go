package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/core"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

type connEntry struct {
	ID            domain.ConnectionID
	Claims        domain.Claims
	RoomID        domain.RoomID
	ParticipantID domain.ParticipantID
	Conn          core.SignalConnection
	LastHeartbeat time.Time
}

// ConnSnapshot is a read-only view of a registered connection.
type ConnSnapshot struct {
	ID            domain.ConnectionID
	Claims        domain.Claims
	RoomID        domain.RoomID
	ParticipantID domain.ParticipantID
	Conn          core.SignalConnection
	LastHeartbeat time.Time
}

// Registry tracks live connections: one entry per active websocket, the
// identity bound to it, its room association and liveness state. At most one
// live entry exists per user; Register reports the entry it displaced.
type Registry struct {
	mu     sync.RWMutex
	conns  map[domain.ConnectionID]*connEntry
	byUser map[domain.UserID]domain.ConnectionID
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[domain.ConnectionID]*connEntry),
		byUser: make(map[domain.UserID]domain.ConnectionID),
	}
}

// Register binds a connection to an identity. If the same user already has a
// live connection its snapshot is returned so the caller can replace it.
func (r *Registry) Register(id domain.ConnectionID, claims domain.Claims, conn core.SignalConnection) (ConnSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev ConnSnapshot
	replaced := false
	if prevID, ok := r.byUser[claims.UserID]; ok {
		if e, ok := r.conns[prevID]; ok {
			prev = snapshotOf(e)
			replaced = true
		}
	}
	r.conns[id] = &connEntry{
		ID:            id,
		Claims:        claims,
		Conn:          conn,
		LastHeartbeat: time.Now(),
	}
	r.byUser[claims.UserID] = id
	log.Info().Str("module", "app.registry").Str("conn", string(id)).
		Str("user", string(claims.UserID)).Bool("replaced", replaced).Msg("connection registered")
	return prev, replaced
}

// Deregister removes a connection. Removing one that is already gone is a
// no-op; a stale byUser mapping belonging to a newer connection is preserved.
func (r *Registry) Deregister(id domain.ConnectionID) (ConnSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return ConnSnapshot{}, false
	}
	delete(r.conns, id)
	if r.byUser[e.Claims.UserID] == id {
		delete(r.byUser, e.Claims.UserID)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection deregistered")
	return snapshotOf(e), true
}

func (r *Registry) Get(id domain.ConnectionID) (ConnSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return ConnSnapshot{}, false
	}
	return snapshotOf(e), true
}

// BindRoom associates a connection with the participant it joined as.
func (r *Registry) BindRoom(id domain.ConnectionID, roomID domain.RoomID, participantID domain.ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.RoomID = roomID
	e.ParticipantID = participantID
	return true
}

func (r *Registry) ClearRoom(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.RoomID = ""
		e.ParticipantID = ""
	}
}

// RoomOf returns the room/participant pair bound to the connection.
func (r *Registry) RoomOf(id domain.ConnectionID) (domain.RoomID, domain.ParticipantID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.RoomID == "" {
		return "", "", false
	}
	return e.RoomID, e.ParticipantID, true
}

// Heartbeat refreshes the liveness timestamp of a connection.
func (r *Registry) Heartbeat(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.LastHeartbeat = time.Now()
	}
}

// ConnectionsInRoom returns the live connections currently associated with a
// room. The association is maintained incrementally by BindRoom/ClearRoom.
func (r *Registry) ConnectionsInRoom(roomID domain.RoomID) []ConnSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnSnapshot, 0, len(r.conns))
	for _, e := range r.conns {
		if e.RoomID == roomID {
			out = append(out, snapshotOf(e))
		}
	}
	return out
}

// Stale returns connections whose last heartbeat is older than timeout.
func (r *Registry) Stale(timeout time.Duration) []ConnSnapshot {
	cutoff := time.Now().Add(-timeout)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ConnSnapshot
	for _, e := range r.conns {
		if e.LastHeartbeat.Before(cutoff) {
			out = append(out, snapshotOf(e))
		}
	}
	return out
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []ConnSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnSnapshot, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, snapshotOf(e))
	}
	return out
}

// CountForUser reports how many live connections a user holds.
func (r *Registry) CountForUser(userID domain.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.conns {
		if e.Claims.UserID == userID {
			n++
		}
	}
	return n
}

func snapshotOf(e *connEntry) ConnSnapshot {
	return ConnSnapshot{
		ID:            e.ID,
		Claims:        e.Claims,
		RoomID:        e.RoomID,
		ParticipantID: e.ParticipantID,
		Conn:          e.Conn,
		LastHeartbeat: e.LastHeartbeat,
	}
}
