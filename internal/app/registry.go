package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkurev/avagate/internal/core"
	"github.com/mkurev/avagate/internal/domain"
)

type sessionEntry struct {
	conn           core.Conn
	status         domain.Status
	connectedAt    time.Time
	lastActivity   time.Time
	disconnectedAt time.Time
	metadata       map[string]string
}

// Registry owns the session-id to connection-handle mapping.
// At most one live handle per session id; registering again replaces
// the previous handle. Nothing here survives the process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

// Register binds conn to sid and returns the replaced handle, if any.
// The caller closes the returned handle outside the registry lock.
func (r *Registry) Register(sid core.SessionID, conn core.Conn, metadata map[string]string) core.Conn {
	now := time.Now()
	r.mu.Lock()
	var old core.Conn
	if prev, ok := r.sessions[sid]; ok {
		old = prev.conn
	}
	r.sessions[sid] = &sessionEntry{
		conn:         conn,
		status:       domain.StatusOnline,
		connectedAt:  now,
		lastActivity: now,
		metadata:     metadata,
	}
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Bool("replaced", old != nil).Msg("registered session")
	return old
}

// Unregister drops the handle and marks the entry offline. Returns the
// dropped handle and whether the session actually transitioned; calling
// it again, or for an unknown sid, is a no-op.
func (r *Registry) Unregister(sid core.SessionID) (core.Conn, bool) {
	r.mu.Lock()
	entry, ok := r.sessions[sid]
	if !ok || entry.status == domain.StatusOffline {
		r.mu.Unlock()
		return nil, false
	}
	conn := entry.conn
	entry.conn = nil
	entry.status = domain.StatusOffline
	entry.disconnectedAt = time.Now()
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered session")
	return conn, true
}

func (r *Registry) Get(sid core.SessionID) (core.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.conn == nil {
		return nil, false
	}
	return entry.conn, true
}

// Owns reports whether conn is still the live handle for sid. Lets a
// read loop that lost a replace race skip tearing down the new handle.
func (r *Registry) Owns(sid core.SessionID, conn core.Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	return ok && entry.conn == conn
}

// Touch updates last_activity and status for a known session.
func (r *Registry) Touch(sid core.SessionID, status domain.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.status = status
	entry.lastActivity = time.Now()
	return true
}

// TouchActivity refreshes last_activity without changing status.
func (r *Registry) TouchActivity(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		entry.lastActivity = time.Now()
	}
}

func (r *Registry) ListOnline() []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SessionID, 0, len(r.sessions))
	for sid, entry := range r.sessions {
		if entry.status != domain.StatusOffline {
			out = append(out, sid)
		}
	}
	return out
}

// IdleSince returns non-offline sessions whose last activity predates cutoff.
func (r *Registry) IdleSince(cutoff time.Time) []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.SessionID
	for sid, entry := range r.sessions {
		if entry.status != domain.StatusOffline && entry.lastActivity.Before(cutoff) {
			out = append(out, sid)
		}
	}
	return out
}

// PruneOffline drops offline entries whose disconnect predates cutoff,
// keeping the map from growing with every session ever seen.
func (r *Registry) PruneOffline(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for sid, entry := range r.sessions {
		if entry.status == domain.StatusOffline && entry.disconnectedAt.Before(cutoff) {
			delete(r.sessions, sid)
			pruned++
		}
	}
	return pruned
}

// SessionInfo is a read-only view of one registry entry.
type SessionInfo struct {
	SessionID      core.SessionID
	Status         domain.Status
	ConnectedAt    time.Time
	LastActivity   time.Time
	DisconnectedAt time.Time
}

func (r *Registry) Info(sid core.SessionID) (SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		SessionID:      sid,
		Status:         entry.status,
		ConnectedAt:    entry.connectedAt,
		LastActivity:   entry.lastActivity,
		DisconnectedAt: entry.disconnectedAt,
	}, true
}
