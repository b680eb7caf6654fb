package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkurev/avagate/internal/core"
	"github.com/mkurev/avagate/internal/domain"
)

const (
	defaultSweepInterval = 30 * time.Second
	defaultIdleTimeout   = 2 * time.Minute
)

type ManagerConfig struct {
	SweepInterval time.Duration
	IdleTimeout   time.Duration
}

// Manager is the public face of the core: it accepts and tears down
// connections, delivers envelopes, keeps presence/typing state, and runs
// the liveness sweep. Registry mutations are serialized inside Registry
// and RoomSet; actual sends always happen outside those locks.
type Manager struct {
	registry *Registry
	rooms    *RoomSet
	store    core.StateStore
	cfg      ManagerConfig
}

func NewManager(registry *Registry, rooms *RoomSet, store core.StateStore, cfg ManagerConfig) *Manager {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	return &Manager{registry: registry, rooms: rooms, store: store, cfg: cfg}
}

// Connect registers the session, joining it to the global room and
// announcing it. A concurrent Connect for the same sid wins by being
// last: the earlier handle is closed here.
func (m *Manager) Connect(ctx context.Context, sid core.SessionID, conn core.Conn, metadata map[string]string) {
	old := m.registry.Register(sid, conn, metadata)
	if old != nil {
		old.Close()
	}
	m.rooms.Join(domain.GlobalRoom, sid)

	now := time.Now().UTC().Format(time.RFC3339)
	m.mirror(ctx, sid, map[string]string{
		"status":        string(domain.StatusOnline),
		"connected_at":  now,
		"last_activity": now,
	})
	// Announce to everyone else; the welcome message must be the first
	// thing the connecting client itself sees.
	m.Broadcast(ctx, domain.GlobalRoom, core.NewPresenceEnvelope(sid, domain.StatusOnline), sid)
}

// Disconnect unregisters the session and cleans up every trace of it:
// typing flags, room membership, mirrored state. Idempotent.
func (m *Manager) Disconnect(ctx context.Context, sid core.SessionID) {
	conn, changed := m.registry.Unregister(sid)
	if !changed {
		return
	}
	if conn != nil {
		conn.Close()
	}
	m.rooms.LeaveAll(sid)

	m.mirror(ctx, sid, map[string]string{
		"status":          string(domain.StatusOffline),
		"disconnected_at": time.Now().UTC().Format(time.RFC3339),
	})
	m.broadcastPresence(ctx, sid, domain.StatusOffline)
}

// DisconnectConn disconnects sid only if conn is still its live handle.
// A read loop whose connection was replaced must not tear down the
// successor.
func (m *Manager) DisconnectConn(ctx context.Context, sid core.SessionID, conn core.Conn) {
	if m.registry.Owns(sid, conn) {
		m.Disconnect(ctx, sid)
	}
}

// Send delivers env to sid if connected. Delivery failure is an
// implicit disconnect, never an error to the caller; an unknown sid is
// a silent no-op.
func (m *Manager) Send(ctx context.Context, sid core.SessionID, env core.Envelope) {
	conn, ok := m.registry.Get(sid)
	if !ok {
		return
	}
	frame, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.manager").Str("sid", string(sid)).Msg("encode envelope")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.manager").Str("sid", string(sid)).Msg("send failed, disconnecting")
		m.Disconnect(ctx, sid)
		return
	}
	m.registry.TouchActivity(sid)
	m.mirror(ctx, sid, map[string]string{
		"last_activity": time.Now().UTC().Format(time.RFC3339),
	})
}

// Broadcast fans env out to every member of room except exclude.
// Members that fail delivery are disconnected and pruned; stale members
// with no registry entry are pruned too. Neither aborts the fan-out.
func (m *Manager) Broadcast(ctx context.Context, room domain.RoomID, env core.Envelope, exclude core.SessionID) {
	frame, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.manager").Str("room", string(room)).Msg("encode envelope")
		return
	}
	sent := 0
	for _, sid := range m.rooms.Members(room) {
		if sid == exclude {
			continue
		}
		conn, ok := m.registry.Get(sid)
		if !ok {
			m.rooms.Leave(room, sid)
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.manager").Str("sid", string(sid)).Msg("broadcast member failed")
			m.rooms.Leave(room, sid)
			m.Disconnect(ctx, sid)
			continue
		}
		m.registry.TouchActivity(sid)
		sent++
	}
	log.Debug().Str("module", "app.manager").Str("room", string(room)).Int("sent_to", sent).Msg("broadcast done")
}

// SetTyping flags sid as typing (or not) in room and tells everyone
// else in the room.
func (m *Manager) SetTyping(ctx context.Context, sid core.SessionID, isTyping bool, room domain.RoomID) {
	m.rooms.SetTyping(room, sid, isTyping)
	m.Broadcast(ctx, room, core.NewTypingEnvelope(sid, room, isTyping), sid)
}

// UpdatePresence mutates the session's status and announces the change.
// Unknown sessions are ignored.
func (m *Manager) UpdatePresence(ctx context.Context, sid core.SessionID, status domain.Status) {
	if !m.registry.Touch(sid, status) {
		return
	}
	m.mirror(ctx, sid, map[string]string{
		"status":        string(status),
		"last_activity": time.Now().UTC().Format(time.RFC3339),
	})
	m.broadcastPresence(ctx, sid, status)
}

// Touch records inbound activity for the liveness sweep.
func (m *Manager) Touch(ctx context.Context, sid core.SessionID) {
	m.registry.TouchActivity(sid)
	m.mirror(ctx, sid, map[string]string{
		"last_activity": time.Now().UTC().Format(time.RFC3339),
	})
}

func (m *Manager) OnlineSessions() []core.SessionID {
	return m.registry.ListOnline()
}

// RunSweep periodically force-disconnects sessions whose peers vanished
// without a clean close. The sweep is the only timeout mechanism in the
// core.
func (m *Manager) RunSweep(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-m.cfg.IdleTimeout)
	for _, sid := range m.registry.IdleSince(cutoff) {
		log.Info().Str("module", "app.manager").Str("sid", string(sid)).Msg("sweeping stale session")
		m.Disconnect(ctx, sid)
	}
	if pruned := m.registry.PruneOffline(cutoff); pruned > 0 {
		log.Debug().Str("module", "app.manager").Int("pruned", pruned).Msg("dropped long-offline sessions")
	}
}

func (m *Manager) broadcastPresence(ctx context.Context, sid core.SessionID, status domain.Status) {
	m.Broadcast(ctx, domain.GlobalRoom, core.NewPresenceEnvelope(sid, status), "")
}

func (m *Manager) mirror(ctx context.Context, sid core.SessionID, fields map[string]string) {
	if m.store == nil {
		return
	}
	if err := m.store.Write(ctx, "session:"+string(sid), fields); err != nil {
		log.Debug().Err(err).Str("module", "app.manager").Str("sid", string(sid)).Msg("mirror write failed")
	}
}
