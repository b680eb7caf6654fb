package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mkurev/avagate/internal/core"
	"github.com/mkurev/avagate/internal/domain"
)

// RoomSet tracks named broadcast groups plus per-room typing flags.
// Membership is pure bookkeeping; it never touches transport handles.
type RoomSet struct {
	mu      sync.RWMutex
	members map[domain.RoomID]map[core.SessionID]struct{}
	typing  map[domain.RoomID]map[core.SessionID]struct{}
}

func NewRoomSet() *RoomSet {
	rs := &RoomSet{
		members: make(map[domain.RoomID]map[core.SessionID]struct{}),
		typing:  make(map[domain.RoomID]map[core.SessionID]struct{}),
	}
	rs.members[domain.GlobalRoom] = make(map[core.SessionID]struct{})
	return rs
}

func (rs *RoomSet) Join(room domain.RoomID, sid core.SessionID) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.members[room]; !ok {
		rs.members[room] = make(map[core.SessionID]struct{})
	}
	rs.members[room][sid] = struct{}{}
	log.Debug().Str("module", "app.rooms").Str("room", string(room)).Str("sid", string(sid)).Msg("joined room")
}

func (rs *RoomSet) Leave(room domain.RoomID, sid core.SessionID) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if set, ok := rs.members[room]; ok {
		delete(set, sid)
	}
	if set, ok := rs.typing[room]; ok {
		delete(set, sid)
	}
}

// LeaveAll removes sid from every room and typing set. Keeps the
// invariant that an unregistered session leaves no dangling references.
func (rs *RoomSet) LeaveAll(sid core.SessionID) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, set := range rs.members {
		delete(set, sid)
	}
	for _, set := range rs.typing {
		delete(set, sid)
	}
}

func (rs *RoomSet) Members(room domain.RoomID) []core.SessionID {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	set, ok := rs.members[room]
	if !ok {
		return nil
	}
	out := make([]core.SessionID, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}

func (rs *RoomSet) SetTyping(room domain.RoomID, sid core.SessionID, isTyping bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if isTyping {
		if _, ok := rs.typing[room]; !ok {
			rs.typing[room] = make(map[core.SessionID]struct{})
		}
		rs.typing[room][sid] = struct{}{}
		return
	}
	if set, ok := rs.typing[room]; ok {
		delete(set, sid)
	}
}

func (rs *RoomSet) Typing(room domain.RoomID) []core.SessionID {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	set, ok := rs.typing[room]
	if !ok {
		return nil
	}
	out := make([]core.SessionID, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}
