package core

// Frame is a single encoded wire payload.
type Frame []byte

type SessionID string

// Conn abstracts the transport endpoint bound to a session.
// Owned by the adapter that created it; the registry closes a handle
// only when it gets replaced or force-disconnected.
type Conn interface {
	TrySend(Frame) error
	Close()
}
