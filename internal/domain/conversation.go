package domain

import "time"

type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationEnded  ConversationStatus = "ended"
)

// Conversation is owned by the storage collaborator; the core only
// reads and writes it through that boundary.
type Conversation struct {
	ID               string
	SessionID        string
	UserID           string
	AvatarID         string
	Status           ConversationStatus
	Escalated        bool
	EscalationReason string
	StartedAt        time.Time
	EndedAt          *time.Time
}
