package core

import (
	"encoding/json"
	"time"

	"github.com/mkurev/avagate/internal/domain"
)

type EnvelopeType string

const (
	EnvelopeMessage           EnvelopeType = "message"
	EnvelopeSystemMessage     EnvelopeType = "system_message"
	EnvelopeTypingIndicator   EnvelopeType = "typing_indicator"
	EnvelopePresenceUpdate    EnvelopeType = "presence_update"
	EnvelopeError             EnvelopeType = "error"
	EnvelopeConversationEnded EnvelopeType = "conversation_ended"
)

// Envelope is the outbound wire unit: one tagged payload per delivery,
// never persisted. Optional fields are omitted unless the type uses them.
type Envelope struct {
	Type             EnvelopeType `json:"type"`
	ID               string       `json:"id,omitempty"`
	SessionID        string       `json:"session_id,omitempty"`
	Sender           string       `json:"sender,omitempty"`
	Content          string       `json:"content,omitempty"`
	RoomID           string       `json:"room_id,omitempty"`
	Status           string       `json:"status,omitempty"`
	IsTyping         *bool        `json:"is_typing,omitempty"`
	TypingDurationMS int          `json:"typing_duration,omitempty"`
	Escalated        bool         `json:"escalated,omitempty"`
	EscalationReason string       `json:"escalation_reason,omitempty"`
	Timestamp        string       `json:"timestamp"`
}

func (e Envelope) Encode() (Frame, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func NewMessageEnvelope(id string, sender domain.Sender, content string) Envelope {
	return Envelope{
		Type:      EnvelopeMessage,
		ID:        id,
		Sender:    string(sender),
		Content:   content,
		Timestamp: stamp(),
	}
}

func NewSystemEnvelope(content string) Envelope {
	return Envelope{
		Type:      EnvelopeSystemMessage,
		Sender:    string(domain.SenderAvatar),
		Content:   content,
		Timestamp: stamp(),
	}
}

func NewTypingEnvelope(sid SessionID, room domain.RoomID, isTyping bool) Envelope {
	return Envelope{
		Type:      EnvelopeTypingIndicator,
		SessionID: string(sid),
		RoomID:    string(room),
		IsTyping:  &isTyping,
		Timestamp: stamp(),
	}
}

// NewAvatarTypingEnvelope signals that the avatar itself is composing a
// reply. No session id: the avatar is not a session.
func NewAvatarTypingEnvelope(isTyping bool) Envelope {
	return Envelope{
		Type:      EnvelopeTypingIndicator,
		Sender:    string(domain.SenderAvatar),
		IsTyping:  &isTyping,
		Timestamp: stamp(),
	}
}

func NewPresenceEnvelope(sid SessionID, status domain.Status) Envelope {
	return Envelope{
		Type:      EnvelopePresenceUpdate,
		SessionID: string(sid),
		Status:    string(status),
		Timestamp: stamp(),
	}
}

func NewErrorEnvelope(content string) Envelope {
	return Envelope{
		Type:      EnvelopeError,
		Content:   content,
		Timestamp: stamp(),
	}
}

func NewConversationEndedEnvelope(conversationID, content string) Envelope {
	return Envelope{
		Type:      EnvelopeConversationEnded,
		ID:        conversationID,
		Content:   content,
		Timestamp: stamp(),
	}
}
