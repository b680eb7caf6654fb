package core

import (
	"context"

	"github.com/mkurev/avagate/internal/domain"
)

// Storage is the durable conversation/message store. It lives outside
// the routing core; every call may hit the network and must run outside
// registry locks.
type Storage interface {
	// FindActiveConversation returns (nil, nil) when no active
	// conversation exists for the session.
	FindActiveConversation(ctx context.Context, sessionID string) (*domain.Conversation, error)
	CreateConversation(ctx context.Context, sessionID, avatarID string) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, conversationID string, sender domain.Sender, content string, kind domain.Kind) (*domain.Message, error)
	// ListMessages returns up to limit messages, most-recent-last.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	TagMessage(ctx context.Context, messageID, intent string, sentiment float64) error
	EndConversation(ctx context.Context, conversationID string) error
	MarkEscalated(ctx context.Context, conversationID, reason string) error
}

// Reply is what the responder produces for one user message.
type Reply struct {
	Content        string
	Intent         string
	Sentiment      float64
	ShouldEscalate bool
	Reason         string
}

// Responder generates the avatar reply plus classification metadata.
// Reply content is entirely its concern; the router only relays it.
type Responder interface {
	GenerateReply(ctx context.Context, history []domain.Message, userMessage string) (Reply, error)
}

// StateStore mirrors session state for external observers. The mirror
// is advisory: core correctness never depends on it.
type StateStore interface {
	Write(ctx context.Context, key string, fields map[string]string) error
	ReadAll(ctx context.Context, key string) (map[string]string, error)
	DeleteFields(ctx context.Context, key string, fields ...string) error
}
