package domain

import "time"

type Sender string

const (
	SenderUser       Sender = "user"
	SenderAvatar     Sender = "avatar"
	SenderHumanAgent Sender = "human_agent"
)

type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

type Message struct {
	ID             string
	ConversationID string
	Sender         Sender
	Content        string
	Kind           Kind
	Intent         string
	Sentiment      float64
	CreatedAt      time.Time
}
