package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkurev/avagate/internal/core"
	"github.com/mkurev/avagate/internal/domain"
)

var ErrNoConversation = errors.New("no active conversation")

const defaultContextWindow = 10

type RouterConfig struct {
	// TypingDelay is how long the typing indicator shows before the
	// final reply goes out. Zero or negative sends the reply inline.
	TypingDelay   time.Duration
	ContextWindow int
	AvatarName    string
}

// Router decodes inbound frames and drives the conversation pipeline.
// It talks to the storage and responder collaborators and hands every
// outgoing envelope to the Manager, which owns delivery.
type Router struct {
	manager   *Manager
	storage   core.Storage
	responder core.Responder
	selector  Selector
	cfg       RouterConfig
}

func NewRouter(manager *Manager, storage core.Storage, responder core.Responder, selector Selector, cfg RouterConfig) *Router {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = defaultContextWindow
	}
	if cfg.AvatarName == "" {
		cfg.AvatarName = "Assistant"
	}
	return &Router{manager: manager, storage: storage, responder: responder, selector: selector, cfg: cfg}
}

type inboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	RoomID  string `json:"room_id"`
}

func (f inboundFrame) room() domain.RoomID {
	if f.RoomID == "" {
		return domain.GlobalRoom
	}
	return domain.RoomID(f.RoomID)
}

// Route handles one inbound frame. Nothing here tears the connection
// down: bad input and collaborator failures surface to the client as
// error envelopes and the session stays registered.
func (rt *Router) Route(ctx context.Context, sid core.SessionID, data core.Frame) {
	rt.manager.Touch(ctx, sid)

	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("sid", string(sid)).Msg("malformed frame")
		rt.manager.Send(ctx, sid, core.NewErrorEnvelope("invalid message format"))
		return
	}

	switch frame.Type {
	case "text":
		rt.handleText(ctx, sid, frame)
	case "typing_start":
		rt.manager.SetTyping(ctx, sid, true, frame.room())
	case "typing_stop":
		rt.manager.SetTyping(ctx, sid, false, frame.room())
	case "voice":
		rt.manager.Send(ctx, sid, core.NewSystemEnvelope("Voice message received. Processing..."))
	case "media_upload":
		rt.manager.Send(ctx, sid, core.NewSystemEnvelope("Media file received. Processing..."))
	default:
		rt.manager.Send(ctx, sid, core.NewErrorEnvelope(fmt.Sprintf("unknown message type: %s", frame.Type)))
	}
}

// handleText runs the text pipeline: persist, ack, reply, persist,
// typing indicator, then the reply itself after the presentation delay.
// The ack/typing/reply order is a client contract.
func (rt *Router) handleText(ctx context.Context, sid core.SessionID, frame inboundFrame) {
	content := strings.TrimSpace(frame.Content)
	if content == "" {
		return
	}

	conv, err := rt.ensureConversation(ctx, sid)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("sid", string(sid)).Msg("conversation lookup failed")
		rt.manager.Send(ctx, sid, core.NewErrorEnvelope("conversation unavailable"))
		return
	}

	userMsg, err := rt.storage.AppendMessage(ctx, conv.ID, domain.SenderUser, content, domain.KindText)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("sid", string(sid)).Msg("persist user message failed")
		rt.manager.Send(ctx, sid, core.NewErrorEnvelope("could not store message"))
		return
	}
	rt.manager.Send(ctx, sid, core.NewMessageEnvelope(userMsg.ID, domain.SenderUser, content))

	history, err := rt.storage.ListMessages(ctx, conv.ID, rt.cfg.ContextWindow)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("sid", string(sid)).Msg("context load failed, replying without it")
		history = nil
	}

	reply, err := rt.responder.GenerateReply(ctx, history, content)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("sid", string(sid)).Msg("responder failed")
		rt.manager.Send(ctx, sid, core.NewErrorEnvelope("could not generate a reply"))
		return
	}

	avatarMsg, err := rt.storage.AppendMessage(ctx, conv.ID, domain.SenderAvatar, reply.Content, domain.KindText)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("sid", string(sid)).Msg("persist reply failed")
		rt.manager.Send(ctx, sid, core.NewErrorEnvelope("could not store reply"))
		return
	}
	if err := rt.storage.TagMessage(ctx, avatarMsg.ID, reply.Intent, reply.Sentiment); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("msg_id", avatarMsg.ID).Msg("tag message failed")
	}
	if reply.ShouldEscalate {
		if err := rt.storage.MarkEscalated(ctx, conv.ID, reply.Reason); err != nil {
			log.Warn().Err(err).Str("module", "app.router").Str("conversation", conv.ID).Msg("mark escalated failed")
		}
	}

	rt.manager.Send(ctx, sid, core.NewAvatarTypingEnvelope(true))

	out := core.NewMessageEnvelope(avatarMsg.ID, domain.SenderAvatar, reply.Content)
	out.TypingDurationMS = int(rt.cfg.TypingDelay / time.Millisecond)
	out.Escalated = reply.ShouldEscalate
	out.EscalationReason = reply.Reason

	if rt.cfg.TypingDelay <= 0 {
		rt.manager.Send(ctx, sid, out)
		return
	}
	// Scheduled send instead of a blocking sleep so a slow reply never
	// stalls the read loop. Delivery must survive handler return.
	sendCtx := context.WithoutCancel(ctx)
	time.AfterFunc(rt.cfg.TypingDelay, func() {
		rt.manager.Send(sendCtx, sid, out)
	})
}

// Welcome greets a freshly connected session, creating the conversation
// if this is its first contact.
func (rt *Router) Welcome(ctx context.Context, sid core.SessionID) {
	if _, err := rt.ensureConversation(ctx, sid); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("sid", string(sid)).Msg("welcome skipped")
		return
	}
	greeting := fmt.Sprintf("Hello! I'm %s. How can I help you today?", rt.cfg.AvatarName)
	rt.manager.Send(ctx, sid, core.NewSystemEnvelope(greeting))
}

// EndConversation closes the active conversation and notifies the
// session if it is still connected.
func (rt *Router) EndConversation(ctx context.Context, sid core.SessionID) error {
	conv, err := rt.storage.FindActiveConversation(ctx, string(sid))
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrNoConversation
	}
	if err := rt.storage.EndConversation(ctx, conv.ID); err != nil {
		return err
	}
	rt.manager.Send(ctx, sid, core.NewConversationEndedEnvelope(conv.ID, "This conversation has ended. Thank you for chatting!"))
	return nil
}

func (rt *Router) ensureConversation(ctx context.Context, sid core.SessionID) (*domain.Conversation, error) {
	conv, err := rt.storage.FindActiveConversation(ctx, string(sid))
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}
	avatarID := rt.selector.Pick(sid)
	return rt.storage.CreateConversation(ctx, string(sid), avatarID)
}
