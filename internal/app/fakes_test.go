package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkurev/avagate/internal/core"
	"github.com/mkurev/avagate/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	fail   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// envelopes decodes every captured frame, in delivery order.
func (c *fakeConn) envelopes(t *testing.T) []core.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env core.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

// waitFrames blocks until the conn has captured at least n frames.
func (c *fakeConn) waitFrames(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.frameCount() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, got %d", n, c.frameCount())
}

type failingStateStore struct{}

func (failingStateStore) Write(context.Context, string, map[string]string) error {
	return errors.New("store down")
}

func (failingStateStore) ReadAll(context.Context, string) (map[string]string, error) {
	return nil, errors.New("store down")
}

func (failingStateStore) DeleteFields(context.Context, string, ...string) error {
	return errors.New("store down")
}

type fakeStorage struct {
	mu         sync.Mutex
	conv       *domain.Conversation
	msgs       []domain.Message
	tags       map[string]string
	escalation string
	ended      bool

	failFind   bool
	failAppend bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{tags: make(map[string]string)}
}

func (s *fakeStorage) FindActiveConversation(_ context.Context, sessionID string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind {
		return nil, errors.New("storage down")
	}
	if s.conv == nil || s.conv.SessionID != sessionID || s.conv.Status != domain.ConversationActive {
		return nil, nil
	}
	conv := *s.conv
	return &conv, nil
}

func (s *fakeStorage) CreateConversation(_ context.Context, sessionID, avatarID string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = &domain.Conversation{
		ID:        "conv-1",
		SessionID: sessionID,
		AvatarID:  avatarID,
		Status:    domain.ConversationActive,
		StartedAt: time.Now(),
	}
	conv := *s.conv
	return &conv, nil
}

func (s *fakeStorage) AppendMessage(_ context.Context, conversationID string, sender domain.Sender, content string, kind domain.Kind) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend {
		return nil, errors.New("storage down")
	}
	msg := domain.Message{
		ID:             fmt.Sprintf("msg-%d", len(s.msgs)+1),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Kind:           kind,
		CreatedAt:      time.Now(),
	}
	s.msgs = append(s.msgs, msg)
	return &msg, nil
}

func (s *fakeStorage) ListMessages(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, 0, len(s.msgs))
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStorage) TagMessage(_ context.Context, messageID, intent string, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[messageID] = intent
	return nil
}

func (s *fakeStorage) EndConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv != nil && s.conv.ID == conversationID {
		s.conv.Status = domain.ConversationEnded
	}
	s.ended = true
	return nil
}

func (s *fakeStorage) MarkEscalated(_ context.Context, _ string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalation = reason
	return nil
}

type fakeResponder struct {
	reply core.Reply
	err   error
}

func (r *fakeResponder) GenerateReply(context.Context, []domain.Message, string) (core.Reply, error) {
	if r.err != nil {
		return core.Reply{}, r.err
	}
	return r.reply, nil
}

func sids(ids ...core.SessionID) []core.SessionID {
	return ids
}

func newTestManager(store core.StateStore) (*Manager, *Registry, *RoomSet) {
	registry := NewRegistry()
	rooms := NewRoomSet()
	return NewManager(registry, rooms, store, ManagerConfig{}), registry, rooms
}
