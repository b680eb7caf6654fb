package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkurev/avagate/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.FindActiveConversation(ctx, "sess-1")
	require.NoError(t, err)
	require.Nil(t, conv)

	created, err := s.CreateConversation(ctx, "sess-1", "ava-1")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, domain.ConversationActive, created.Status)

	found, err := s.FindActiveConversation(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, "ava-1", found.AvatarID)

	require.NoError(t, s.EndConversation(ctx, created.ID))
	found, err = s.FindActiveConversation(ctx, "sess-1")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestMessagesMostRecentLast(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "sess-1", "ava-1")
	require.NoError(t, err)

	for _, content := range []string{"first", "second", "third"} {
		_, err := s.AppendMessage(ctx, conv.ID, domain.SenderUser, content, domain.KindText)
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "third", msgs[2].Content)

	// Limit keeps the most recent messages, still oldest-first.
	msgs, err = s.ListMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "second", msgs[0].Content)
	require.Equal(t, "third", msgs[1].Content)
}

func TestMessageTagging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "sess-1", "ava-1")
	require.NoError(t, err)
	msg, err := s.AppendMessage(ctx, conv.ID, domain.SenderAvatar, "reply", domain.KindText)
	require.NoError(t, err)

	require.NoError(t, s.TagMessage(ctx, msg.ID, "greeting", 0.4))

	msgs, err := s.ListMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "greeting", msgs[0].Intent)
	require.InDelta(t, 0.4, msgs[0].Sentiment, 1e-9)
}

func TestMarkEscalated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "sess-1", "ava-1")
	require.NoError(t, err)
	require.NoError(t, s.MarkEscalated(ctx, conv.ID, "user requested a human agent"))

	found, err := s.FindActiveConversation(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.True(t, found.Escalated)
	require.Equal(t, "user requested a human agent", found.EscalationReason)
}

func TestConversationsAreScopedBySession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateConversation(ctx, "sess-1", "ava-1")
	require.NoError(t, err)
	_, err = s.CreateConversation(ctx, "sess-2", "ava-2")
	require.NoError(t, err)

	found, err := s.FindActiveConversation(ctx, "sess-2")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "ava-2", found.AvatarID)
}
