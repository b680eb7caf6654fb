package responder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntentClassification(t *testing.T) {
	tests := []struct {
		message string
		intent  string
	}{
		{"Hello there", "greeting"},
		{"hi!", "greeting"},
		{"goodbye for now", "goodbye"},
		{"can you help me", "request"},
		{"there is a problem with my order", "complaint"},
		{"I want to talk to a human agent", "escalation"},
		{"what time do you open?", "question"},
		{"thanks, that was awesome", "compliment"},
		{"the weather is nice today", "general"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.intent, classifyIntent(tc.message), "message: %q", tc.message)
	}
}

func TestIntentIsWordBounded(t *testing.T) {
	// "hi" inside "this" must not read as a greeting.
	require.Equal(t, "general", classifyIntent("this weekend was nice"))
}

func TestSentimentScore(t *testing.T) {
	require.Positive(t, scoreSentiment("this is great, thanks"))
	require.Negative(t, scoreSentiment("this is terrible"))
	require.Zero(t, scoreSentiment("the sky is blue"))

	// Clamped to the [-0.8, 0.8] band.
	require.InDelta(t, -0.8, scoreSentiment("terrible awful bad angry frustrated"), 1e-9)
	require.InDelta(t, 0.8, scoreSentiment("great awesome excellent wonderful happy"), 1e-9)
}

func TestEscalationOnRequest(t *testing.T) {
	r := NewRules("Aria")
	reply, err := r.GenerateReply(context.Background(), nil, "I want to talk to a human agent")
	require.NoError(t, err)
	require.True(t, reply.ShouldEscalate)
	require.Equal(t, "escalation", reply.Intent)
	require.NotEmpty(t, reply.Reason)
}

func TestEscalationOnStrongNegativeSentiment(t *testing.T) {
	r := NewRules("Aria")
	reply, err := r.GenerateReply(context.Background(), nil, "I am so angry, everything is awful and I hate it")
	require.NoError(t, err)
	require.True(t, reply.ShouldEscalate)
	require.Equal(t, "strongly negative sentiment", reply.Reason)
}

func TestGreetingUsesAvatarName(t *testing.T) {
	r := NewRules("Aria")
	reply, err := r.GenerateReply(context.Background(), nil, "hello")
	require.NoError(t, err)
	require.False(t, reply.ShouldEscalate)
	require.Contains(t, reply.Content, "Aria")
}

func TestDefaultAvatarName(t *testing.T) {
	r := NewRules("")
	reply, err := r.GenerateReply(context.Background(), nil, "hello")
	require.NoError(t, err)
	require.Contains(t, reply.Content, "Assistant")
}
