// Package responder holds the built-in reply generator. It stands in
// for the external NLP collaborator: keyword intent classification,
// word-list sentiment, canned reply text.
package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkurev/avagate/internal/core"
	"github.com/mkurev/avagate/internal/domain"
)

var (
	greetingWords   = []string{"hello", "hi", "hey"}
	goodbyeWords    = []string{"bye", "goodbye", "farewell"}
	requestWords    = []string{"help", "assist", "support"}
	complaintWords  = []string{"problem", "issue", "wrong", "broken", "error"}
	escalationWords = []string{"human", "agent", "representative", "person", "manager"}
	questionWords   = []string{"how", "what", "when", "where", "why", "which", "who"}
	complimentWords = []string{"thank", "thanks", "great", "awesome", "good"}

	positiveWords = []string{"good", "great", "awesome", "excellent", "happy", "love", "wonderful", "fantastic", "thank", "thanks"}
	negativeWords = []string{"bad", "terrible", "awful", "hate", "angry", "frustrated", "disappointed", "wrong", "broken", "problem"}
)

// Rules generates replies with simple keyword heuristics.
type Rules struct {
	name string
}

func NewRules(avatarName string) *Rules {
	if avatarName == "" {
		avatarName = "Assistant"
	}
	return &Rules{name: avatarName}
}

func (r *Rules) GenerateReply(_ context.Context, _ []domain.Message, userMessage string) (core.Reply, error) {
	intent := classifyIntent(userMessage)
	sentiment := scoreSentiment(userMessage)

	reply := core.Reply{
		Intent:    intent,
		Sentiment: sentiment,
		Content:   r.contentFor(intent),
	}

	switch {
	case intent == "escalation":
		reply.ShouldEscalate = true
		reply.Reason = "user requested a human agent"
	case sentiment <= -0.6:
		reply.ShouldEscalate = true
		reply.Reason = "strongly negative sentiment"
		reply.Content = "I understand this is frustrating. Let me connect you with a human agent who can better assist you."
	case sentiment < 0 && intent == "general":
		reply.Content = "I'm sorry to hear that. " + reply.Content
	}

	return reply, nil
}

func (r *Rules) contentFor(intent string) string {
	switch intent {
	case "greeting":
		return fmt.Sprintf("Hello! I'm %s. How can I assist you today?", r.name)
	case "goodbye":
		return "It was great helping you! Feel free to reach out anytime. Goodbye!"
	case "request":
		return "I'd be happy to help you with that request."
	case "complaint":
		return "I understand your concern. I'm here to help resolve this issue."
	case "escalation":
		return "I understand you'd like to speak with a human agent. Let me connect you with the right person."
	case "question":
		return "That's a great question! Let me help you with that."
	case "compliment":
		return "Thank you for your kind words! Is there anything else I can assist with?"
	default:
		return fmt.Sprintf("I appreciate your message! As %s, I'm here to help. Could you please provide more details about what you need assistance with?", r.name)
	}
}

// classifyIntent checks the categories in a fixed priority order; the
// first match wins.
func classifyIntent(message string) string {
	words := tokenize(message)
	switch {
	case containsAny(words, greetingWords):
		return "greeting"
	case containsAny(words, goodbyeWords):
		return "goodbye"
	case containsAny(words, requestWords):
		return "request"
	case containsAny(words, complaintWords):
		return "complaint"
	case containsAny(words, escalationWords):
		return "escalation"
	case strings.Contains(message, "?") || containsAny(words, questionWords):
		return "question"
	case containsAny(words, complimentWords):
		return "compliment"
	default:
		return "general"
	}
}

// scoreSentiment counts positive and negative keywords, clamped to
// [-0.8, 0.8].
func scoreSentiment(message string) float64 {
	words := tokenize(message)
	var pos, neg int
	for _, w := range positiveWords {
		if words[w] {
			pos++
		}
	}
	for _, w := range negativeWords {
		if words[w] {
			neg++
		}
	}
	switch {
	case pos > neg:
		return min(0.8, float64(pos)*0.2)
	case neg > pos:
		return max(-0.8, -float64(neg)*0.2)
	default:
		return 0.0
	}
}

func tokenize(message string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(message)) {
		out[strings.Trim(w, ".,!?;:'\"()")] = true
	}
	return out
}

func containsAny(words map[string]bool, keywords []string) bool {
	for _, k := range keywords {
		if words[k] {
			return true
		}
	}
	return false
}
