// Package responder defines the reply-producing capability the chat service
// depends on abstractly. The canned implementation stands in for a real
// inference backend; swapping in a network-backed one only has to honor the
// same produce-one-reply contract.
package responder

import (
	"context"
	"math/rand"
	"time"
)

// Responder produces one assistant reply for a room. Implementations must
// honor ctx: a cancelled context means the owning view went away and no
// reply should be produced.
type Responder interface {
	Reply(ctx context.Context, roomID string) (string, error)
}

// Delay bounds for the canned responder, uniform in [Min, Max).
const (
	MinDelay = 1000 * time.Millisecond
	MaxDelay = 3000 * time.Millisecond
)

var responses = []string{
	"That's a fascinating question! Let me think about that...",
	"I understand what you're asking. Here's my perspective on this...",
	"Great question! Based on what I know, I'd say...",
	"That's really interesting! Can you tell me more about your thoughts on this?",
	"I see what you mean. Let me explore that further...",
	"Hmm, that's a good point. Here's what I think...",
	"Interesting perspective! I'd love to dive deeper into this topic.",
	"That's a complex question. Let me break it down...",
	"I appreciate you sharing that with me. Here's my take...",
	"That's definitely worth discussing! What are your thoughts on...",
	"I see where you're coming from. Let me share my thoughts...",
	"That's an intriguing point! I think we could explore this further.",
	"Great observation! Here's what I found interesting about that...",
	"I understand your perspective. Let me add to this conversation...",
	"That's a thoughtful question. Here's what I think about it...",
}

var followUps = []string{
	"What made you think about this?",
	"How do you feel about this topic?",
	"Have you experienced something similar?",
	"What's your take on this?",
	"How does this relate to your interests?",
	"What would you like to explore next?",
}

// Canned replies with a random response plus a random follow-up question
// after a randomized think delay.
type Canned struct {
	// Delay overrides the randomized delay; nil means uniform 1–3 s.
	Delay func() time.Duration
}

// Compose returns one random response and one random follow-up, space-joined.
func Compose() string {
	return responses[rand.Intn(len(responses))] + " " + followUps[rand.Intn(len(followUps))]
}

// Reply waits out the think delay, then returns canned text. It returns
// ctx.Err() without producing a reply when cancelled mid-delay.
func (c *Canned) Reply(ctx context.Context, roomID string) (string, error) {
	delay := c.Delay
	if delay == nil {
		delay = func() time.Duration {
			return MinDelay + time.Duration(rand.Int63n(int64(MaxDelay-MinDelay)))
		}
	}

	t := time.NewTimer(delay())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.C:
	}
	return Compose(), nil
}
