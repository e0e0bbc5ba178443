package responder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCompose_JoinsResponseAndFollowUp(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := Compose()

		var base string
		for _, r := range responses {
			if strings.HasPrefix(got, r+" ") {
				base = r
				break
			}
		}
		if base == "" {
			t.Fatalf("no known response prefix in %q", got)
		}

		follow := strings.TrimPrefix(got, base+" ")
		found := false
		for _, f := range followUps {
			if follow == f {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("unknown follow-up %q in %q", follow, got)
		}
	}
}

func TestCanned_ReplyUsesDelaySeam(t *testing.T) {
	c := &Canned{Delay: func() time.Duration { return 0 }}

	start := time.Now()
	reply, err := c.Reply(context.Background(), "r1")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply == "" {
		t.Fatalf("empty reply")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("delay seam ignored, took %v", elapsed)
	}
}

func TestCanned_ReplyCancelledMidDelay(t *testing.T) {
	c := &Canned{Delay: func() time.Duration { return time.Hour }}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	reply, err := c.Reply(ctx, "r1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if reply != "" {
		t.Fatalf("cancelled reply produced text %q", reply)
	}
}

func TestDelayBounds(t *testing.T) {
	if MinDelay != time.Second || MaxDelay != 3*time.Second {
		t.Fatalf("delay bounds = [%v, %v]", MinDelay, MaxDelay)
	}
}
