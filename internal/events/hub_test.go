package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	fn      func()
	stopped bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, fn: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// fire runs every pending timer.
func (c *fakeClock) fire() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, timer := range timers {
		c.mu.Lock()
		live := !timer.stopped
		timer.stopped = true
		c.mu.Unlock()
		if live {
			timer.fn()
		}
	}
}

// armed blocks until n timers are registered.
func (c *fakeClock) armed(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		have := len(c.timers)
		c.mu.Unlock()
		if have >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d timers, have %d", n, have)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubscribeReactionDeliversMatch(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.WithClock(&fakeClock{})

	w := hub.SubscribeReaction(func(r Reaction) bool {
		return r.UserID == "actor" && r.MessageID == "prompt"
	})
	if hub.Dispatch(Reaction{UserID: "someone", MessageID: "prompt", Emoji: "✅"}) {
		t.Fatalf("reaction from another user must not be consumed")
	}
	if hub.Dispatch(Reaction{UserID: "actor", MessageID: "other", Emoji: "✅"}) {
		t.Fatalf("reaction on another message must not be consumed")
	}
	// Delivered before anyone waits; the waiter still gets it.
	if !hub.Dispatch(Reaction{UserID: "actor", MessageID: "prompt", Emoji: "✅"}) {
		t.Fatalf("matching reaction was not delivered")
	}

	r, ok, err := w.Wait(context.Background(), time.Minute)
	if err != nil || !ok || r.Emoji != "✅" {
		t.Fatalf("unexpected result %+v ok=%v err=%v", r, ok, err)
	}
	if hub.Dispatch(Reaction{UserID: "actor", MessageID: "prompt", Emoji: "✅"}) {
		t.Fatalf("waiter should be removed after delivery")
	}
}

func TestWaitTimesOut(t *testing.T) {
	clock := &fakeClock{}
	hub := NewHub(zap.NewNop())
	hub.WithClock(clock)

	w := hub.SubscribeReaction(func(Reaction) bool { return true })
	done := make(chan bool, 1)
	go func() {
		_, ok, err := w.Wait(context.Background(), 30*time.Second)
		if err != nil {
			t.Errorf("wait: %v", err)
		}
		done <- ok
	}()
	clock.armed(t, 1)
	clock.fire()

	if ok := <-done; ok {
		t.Fatalf("expected timeout")
	}
	if hub.Dispatch(Reaction{MessageID: "late"}) {
		t.Fatalf("timed out waiter should be removed")
	}
}

func TestWaitContextCancel(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.WithClock(&fakeClock{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := hub.SubscribeReaction(func(Reaction) bool { return true })
	if _, _, err := w.Wait(ctx, time.Minute); err == nil {
		t.Fatalf("expected context error")
	}
	if hub.Dispatch(Reaction{}) {
		t.Fatalf("cancelled waiter should be removed")
	}
}

func TestCancelUnregisters(t *testing.T) {
	hub := NewHub(zap.NewNop())
	w := hub.SubscribeReaction(func(Reaction) bool { return true })
	w.Cancel()
	if hub.Dispatch(Reaction{MessageID: "a"}) {
		t.Fatalf("cancelled waiter must not receive events")
	}
}

func TestDispatchFirstMatchingWaiterWins(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.WithClock(&fakeClock{})

	first := hub.SubscribeReaction(func(Reaction) bool { return true })
	second := hub.SubscribeReaction(func(Reaction) bool { return true })

	hub.Dispatch(Reaction{MessageID: "a"})
	hub.Dispatch(Reaction{MessageID: "b"})
	if r, _, _ := first.Wait(context.Background(), time.Minute); r.MessageID != "a" {
		t.Fatalf("first waiter should receive the first event, got %+v", r)
	}
	if r, _, _ := second.Wait(context.Background(), time.Minute); r.MessageID != "b" {
		t.Fatalf("second waiter should receive the second event, got %+v", r)
	}
}

func TestSubscribeMessageMatchesRoleMention(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.WithClock(&fakeClock{})

	w := hub.SubscribeMessage(func(m Message) bool { return m.GuildID == "g" && m.MentionsRole("role") })
	if hub.DispatchMessage(Message{GuildID: "g", AuthorID: "u", RoleMentions: []string{"other"}}) {
		t.Fatalf("message without the role must not match")
	}
	if hub.DispatchMessage(Message{GuildID: "h", AuthorID: "u", RoleMentions: []string{"role"}}) {
		t.Fatalf("message from another guild must not match")
	}
	if !hub.DispatchMessage(Message{GuildID: "g", AuthorID: "u", MessageID: "m1", RoleMentions: []string{"role"}}) {
		t.Fatalf("mention was not delivered")
	}
	m, ok, err := w.Wait(context.Background(), time.Minute)
	if err != nil || !ok || m.MessageID != "m1" {
		t.Fatalf("unexpected result %+v ok=%v err=%v", m, ok, err)
	}
}
