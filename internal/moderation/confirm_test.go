package moderation

import (
	"context"
	"testing"
	"time"

	"dredd/internal/events"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func newTestConfirmer(messenger *fakeMessenger, waiter *scriptedWaiter) *Confirmer {
	return NewConfirmer(messenger, waiter, ConfirmConfig{
		Accept:  "✅",
		Decline: "❌",
		Inspect: "🔍",
		Timeout: 30 * time.Second,
	}, zap.NewNop())
}

func TestConfirmTimesOut(t *testing.T) {
	messenger := newFakeMessenger()
	waiter := &scriptedWaiter{t: t, actorID: "actor", messages: messenger, script: []string{""}}
	state, err := newTestConfirmer(messenger, waiter).Confirm(context.Background(), Prompt{ChannelID: "c", ActorID: "actor", Content: "sure?"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if state != StateTimedOut {
		t.Fatalf("expected timed out, got %s", state)
	}
	if len(messenger.edits) != 1 || messenger.edits[0].Content != "Timing out..." {
		t.Fatalf("prompt should be edited to the timeout notice, got %+v", messenger.edits)
	}
	if len(messenger.cleared) != 1 {
		t.Fatalf("reactions should be cleared on timeout")
	}
}

func TestConfirmTwoWayDoesNotOfferInspect(t *testing.T) {
	messenger := newFakeMessenger()
	waiter := &scriptedWaiter{t: t, actorID: "actor", messages: messenger, script: []string{"❌"}}
	state, err := newTestConfirmer(messenger, waiter).Confirm(context.Background(), Prompt{ChannelID: "c", ActorID: "actor", Content: "sure?"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if state != StateDeclined {
		t.Fatalf("expected declined, got %s", state)
	}
	if got := messenger.reactions["msg-1"]; len(got) != 2 {
		t.Fatalf("expected accept and decline only, got %v", got)
	}
	if len(messenger.deleted) != 1 {
		t.Fatalf("prompt should be deleted once resolved")
	}
}

func TestConfirmInspectThenAccept(t *testing.T) {
	messenger := newFakeMessenger()
	waiter := &scriptedWaiter{t: t, actorID: "actor", messages: messenger, script: []string{"🔍", "✅"}}
	inspected := 0
	state, err := newTestConfirmer(messenger, waiter).Confirm(context.Background(), Prompt{
		ChannelID: "c",
		ActorID:   "actor",
		Content:   "sure?",
		Inspect: func(context.Context) (*discordgo.MessageEmbed, error) {
			inspected++
			return &discordgo.MessageEmbed{Title: "details"}, nil
		},
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if state != StateAccepted || inspected != 1 {
		t.Fatalf("expected accepted after one inspect, got %s (inspected %d)", state, inspected)
	}
	if got := messenger.reactions["msg-1"]; len(got) != 5 {
		t.Fatalf("expected 3 reactions then 2 after re-arming, got %v", got)
	}
	if len(messenger.edits) != 1 || messenger.edits[0].Embed == nil || messenger.edits[0].Embed.Title != "details" {
		t.Fatalf("inspect should edit the detail embed into the prompt, got %+v", messenger.edits)
	}
	if len(waiter.timeouts) != 2 || waiter.timeouts[1] != 30*time.Second {
		t.Fatalf("each wait should get the full timeout, got %v", waiter.timeouts)
	}
}

// clickingMessenger reacts like fakeMessenger, but the actor clicks accept as soon as
// the first reaction appears.
type clickingMessenger struct {
	*fakeMessenger
	hub     *events.Hub
	actorID string
	clicked bool
}

func (m *clickingMessenger) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := m.fakeMessenger.React(ctx, channelID, messageID, emoji); err != nil {
		return err
	}
	if !m.clicked {
		m.clicked = true
		m.hub.Dispatch(events.Reaction{ChannelID: channelID, MessageID: messageID, UserID: m.actorID, Emoji: emoji})
	}
	return nil
}

func TestConfirmCatchesReactionDuringSetup(t *testing.T) {
	hub := events.NewHub(zap.NewNop())
	messenger := &clickingMessenger{fakeMessenger: newFakeMessenger(), hub: hub, actorID: "actor"}
	confirmer := NewConfirmer(messenger, hub, ConfirmConfig{
		Accept:  "✅",
		Decline: "❌",
		Timeout: time.Second,
	}, zap.NewNop())

	state, err := confirmer.Confirm(context.Background(), Prompt{ChannelID: "c", ActorID: "actor", Content: "sure?"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if state != StateAccepted {
		t.Fatalf("a click while reactions are still being added must count, got %s", state)
	}
}

func TestConfirmSubscribesBeforeReacting(t *testing.T) {
	messenger := newFakeMessenger()
	waiter := &scriptedWaiter{t: t, actorID: "actor", messages: messenger, script: []string{"✅"}}
	if _, err := newTestConfirmer(messenger, waiter).Confirm(context.Background(), Prompt{ChannelID: "c", ActorID: "actor", Content: "sure?"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(waiter.reactsAtSubscribe) != 1 || waiter.reactsAtSubscribe[0] != 0 {
		t.Fatalf("waiter must be registered before any reaction, got %v", waiter.reactsAtSubscribe)
	}
}

func TestPromptMachine(t *testing.T) {
	m := newPromptMachine(false)
	if m.fire(ChoiceInspect) {
		t.Fatalf("inspect must not be valid when not offered")
	}
	if !m.fire(ChoiceAccept) || !m.state.Terminal() {
		t.Fatalf("accept should be terminal")
	}
	if m.fire(ChoiceDecline) {
		t.Fatalf("terminal state must not change")
	}

	m = newPromptMachine(true)
	if !m.fire(ChoiceInspect) || m.state != StateInspecting {
		t.Fatalf("expected inspecting")
	}
	m.rearm()
	if m.state != StatePending || m.fire(ChoiceInspect) {
		t.Fatalf("inspect should only be taken once")
	}
}
