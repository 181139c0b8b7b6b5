package moderation

import (
	"context"
	"time"

	"dredd/internal/events"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type State int

const (
	StatePending State = iota
	StateAccepted
	StateDeclined
	StateInspecting
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateDeclined:
		return "declined"
	case StateInspecting:
		return "inspecting"
	case StateTimedOut:
		return "timed out"
	default:
		return "pending"
	}
}

func (s State) Terminal() bool {
	return s == StateAccepted || s == StateDeclined || s == StateTimedOut
}

type Choice int

const (
	ChoiceAccept Choice = iota + 1
	ChoiceDecline
	ChoiceInspect
	ChoiceTimeout
)

// promptMachine tracks one confirmation. Inspect can be taken once; the
// re-armed prompt only offers accept and decline.
type promptMachine struct {
	state          State
	inspectOffered bool
}

func newPromptMachine(inspect bool) *promptMachine {
	return &promptMachine{state: StatePending, inspectOffered: inspect}
}

// fire applies a choice and reports whether it was valid in the current state.
func (m *promptMachine) fire(c Choice) bool {
	if m.state != StatePending {
		return false
	}
	switch c {
	case ChoiceAccept:
		m.state = StateAccepted
	case ChoiceDecline:
		m.state = StateDeclined
	case ChoiceTimeout:
		m.state = StateTimedOut
	case ChoiceInspect:
		if !m.inspectOffered {
			return false
		}
		m.state = StateInspecting
	default:
		return false
	}
	return true
}

func (m *promptMachine) rearm() {
	if m.state == StateInspecting {
		m.state = StatePending
		m.inspectOffered = false
	}
}

type ConfirmConfig struct {
	Accept  string
	Decline string
	Inspect string
	Timeout time.Duration
}

type Prompt struct {
	ChannelID string
	ActorID   string
	Content   string
	// Inspect renders the detail view; nil gives a two-way prompt.
	Inspect func(ctx context.Context) (*discordgo.MessageEmbed, error)
}

const timeoutNotice = "Timing out..."

// Confirmer runs reaction based yes/no prompts.
type Confirmer struct {
	messenger Messenger
	waiter    ReactionWaiter
	cfg       ConfirmConfig
	logger    *zap.Logger
}

func NewConfirmer(messenger Messenger, waiter ReactionWaiter, cfg ConfirmConfig, logger *zap.Logger) *Confirmer {
	return &Confirmer{messenger: messenger, waiter: waiter, cfg: cfg, logger: logger}
}

// Confirm posts the prompt and returns a terminal state. Each wait after an
// inspect gets the full timeout again.
func (c *Confirmer) Confirm(ctx context.Context, p Prompt) (State, error) {
	messageID, err := c.messenger.Send(ctx, p.ChannelID, p.Content, nil)
	if err != nil {
		return StatePending, ClassifyRemote(err)
	}

	machine := newPromptMachine(p.Inspect != nil)
	for {
		emojis := c.offered(machine.inspectOffered)
		// Subscribed before reacting, so a click on the first reaction is never missed.
		waiter := c.waiter.SubscribeReaction(func(r events.Reaction) bool {
			return r.UserID == p.ActorID && r.MessageID == messageID && contains(emojis, r.Emoji)
		})
		for _, emoji := range emojis {
			if err := c.messenger.React(ctx, p.ChannelID, messageID, emoji); err != nil {
				waiter.Cancel()
				return StatePending, ClassifyRemote(err)
			}
		}

		reaction, ok, err := waiter.Wait(ctx, c.cfg.Timeout)
		if err != nil {
			return StatePending, err
		}

		if !ok {
			machine.fire(ChoiceTimeout)
			c.cleanup(p.ChannelID, messageID, func() error {
				if err := c.messenger.ClearReactions(ctx, p.ChannelID, messageID); err != nil {
					return err
				}
				return c.messenger.Edit(ctx, p.ChannelID, messageID, timeoutNotice, nil)
			})
			return machine.state, nil
		}

		machine.fire(c.choiceFor(reaction.Emoji))
		switch machine.state {
		case StateAccepted, StateDeclined:
			c.cleanup(p.ChannelID, messageID, func() error {
				return c.messenger.Delete(ctx, p.ChannelID, messageID)
			})
			return machine.state, nil
		case StateInspecting:
			if err := c.messenger.ClearReactions(ctx, p.ChannelID, messageID); err != nil {
				return StatePending, ClassifyRemote(err)
			}
			embed, err := p.Inspect(ctx)
			if err != nil {
				return StatePending, err
			}
			if err := c.messenger.Edit(ctx, p.ChannelID, messageID, "", embed); err != nil {
				return StatePending, ClassifyRemote(err)
			}
			machine.rearm()
		}
	}
}

func (c *Confirmer) offered(inspect bool) []string {
	if inspect {
		return []string{c.cfg.Accept, c.cfg.Decline, c.cfg.Inspect}
	}
	return []string{c.cfg.Accept, c.cfg.Decline}
}

func (c *Confirmer) choiceFor(emoji string) Choice {
	switch emoji {
	case c.cfg.Accept:
		return ChoiceAccept
	case c.cfg.Decline:
		return ChoiceDecline
	case c.cfg.Inspect:
		return ChoiceInspect
	default:
		return 0
	}
}

// cleanup failures are cosmetic; the outcome already stands.
func (c *Confirmer) cleanup(channelID, messageID string, fn func() error) {
	if err := fn(); err != nil {
		c.logger.Warn("prompt cleanup failed", zap.String("channel_id", channelID), zap.String("message_id", messageID), zap.Error(err))
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
