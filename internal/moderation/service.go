package moderation

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"dredd/internal/config"
	"dredd/internal/modules/audit"
	"dredd/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Invocation carries who ran a command, where, and the guild's role hierarchy.
type Invocation struct {
	GuildID   string
	GuildName string
	ChannelID string
	Actor     Member
	Executor  Member
	Hierarchy *Hierarchy
}

// Reply is the single result message of a command.
type Reply struct {
	Content string
	Embed   *discordgo.MessageEmbed
}

// Fault is an unexpected failure with the message to show in place of a result.
type Fault struct {
	Message string
	Err     error
}

func (f *Fault) Error() string { return f.Message + ": " + f.Err.Error() }

func (f *Fault) Unwrap() error { return f.Err }

func fault(err error, format string, args ...any) error {
	return &Fault{Message: fmt.Sprintf(format, args...), Err: ClassifyRemote(err)}
}

type IDSource func(min, max int64) int64

func randomID(min, max int64) int64 {
	return min + rand.Int63n(max-min+1)
}

type Deps struct {
	Store     storage.Store
	Gateway   Gateway
	Messenger Messenger
	Waiter    ReactionWaiter
	Mentions  MessageWaiter
	Audit     *audit.Logger
	Logger    *zap.Logger
}

type Service struct {
	cfg       config.ModerationConfig
	color     int
	store     storage.Store
	gateway   Gateway
	messenger Messenger
	confirm   *Confirmer
	mentions  MessageWaiter
	bulk      *Executor
	audit     *audit.Logger
	logger    *zap.Logger
	ids       IDSource
	now       func() time.Time
}

func NewService(cfg config.ModerationConfig, color int, deps Deps) *Service {
	confirmer := NewConfirmer(deps.Messenger, deps.Waiter, ConfirmConfig{
		Accept:  cfg.Emojis.Accept,
		Decline: cfg.Emojis.Decline,
		Inspect: cfg.Emojis.Inspect,
		Timeout: cfg.ConfirmTimeout(),
	}, deps.Logger)
	return &Service{
		cfg:       cfg,
		color:     color,
		store:     deps.Store,
		gateway:   deps.Gateway,
		messenger: deps.Messenger,
		confirm:   confirmer,
		mentions:  deps.Mentions,
		bulk:      NewExecutor(cfg.ActionsPerSecond, deps.Logger),
		audit:     deps.Audit,
		logger:    deps.Logger,
		ids:       randomID,
		now:       time.Now,
	}
}

func (s *Service) WithIDSource(ids IDSource) {
	s.ids = ids
}

func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

func (s *Service) embed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Color: s.color, Description: description}
}

func (s *Service) record(ctx context.Context, inv Invocation, action, detail string) {
	s.audit.Log(ctx, audit.LevelInfo, inv.GuildID, inv.Actor.ID, action, detail)
}

// responsible formats the audit log reason Discord stores with a mutation.
func responsible(actor Member, reason string) string {
	return fmt.Sprintf("[ %s ] %s", actor, orDefault(reason, "No reason"))
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func entities(members []Member) []Entity {
	out := make([]Entity, 0, len(members))
	for _, m := range members {
		out = append(out, m.Entity)
	}
	return out
}

func byID(members []Member) map[string]Member {
	out := make(map[string]Member, len(members))
	for _, m := range members {
		out[m.ID] = m
	}
	return out
}
