package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Entry struct {
	GuildID   string
	ActorID   string
	Level     string
	Action    string
	Detail    string
	CreatedAt time.Time
}

type Logger struct {
	logger *zap.Logger
	notify func(context.Context, Entry)
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, guildID, actorID, action, detail string) {
	if l == nil {
		return
	}
	entry := Entry{
		GuildID:   guildID,
		ActorID:   actorID,
		Level:     level,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit", zap.String("level", level), zap.String("guild_id", guildID), zap.String("actor_id", actorID), zap.String("action", action), zap.String("detail", detail))
}

type ChannelSource interface {
	ModLogChannel(ctx context.Context, guildID string) (string, error)
}

type Poster interface {
	Send(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error)
}

// ChannelNotifier posts entries to the guild's moderation log channel, if one is set.
func ChannelNotifier(source ChannelSource, poster Poster, color int, logger *zap.Logger) func(context.Context, Entry) {
	return func(ctx context.Context, entry Entry) {
		if entry.GuildID == "" {
			return
		}
		channelID, err := source.ModLogChannel(ctx, entry.GuildID)
		if err != nil {
			logger.Warn("modlog lookup failed", zap.String("guild_id", entry.GuildID), zap.Error(err))
			return
		}
		if channelID == "" {
			return
		}
		if _, err := poster.Send(ctx, channelID, "", Embed(entry, color)); err != nil {
			logger.Warn("modlog post failed", zap.String("guild_id", entry.GuildID), zap.String("channel_id", channelID), zap.Error(err))
		}
	}
}

func Embed(entry Entry, color int) *discordgo.MessageEmbed {
	description := entry.Detail
	if entry.ActorID != "" {
		description = fmt.Sprintf("**Moderator:** <@%s>\n%s", entry.ActorID, entry.Detail)
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("[%s] %s", entry.Level, entry.Action),
		Description: description,
		Color:       color,
		Timestamp:   entry.CreatedAt.Format(time.RFC3339),
	}
}
