package moderation

import (
	"context"
	"io"

	"dredd/internal/events"

	"github.com/bwmarrin/discordgo"
)

// Messenger posts and edits the bot's own channel messages.
type Messenger interface {
	Send(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error)
	SendFile(ctx context.Context, channelID, content, name string, data io.Reader) error
	Edit(ctx context.Context, channelID, messageID, content string, embed *discordgo.MessageEmbed) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	ClearReactions(ctx context.Context, channelID, messageID string) error
	Delete(ctx context.Context, channelID, messageID string) error
	DM(ctx context.Context, userID, content string) error
}

type ReactionWaiter interface {
	SubscribeReaction(match func(events.Reaction) bool) events.Waiter[events.Reaction]
}

type MessageWaiter interface {
	SubscribeMessage(match func(events.Message) bool) events.Waiter[events.Message]
}

// Gateway is the set of guild mutations moderation commands perform.
// Reasons end up in the guild audit log.
type Gateway interface {
	Roles(ctx context.Context, guildID string) ([]*discordgo.Role, error)
	SetRoleMentionable(ctx context.Context, guildID, roleID string, mentionable bool, reason string) error
	Members(ctx context.Context, guildID string) ([]*discordgo.Member, error)
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	Unban(ctx context.Context, guildID, userID, reason string) error
	Bans(ctx context.Context, guildID string) ([]*discordgo.GuildBan, error)
	AddRole(ctx context.Context, guildID, userID, roleID, reason string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error
	VoiceMute(ctx context.Context, guildID, userID string, mute bool, reason string) error
	SetNickname(ctx context.Context, guildID, userID, nickname, reason string) error
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	Channels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData, reason string) (*discordgo.Channel, error)
	SetRoleOverwrite(ctx context.Context, channelID, roleID string, allow, deny int64, reason string) error
	DeleteOverwrite(ctx context.Context, channelID, targetID, reason string) error
	Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
	DeleteMessages(ctx context.Context, channelID string, messageIDs []string, reason string) error
}
