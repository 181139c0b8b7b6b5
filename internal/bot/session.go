package bot

import (
	"context"
	"io"

	"github.com/bwmarrin/discordgo"
)

const (
	memberPageSize = 1000
	banPageSize    = 1000
)

// sessionAdapter is the REST side of the bot as the moderation and raid mode packages see it.
type sessionAdapter struct {
	session *discordgo.Session
}

func withReason(ctx context.Context, reason string) []discordgo.RequestOption {
	options := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		options = append(options, discordgo.WithAuditLogReason(reason))
	}
	return options
}

func (a *sessionAdapter) Send(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error) {
	data := &discordgo.MessageSend{Content: content}
	if embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{embed}
	}
	msg, err := a.session.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (a *sessionAdapter) SendFile(ctx context.Context, channelID, content, name string, data io.Reader) error {
	_, err := a.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Files:   []*discordgo.File{{Name: name, ContentType: "text/plain", Reader: data}},
	}, discordgo.WithContext(ctx))
	return err
}

func (a *sessionAdapter) Edit(ctx context.Context, channelID, messageID, content string, embed *discordgo.MessageEmbed) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	if content != "" {
		edit.SetContent(content)
	}
	if embed != nil {
		edit.SetEmbed(embed)
	}
	_, err := a.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

func (a *sessionAdapter) React(ctx context.Context, channelID, messageID, emoji string) error {
	return a.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) ClearReactions(ctx context.Context, channelID, messageID string) error {
	return a.session.MessageReactionsRemoveAll(channelID, messageID, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) Delete(ctx context.Context, channelID, messageID string) error {
	return a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) DM(ctx context.Context, userID, content string) error {
	channel, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = a.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx))
	return err
}

func (a *sessionAdapter) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if guild, err := a.session.State.Guild(guildID); err == nil {
		return guild, nil
	}
	return a.session.Guild(guildID, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) Roles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	return a.session.GuildRoles(guildID, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) SetRoleMentionable(ctx context.Context, guildID, roleID string, mentionable bool, reason string) error {
	_, err := a.session.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{Mentionable: &mentionable}, withReason(ctx, reason)...)
	return err
}

// User always goes to the API; cached users lack banners.
func (a *sessionAdapter) User(ctx context.Context, userID string) (*discordgo.User, error) {
	return a.session.User(userID, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) SearchMembers(ctx context.Context, guildID, query string, limit int) ([]*discordgo.Member, error) {
	return a.session.GuildMembersSearch(guildID, query, limit, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if member, err := a.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	return a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) Members(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	var all []*discordgo.Member
	after := ""
	for {
		page, err := a.session.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < memberPageSize || page[len(page)-1].User == nil {
			return all, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (a *sessionAdapter) Kick(ctx context.Context, guildID, userID, reason string) error {
	return a.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	return a.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) Unban(ctx context.Context, guildID, userID, reason string) error {
	return a.session.GuildBanDelete(guildID, userID, withReason(ctx, reason)...)
}

func (a *sessionAdapter) Bans(ctx context.Context, guildID string) ([]*discordgo.GuildBan, error) {
	var all []*discordgo.GuildBan
	after := ""
	for {
		page, err := a.session.GuildBans(guildID, banPageSize, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < banPageSize || page[len(page)-1].User == nil {
			return all, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (a *sessionAdapter) AddRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return a.session.GuildMemberRoleAdd(guildID, userID, roleID, withReason(ctx, reason)...)
}

func (a *sessionAdapter) RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return a.session.GuildMemberRoleRemove(guildID, userID, roleID, withReason(ctx, reason)...)
}

func (a *sessionAdapter) VoiceMute(ctx context.Context, guildID, userID string, mute bool, reason string) error {
	return a.session.GuildMemberMute(guildID, userID, mute, withReason(ctx, reason)...)
}

func (a *sessionAdapter) SetNickname(ctx context.Context, guildID, userID, nickname, reason string) error {
	return a.session.GuildMemberNickname(guildID, userID, nickname, withReason(ctx, reason)...)
}

func (a *sessionAdapter) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if channel, err := a.session.State.Channel(channelID); err == nil {
		return channel, nil
	}
	return a.session.Channel(channelID, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) Channels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	return a.session.GuildChannels(guildID, discordgo.WithContext(ctx))
}

func (a *sessionAdapter) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData, reason string) (*discordgo.Channel, error) {
	return a.session.GuildChannelCreateComplex(guildID, data, withReason(ctx, reason)...)
}

func (a *sessionAdapter) SetRoleOverwrite(ctx context.Context, channelID, roleID string, allow, deny int64, reason string) error {
	return a.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, allow, deny, withReason(ctx, reason)...)
}

func (a *sessionAdapter) DeleteOverwrite(ctx context.Context, channelID, targetID, reason string) error {
	return a.session.ChannelPermissionDelete(channelID, targetID, withReason(ctx, reason)...)
}

func (a *sessionAdapter) Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	return a.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
}

// DeleteMessages uses the bulk endpoint, which rejects single ids.
func (a *sessionAdapter) DeleteMessages(ctx context.Context, channelID string, messageIDs []string, reason string) error {
	switch len(messageIDs) {
	case 0:
		return nil
	case 1:
		return a.session.ChannelMessageDelete(channelID, messageIDs[0], withReason(ctx, reason)...)
	default:
		return a.session.ChannelMessagesBulkDelete(channelID, messageIDs, withReason(ctx, reason)...)
	}
}
