package bot

import (
	"context"
	"errors"
	"fmt"

	"dredd/internal/info"
	"dredd/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) inviteURL() string {
	clientID := b.cfg.Invite.ClientID
	if clientID == "" && b.session.State.User != nil {
		clientID = b.session.State.User.ID
	}
	return info.InviteURL(clientID, b.cfg.Invite.Permissions)
}

func countChannels(channels []*discordgo.Channel) (text, voice int) {
	for _, ch := range channels {
		switch ch.Type {
		case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews, discordgo.ChannelTypeGuildForum:
			text++
		case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
			voice++
		}
	}
	return text, voice
}

func (b *Bot) handlePing(ctx context.Context, req *request) (moderation.Reply, error) {
	return moderation.Reply{Content: b.info.Ping(b.session.HeartbeatLatency())}, nil
}

func (b *Bot) handleAbout(ctx context.Context, req *request) (moderation.Reply, error) {
	stats := info.AboutStats{
		BotUser:    b.session.State.User,
		Version:    Version,
		Started:    b.started,
		Commands:   len(b.handlers),
		SupportURL: b.cfg.SupportURL,
		InviteURL:  b.inviteURL(),
	}
	b.session.State.RLock()
	for _, guild := range b.session.State.Guilds {
		stats.Guilds++
		stats.Members += guild.MemberCount
		text, voice := countChannels(guild.Channels)
		stats.Text += text
		stats.Voice += voice
	}
	b.session.State.RUnlock()
	return moderation.Reply{Embed: b.info.About(stats)}, nil
}

func (b *Bot) handleSystem(ctx context.Context, req *request) (moderation.Reply, error) {
	stats, err := info.CollectSystem(ctx)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("collect system stats: %w", err)
	}
	return moderation.Reply{Embed: b.info.System(stats)}, nil
}

func (b *Bot) handleInvite(ctx context.Context, req *request) (moderation.Reply, error) {
	url := b.inviteURL()
	if url == "" {
		return moderation.Reply{}, rejection(moderation.ErrNotFound, "No invite link is configured.")
	}
	return moderation.Reply{Embed: &discordgo.MessageEmbed{
		Color:       b.cfg.Embed.Color,
		Description: fmt.Sprintf("Want me in your server? What are you waiting for then? [Invite now!](%s)", url),
	}}, nil
}

func (b *Bot) handleUserInfo(ctx context.Context, req *request) (moderation.Reply, error) {
	user := req.resolvedUser("user")
	if user == nil {
		user = req.user
	}
	guildID := req.interaction.GuildID
	if guildID == "" {
		return moderation.Reply{Embed: b.info.User(user, nil, nil)}, nil
	}

	member := req.resolvedMember("user")
	if member == nil && user.ID == req.user.ID {
		member = req.interaction.Member
	}
	if member == nil {
		if fetched, err := b.api.Member(ctx, guildID, user.ID); err == nil {
			member = fetched
		}
	}
	var roles []*discordgo.Role
	if member != nil {
		fetched, err := b.api.Roles(ctx, guildID)
		if err != nil {
			return moderation.Reply{}, fmt.Errorf("load roles: %w", err)
		}
		roles = fetched
	}
	return moderation.Reply{Embed: b.info.User(user, member, roles)}, nil
}

func (b *Bot) handleServerInfo(ctx context.Context, req *request) (moderation.Reply, error) {
	guildID := req.interaction.GuildID
	guild, err := b.api.Guild(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load guild: %w", err)
	}
	members, err := b.api.Members(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load members: %w", err)
	}
	channels, err := b.api.Channels(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load channels: %w", err)
	}

	var stats info.ServerStats
	for _, m := range members {
		if m.User != nil && m.User.Bot {
			stats.Bots++
		} else {
			stats.Humans++
		}
	}
	stats.Text, stats.Voice = countChannels(channels)
	stats.Bans = -1
	if bans, err := b.api.Bans(ctx, guildID); err == nil {
		stats.Bans = len(bans)
	} else {
		b.logger.Debug("ban count unavailable", zap.String("guild_id", guildID), zap.Error(err))
	}
	return moderation.Reply{Embed: b.info.Server(guild, stats)}, nil
}

func (b *Bot) handleAvatar(ctx context.Context, req *request) (moderation.Reply, error) {
	user := req.resolvedUser("user")
	if user == nil {
		user = req.user
	}
	return moderation.Reply{Embed: b.info.Avatar(user)}, nil
}

func (b *Bot) handleRoleInfo(ctx context.Context, req *request) (moderation.Reply, error) {
	guildID := req.interaction.GuildID
	role := req.resolvedRole("role")
	if role == nil {
		return moderation.Reply{}, rejection(moderation.ErrInvalidInput, "Please provide a role.")
	}
	roles, err := b.api.Roles(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load roles: %w", err)
	}
	members, err := b.api.Members(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load members: %w", err)
	}
	holders := make([]*discordgo.Member, 0)
	for _, m := range members {
		for _, id := range m.Roles {
			if id == role.ID {
				holders = append(holders, m)
				break
			}
		}
	}
	return moderation.Reply{Embed: b.info.Role(role, len(roles), holders)}, nil
}

func (b *Bot) handleRoles(ctx context.Context, req *request) (moderation.Reply, error) {
	guildID := req.interaction.GuildID
	guild, err := b.api.Guild(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load guild: %w", err)
	}
	roles, err := b.api.Roles(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load roles: %w", err)
	}
	members, err := b.api.Members(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load members: %w", err)
	}
	page, _ := req.options.int("page")
	embed, ok := b.info.Roles(guild.Name, roles, members, req.resolvedRole("role"), int(page))
	if !ok {
		return moderation.Reply{Content: "Server has no roles"}, nil
	}
	return moderation.Reply{Embed: embed}, nil
}

func (b *Bot) handlePermissions(ctx context.Context, req *request) (moderation.Reply, error) {
	guildID := req.interaction.GuildID
	member := req.resolvedMember("member")
	if member == nil {
		member = req.interaction.Member
	}
	if member == nil || member.User == nil {
		return moderation.Reply{}, rejection(moderation.ErrNotFound, "I couldn't find that member.")
	}
	guild, err := b.api.Guild(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load guild: %w", err)
	}
	roles, err := b.api.Roles(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load roles: %w", err)
	}
	name := member.User.Username
	return moderation.Reply{Embed: b.info.Permissions(name, info.MemberPermissions(guild, roles, member))}, nil
}

func (b *Bot) handleNewUsers(ctx context.Context, req *request) (moderation.Reply, error) {
	count, _ := req.options.int("count")
	members, err := b.api.Members(ctx, req.interaction.GuildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load members: %w", err)
	}
	embed, err := b.info.NewUsers(members, int(count))
	if errors.Is(err, info.ErrTooFewMembers) {
		return moderation.Reply{Content: fmt.Sprintf("This server has %d members", len(members))}, nil
	}
	if err != nil {
		return moderation.Reply{}, err
	}
	return moderation.Reply{Embed: embed}, nil
}

func (b *Bot) handleSnowflake(ctx context.Context, req *request) (moderation.Reply, error) {
	embed, err := b.info.Snowflake(req.options.str("id"))
	if errors.Is(err, info.ErrNotSnowflake) {
		return moderation.Reply{}, rejection(moderation.ErrInvalidInput, "That is not a valid snowflake.")
	}
	if err != nil {
		return moderation.Reply{}, err
	}
	return moderation.Reply{Embed: embed}, nil
}

func (b *Bot) handleSupport(ctx context.Context, req *request) (moderation.Reply, error) {
	if b.cfg.SupportURL == "" {
		return moderation.Reply{}, rejection(moderation.ErrNotFound, "No support server is configured.")
	}
	return moderation.Reply{Embed: b.info.Support(b.cfg.SupportURL)}, nil
}

func (b *Bot) handleBanner(ctx context.Context, req *request) (moderation.Reply, error) {
	user := req.resolvedUser("user")
	if user == nil {
		user = req.user
	}
	// Banners only come with a full user fetch.
	fetched, err := b.api.User(ctx, user.ID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load user %s: %w", user.ID, err)
	}
	embed, ok := b.info.Banner(fetched)
	if !ok {
		return moderation.Reply{Content: fmt.Sprintf("**%s** doesn't have a banner!", fetched)}, nil
	}
	return moderation.Reply{Embed: embed}, nil
}

func (b *Bot) handleListMembers(ctx context.Context, req *request) (moderation.Reply, error) {
	query := req.options.str("name")
	if over := info.NameQueryOverflow(query); over > 0 {
		return moderation.Reply{}, rejection(moderation.ErrInvalidInput, "Names can't be longer than %d characters! You're %d characters over.", info.MaxNameQuery, over)
	}
	guildID := req.interaction.GuildID
	guild, err := b.api.Guild(ctx, guildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load guild: %w", err)
	}
	members, err := b.api.SearchMembers(ctx, guildID, query, info.MemberSearchLimit)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("search members: %w", err)
	}
	embed, ok := b.info.ListMembers(guild, query, members)
	if !ok {
		return moderation.Reply{Content: "Couldn't find anyone with a given name."}, nil
	}
	return moderation.Reply{Embed: embed}, nil
}

func (b *Bot) handleNicknames(ctx context.Context, req *request) (moderation.Reply, error) {
	user := req.resolvedUser("member")
	if user == nil {
		user = req.user
	}
	names, err := b.nicknames.Recent(ctx, req.interaction.GuildID, user.ID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load nicknames: %w", err)
	}
	if len(names) == 0 {
		return moderation.Reply{Content: fmt.Sprintf("**%s** has had no past nicknames since I joined.", user)}, nil
	}
	return moderation.Reply{Content: b.info.Nicknames(user.String(), names)}, nil
}

func (b *Bot) handleServerEmotes(ctx context.Context, req *request) (moderation.Reply, error) {
	guild, err := b.api.Guild(ctx, req.interaction.GuildID)
	if err != nil {
		return moderation.Reply{}, fmt.Errorf("load guild: %w", err)
	}
	page, _ := req.options.int("page")
	embed, ok := b.info.Emotes(guild.Name, guild.Emojis, int(page))
	if !ok {
		return moderation.Reply{Content: "This server has no emotes!"}, nil
	}
	return moderation.Reply{Embed: embed}, nil
}
