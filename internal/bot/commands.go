package bot

import (
	"dredd/internal/cooldown"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// command binds a slash command definition to its handler and cooldown bucket.
type command struct {
	def *discordgo.ApplicationCommand
	// bucket is nil for commands without a cooldown.
	bucket *cooldown.Bucket
	// moderation commands get a resolved Invocation before running.
	moderation bool
	guild      bool
	run        handlerFunc
}

func permission(p int64) *int64 { return &p }

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: name, Description: description, Required: required}
}

func userOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionUser, Name: name, Description: description, Required: required}
}

func intOption(name, description string, required bool, lo, hi float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: name, Description: description, Required: required, MinValue: &lo, MaxValue: hi}
}

func textChannelOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         name,
		Description:  description,
		Required:     required,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return stringOption("reason", "Reason shown in the audit log", false)
}

func membersOption() *discordgo.ApplicationCommandOption {
	return stringOption("members", "Member mentions or ids, separated by spaces or commas", true)
}

func (b *Bot) commands() []command {
	moderationBucket := &cooldown.Bucket{Name: "moderation", Window: b.cfg.Cooldowns.Moderation(), Uses: 1}
	channelBucket := &cooldown.Bucket{Name: "channel", Window: b.cfg.Cooldowns.Channel(), Uses: 1}
	infoBucket := &cooldown.Bucket{Name: "info", Window: b.cfg.Cooldowns.Info(), Uses: 1}
	guildOnly := false

	mod := func(name, description string, perms int64, bucket *cooldown.Bucket, run handlerFunc, options ...*discordgo.ApplicationCommandOption) command {
		return command{
			def: &discordgo.ApplicationCommand{
				Name:                     name,
				Description:              description,
				DefaultMemberPermissions: permission(perms),
				DMPermission:             &guildOnly,
				Options:                  options,
			},
			bucket:     bucket,
			moderation: true,
			guild:      true,
			run:        run,
		}
	}
	infoCmd := func(name, description string, run handlerFunc, options ...*discordgo.ApplicationCommandOption) command {
		return command{
			def:    &discordgo.ApplicationCommand{Name: name, Description: description, Options: options},
			bucket: infoBucket,
			run:    run,
		}
	}
	guildInfoCmd := func(name, description string, run handlerFunc, options ...*discordgo.ApplicationCommandOption) command {
		cmd := infoCmd(name, description, run, options...)
		cmd.def.DMPermission = &guildOnly
		cmd.guild = true
		return cmd
	}

	purgeSub := func(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: description, Options: options}
	}
	purgeCount := func() *discordgo.ApplicationCommandOption {
		return intOption("count", "How many recent messages to search", false, 1, float64(b.cfg.Moderation.MaxPurge))
	}

	cmds := []command{
		mod("kick", "Kick members from the server", discordgo.PermissionKickMembers, moderationBucket, b.handleKick, membersOption(), reasonOption()),
		mod("ban", "Ban members from the server", discordgo.PermissionBanMembers, moderationBucket, b.handleBan, membersOption(), reasonOption()),
		mod("softban", "Ban and unban a member to clear their messages", discordgo.PermissionKickMembers, moderationBucket, b.handleSoftban,
			userOption("member", "Member to soft-ban", true), reasonOption()),
		mod("unban", "Unban a user", discordgo.PermissionBanMembers, moderationBucket, b.handleUnban,
			stringOption("user_id", "Id of the banned user", true), reasonOption()),
		mod("unbanall", "Unban everyone from the server", discordgo.PermissionBanMembers, moderationBucket, b.handleUnbanAll, reasonOption()),
		mod("mute", "Give members the mute role", discordgo.PermissionManageRoles, nil, b.handleMute, membersOption(), reasonOption()),
		mod("unmute", "Take the mute role from members", discordgo.PermissionManageRoles, nil, b.handleUnmute, membersOption(), reasonOption()),
		mod("voicemute", "Voice mute members", discordgo.PermissionVoiceMuteMembers, nil, b.handleVoiceMute, membersOption(), reasonOption()),
		mod("voiceunmute", "Voice unmute members", discordgo.PermissionVoiceMuteMembers, nil, b.handleVoiceUnmute, membersOption(), reasonOption()),
		mod("setnick", "Change or remove a member's nickname", discordgo.PermissionManageNicknames, nil, b.handleSetNick,
			userOption("member", "Member to rename", true), stringOption("name", "New nickname, empty to remove it", false)),
		mod("dehoist", "Rename members whose names start with a symbol", discordgo.PermissionManageNicknames, nil, b.handleDehoist,
			stringOption("nickname", "Nickname given to hoisters", true)),
		mod("warn", "Warn a member", discordgo.PermissionManageMessages, nil, b.handleWarn,
			userOption("member", "Member to warn", true), reasonOption()),
		mod("warnings", "List warnings of a member or the whole server", discordgo.PermissionManageMessages, nil, b.handleWarnings,
			userOption("member", "Member whose warnings to show", false), intOption("page", "Page number", false, 1, 1000)),
		mod("removewarn", "Remove one warning from a member", discordgo.PermissionManageMessages, nil, b.handleRemoveWarn,
			userOption("member", "Warned member", true), intOption("id", "Warning id", true, 0, 1<<53)),
		mod("removewarns", "Remove every warning of a member", discordgo.PermissionManageMessages, nil, b.handleRemoveWarns,
			userOption("member", "Warned member", true)),
		mod("lockchannel", "Stop everyone from sending messages in a channel", discordgo.PermissionManageChannels, channelBucket, b.handleLock,
			textChannelOption("channel", "Channel to lock", true), reasonOption()),
		mod("unlockchannel", "Let everyone send messages in a channel again", discordgo.PermissionManageRoles, channelBucket, b.handleUnlock,
			textChannelOption("channel", "Channel to unlock", true), reasonOption()),
		mod("raidmode", "Turn server raid mode on or off", discordgo.PermissionManageGuild, nil, b.handleRaidMode),
		mod("purge", "Delete recent messages", discordgo.PermissionManageMessages, nil, b.handlePurge,
			purgeSub("all", "Every message", purgeCount()),
			purgeSub("user", "Messages of one member", userOption("member", "Author of the messages", true), purgeCount()),
			purgeSub("bot", "Messages sent by bots", purgeCount()),
		),
		mod("modlog", "Show or change the moderation log channel", discordgo.PermissionManageGuild, nil, b.handleModLog,
			textChannelOption("channel", "New moderation log channel", false),
			&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionBoolean, Name: "off", Description: "Stop posting moderation logs"}),
		mod("announcerole", "Make a role mentionable until you ping it", discordgo.PermissionManageRoles, nil, b.handleAnnounceRole,
			&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to announce", Required: true}),
		mod("clone", "Clone a text channel", discordgo.PermissionManageChannels, nil, b.handleClone,
			textChannelOption("channel", "Channel to clone", true), reasonOption()),

		infoCmd("ping", "See the bot's latency to discord", b.handlePing),
		infoCmd("about", "A detailed information of the bot", b.handleAbout),
		infoCmd("system", "Host statistics of the bot", b.handleSystem),
		infoCmd("invite", "Get the bot's invite", b.handleInvite),
		infoCmd("userinfo", "Get detailed information about the user", b.handleUserInfo, userOption("user", "User to look up", false)),
		infoCmd("support", "Get the support server link", b.handleSupport),
		infoCmd("banner", "Get user's profile banner", b.handleBanner, userOption("user", "User whose banner to show", false)),
		guildInfoCmd("serverinfo", "Overview of this server", b.handleServerInfo),
		infoCmd("avatar", "Get user's profile picture", b.handleAvatar, userOption("user", "User whose avatar to show", false)),
		guildInfoCmd("roleinfo", "Get information of the role", b.handleRoleInfo,
			&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to describe", Required: true}),
		guildInfoCmd("roles", "List of roles in the server", b.handleRoles,
			&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "List the members of this role instead"},
			intOption("page", "Page number", false, 1, 1000)),
		guildInfoCmd("permissions", "See permissions member has in the server", b.handlePermissions, userOption("member", "Member to check", false)),
		guildInfoCmd("newusers", "A list of newest members in the server", b.handleNewUsers, intOption("count", "How many members to list", true, 1, 1000)),
		guildInfoCmd("listmembers", "Find members with a name", b.handleListMembers, stringOption("name", "Part of the name to search", true)),
		guildInfoCmd("nicknames", "Past nicknames of a member", b.handleNicknames, userOption("member", "Member to look up", false)),
		guildInfoCmd("serveremotes", "List of the server's custom emotes", b.handleServerEmotes, intOption("page", "Page number", false, 1, 1000)),
		infoCmd("snowflake", "Shows a snowflake information", b.handleSnowflake, stringOption("id", "Snowflake to decode", true)),
	}
	return cmds
}

func (b *Bot) registerCommands() error {
	commands := make([]*discordgo.ApplicationCommand, 0, len(b.handlers))
	for _, cmd := range b.commands() {
		commands = append(commands, cmd.def)
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, b.cfg.GuildID)
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, b.cfg.GuildID, cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, b.cfg.GuildID, current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, b.cfg.GuildID, cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		if err := b.session.ApplicationCommandDelete(appID, b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Warn("stale command delete failed", zap.String("command", cmd.Name), zap.Error(err))
		}
	}
	return nil
}
