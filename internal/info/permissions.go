package info

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var permissionNames = []struct {
	bit  int64
	name string
}{
	{discordgo.PermissionCreateInstantInvite, "Create Instant Invite"},
	{discordgo.PermissionKickMembers, "Kick Members"},
	{discordgo.PermissionBanMembers, "Ban Members"},
	{discordgo.PermissionAdministrator, "Administrator"},
	{discordgo.PermissionManageChannels, "Manage Channels"},
	{discordgo.PermissionManageGuild, "Manage Guild"},
	{discordgo.PermissionAddReactions, "Add Reactions"},
	{discordgo.PermissionViewAuditLogs, "View Audit Log"},
	{discordgo.PermissionVoicePrioritySpeaker, "Priority Speaker"},
	{discordgo.PermissionVoiceStreamVideo, "Stream"},
	{discordgo.PermissionViewChannel, "View Channel"},
	{discordgo.PermissionSendMessages, "Send Messages"},
	{discordgo.PermissionSendTTSMessages, "Send TTS Messages"},
	{discordgo.PermissionManageMessages, "Manage Messages"},
	{discordgo.PermissionEmbedLinks, "Embed Links"},
	{discordgo.PermissionAttachFiles, "Attach Files"},
	{discordgo.PermissionReadMessageHistory, "Read Message History"},
	{discordgo.PermissionMentionEveryone, "Mention Everyone"},
	{discordgo.PermissionUseExternalEmojis, "Use External Emojis"},
	{discordgo.PermissionViewGuildInsights, "View Guild Insights"},
	{discordgo.PermissionVoiceConnect, "Connect"},
	{discordgo.PermissionVoiceSpeak, "Speak"},
	{discordgo.PermissionVoiceMuteMembers, "Mute Members"},
	{discordgo.PermissionVoiceDeafenMembers, "Deafen Members"},
	{discordgo.PermissionVoiceMoveMembers, "Move Members"},
	{discordgo.PermissionVoiceUseVAD, "Use Voice Activity"},
	{discordgo.PermissionChangeNickname, "Change Nickname"},
	{discordgo.PermissionManageNicknames, "Manage Nicknames"},
	{discordgo.PermissionManageRoles, "Manage Roles"},
	{discordgo.PermissionManageWebhooks, "Manage Webhooks"},
	{discordgo.PermissionManageGuildExpressions, "Manage Expressions"},
	{discordgo.PermissionUseApplicationCommands, "Use Application Commands"},
	{discordgo.PermissionManageEvents, "Manage Events"},
	{discordgo.PermissionManageThreads, "Manage Threads"},
	{discordgo.PermissionModerateMembers, "Moderate Members"},
}

// PermissionNames lists the names of the bits set in perms, in Discord's order.
func PermissionNames(perms int64) []string {
	var out []string
	for _, p := range permissionNames {
		if perms&p.bit != 0 {
			out = append(out, p.name)
		}
	}
	return out
}

// MemberPermissions computes guild level permissions from the member's roles.
func MemberPermissions(guild *discordgo.Guild, roles []*discordgo.Role, member *discordgo.Member) int64 {
	if member.User != nil && member.User.ID == guild.OwnerID {
		return discordgo.PermissionAll
	}
	var perms int64
	for _, r := range roles {
		if r.ID == guild.ID || hasRole(member, r.ID) {
			perms |= r.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

func (b *Builder) Permissions(name string, perms int64) *discordgo.MessageEmbed {
	var lines []string
	if perms&discordgo.PermissionAdministrator != 0 {
		lines = []string{"✅ Administrator"}
	} else {
		for _, p := range permissionNames {
			mark := "❌"
			if perms&p.bit != 0 {
				mark = "✅"
			}
			lines = append(lines, fmt.Sprintf("%s %s", mark, p.name))
		}
	}
	return &discordgo.MessageEmbed{
		Color:       b.color,
		Title:       fmt.Sprintf("%s's Server Permissions", name),
		Description: strings.Join(lines, "\n"),
	}
}
