package info

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"dredd/internal/utils"

	"github.com/bwmarrin/discordgo"
)

const (
	// MaxNameQuery is the longest name Discord allows, so longer searches cannot match.
	MaxNameQuery = 32
	// MemberSearchLimit caps how many members a name search returns.
	MemberSearchLimit = 7
	emotesPerPage     = 15
)

// Banner links the user's profile banner. ok is false when the user has none.
func (b *Builder) Banner(user *discordgo.User) (*discordgo.MessageEmbed, bool) {
	if user.Banner == "" {
		return nil, false
	}
	base := discordgo.EndpointCDNBanners + user.ID + "/" + user.Banner
	display := base + ".png?size=1024"
	if strings.HasPrefix(user.Banner, "a_") {
		display = base + ".gif?size=1024"
	}
	return &discordgo.MessageEmbed{
		Color:  b.color,
		Author: &discordgo.MessageEmbedAuthor{Name: fmt.Sprintf("%s's Banner!", user), IconURL: user.AvatarURL("128")},
		Description: fmt.Sprintf("[png](%s.png?size=1024) | [jpg](%s.jpg?size=1024) | [webp](%s.webp?size=1024)",
			base, base, base),
		Image: &discordgo.MessageEmbedImage{URL: display},
	}, true
}

// NameQueryOverflow reports how many characters query is over MaxNameQuery, or 0.
func NameQueryOverflow(query string) int {
	return max(utf8.RuneCountInString(query)-MaxNameQuery, 0)
}

func (b *Builder) ListMembers(guild *discordgo.Guild, query string, members []*discordgo.Member) (*discordgo.MessageEmbed, bool) {
	var lines []string
	for _, m := range members {
		if m.User == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("`[%d]` **%s** - %s", len(lines)+1, utils.EscapeMarkdown(m.User.String()), m.User.ID))
	}
	if len(lines) == 0 {
		return nil, false
	}
	return &discordgo.MessageEmbed{
		Color:       b.color,
		Author:      &discordgo.MessageEmbedAuthor{Name: guild.Name, IconURL: guild.IconURL("128")},
		Title:       fmt.Sprintf("Users with %s in their name", utils.EscapeMarkdown(query)),
		Description: strings.Join(lines, "\n"),
	}, true
}

// Emotes pages through the guild's custom emojis. page is 1-based and clamped.
func (b *Builder) Emotes(guildName string, emojis []*discordgo.Emoji, page int) (*discordgo.MessageEmbed, bool) {
	lines := make([]string, 0, len(emojis))
	for _, e := range emojis {
		lines = append(lines, fmt.Sprintf("`[%d]` %s **%s** | %s", len(lines)+1, e.MessageFormat(), e.Name, e.ID))
	}
	if len(lines) == 0 {
		return nil, false
	}
	return b.page(fmt.Sprintf("%s emotes list", guildName), lines, emotesPerPage, page), true
}

// Nicknames renders a member's past nicknames, newest first.
func (b *Builder) Nicknames(member string, names []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s's past nicknames:**", member)
	for i, name := range names {
		fmt.Fprintf(&sb, "\n`[%d]` %s", i+1, utils.EscapeMarkdown(name))
	}
	return sb.String()
}

func (b *Builder) Support(url string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:       b.color,
		Description: fmt.Sprintf("Need help? Feel free to [join the support server!](%s)", url),
	}
}
