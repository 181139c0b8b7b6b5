package info

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dredd/internal/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dustin/go-humanize"
)

const (
	maxNewUsers   = 10
	rolesPerPage  = 15
	maxShownRoles = 15
)

var (
	ErrNotSnowflake  = errors.New("not a valid snowflake")
	ErrTooFewMembers = errors.New("fewer members than requested")
)

// Builder renders the informational embeds.
type Builder struct {
	color int
}

func NewBuilder(color int) *Builder {
	return &Builder{color: color}
}

func discordTime(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

func created(id string) time.Time {
	parsed, err := snowflake.Parse(id)
	if err != nil {
		return time.Time{}
	}
	return parsed.Time()
}

type SnowflakeParts struct {
	Created   time.Time
	WorkerID  uint64
	ProcessID uint64
	Increment uint64
}

func DecodeSnowflake(raw string) (SnowflakeParts, error) {
	id, err := snowflake.Parse(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return SnowflakeParts{}, ErrNotSnowflake
	}
	v := uint64(id)
	return SnowflakeParts{
		Created:   id.Time(),
		WorkerID:  (v & 0x3E0000) >> 17,
		ProcessID: (v & 0x1F000) >> 12,
		Increment: v & 0xFFF,
	}, nil
}

func (b *Builder) Snowflake(raw string) (*discordgo.MessageEmbed, error) {
	parts, err := DecodeSnowflake(raw)
	if err != nil {
		return nil, err
	}
	return &discordgo.MessageEmbed{
		Color: b.color,
		Title: "Snowflake information",
		URL:   "https://discord.com/developers/docs/reference#snowflakes",
		Description: fmt.Sprintf("**Created at:** %s (%s)\n**Worker ID:** %d\n**Process ID:** %d\n**Increment:** %d",
			discordTime(parts.Created, "F"), discordTime(parts.Created, "R"), parts.WorkerID, parts.ProcessID, parts.Increment),
	}, nil
}

// User describes a user, plus their guild membership when member is set.
func (b *Builder) User(user *discordgo.User, member *discordgo.Member, roles []*discordgo.Role) *discordgo.MessageEmbed {
	made := created(user.ID)
	e := &discordgo.MessageEmbed{
		Color:     b.color,
		Author:    &discordgo.MessageEmbedAuthor{Name: fmt.Sprintf("%s's Information", user), IconURL: user.AvatarURL("128")},
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("512")},
	}
	kind := ""
	if user.Bot {
		kind = " [BOT]"
	}
	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
		Name: "General Information:",
		Value: fmt.Sprintf("%s%s\n\n**User ID:** %s\n**Account created:** %s (%s)",
			user, kind, user.ID, discordTime(made, "F"), discordTime(made, "R")),
	})
	if member == nil {
		return e
	}

	positions := make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		positions[r.ID] = r
	}
	held := make([]*discordgo.Role, 0, len(member.Roles))
	for _, id := range member.Roles {
		if r, ok := positions[id]; ok {
			held = append(held, r)
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i].Position > held[j].Position })

	roleText := "No roles"
	if len(held) > 0 {
		mentions := make([]string, 0, len(held))
		for _, r := range held {
			mentions = append(mentions, utils.RoleMention(r.ID))
		}
		if len(mentions) > maxShownRoles {
			mentions = append(mentions[:10:10], fmt.Sprintf("(+%d)", len(held)-10))
		}
		roleText = fmt.Sprintf("%s **(%d Total)**", strings.Join(mentions, ", "), len(held))
	}
	nick := member.Nick
	if nick == "" {
		nick = "N/A"
	}
	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
		Name: "Server Information:",
		Value: fmt.Sprintf("**Nickname:** %s\n**Joined at:** %s (%s)\n**Roles:** %s",
			nick, discordTime(member.JoinedAt, "F"), discordTime(member.JoinedAt, "R"), roleText),
	})
	return e
}

var verificationLevels = map[discordgo.VerificationLevel]string{
	discordgo.VerificationLevelNone:     "None",
	discordgo.VerificationLevelLow:      "Low",
	discordgo.VerificationLevelMedium:   "Medium",
	discordgo.VerificationLevelHigh:     "High",
	discordgo.VerificationLevelVeryHigh: "Very high",
}

var featureLabels = []struct {
	feature discordgo.GuildFeature
	label   string
}{
	{"ANIMATED_ICON", "Animated Icon"},
	{"BANNER", "Banner"},
	{"COMMUNITY", "Community server"},
	{"DISCOVERABLE", "Server Discovery"},
	{"INVITE_SPLASH", "Invite Splash"},
	{"MEMBER_VERIFICATION_GATE_ENABLED", "Member Verification Gate Enabled"},
	{"NEWS", "News Channels"},
	{"PARTNERED", "Partnered"},
	{"PREVIEW_ENABLED", "Preview Enabled"},
	{"VANITY_URL", "Vanity Invite"},
	{"VERIFIED", "Verified"},
	{"VIP_REGIONS", "VIP Voice Servers"},
	{"WELCOME_SCREEN_ENABLED", "Welcome screen"},
	{"TICKETED_EVENTS_ENABLED", "Ticketed events enabled"},
	{"MONETIZATION_ENABLED", "Monetization enabled"},
	{"MORE_STICKERS", "More stickers"},
}

// ServerStats are the counts that need member or channel listings to compute.
type ServerStats struct {
	Humans int
	Bots   int
	Text   int
	Voice  int
	// Bans is negative when the ban list could not be read.
	Bans int
}

func (b *Builder) Server(guild *discordgo.Guild, stats ServerStats) *discordgo.MessageEmbed {
	made := created(guild.ID)
	e := &discordgo.MessageEmbed{
		Color:       b.color,
		Author:      &discordgo.MessageEmbedAuthor{Name: fmt.Sprintf("%s Information", guild.Name), IconURL: guild.IconURL("128")},
		Description: guild.Description,
	}
	if guild.Icon != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: guild.IconURL("512")}
	}
	if guild.Banner != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: guild.BannerURL("1024")}
	}

	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
		Name: "General Information:",
		Value: fmt.Sprintf("**Name:** %s\n**ID:** %s\n**Guild created:** %s (%s)\n**Verification level:** %s\n\n**Owner:** %s\n\n**Nitro status:**\nThis server has **%d** boosts",
			guild.Name, guild.ID, discordTime(made, "F"), discordTime(made, "R"), verificationLevels[guild.VerificationLevel],
			utils.UserMention(guild.OwnerID), guild.PremiumSubscriptionCount),
	})

	bans := ""
	if stats.Bans >= 0 {
		bans = fmt.Sprintf("\n**Banned:** %s", humanize.Comma(int64(stats.Bans)))
	}
	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
		Name: "Other Information:",
		Value: fmt.Sprintf("**Members:** (Total: %s)\n**Bots:** %s | **Humans:** %s%s\n**Channels:** Text **%s** | Voice **%s**",
			humanize.Comma(int64(stats.Humans+stats.Bots)), humanize.Comma(int64(stats.Bots)), humanize.Comma(int64(stats.Humans)), bans,
			humanize.Comma(int64(stats.Text)), humanize.Comma(int64(stats.Voice))),
	})

	var features []string
	for _, f := range featureLabels {
		for _, have := range guild.Features {
			if have == f.feature {
				features = append(features, f.label)
				break
			}
		}
	}
	if len(features) > 0 {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Features", Value: strings.Join(features, ", ")})
	}
	return e
}

func (b *Builder) Role(role *discordgo.Role, roleCount int, members []*discordgo.Member) *discordgo.MessageEmbed {
	names := make([]string, 0, len(members))
	for _, m := range members {
		if m.User != nil {
			names = append(names, m.User.String())
		}
	}
	holders := strings.Join(names, ", ")
	if len(names) > 10 {
		holders = fmt.Sprintf("%s **(+%d)**", strings.Join(names[:10], ", "), len(names)-10)
	}
	if holders == "" {
		holders = "None"
	}

	perms := "None"
	if role.Permissions&discordgo.PermissionAdministrator != 0 {
		perms = "Administrator"
	} else if granted := PermissionNames(role.Permissions); len(granted) > 0 {
		perms = strings.Join(granted, ", ")
	}
	made := created(role.ID)
	return &discordgo.MessageEmbed{
		Color: role.Color,
		Title: fmt.Sprintf("%s Information", role.Name),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "__**Basic Information**__", Value: fmt.Sprintf("**Role name:** %s\n**Role mention:** %s\n**Role ID:** %s", role.Name, utils.RoleMention(role.ID), role.ID)},
			{Name: "__**Permissions:**__", Value: utils.Truncate(perms, 1024)},
			{Name: "__**Other Information:**__", Value: utils.Truncate(fmt.Sprintf("**Is Integration:** %t\n**Hoisted:** %t\n**Position:** %d\n**Color:** #%06X\n**Created:** %s\n\n**Members:** %s",
				role.Managed, role.Hoist, roleCount-role.Position, role.Color, discordTime(made, "R"), holders), 1024)},
		},
	}
}

// Roles lists guild roles from the top, or the members of one role. page is 1-based and clamped.
func (b *Builder) Roles(guildName string, roles []*discordgo.Role, members []*discordgo.Member, role *discordgo.Role, page int) (*discordgo.MessageEmbed, bool) {
	var lines []string
	title := fmt.Sprintf("Roles in %s", guildName)
	if role == nil {
		sorted := make([]*discordgo.Role, len(roles))
		copy(sorted, roles)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })
		counts := make(map[string]int)
		for _, m := range members {
			for _, id := range m.Roles {
				counts[id]++
			}
		}
		for _, r := range sorted {
			if r.Position == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("`[%02d]` %s | %s | **[ Users : %d ]**", len(lines)+1, utils.RoleMention(r.ID), r.ID, counts[r.ID]))
		}
	} else {
		title = fmt.Sprintf("Members in %s", role.Name)
		for _, m := range members {
			if m.User == nil || !hasRole(m, role.ID) {
				continue
			}
			lines = append(lines, fmt.Sprintf("`[%02d]` %s | %s | **[ Total Roles : %d ]**", len(lines)+1, utils.UserMention(m.User.ID), m.User.ID, len(m.Roles)))
		}
	}
	if len(lines) == 0 {
		return nil, false
	}
	return b.page(title, lines, rolesPerPage, page), true
}

func hasRole(m *discordgo.Member, roleID string) bool {
	for _, id := range m.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

func (b *Builder) page(title string, lines []string, perPage, page int) *discordgo.MessageEmbed {
	pages := (len(lines) + perPage - 1) / perPage
	page = min(max(page, 1), pages)
	start := (page - 1) * perPage
	end := min(start+perPage, len(lines))
	return &discordgo.MessageEmbed{
		Color:       b.color,
		Title:       title,
		Description: strings.Join(lines[start:end], "\n"),
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d (%d entries)", page, pages, len(lines))},
	}
}

// Avatar links the user's avatar in every format Discord serves it in.
func (b *Builder) Avatar(user *discordgo.User) *discordgo.MessageEmbed {
	display := user.AvatarURL("1024")
	description := fmt.Sprintf("[png](%s)", display)
	if user.Avatar != "" {
		base := discordgo.EndpointCDNAvatars + user.ID + "/" + user.Avatar
		links := []string{
			fmt.Sprintf("[png](%s.png?size=1024)", base),
			fmt.Sprintf("[jpg](%s.jpg?size=1024)", base),
			fmt.Sprintf("[webp](%s.webp?size=1024)", base),
		}
		if strings.HasPrefix(user.Avatar, "a_") {
			links = append(links, fmt.Sprintf("[gif](%s.gif?size=1024)", base))
		}
		description = strings.Join(links, " | ")
	}
	return &discordgo.MessageEmbed{
		Color:       b.color,
		Author:      &discordgo.MessageEmbedAuthor{Name: fmt.Sprintf("%s's Profile Picture!", user), IconURL: user.AvatarURL("128")},
		Description: description,
		Image:       &discordgo.MessageEmbedImage{URL: display},
	}
}

// NewUsers lists the most recent joins, newest first. count is capped at 10 and
// may not exceed the member count.
func (b *Builder) NewUsers(members []*discordgo.Member, count int) (*discordgo.MessageEmbed, error) {
	if count > len(members) {
		return nil, fmt.Errorf("%w: have %d", ErrTooFewMembers, len(members))
	}
	shown := min(max(count, 1), maxNewUsers)

	sorted := make([]*discordgo.Member, 0, len(members))
	for _, m := range members {
		if m.User != nil {
			sorted = append(sorted, m)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].JoinedAt.After(sorted[j].JoinedAt) })
	sorted = sorted[:min(shown, len(sorted))]

	e := &discordgo.MessageEmbed{Color: b.color, Title: "Newest member(s) in this server:"}
	for i, m := range sorted {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("`[%d]` **%s** (%s)", i+1, m.User, m.User.ID),
			Value: fmt.Sprintf("**Joined Server at** %s\n**Account created at** %s",
				discordTime(m.JoinedAt, "R"), discordTime(created(m.User.ID), "R")),
		})
	}
	if count > maxNewUsers {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "The limit is set to 10"}
	}
	return e, nil
}

func (b *Builder) Ping(latency time.Duration) string {
	return fmt.Sprintf("🏓 Pong   |   %dms", latency.Milliseconds())
}

type AboutStats struct {
	BotUser    *discordgo.User
	Version    string
	Started    time.Time
	Guilds     int
	Members    int
	Text       int
	Voice      int
	Commands   int
	SupportURL string
	InviteURL  string
}

func (b *Builder) About(stats AboutStats) *discordgo.MessageEmbed {
	var links []string
	if stats.SupportURL != "" {
		links = append(links, fmt.Sprintf("• [Support server](%s)", stats.SupportURL))
	}
	if stats.InviteURL != "" {
		links = append(links, fmt.Sprintf("• [Bot invite](%s)", stats.InviteURL))
	}
	linkText := ""
	if len(links) > 0 {
		linkText = "\n\n**Links:**\n" + strings.Join(links, "\n")
	}
	made := created(stats.BotUser.ID)
	return &discordgo.MessageEmbed{
		Color:  b.color,
		Author: &discordgo.MessageEmbedAuthor{Name: fmt.Sprintf("About %s", stats.BotUser), IconURL: stats.BotUser.AvatarURL("128")},
		Description: fmt.Sprintf("%s is a bot that will help your server with moderation. The bot is currently running on **V%s**.\n\n"+
			"**Library:** discordgo %s\n**Last boot:** %s\n**Created:** %s (%s)%s\n\n"+
			"**Total:**\n• Commands: **%s**\n• Members: **%s**\n• Servers: **%s**\n• Channels: Text **%s** | Voice **%s**",
			stats.BotUser.Username, stats.Version, discordgo.VERSION, humanize.Time(stats.Started), discordTime(made, "F"), discordTime(made, "R"), linkText,
			humanize.Comma(int64(stats.Commands)), humanize.Comma(int64(stats.Members)), humanize.Comma(int64(stats.Guilds)),
			humanize.Comma(int64(stats.Text)), humanize.Comma(int64(stats.Voice))),
	}
}
