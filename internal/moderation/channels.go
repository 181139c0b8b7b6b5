package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dredd/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// bulkDeleteAge is the age past which Discord refuses bulk deletion.
const bulkDeleteAge = 14*24*time.Hour - time.Minute

func everyoneOverwrite(ch *discordgo.Channel, guildID string) *discordgo.PermissionOverwrite {
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type == discordgo.PermissionOverwriteTypeRole && ow.ID == guildID {
			return ow
		}
	}
	return nil
}

func (s *Service) guildChannel(ctx context.Context, inv Invocation, channelID string) (*discordgo.Channel, error) {
	if channelID == "" {
		channelID = inv.ChannelID
	}
	ch, err := s.gateway.Channel(ctx, channelID)
	if err != nil {
		err = ClassifyRemote(err)
		if errors.Is(err, ErrNotFound) {
			return nil, reject(ErrNotFound, "I can't find that channel.")
		}
		return nil, fault(err, "Something failed while looking up the channel.")
	}
	if ch.GuildID != inv.GuildID {
		return nil, reject(ErrNotFound, "I can't find that channel.")
	}
	return ch, nil
}

// Lock denies @everyone SendMessages in a channel, keeping the rest of the overwrite.
func (s *Service) Lock(ctx context.Context, inv Invocation, channelID, reason string) (Reply, error) {
	ch, err := s.guildChannel(ctx, inv, channelID)
	if err != nil {
		return Reply{}, err
	}
	mention := utils.ChannelMention(ch.ID)

	var allow, deny int64
	if ow := everyoneOverwrite(ch, inv.GuildID); ow != nil {
		if ow.Deny&discordgo.PermissionSendMessages != 0 {
			return Reply{}, reject(ErrAlreadyApplied, "%s is already locked!", mention)
		}
		allow, deny = ow.Allow, ow.Deny
	}
	allow &^= discordgo.PermissionSendMessages
	deny |= discordgo.PermissionSendMessages

	reason = orDefault(reason, "No reason")
	if err := s.gateway.SetRoleOverwrite(ctx, ch.ID, inv.GuildID, allow, deny, responsible(inv.Actor, reason)); err != nil {
		return Reply{}, fault(err, "Something failed while trying to lock %s.", mention)
	}
	s.announce(ctx, ch.ID, fmt.Sprintf("This channel was locked for: `%s`", reason))
	s.record(ctx, inv, "lock", fmt.Sprintf("%s locked: %s", mention, reason))
	return Reply{Content: fmt.Sprintf("%s was locked!", mention)}, nil
}

// Unlock removes the @everyone overwrite of a locked channel.
func (s *Service) Unlock(ctx context.Context, inv Invocation, channelID, reason string) (Reply, error) {
	ch, err := s.guildChannel(ctx, inv, channelID)
	if err != nil {
		return Reply{}, err
	}
	mention := utils.ChannelMention(ch.ID)

	ow := everyoneOverwrite(ch, inv.GuildID)
	if ow == nil || ow.Deny&discordgo.PermissionSendMessages == 0 {
		return Reply{}, reject(ErrAlreadyApplied, "%s is not locked!", mention)
	}

	reason = orDefault(reason, "No reason")
	if err := s.gateway.DeleteOverwrite(ctx, ch.ID, inv.GuildID, responsible(inv.Actor, reason)); err != nil {
		return Reply{}, fault(err, "Something failed while trying to unlock %s.", mention)
	}
	s.announce(ctx, ch.ID, fmt.Sprintf("This channel was unlocked for: `%s`", reason))
	s.record(ctx, inv, "unlock", fmt.Sprintf("%s unlocked: %s", mention, reason))
	return Reply{Content: fmt.Sprintf("%s was unlocked!", mention)}, nil
}

func (s *Service) announce(ctx context.Context, channelID, content string) {
	if _, err := s.messenger.Send(ctx, channelID, content, nil); err != nil {
		s.logger.Warn("channel notice failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *Service) ToggleRaidMode(ctx context.Context, inv Invocation) (Reply, error) {
	enabled, err := s.store.RaidMode(ctx, inv.GuildID)
	if err != nil {
		return Reply{}, fault(err, "Something failed while reading raid mode.")
	}
	if err := s.store.SetRaidMode(ctx, inv.GuildID, !enabled); err != nil {
		return Reply{}, fault(err, "Something failed while toggling raid mode.")
	}
	if enabled {
		s.record(ctx, inv, "raidmode", "deactivated")
		return Reply{Content: "Raid mode was deactivated! New members won't be kicked anymore."}, nil
	}
	s.record(ctx, inv, "raidmode", "activated")
	return Reply{Content: "Raid mode was activated! New members will get kicked with a message in their DMs"}, nil
}

func (s *Service) ModLog(ctx context.Context, inv Invocation) (Reply, error) {
	channelID, err := s.store.ModLogChannel(ctx, inv.GuildID)
	if err != nil {
		return Reply{}, fault(err, "Something failed while reading the modlog channel.")
	}
	if channelID == "" {
		return Reply{Content: "This guild has no modlog channel set."}, nil
	}
	return Reply{Content: fmt.Sprintf("Modlog channel is %s", utils.ChannelMention(channelID))}, nil
}

// SetModLog points moderation logs at a channel; an empty id turns them off.
func (s *Service) SetModLog(ctx context.Context, inv Invocation, channelID string) (Reply, error) {
	if channelID != "" {
		ch, err := s.guildChannel(ctx, inv, channelID)
		if err != nil {
			return Reply{}, err
		}
		if ch.Type != discordgo.ChannelTypeGuildText {
			return Reply{}, reject(ErrInvalidInput, "Modlog channel has to be a text channel.")
		}
	}
	if err := s.store.SetModLogChannel(ctx, inv.GuildID, channelID); err != nil {
		return Reply{}, fault(err, "Something failed while saving the modlog channel.")
	}
	if channelID == "" {
		return Reply{Content: "Modlog channel was removed."}, nil
	}
	s.record(ctx, inv, "modlog", fmt.Sprintf("modlog set to %s", utils.ChannelMention(channelID)))
	return Reply{Content: fmt.Sprintf("Modlog channel was set to %s", utils.ChannelMention(channelID))}, nil
}

// Clone creates "<name>-clone" with the same settings and overwrites, unless it already exists.
func (s *Service) Clone(ctx context.Context, inv Invocation, channelID, reason string) (Reply, error) {
	ch, err := s.guildChannel(ctx, inv, channelID)
	if err != nil {
		return Reply{}, err
	}
	name := ch.Name + "-clone"

	existing, err := s.gateway.Channels(ctx, inv.GuildID)
	if err != nil {
		return Reply{}, fault(err, "Something failed while listing channels.")
	}
	for _, other := range existing {
		if other.Name == name {
			return Reply{}, reject(ErrAlreadyApplied, "%s clone already exists!", ch.Name)
		}
	}

	created, err := s.gateway.CreateChannel(ctx, inv.GuildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 ch.Type,
		Topic:                ch.Topic,
		Bitrate:              ch.Bitrate,
		UserLimit:            ch.UserLimit,
		RateLimitPerUser:     ch.RateLimitPerUser,
		Position:             ch.Position,
		PermissionOverwrites: ch.PermissionOverwrites,
		ParentID:             ch.ParentID,
		NSFW:                 ch.NSFW,
	}, responsible(inv.Actor, reason))
	if err != nil {
		return Reply{}, fault(err, "Something failed while trying to clone %s.", ch.Name)
	}
	s.record(ctx, inv, "clone", fmt.Sprintf("%s cloned into %s", utils.ChannelMention(ch.ID), utils.ChannelMention(created.ID)))
	return Reply{Content: fmt.Sprintf("Successfully cloned %s", ch.Name)}, nil
}

type PurgeMode int

const (
	PurgeAll PurgeMode = iota
	PurgeUser
	PurgeBots
)

type PurgeRequest struct {
	Mode PurgeMode
	// UserID selects the author for PurgeUser.
	UserID string
	// Limit is how many recent messages to scan; 0 means the configured default.
	Limit  int
	Reason string
	// Before skips messages newer than this id, such as the command's own reply.
	Before string
}

func (r PurgeRequest) matches(m *discordgo.Message) bool {
	switch r.Mode {
	case PurgeUser:
		return m.Author != nil && m.Author.ID == r.UserID
	case PurgeBots:
		return m.Author != nil && m.Author.Bot
	default:
		return true
	}
}

// Purge deletes matching messages among the last Limit in the invoking channel and
// posts a transcript to the modlog channel.
func (s *Service) Purge(ctx context.Context, inv Invocation, req PurgeRequest) (Reply, error) {
	if req.Limit == 0 {
		req.Limit = s.cfg.DefaultPurge
	}
	if req.Limit < 0 {
		return Reply{}, reject(ErrInvalidInput, "Amount has to be a positive number.")
	}
	if req.Limit > s.cfg.MaxPurge {
		return Reply{}, reject(ErrBatchTooLarge, "You can purge maximum amount of %d messages!", s.cfg.MaxPurge)
	}
	if req.Mode == PurgeUser && req.UserID == "" {
		return Reply{}, reject(ErrInvalidInput, "Please provide a member to purge messages from.")
	}

	matched, err := s.scanHistory(ctx, inv.ChannelID, req)
	if err != nil {
		return Reply{}, fault(err, "Something failed while reading channel history.")
	}
	if len(matched) == 0 {
		return Reply{}, reject(ErrNothingToDo, "There were no messages to delete.")
	}

	deleted := s.deleteMessages(ctx, inv, matched, responsible(inv.Actor, req.Reason))
	s.postTranscript(ctx, inv, deleted)

	var b strings.Builder
	if len(deleted) == 1 {
		b.WriteString("Deleted **1** message")
	} else {
		fmt.Fprintf(&b, "Deleted **%d** messages", len(deleted))
	}
	for _, line := range authorTally(deleted) {
		b.WriteString("\n" + line)
	}
	s.record(ctx, inv, "purge", fmt.Sprintf("deleted %d messages in %s", len(deleted), utils.ChannelMention(inv.ChannelID)))
	return Reply{Content: b.String()}, nil
}

func (s *Service) scanHistory(ctx context.Context, channelID string, req PurgeRequest) ([]*discordgo.Message, error) {
	var (
		matched []*discordgo.Message
		before  = req.Before
		scanned int
	)
	for scanned < req.Limit {
		want := min(100, req.Limit-scanned)
		page, err := s.gateway.Messages(ctx, channelID, want, before)
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			scanned++
			if req.matches(m) {
				matched = append(matched, m)
			}
		}
		if len(page) < want {
			break
		}
		before = page[len(page)-1].ID
	}
	return matched, nil
}

// deleteMessages bulk deletes what Discord allows and removes older messages one by one.
func (s *Service) deleteMessages(ctx context.Context, inv Invocation, messages []*discordgo.Message, reason string) []*discordgo.Message {
	cutoff := s.now().Add(-bulkDeleteAge)
	var young, old []*discordgo.Message
	for _, m := range messages {
		if m.Timestamp.After(cutoff) {
			young = append(young, m)
		} else {
			old = append(old, m)
		}
	}

	deleted := make([]*discordgo.Message, 0, len(messages))
	for start := 0; start < len(young); start += 100 {
		chunk := young[start:min(start+100, len(young))]
		ids := make([]string, 0, len(chunk))
		for _, m := range chunk {
			ids = append(ids, m.ID)
		}
		if err := s.gateway.DeleteMessages(ctx, inv.ChannelID, ids, reason); err != nil {
			s.logger.Warn("bulk delete failed", zap.String("channel_id", inv.ChannelID), zap.Int("count", len(ids)), zap.Error(err))
			continue
		}
		deleted = append(deleted, chunk...)
	}

	if len(old) == 0 {
		return deleted
	}
	result, err := s.bulk.Run(ctx, Batch{
		Name:    "purge",
		Targets: messageEntities(old),
		Gate:    AllowAll,
		Apply: func(ctx context.Context, target Entity) error {
			return s.gateway.DeleteMessages(ctx, inv.ChannelID, []string{target.ID}, reason)
		},
	})
	if err != nil {
		s.logger.Warn("single delete of old messages failed", zap.String("channel_id", inv.ChannelID), zap.Int("count", len(old)), zap.Error(err))
		return deleted
	}
	failed := make(map[string]struct{}, len(result.Failures))
	for _, f := range result.Failures {
		failed[f.TargetID] = struct{}{}
	}
	for _, m := range old {
		if _, ok := failed[m.ID]; !ok {
			deleted = append(deleted, m)
		}
	}
	return deleted
}

func messageEntities(messages []*discordgo.Message) []Entity {
	out := make([]Entity, 0, len(messages))
	for _, m := range messages {
		out = append(out, Entity{ID: m.ID})
	}
	return out
}

func authorName(m *discordgo.Message) string {
	if m.Author == nil {
		return "unknown"
	}
	return m.Author.Username
}

// authorTally lists deleted message counts per author, most first.
func authorTally(messages []*discordgo.Message) []string {
	counts := make(map[string]int)
	for _, m := range messages {
		counts[authorName(m)]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("**%s**: %d", name, counts[name]))
	}
	return lines
}

func (s *Service) postTranscript(ctx context.Context, inv Invocation, messages []*discordgo.Message) {
	if len(messages) == 0 {
		return
	}
	channelID, err := s.store.ModLogChannel(ctx, inv.GuildID)
	if err != nil {
		s.logger.Warn("modlog lookup failed", zap.String("guild_id", inv.GuildID), zap.Error(err))
		return
	}
	if channelID == "" {
		return
	}

	sorted := make([]*discordgo.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var b strings.Builder
	for _, m := range sorted {
		fmt.Fprintf(&b, "[%s] %s - %s\n", m.Timestamp.UTC().Format("2006-01-02 15:04:05"), authorName(m), m.Content)
	}
	name := fmt.Sprintf("Messages_%s.txt", s.now().UTC().Format("2006-01-02_15-04-05"))
	content := fmt.Sprintf("Messages were deleted by **%s**.", inv.Actor)
	if err := s.messenger.SendFile(ctx, channelID, content, name, strings.NewReader(b.String())); err != nil {
		s.logger.Warn("purge transcript failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}
