package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

type bulkCommand struct {
	action  string
	verb    string
	detail  string
	empty   string
	tooMany string
	max     int
	apply   Action
}

func (s *Service) runBulk(ctx context.Context, inv Invocation, targets []Member, cmd bulkCommand) (Reply, error) {
	result, err := s.bulk.Run(ctx, Batch{
		Name:     cmd.action,
		Actor:    inv.Actor.Entity,
		Executor: inv.Executor.Entity,
		Targets:  entities(targets),
		MaxBatch: cmd.max,
		Apply:    cmd.apply,
	})
	switch {
	case errors.Is(err, ErrNothingToDo):
		return Reply{}, reject(ErrNothingToDo, "%s", cmd.empty)
	case errors.Is(err, ErrBatchTooLarge):
		return Reply{}, &Rejection{Kind: err, Message: cmd.tooMany}
	case err != nil:
		return Reply{}, fault(err, "Something failed while trying to %s members.", cmd.action)
	}

	summary := result.Summary(cmd.verb, cmd.detail)
	s.record(ctx, inv, cmd.action, summary+result.FailureLines())
	return Reply{Content: summary + result.FailureLines()}, nil
}

func (s *Service) Kick(ctx context.Context, inv Invocation, targets []Member, reason string) (Reply, error) {
	return s.runBulk(ctx, inv, targets, bulkCommand{
		action: "kick",
		verb:   "kicked",
		empty:  "Please provide member(s) to kick.",
		apply: func(ctx context.Context, target Entity) error {
			return s.gateway.Kick(ctx, inv.GuildID, target.ID, responsible(inv.Actor, reason))
		},
	})
}

func (s *Service) Ban(ctx context.Context, inv Invocation, targets []Member, reason string) (Reply, error) {
	return s.runBulk(ctx, inv, targets, bulkCommand{
		action: "ban",
		verb:   "banned",
		empty:  "Please provide members to ban.",
		apply: func(ctx context.Context, target Entity) error {
			return s.gateway.Ban(ctx, inv.GuildID, target.ID, responsible(inv.Actor, reason), s.cfg.BanDeleteDays)
		},
	})
}

func (s *Service) Softban(ctx context.Context, inv Invocation, target Member, reason string) (Reply, error) {
	why := responsible(inv.Actor, reason)
	banned := false
	err := s.runOne(ctx, inv, "softban", target, func(ctx context.Context, t Entity) error {
		if err := s.gateway.Ban(ctx, inv.GuildID, t.ID, why, s.cfg.BanDeleteDays); err != nil {
			return err
		}
		banned = true
		return s.gateway.Unban(ctx, inv.GuildID, t.ID, why)
	})
	switch deniedCause(err) {
	case CauseSelfTarget:
		return Reply{}, reject(ErrPermissionDenied, "Are you seriously trying to ban yourself? That's stupid")
	case CauseOutranksActor:
		return Reply{}, reject(ErrPermissionDenied, "You can't ban user who's above or equal to you!")
	case CauseExecutorRank:
		return Reply{}, reject(ErrPermissionDenied, "I was unable to soft-ban **%s**", target)
	}
	if err != nil {
		if banned {
			return Reply{}, fault(err, "**%s** was banned but could not be unbanned again.", target)
		}
		return Reply{}, fault(err, "Something failed while trying to soft-ban **%s**.", target)
	}
	s.record(ctx, inv, "softban", fmt.Sprintf("%s (%s): %s", target, target.ID, orDefault(reason, "No reason")))
	return Reply{Content: fmt.Sprintf("**%s** was soft-banned successfully, with a reason: ``%s``", target, orDefault(reason, "No reason"))}, nil
}

func (s *Service) Unban(ctx context.Context, inv Invocation, user *discordgo.User, reason string) (Reply, error) {
	if user == nil {
		return Reply{}, reject(ErrNothingToDo, "Please provide a user to unban.")
	}
	if err := s.gateway.Unban(ctx, inv.GuildID, user.ID, responsible(inv.Actor, reason)); err != nil {
		err = ClassifyRemote(err)
		if errors.Is(err, ErrNotFound) {
			return Reply{}, reject(ErrNotFound, "**%s** is not banned.", user.Username)
		}
		return Reply{}, fault(err, "Something failed while trying to unban **%s**.", user.Username)
	}
	s.record(ctx, inv, "unban", fmt.Sprintf("%s (%s): %s", user.Username, user.ID, orDefault(reason, "No reason")))
	return Reply{Content: fmt.Sprintf("**%s** was unbanned successfully, with a reason: ``%s``", user.Username, orDefault(reason, "No reason"))}, nil
}

// UnbanAll lifts every ban after confirmation. The ban list shown in the prompt is the one acted on.
func (s *Service) UnbanAll(ctx context.Context, inv Invocation, reason string) (Reply, error) {
	bans, err := s.gateway.Bans(ctx, inv.GuildID)
	if err != nil {
		return Reply{}, fault(err, "Something failed while fetching the ban list.")
	}
	if len(bans) == 0 {
		return Reply{}, reject(ErrNothingToDo, "This guild has no bans.")
	}

	state, err := s.confirm.Confirm(ctx, Prompt{
		ChannelID: inv.ChannelID,
		ActorID:   inv.Actor.ID,
		Content:   fmt.Sprintf("Are you sure you want to unban **%d** members from this guild?", len(bans)),
		Inspect: func(context.Context) (*discordgo.MessageEmbed, error) {
			return s.banListEmbed(inv.GuildName, bans), nil
		},
	})
	if err != nil {
		return Reply{}, fault(err, "Something failed while waiting for confirmation.")
	}
	switch state {
	case StateDeclined:
		return Reply{Content: "Alright. Not unbanning anyone.."}, nil
	case StateTimedOut:
		return Reply{Content: timeoutNotice}, nil
	}

	targets := make([]Entity, 0, len(bans))
	for _, ban := range bans {
		if ban.User != nil {
			targets = append(targets, Entity{ID: ban.User.ID})
		}
	}
	result, err := s.bulk.Run(ctx, Batch{
		Name:     "unbanall",
		Actor:    inv.Actor.Entity,
		Executor: inv.Executor.Entity,
		Targets:  targets,
		Gate:     AllowAll,
		Apply: func(ctx context.Context, target Entity) error {
			return s.gateway.Unban(ctx, inv.GuildID, target.ID, responsible(inv.Actor, reason))
		},
	})
	if err != nil {
		return Reply{}, fault(err, "Something failed while unbanning members.")
	}

	content := fmt.Sprintf("Unbanned **%d** members from this guild.", result.Attempted)
	if result.Failed() > 0 {
		content = fmt.Sprintf("Unbanned **%d/%d** members from this guild.", result.Succeeded, result.Attempted)
	}
	s.record(ctx, inv, "unbanall", content)
	return Reply{Content: content}, nil
}

func (s *Service) banListEmbed(guildName string, bans []*discordgo.GuildBan) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, ban := range bans {
		if ban.User == nil {
			continue
		}
		line := fmt.Sprintf("• %s\n", ban.User.Username)
		if b.Len()+len(line) > 4000 {
			b.WriteString("…")
			break
		}
		b.WriteString(line)
	}
	return &discordgo.MessageEmbed{
		Color:       s.color,
		Title:       fmt.Sprintf("Bans for %s", guildName),
		Description: b.String(),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Are you sure you want to unban them all?"},
	}
}

func (s *Service) muteRole(ctx context.Context, guildID string) (*discordgo.Role, error) {
	roles, err := s.gateway.Roles(ctx, guildID)
	if err != nil {
		return nil, fault(err, "Something failed while looking up roles.")
	}
	role := NewHierarchy("", roles).RoleByName(s.cfg.MuteRoleName)
	if role == nil {
		return nil, reject(ErrNotFound, "I can't find a role named `%s` Are you sure you've made one?", s.cfg.MuteRoleName)
	}
	return role, nil
}

func (s *Service) Mute(ctx context.Context, inv Invocation, targets []Member, reason string) (Reply, error) {
	role, err := s.muteRole(ctx, inv.GuildID)
	if err != nil {
		return Reply{}, err
	}
	members := byID(targets)
	return s.runBulk(ctx, inv, targets, bulkCommand{
		action:  "mute",
		verb:    "muted",
		detail:  fmt.Sprintf(" for: `%s`", orDefault(reason, "No reason")),
		empty:   "Please provide members to mute.",
		tooMany: fmt.Sprintf("You can mute only %d members at once!", s.cfg.MaxMuteBatch),
		max:     s.cfg.MaxMuteBatch,
		apply: func(ctx context.Context, target Entity) error {
			if members[target.ID].HasRole(role.ID) {
				return ErrAlreadyApplied
			}
			return s.gateway.AddRole(ctx, inv.GuildID, target.ID, role.ID, responsible(inv.Actor, reason))
		},
	})
}

func (s *Service) Unmute(ctx context.Context, inv Invocation, targets []Member, reason string) (Reply, error) {
	role, err := s.muteRole(ctx, inv.GuildID)
	if err != nil {
		return Reply{}, err
	}
	members := byID(targets)
	return s.runBulk(ctx, inv, targets, bulkCommand{
		action: "unmute",
		verb:   "unmuted",
		detail: fmt.Sprintf(" for: `%s`", orDefault(reason, "No reason")),
		empty:  "Please provide members to unmute.",
		apply: func(ctx context.Context, target Entity) error {
			if !members[target.ID].HasRole(role.ID) {
				return ErrAlreadyApplied
			}
			return s.gateway.RemoveRole(ctx, inv.GuildID, target.ID, role.ID, responsible(inv.Actor, reason))
		},
	})
}

func (s *Service) VoiceMute(ctx context.Context, inv Invocation, targets []Member, reason string) (Reply, error) {
	return s.runBulk(ctx, inv, targets, bulkCommand{
		action:  "voicemute",
		verb:    "voice muted",
		empty:   "Please provide members to voice mute.",
		tooMany: fmt.Sprintf("You can voicemute only %d members at once.", s.cfg.MaxVoiceMuteBatch),
		max:     s.cfg.MaxVoiceMuteBatch,
		apply: func(ctx context.Context, target Entity) error {
			return s.gateway.VoiceMute(ctx, inv.GuildID, target.ID, true, responsible(inv.Actor, reason))
		},
	})
}

func (s *Service) VoiceUnmute(ctx context.Context, inv Invocation, targets []Member, reason string) (Reply, error) {
	return s.runBulk(ctx, inv, targets, bulkCommand{
		action:  "voiceunmute",
		verb:    "voice unmuted",
		empty:   "Please provide members to voice unmute.",
		tooMany: fmt.Sprintf("You can voice unmute only %d members at once.", s.cfg.MaxVoiceMuteBatch),
		max:     s.cfg.MaxVoiceMuteBatch,
		apply: func(ctx context.Context, target Entity) error {
			return s.gateway.VoiceMute(ctx, inv.GuildID, target.ID, false, responsible(inv.Actor, reason))
		},
	})
}

// SetNick changes or, with an empty name, removes a nickname. Members may rename themselves.
func (s *Service) SetNick(ctx context.Context, inv Invocation, target Member, nickname string) (Reply, error) {
	if utf8.RuneCountInString(nickname) > s.cfg.MaxNicknameLength {
		return Reply{}, reject(ErrInvalidInput, "Nickname is too long! You can't have nicknames longer than %d characters", s.cfg.MaxNicknameLength)
	}
	if target.ID == inv.Actor.ID {
		if target.Rank >= inv.Executor.Rank {
			return Reply{}, reject(ErrPermissionDenied, "I was unable to change **%s**'s nickname", target)
		}
	} else {
		switch CanActOn(inv.Actor.Entity, target.Entity, inv.Executor.Entity).Cause {
		case CauseOutranksActor:
			return Reply{}, reject(ErrPermissionDenied, "You can't change nickname of the member that is above you")
		case CauseExecutorRank:
			return Reply{}, reject(ErrPermissionDenied, "I was unable to change **%s**'s nickname", target)
		}
	}

	if err := s.gateway.SetNickname(ctx, inv.GuildID, target.ID, nickname, responsible(inv.Actor, "")); err != nil {
		return Reply{}, fault(err, "Something failed while trying to change **%s**'s nickname.", target)
	}
	if nickname == "" {
		s.record(ctx, inv, "setnick", fmt.Sprintf("removed nickname of %s", target))
		return Reply{Embed: s.embed(fmt.Sprintf("Removed **%s's** nickname", target))}, nil
	}
	s.record(ctx, inv, "setnick", fmt.Sprintf("%s -> %s", target, nickname))
	return Reply{Embed: s.embed(fmt.Sprintf("Changed **%s's** nickname to **%s**.", target, nickname))}, nil
}

func hoisted(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r != utf8.RuneError && !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Dehoist renames every member whose display name starts with a non alphanumeric rune.
func (s *Service) Dehoist(ctx context.Context, inv Invocation, nickname string) (Reply, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || hoisted(nickname) {
		return Reply{}, reject(ErrInvalidInput, "Please provide a nickname that starts with a letter or digit.")
	}
	if utf8.RuneCountInString(nickname) > s.cfg.MaxNicknameLength {
		return Reply{}, reject(ErrInvalidInput, "Nickname is too long! You can't have nicknames longer than %d characters", s.cfg.MaxNicknameLength)
	}

	guildMembers, err := s.gateway.Members(ctx, inv.GuildID)
	if err != nil {
		return Reply{}, fault(err, "Something failed while fetching members.")
	}
	var hoisters []Member
	for _, gm := range guildMembers {
		m := inv.Hierarchy.Member(gm)
		if m.ID != "" && hoisted(m.DisplayName) {
			hoisters = append(hoisters, m)
		}
	}
	if len(hoisters) == 0 {
		return Reply{}, reject(ErrNothingToDo, "I was unable to find any hoisters")
	}

	result, err := s.bulk.Run(ctx, Batch{
		Name:     "dehoist",
		Actor:    inv.Actor.Entity,
		Executor: inv.Executor.Entity,
		Targets:  entities(hoisters),
		Apply: func(ctx context.Context, target Entity) error {
			return s.gateway.SetNickname(ctx, inv.GuildID, target.ID, nickname, responsible(inv.Actor, "dehoist"))
		},
	})
	if err != nil {
		return Reply{}, fault(err, "Something failed while dehoisting members.")
	}

	failed := make(map[string]struct{}, len(result.Failures))
	for _, f := range result.Failures {
		failed[f.TargetID] = struct{}{}
	}
	var b strings.Builder
	b.WriteString("**Removed these hoisters:**\n")
	num := 0
	for _, m := range hoisters {
		if _, ok := failed[m.ID]; ok {
			continue
		}
		num++
		fmt.Fprintf(&b, "`[%d]` %s --> %s (%s)\n", num, m.DisplayName, m.Mention(), m.ID)
	}
	b.WriteString(result.Summary("dehoisted", ""))
	s.record(ctx, inv, "dehoist", result.Summary("dehoisted", ""))
	return Reply{Content: b.String()}, nil
}
