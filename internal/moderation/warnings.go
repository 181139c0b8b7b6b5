package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dredd/internal/storage"

	"github.com/bwmarrin/discordgo"
)

const warnDateLayout = "02 Jan 2006, 15:04 MST"

func (s *Service) Warn(ctx context.Context, inv Invocation, target Member, reason string) (Reply, error) {
	reason = orDefault(strings.TrimSpace(reason), "No reason.")
	warning := storage.Warning{
		ID:       s.ids(s.cfg.WarnIDMin, s.cfg.WarnIDMax),
		GuildID:  inv.GuildID,
		UserID:   target.ID,
		Reason:   reason,
		IssuedAt: s.now().UTC(),
	}
	err := s.runOne(ctx, inv, "warn", target, func(ctx context.Context, _ Entity) error {
		return s.store.InsertWarning(ctx, warning)
	})
	switch deniedCause(err) {
	case CauseSelfTarget:
		return Reply{}, reject(ErrPermissionDenied, "You can't warn yourself.")
	case CauseOutranksActor:
		return Reply{}, reject(ErrPermissionDenied, "You can't warn someone who's higher or equal to you!")
	case CauseExecutorRank:
		return Reply{}, reject(ErrPermissionDenied, "I'm lower than **%s**. I can't warn them.", target)
	}
	if err != nil {
		return Reply{}, fault(err, "Something failed while trying to warn **%s**.", target)
	}
	s.record(ctx, inv, "warn", fmt.Sprintf("%s (%s) warned for %s, id %d", target, target.ID, reason, warning.ID))
	return Reply{Embed: s.embed(fmt.Sprintf("Successfully warned **%s** for: **%s** with ID: **%d**", target, reason, warning.ID))}, nil
}

// Warnings lists warnings for target, or for the whole guild when target is nil. page is 1-based and clamped.
func (s *Service) Warnings(ctx context.Context, inv Invocation, target *Member, page int) (Reply, error) {
	var (
		items []storage.Warning
		err   error
		title string
	)
	if target == nil {
		items, err = s.store.GuildWarnings(ctx, inv.GuildID)
		title = fmt.Sprintf("Warnings in %s", inv.GuildName)
	} else {
		items, err = s.store.UserWarnings(ctx, inv.GuildID, target.ID)
		title = fmt.Sprintf("%s's warnings", target)
	}
	if err != nil {
		return Reply{}, fault(err, "Something failed while loading warnings.")
	}
	if len(items) == 0 {
		if target == nil {
			return Reply{Content: "There are no warnings in this guild."}, nil
		}
		return Reply{Content: fmt.Sprintf("**%s** has no warnings.", target)}, nil
	}

	perPage := max(s.cfg.WarningsPerPage, 1)
	pages := (len(items) + perPage - 1) / perPage
	page = min(max(page, 1), pages)
	start := (page - 1) * perPage
	end := min(start+perPage, len(items))

	var b strings.Builder
	for _, w := range items[start:end] {
		if target == nil {
			fmt.Fprintf(&b, "**User:** <@%s>\n", w.UserID)
		}
		fmt.Fprintf(&b, "**ID:** %d\n**Reason:** %s\n**Warned:** %s\n\n", w.ID, w.Reason, w.IssuedAt.Format(warnDateLayout))
	}

	return Reply{Embed: &discordgo.MessageEmbed{
		Color:       s.color,
		Title:       title,
		Description: strings.TrimSpace(b.String()),
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d (%d entries)", page, pages, len(items))},
	}}, nil
}

func (s *Service) RemoveWarn(ctx context.Context, inv Invocation, target Member, id int64) (Reply, error) {
	if err := warnGate(inv, target); err != nil {
		return Reply{}, err
	}

	if _, err := s.store.Warning(ctx, inv.GuildID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Reply{}, reject(ErrNotFound, "Warn with ID: **%d** was not found.", id)
		}
		return Reply{}, fault(err, "Something failed while trying to remove the warn.")
	}

	removed, err := s.store.DeleteWarning(ctx, inv.GuildID, target.ID, id)
	if err != nil {
		return Reply{}, fault(err, "Something failed while trying to remove the warn.")
	}
	if removed == 0 {
		return Reply{}, reject(ErrNotFound, "Warn with ID: **%d** does not belong to **%s**.", id, target)
	}
	s.record(ctx, inv, "removewarn", fmt.Sprintf("removed warn %d from %s (%s)", id, target, target.ID))
	return Reply{Embed: s.embed(fmt.Sprintf("Removed warn from **%s** with id: **%d**", target, id))}, nil
}

func (s *Service) RemoveWarns(ctx context.Context, inv Invocation, target Member) (Reply, error) {
	if err := warnGate(inv, target); err != nil {
		return Reply{}, err
	}

	items, err := s.store.UserWarnings(ctx, inv.GuildID, target.ID)
	if err != nil {
		return Reply{}, fault(err, "Something failed while loading warnings.")
	}
	if len(items) == 0 {
		return Reply{}, reject(ErrNothingToDo, "**%s** has no warnings.", target)
	}

	state, err := s.confirm.Confirm(ctx, Prompt{
		ChannelID: inv.ChannelID,
		ActorID:   inv.Actor.ID,
		Content:   fmt.Sprintf("Are you sure you want to remove all **%d** warns from the **%s**?", len(items), target),
	})
	if err != nil {
		return Reply{}, fault(err, "Something failed while waiting for confirmation.")
	}
	switch state {
	case StateDeclined:
		return Reply{Content: "Not removing any warns."}, nil
	case StateTimedOut:
		return Reply{Content: timeoutNotice}, nil
	}

	removed, err := s.store.DeleteUserWarnings(ctx, inv.GuildID, target.ID)
	if err != nil {
		return Reply{}, fault(err, "Something failed while trying to remove warns.")
	}
	s.record(ctx, inv, "removewarns", fmt.Sprintf("removed %d warnings from %s (%s)", removed, target, target.ID))
	return Reply{Embed: s.embed(fmt.Sprintf("Removed **%d** warnings from: **%s**", removed, target))}, nil
}

func warnGate(inv Invocation, target Member) error {
	switch CanActOn(inv.Actor.Entity, target.Entity, inv.Executor.Entity).Cause {
	case CauseSelfTarget:
		return reject(ErrPermissionDenied, "You can't remove your own warns.")
	case CauseOutranksActor:
		return reject(ErrPermissionDenied, "You can't remove warns from someone who's higher or equal to you!")
	case CauseExecutorRank:
		return reject(ErrPermissionDenied, "I'm lower than **%s**. I can't remove their warns.", target)
	}
	return nil
}

