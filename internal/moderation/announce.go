package moderation

import (
	"context"
	"fmt"

	"dredd/internal/events"
	"dredd/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// AnnounceRole makes role mentionable until the actor pings it or the announce
// timeout passes, then reverts it. Pings by anyone else in the meantime are deleted.
func (s *Service) AnnounceRole(ctx context.Context, inv Invocation, role *discordgo.Role) (Reply, error) {
	if role == nil {
		return Reply{}, reject(ErrNothingToDo, "Please provide a role.")
	}
	if role.ID == inv.GuildID {
		return Reply{}, reject(ErrPermissionDenied, "To prevent abuse, I won't allow mentionable role for everyone/here role.")
	}
	switch CanActOn(inv.Actor.Entity, Entity{ID: role.ID, Rank: role.Position}, inv.Executor.Entity).Cause {
	case CauseOutranksActor:
		return Reply{}, reject(ErrPermissionDenied, "It seems like the role you attempt to mention is over your permissions, therefor I won't allow you.")
	case CauseExecutorRank:
		return Reply{}, reject(ErrPermissionDenied, "This role is above my permissions, I can't make it mentionable ;-;")
	}

	pinged := func(m events.Message) bool {
		return m.GuildID == inv.GuildID && m.MentionsRole(role.ID)
	}
	reason := responsible(inv.Actor, "announcerole command")
	waiter := s.mentions.SubscribeMessage(pinged)
	if err := s.gateway.SetRoleMentionable(ctx, inv.GuildID, role.ID, true, reason); err != nil {
		waiter.Cancel()
		return Reply{}, fault(err, "Something failed while trying to make **%s** mentionable.", role.Name)
	}

	timeout := s.cfg.AnnounceTimeout()
	noticeID, err := s.messenger.Send(ctx, inv.ChannelID,
		fmt.Sprintf("**%s** is now mentionable, if you don't mention it within %d seconds, I will revert the changes.", role.Name, int(timeout.Seconds())), nil)
	if err != nil {
		s.logger.Warn("announce notice failed", zap.String("channel_id", inv.ChannelID), zap.Error(err))
	}

	outcome, waitErr := s.awaitAnnouncement(ctx, inv, role, waiter, pinged)

	// The role is reverted even when the command context is gone.
	revertCtx := context.WithoutCancel(ctx)
	if err := s.gateway.SetRoleMentionable(revertCtx, inv.GuildID, role.ID, false, reason); err != nil {
		return Reply{}, fault(err, "**%s** is still mentionable, I couldn't revert it.", role.Name)
	}
	if noticeID != "" {
		if err := s.messenger.Delete(revertCtx, inv.ChannelID, noticeID); err != nil {
			s.logger.Debug("announce notice cleanup failed", zap.String("message_id", noticeID), zap.Error(err))
		}
	}
	if waitErr != nil {
		return Reply{}, fault(waitErr, "Something failed while waiting for **%s** to be mentioned.", role.Name)
	}

	s.record(ctx, inv, "announcerole", fmt.Sprintf("%s (%s): %s", role.Name, role.ID, outcome))
	return Reply{Content: outcome}, nil
}

func (s *Service) awaitAnnouncement(ctx context.Context, inv Invocation, role *discordgo.Role, waiter events.Waiter[events.Message], pinged func(events.Message) bool) (string, error) {
	deadline := s.now().Add(s.cfg.AnnounceTimeout())
	for {
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			waiter.Cancel()
			return neverMentioned(role, inv.Actor), nil
		}
		msg, ok, err := waiter.Wait(ctx, remaining)
		if err != nil {
			return "", err
		}
		if !ok {
			return neverMentioned(role, inv.Actor), nil
		}
		if msg.AuthorID == inv.Actor.ID {
			return fmt.Sprintf("**%s** mentioned by **%s** in %s", role.Name, inv.Actor, utils.ChannelMention(msg.ChannelID)), nil
		}

		waiter = s.mentions.SubscribeMessage(pinged)
		if err := s.messenger.Delete(ctx, msg.ChannelID, msg.MessageID); err != nil {
			s.logger.Warn("foreign role ping delete failed", zap.String("channel_id", msg.ChannelID), zap.String("message_id", msg.MessageID), zap.Error(err))
		}
	}
}

func neverMentioned(role *discordgo.Role, actor Member) string {
	return fmt.Sprintf("**%s** was never mentioned by **%s**...", role.Name, actor)
}
