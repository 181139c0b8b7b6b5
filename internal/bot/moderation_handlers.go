package bot

import (
	"context"
	"errors"
	"fmt"

	"dredd/internal/moderation"
	"dredd/internal/utils"

	"github.com/bwmarrin/discordgo"
)

type bulkRunner func(ctx context.Context, inv moderation.Invocation, targets []moderation.Member, reason string) (moderation.Reply, error)

func (b *Bot) runBulk(ctx context.Context, req *request, run bulkRunner) (moderation.Reply, error) {
	targets, err := b.targets(ctx, req)
	if err != nil {
		return moderation.Reply{}, err
	}
	return run(ctx, req.inv, targets, req.options.str("reason"))
}

func (b *Bot) handleKick(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.runBulk(ctx, req, b.service.Kick)
}

func (b *Bot) handleBan(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.runBulk(ctx, req, b.service.Ban)
}

func (b *Bot) handleMute(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.runBulk(ctx, req, b.service.Mute)
}

func (b *Bot) handleUnmute(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.runBulk(ctx, req, b.service.Unmute)
}

func (b *Bot) handleVoiceMute(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.runBulk(ctx, req, b.service.VoiceMute)
}

func (b *Bot) handleVoiceUnmute(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.runBulk(ctx, req, b.service.VoiceUnmute)
}

func (b *Bot) handleSoftban(ctx context.Context, req *request) (moderation.Reply, error) {
	target, err := b.memberOption(ctx, req, "member")
	if err != nil {
		return moderation.Reply{}, err
	}
	return b.service.Softban(ctx, req.inv, target, req.options.str("reason"))
}

func (b *Bot) handleUnban(ctx context.Context, req *request) (moderation.Reply, error) {
	ids, _ := utils.ParseSnowflakes(req.options.str("user_id"))
	if len(ids) != 1 {
		return moderation.Reply{}, rejection(moderation.ErrInvalidInput, "Please provide the id of the user to unban.")
	}
	user, err := b.session.User(ids[0], discordgo.WithContext(ctx))
	if err != nil {
		if errors.Is(moderation.ClassifyRemote(err), moderation.ErrNotFound) {
			return moderation.Reply{}, rejection(moderation.ErrNotFound, "User **%s** not found.", ids[0])
		}
		return moderation.Reply{}, fmt.Errorf("load user %s: %w", ids[0], err)
	}
	return b.service.Unban(ctx, req.inv, user, req.options.str("reason"))
}

func (b *Bot) handleUnbanAll(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.service.UnbanAll(ctx, req.inv, req.options.str("reason"))
}

func (b *Bot) handleSetNick(ctx context.Context, req *request) (moderation.Reply, error) {
	target, err := b.memberOption(ctx, req, "member")
	if err != nil {
		return moderation.Reply{}, err
	}
	return b.service.SetNick(ctx, req.inv, target, req.options.str("name"))
}

func (b *Bot) handleDehoist(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.service.Dehoist(ctx, req.inv, req.options.str("nickname"))
}

func (b *Bot) handleWarn(ctx context.Context, req *request) (moderation.Reply, error) {
	target, err := b.memberOption(ctx, req, "member")
	if err != nil {
		return moderation.Reply{}, err
	}
	return b.service.Warn(ctx, req.inv, target, req.options.str("reason"))
}

func (b *Bot) handleWarnings(ctx context.Context, req *request) (moderation.Reply, error) {
	var target *moderation.Member
	if req.options.id("member") != "" {
		member, err := b.memberOption(ctx, req, "member")
		if err != nil {
			return moderation.Reply{}, err
		}
		target = &member
	}
	page, _ := req.options.int("page")
	return b.service.Warnings(ctx, req.inv, target, int(page))
}

func (b *Bot) handleRemoveWarn(ctx context.Context, req *request) (moderation.Reply, error) {
	target, err := b.memberOption(ctx, req, "member")
	if err != nil {
		return moderation.Reply{}, err
	}
	id, ok := req.options.int("id")
	if !ok {
		return moderation.Reply{}, rejection(moderation.ErrInvalidInput, "Please provide the id of the warn.")
	}
	return b.service.RemoveWarn(ctx, req.inv, target, id)
}

func (b *Bot) handleRemoveWarns(ctx context.Context, req *request) (moderation.Reply, error) {
	target, err := b.memberOption(ctx, req, "member")
	if err != nil {
		return moderation.Reply{}, err
	}
	return b.service.RemoveWarns(ctx, req.inv, target)
}

func (b *Bot) handleLock(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.service.Lock(ctx, req.inv, req.options.id("channel"), req.options.str("reason"))
}

func (b *Bot) handleUnlock(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.service.Unlock(ctx, req.inv, req.options.id("channel"), req.options.str("reason"))
}

func (b *Bot) handleRaidMode(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.service.ToggleRaidMode(ctx, req.inv)
}

func (b *Bot) handleClone(ctx context.Context, req *request) (moderation.Reply, error) {
	return b.service.Clone(ctx, req.inv, req.options.id("channel"), req.options.str("reason"))
}

func (b *Bot) handleModLog(ctx context.Context, req *request) (moderation.Reply, error) {
	switch {
	case req.options.bool("off"):
		return b.service.SetModLog(ctx, req.inv, "")
	case req.options.id("channel") != "":
		return b.service.SetModLog(ctx, req.inv, req.options.id("channel"))
	default:
		return b.service.ModLog(ctx, req.inv)
	}
}

func purgeRequest(req *request) (moderation.PurgeRequest, error) {
	limit, _ := req.options.int("count")
	out := moderation.PurgeRequest{Limit: int(limit), Before: req.interaction.ID}
	switch req.sub {
	case "all":
		out.Mode = moderation.PurgeAll
	case "user":
		out.Mode = moderation.PurgeUser
		out.UserID = req.options.id("member")
	case "bot":
		out.Mode = moderation.PurgeBots
	default:
		return out, rejection(moderation.ErrInvalidInput, "Please choose what to purge: all, user or bot.")
	}
	return out, nil
}

func (b *Bot) handlePurge(ctx context.Context, req *request) (moderation.Reply, error) {
	purge, err := purgeRequest(req)
	if err != nil {
		return moderation.Reply{}, err
	}
	return b.service.Purge(ctx, req.inv, purge)
}

func (b *Bot) handleAnnounceRole(ctx context.Context, req *request) (moderation.Reply, error) {
	role := req.inv.Hierarchy.Role(req.options.id("role"))
	if role == nil {
		return moderation.Reply{}, rejection(moderation.ErrNotFound, "I couldn't find that role.")
	}
	return b.service.AnnounceRole(ctx, req.inv, role)
}
