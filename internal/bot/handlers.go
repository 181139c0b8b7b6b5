package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"dredd/internal/moderation"
	"dredd/internal/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const commandTimeout = 10 * time.Minute

type handlerFunc func(ctx context.Context, req *request) (moderation.Reply, error)

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func (o optionMap) str(name string) string {
	opt, ok := o[name]
	if !ok {
		return ""
	}
	value, _ := opt.Value.(string)
	return strings.TrimSpace(value)
}

// id reads user, channel and role options, which arrive as snowflake strings.
func (o optionMap) id(name string) string {
	return o.str(name)
}

func (o optionMap) int(name string) (int64, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}
	switch value := opt.Value.(type) {
	case float64:
		if value > math.MaxInt64 || value < math.MinInt64 {
			return 0, false
		}
		return int64(value), true
	case int64:
		return value, true
	case int:
		return int64(value), true
	}
	return 0, false
}

func (o optionMap) bool(name string) bool {
	opt, ok := o[name]
	if !ok {
		return false
	}
	value, _ := opt.Value.(bool)
	return value
}

type request struct {
	interaction *discordgo.Interaction
	name        string
	sub         string
	options     optionMap
	resolved    *discordgo.ApplicationCommandInteractionDataResolved
	user        *discordgo.User
	inv         moderation.Invocation
}

// newRequest flattens one level of subcommand into sub.
func newRequest(interaction *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) *request {
	req := &request{
		interaction: interaction,
		name:        data.Name,
		options:     make(optionMap),
		resolved:    data.Resolved,
		user:        interactionUser(interaction),
	}
	options := data.Options
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		req.sub = options[0].Name
		options = options[0].Options
	}
	for _, opt := range options {
		req.options[opt.Name] = opt
	}
	return req
}

func interactionUser(interaction *discordgo.Interaction) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

// resolvedUser returns the user behind a user option, or nil when it was left out.
func (r *request) resolvedUser(name string) *discordgo.User {
	id := r.options.id(name)
	if id == "" {
		return nil
	}
	if r.resolved != nil {
		if user, ok := r.resolved.Users[id]; ok {
			return user
		}
	}
	return &discordgo.User{ID: id}
}

func (r *request) resolvedMember(name string) *discordgo.Member {
	id := r.options.id(name)
	if id == "" || r.resolved == nil {
		return nil
	}
	member, ok := r.resolved.Members[id]
	if !ok {
		return nil
	}
	// Resolved members come without their user.
	copied := *member
	copied.User = r.resolved.Users[id]
	copied.GuildID = r.interaction.GuildID
	return &copied
}

func (r *request) resolvedRole(name string) *discordgo.Role {
	id := r.options.id(name)
	if id == "" {
		return nil
	}
	if r.resolved != nil {
		if role, ok := r.resolved.Roles[id]; ok {
			return role
		}
	}
	return &discordgo.Role{ID: id}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := interaction.ApplicationCommandData()
	cmd, ok := b.handlers[data.Name]
	if !ok {
		return
	}
	req := newRequest(interaction.Interaction, data)
	if req.user == nil {
		return
	}
	logger := b.logger.With(
		zap.String("invocation_id", uuid.NewString()),
		zap.String("command", commandPath(req)),
		zap.String("guild_id", interaction.GuildID),
		zap.String("user_id", req.user.ID),
	)

	if cmd.guild && interaction.GuildID == "" {
		b.respond(interaction.Interaction, "This command can only be used in a server.", true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if cmd.bucket != nil && b.limiter != nil {
		if retry, allowed := b.limiter.Allow(ctx, *cmd.bucket, req.user.ID); !allowed {
			b.respond(interaction.Interaction, cooldownMessage(retry), true)
			return
		}
	}

	if err := b.deferReply(interaction.Interaction); err != nil {
		logger.Warn("interaction defer failed", zap.Error(err))
		return
	}

	started := time.Now()
	reply, err := b.execute(ctx, cmd, req)
	if err != nil {
		reply = moderation.Reply{Content: failureMessage(commandPath(req), err)}
		logFailure(logger, err)
	}
	b.editReply(interaction.Interaction, reply)
	logger.Debug("command handled", zap.Duration("took", time.Since(started)))
}

func (b *Bot) execute(ctx context.Context, cmd command, req *request) (moderation.Reply, error) {
	if cmd.moderation {
		inv, err := b.invocation(ctx, req)
		if err != nil {
			return moderation.Reply{}, err
		}
		req.inv = inv
	}
	return cmd.run(ctx, req)
}

// invocation resolves the actor, the bot's own member and the role hierarchy once per command.
func (b *Bot) invocation(ctx context.Context, req *request) (moderation.Invocation, error) {
	guildID := req.interaction.GuildID
	guild, err := b.api.Guild(ctx, guildID)
	if err != nil {
		return moderation.Invocation{}, fmt.Errorf("load guild: %w", err)
	}
	roles, err := b.api.Roles(ctx, guildID)
	if err != nil {
		return moderation.Invocation{}, fmt.Errorf("load roles: %w", err)
	}
	self, err := b.api.Member(ctx, guildID, b.session.State.User.ID)
	if err != nil {
		return moderation.Invocation{}, fmt.Errorf("load bot member: %w", err)
	}

	hierarchy := moderation.NewHierarchy(guild.OwnerID, roles)
	return moderation.Invocation{
		GuildID:   guildID,
		GuildName: guild.Name,
		ChannelID: req.interaction.ChannelID,
		Actor:     hierarchy.Member(req.interaction.Member),
		Executor:  hierarchy.Member(self),
		Hierarchy: hierarchy,
	}, nil
}

func rejection(kind error, format string, args ...any) error {
	return &moderation.Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// targets resolves the greedy members option against the guild.
func (b *Bot) targets(ctx context.Context, req *request) ([]moderation.Member, error) {
	spec, invalid := moderation.ParseTargets(req.options.str("members"))
	if len(invalid) > 0 {
		return nil, rejection(moderation.ErrInvalidInput, "Member **%s** not found.", utils.Truncate(strings.Join(invalid, ", "), 100))
	}

	members := make([]moderation.Member, 0, spec.Len())
	for _, id := range spec.IDs() {
		member, err := b.member(ctx, req, id)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

func (b *Bot) member(ctx context.Context, req *request, userID string) (moderation.Member, error) {
	gm, err := b.api.Member(ctx, req.inv.GuildID, userID)
	if err != nil {
		if errors.Is(moderation.ClassifyRemote(err), moderation.ErrNotFound) {
			return moderation.Member{}, rejection(moderation.ErrNotFound, "Member %s not found.", utils.UserMention(userID))
		}
		return moderation.Member{}, fmt.Errorf("load member %s: %w", userID, err)
	}
	return req.inv.Hierarchy.Member(gm), nil
}

// memberOption resolves a single member option, preferring the member data sent with the interaction.
func (b *Bot) memberOption(ctx context.Context, req *request, name string) (moderation.Member, error) {
	if gm := req.resolvedMember(name); gm != nil && gm.User != nil {
		return req.inv.Hierarchy.Member(gm), nil
	}
	id := req.options.id(name)
	if id == "" {
		return moderation.Member{}, rejection(moderation.ErrNothingToDo, "Please provide a member.")
	}
	return b.member(ctx, req, id)
}

func commandPath(req *request) string {
	if req.sub == "" {
		return req.name
	}
	return req.name + " " + req.sub
}

func cooldownMessage(retry time.Duration) string {
	return fmt.Sprintf("You're on cooldown. Try again in %.1fs.", math.Max(retry.Seconds(), 0.1))
}

// failureMessage is what the invoker sees for an error returned by a command.
func failureMessage(command string, err error) string {
	var rejected *moderation.Rejection
	if errors.As(err, &rejected) {
		return rejected.Message
	}
	var failed *moderation.Fault
	if errors.As(err, &failed) {
		return failed.Message
	}
	return fmt.Sprintf("Something failed while trying to %s.", command)
}

func logFailure(logger *zap.Logger, err error) {
	var rejected *moderation.Rejection
	if errors.As(err, &rejected) {
		logger.Debug("command rejected", zap.String("reason", rejected.Message))
		return
	}
	logger.Error("command failed", zap.Error(err))
}
