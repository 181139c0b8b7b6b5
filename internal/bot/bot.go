package bot

import (
	"context"
	"time"

	"dredd/internal/config"
	"dredd/internal/cooldown"
	"dredd/internal/events"
	"dredd/internal/info"
	"dredd/internal/moderation"
	"dredd/internal/modules/audit"
	"dredd/internal/modules/nicknames"
	"dredd/internal/modules/raidmode"
	"dredd/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Version is reported by /about. Release builds set it with -ldflags.
var Version = "dev"

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     storage.Store
	session   *discordgo.Session
	api       *sessionAdapter
	hub       *events.Hub
	limiter   *cooldown.Limiter
	audit     *audit.Logger
	service   *moderation.Service
	info      *info.Builder
	raidmode  *raidmode.Module
	nicknames *nicknames.Recorder
	handlers  map[string]command
	started   time.Time
}

func New(cfg config.Config, logger *zap.Logger, store storage.Store, limiter *cooldown.Limiter, auditLogger *audit.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildVoiceStates

	api := &sessionAdapter{session: session}
	hub := events.NewHub(logger)

	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		session: session,
		api:     api,
		hub:     hub,
		limiter: limiter,
		audit:   auditLogger,
		info:    info.NewBuilder(cfg.Embed.Color),
		started: time.Now(),
	}
	b.service = moderation.NewService(cfg.Moderation, cfg.Embed.Color, moderation.Deps{
		Store:     store,
		Gateway:   api,
		Messenger: api,
		Waiter:    hub,
		Mentions:  hub,
		Audit:     auditLogger,
		Logger:    logger,
	})
	b.raidmode = raidmode.New(cfg.RaidMode, store, api, auditLogger, logger)
	b.nicknames = nicknames.New(store, logger)
	if auditLogger != nil {
		auditLogger.SetNotifier(audit.ChannelNotifier(store, api, cfg.Embed.Color, logger))
	}

	b.handlers = make(map[string]command)
	for _, cmd := range b.commands() {
		b.handlers[cmd.def.Name] = cmd
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberUpdate)
	b.session.AddHandler(b.hub.OnReactionAdd)
	b.session.AddHandler(b.hub.OnMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	return b.registerCommands()
}

// Close disconnects from the gateway, giving up once ctx is done.
func (b *Bot) Close(ctx context.Context) error {
	if b.session == nil {
		return nil
	}
	return closeWithin(ctx, b.session.Close)
}

// closeWithin runs fn but returns early with ctx's error if fn outlives it.
func closeWithin(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.User == nil || event.GuildID == "" {
		return
	}
	ctx := context.Background()
	guildName := event.GuildID
	if guild, err := session.State.Guild(event.GuildID); err == nil {
		guildName = guild.Name
	}
	b.raidmode.HandleJoin(ctx, raidmode.Join{
		GuildID:   event.GuildID,
		GuildName: guildName,
		UserID:    event.User.ID,
		Username:  event.User.Username,
	})
}

func (b *Bot) onGuildMemberUpdate(session *discordgo.Session, event *discordgo.GuildMemberUpdate) {
	if event.Member == nil || event.User == nil {
		return
	}
	b.nicknames.Record(context.Background(), memberChange(event))
}

func memberChange(event *discordgo.GuildMemberUpdate) nicknames.Change {
	change := nicknames.Change{
		GuildID: event.GuildID,
		UserID:  event.User.ID,
		After:   event.Nick,
		Bot:     event.User.Bot,
	}
	if event.BeforeUpdate != nil {
		change.Before = event.BeforeUpdate.Nick
	}
	return change
}

// deferReply acknowledges the interaction; the reply follows through editReply.
func (b *Bot) deferReply(interaction *discordgo.Interaction) error {
	return b.session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func (b *Bot) editReply(interaction *discordgo.Interaction, reply moderation.Reply) {
	content := reply.Content
	edit := &discordgo.WebhookEdit{Content: &content}
	if reply.Embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{reply.Embed}
	}
	if _, err := b.session.InteractionResponseEdit(interaction, edit); err != nil {
		b.logger.Warn("interaction reply failed", zap.String("interaction_id", interaction.ID), zap.Error(err))
	}
}

func (b *Bot) respond(interaction *discordgo.Interaction, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = b.session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}
