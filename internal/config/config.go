package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string           `yaml:"discord_token"`
	GuildID      string           `yaml:"guild_id"`
	DatabaseURL  string           `yaml:"database_url"`
	RedisURL     string           `yaml:"redis_url"`
	LogLevel     string           `yaml:"log_level"`
	SupportURL   string           `yaml:"support_url"`
	Health       HealthConfig     `yaml:"health"`
	Embed        EmbedConfig      `yaml:"embed"`
	Moderation   ModerationConfig `yaml:"moderation"`
	Cooldowns    CooldownConfig   `yaml:"cooldowns"`
	RaidMode     RaidModeConfig   `yaml:"raid_mode"`
	Invite       InviteConfig     `yaml:"invite"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type EmbedConfig struct {
	Color   int `yaml:"color"`
	Success int `yaml:"success"`
	Error   int `yaml:"error"`
}

type ModerationConfig struct {
	MuteRoleName           string         `yaml:"mute_role_name"`
	MaxMuteBatch           int            `yaml:"max_mute_batch"`
	MaxVoiceMuteBatch      int            `yaml:"max_voice_mute_batch"`
	MaxPurge               int            `yaml:"max_purge"`
	DefaultPurge           int            `yaml:"default_purge"`
	ConfirmTimeoutSeconds  int            `yaml:"confirm_timeout_seconds"`
	AnnounceTimeoutSeconds int            `yaml:"announce_timeout_seconds"`
	ActionsPerSecond       float64        `yaml:"actions_per_second"`
	WarnIDMin              int64          `yaml:"warn_id_min"`
	WarnIDMax              int64          `yaml:"warn_id_max"`
	WarningsPerPage        int            `yaml:"warnings_per_page"`
	BanDeleteDays          int            `yaml:"ban_delete_days"`
	MaxNicknameLength      int            `yaml:"max_nickname_length"`
	Emojis                 ReactionEmojis `yaml:"emojis"`
}

type ReactionEmojis struct {
	Accept  string `yaml:"accept"`
	Decline string `yaml:"decline"`
	Inspect string `yaml:"inspect"`
}

type CooldownConfig struct {
	ModerationSeconds int `yaml:"moderation_seconds"`
	ChannelSeconds    int `yaml:"channel_seconds"`
	InfoSeconds       int `yaml:"info_seconds"`
}

type RaidModeConfig struct {
	BurstJoins         int `yaml:"burst_joins"`
	BurstWindowSeconds int `yaml:"burst_window_seconds"`
}

type InviteConfig struct {
	ClientID    string `yaml:"client_id"`
	Permissions int64  `yaml:"permissions"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseURL: "dredd.db",
		LogLevel:    "info",
		SupportURL:  "",
		Health:      HealthConfig{Enabled: false, Addr: ":8080"},
		Embed:       EmbedConfig{Color: 0x0058D6, Success: 0x2ECC71, Error: 0xE74C3C},
		Moderation: ModerationConfig{
			MuteRoleName:           "muted",
			MaxMuteBatch:           5,
			MaxVoiceMuteBatch:      5,
			MaxPurge:               2000,
			DefaultPurge:           100,
			ConfirmTimeoutSeconds:  30,
			AnnounceTimeoutSeconds: 30,
			ActionsPerSecond:       2,
			WarnIDMin:              1111,
			WarnIDMax:              99999,
			WarningsPerPage:        5,
			BanDeleteDays:          1,
			MaxNicknameLength:      32,
			Emojis: ReactionEmojis{
				Accept:  "✅",
				Decline: "❌",
				Inspect: "🔍",
			},
		},
		Cooldowns: CooldownConfig{ModerationSeconds: 30, ChannelSeconds: 15, InfoSeconds: 5},
		RaidMode:  RaidModeConfig{BurstJoins: 10, BurstWindowSeconds: 10},
		Invite:    InviteConfig{Permissions: 8},
	}
}

// Load reads .env, then the YAML file at CONFIG_PATH, then environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	m := c.Moderation
	if m.WarnIDMin <= 0 || m.WarnIDMax < m.WarnIDMin {
		return fmt.Errorf("invalid warn id range %d..%d", m.WarnIDMin, m.WarnIDMax)
	}
	if m.DefaultPurge > m.MaxPurge {
		return fmt.Errorf("default_purge %d exceeds max_purge %d", m.DefaultPurge, m.MaxPurge)
	}
	return nil
}

func (m ModerationConfig) AnnounceTimeout() time.Duration {
	return time.Duration(m.AnnounceTimeoutSeconds) * time.Second
}

func (m ModerationConfig) ConfirmTimeout() time.Duration {
	return time.Duration(m.ConfirmTimeoutSeconds) * time.Second
}

func (c CooldownConfig) Moderation() time.Duration {
	return time.Duration(c.ModerationSeconds) * time.Second
}

func (c CooldownConfig) Channel() time.Duration {
	return time.Duration(c.ChannelSeconds) * time.Second
}

func (c CooldownConfig) Info() time.Duration {
	return time.Duration(c.InfoSeconds) * time.Second
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envString("REDIS_URL", cfg.RedisURL)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.SupportURL = envString("SUPPORT_URL", cfg.SupportURL)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Embed.Color = envInt("EMBED_COLOR", cfg.Embed.Color)
	cfg.Moderation.MuteRoleName = envString("MUTE_ROLE_NAME", cfg.Moderation.MuteRoleName)
	cfg.Moderation.MaxMuteBatch = envInt("MAX_MUTE_BATCH", cfg.Moderation.MaxMuteBatch)
	cfg.Moderation.MaxVoiceMuteBatch = envInt("MAX_VOICE_MUTE_BATCH", cfg.Moderation.MaxVoiceMuteBatch)
	cfg.Moderation.MaxPurge = envInt("MAX_PURGE", cfg.Moderation.MaxPurge)
	cfg.Moderation.ConfirmTimeoutSeconds = envInt("CONFIRM_TIMEOUT_SECONDS", cfg.Moderation.ConfirmTimeoutSeconds)
	cfg.Moderation.AnnounceTimeoutSeconds = envInt("ANNOUNCE_TIMEOUT_SECONDS", cfg.Moderation.AnnounceTimeoutSeconds)
	cfg.Moderation.ActionsPerSecond = envFloat("ACTIONS_PER_SECOND", cfg.Moderation.ActionsPerSecond)
	cfg.Cooldowns.ModerationSeconds = envInt("COOLDOWN_MODERATION_SECONDS", cfg.Cooldowns.ModerationSeconds)
	cfg.Cooldowns.ChannelSeconds = envInt("COOLDOWN_CHANNEL_SECONDS", cfg.Cooldowns.ChannelSeconds)
	cfg.Cooldowns.InfoSeconds = envInt("COOLDOWN_INFO_SECONDS", cfg.Cooldowns.InfoSeconds)
	cfg.Invite.ClientID = envString("INVITE_CLIENT_ID", cfg.Invite.ClientID)
}

func normalize(cfg *Config) {
	cfg.Moderation.MuteRoleName = strings.ToLower(strings.TrimSpace(cfg.Moderation.MuteRoleName))
	if cfg.Moderation.MuteRoleName == "" {
		cfg.Moderation.MuteRoleName = "muted"
	}
	if cfg.Moderation.ConfirmTimeoutSeconds <= 0 {
		cfg.Moderation.ConfirmTimeoutSeconds = 30
	}
	if cfg.Moderation.AnnounceTimeoutSeconds <= 0 {
		cfg.Moderation.AnnounceTimeoutSeconds = 30
	}
	if cfg.Moderation.MaxMuteBatch <= 0 {
		cfg.Moderation.MaxMuteBatch = 5
	}
	if cfg.Moderation.MaxVoiceMuteBatch <= 0 {
		cfg.Moderation.MaxVoiceMuteBatch = 5
	}
	if cfg.Moderation.MaxPurge <= 0 {
		cfg.Moderation.MaxPurge = 2000
	}
	if cfg.Moderation.DefaultPurge <= 0 {
		cfg.Moderation.DefaultPurge = min(100, cfg.Moderation.MaxPurge)
	}
	if cfg.Moderation.WarningsPerPage <= 0 {
		cfg.Moderation.WarningsPerPage = 5
	}
	if cfg.Moderation.MaxNicknameLength <= 0 {
		cfg.Moderation.MaxNicknameLength = 32
	}
	if cfg.Moderation.BanDeleteDays < 0 || cfg.Moderation.BanDeleteDays > 7 {
		cfg.Moderation.BanDeleteDays = 1
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
