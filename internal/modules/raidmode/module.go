package raidmode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dredd/internal/config"
	"dredd/internal/modules/audit"
	"dredd/internal/utils"

	"go.uber.org/zap"
)

const kickReason = "Anti raid mode"

type FlagSource interface {
	RaidMode(ctx context.Context, guildID string) (bool, error)
}

// Enforcer removes members while a guild is in raid mode.
type Enforcer interface {
	DM(ctx context.Context, userID, content string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
}

type Join struct {
	GuildID   string
	GuildName string
	UserID    string
	Username  string
}

type Module struct {
	mu       sync.Mutex
	windows  map[string]*utils.SlidingWindow
	warned   map[string]time.Time
	config   config.RaidModeConfig
	flags    FlagSource
	enforcer Enforcer
	audit    *audit.Logger
	logger   *zap.Logger
	now      func() time.Time
}

func New(cfg config.RaidModeConfig, flags FlagSource, enforcer Enforcer, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{
		windows:  make(map[string]*utils.SlidingWindow),
		warned:   make(map[string]time.Time),
		config:   cfg,
		flags:    flags,
		enforcer: enforcer,
		audit:    auditLogger,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleJoin kicks the member when raid mode is on and reports join bursts
// when it is off. It returns true when the member was removed.
func (m *Module) HandleJoin(ctx context.Context, join Join) bool {
	if join.GuildID == "" || join.UserID == "" {
		return false
	}

	enabled, err := m.flags.RaidMode(ctx, join.GuildID)
	if err != nil {
		m.logger.Warn("raid mode lookup failed", zap.String("guild_id", join.GuildID), zap.Error(err))
		return false
	}
	if !enabled {
		m.trackBurst(ctx, join)
		return false
	}

	notice := fmt.Sprintf("**%s** is currently in raid mode and doesn't accept new members. Try again later.", join.GuildName)
	if err := m.enforcer.DM(ctx, join.UserID, notice); err != nil {
		m.logger.Debug("raid mode dm failed", zap.String("user_id", join.UserID), zap.Error(err))
	}
	if err := m.enforcer.Kick(ctx, join.GuildID, join.UserID, kickReason); err != nil {
		m.logger.Warn("raid mode kick failed", zap.String("guild_id", join.GuildID), zap.String("user_id", join.UserID), zap.Error(err))
		return false
	}
	m.audit.Log(ctx, audit.LevelInfo, join.GuildID, "", "raidmode_kick", fmt.Sprintf("%s (%s) was kicked on join", join.Username, join.UserID))
	return true
}

// trackBurst warns the modlog once per window when joins exceed the configured burst.
func (m *Module) trackBurst(ctx context.Context, join Join) {
	if m.config.BurstJoins <= 0 {
		return
	}
	window := time.Duration(m.config.BurstWindowSeconds) * time.Second
	now := m.now()
	count := m.window(join.GuildID, window).Add(now)
	if count < m.config.BurstJoins {
		return
	}

	m.mu.Lock()
	last, seen := m.warned[join.GuildID]
	if seen && now.Sub(last) < window {
		m.mu.Unlock()
		return
	}
	m.warned[join.GuildID] = now
	m.mu.Unlock()

	detail := fmt.Sprintf("%d members joined within %ds. Consider turning on raid mode.", count, m.config.BurstWindowSeconds)
	m.audit.Log(ctx, audit.LevelWarn, join.GuildID, "", "join_burst", detail)
}

func (m *Module) window(guildID string, size time.Duration) *utils.SlidingWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.windows[guildID]
	if w == nil {
		w = utils.NewSlidingWindow(size)
		m.windows[guildID] = w
	}
	return w
}
