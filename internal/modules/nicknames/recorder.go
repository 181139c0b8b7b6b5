package nicknames

import (
	"context"
	"time"

	"dredd/internal/storage"

	"go.uber.org/zap"
)

const (
	// Window is how far back the nicknames command looks.
	Window = 90 * 24 * time.Hour
	Shown  = 10
)

type Store interface {
	InsertNickname(ctx context.Context, n storage.Nickname) error
	Nicknames(ctx context.Context, guildID, userID string, since time.Time, limit int) ([]storage.Nickname, error)
}

// Change is a member update as seen by the gateway. Before is empty when the
// previous member state was not cached.
type Change struct {
	GuildID string
	UserID  string
	Before  string
	After   string
	Bot     bool
}

// Recorder keeps the nickname history of guild members.
type Recorder struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func New(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

func (r *Recorder) WithClock(now func() time.Time) {
	r.now = now
}

// Record stores a new nickname. Bots, cleared nicknames and updates that did
// not touch the nickname are skipped. It reports whether a row was written.
func (r *Recorder) Record(ctx context.Context, c Change) bool {
	if c.Bot || c.After == "" || c.GuildID == "" || c.UserID == "" {
		return false
	}
	if c.Before == c.After {
		return false
	}
	if c.Before == "" {
		latest, err := r.store.Nicknames(ctx, c.GuildID, c.UserID, time.Time{}, 1)
		if err != nil {
			r.logger.Warn("nickname lookup failed", zap.String("guild_id", c.GuildID), zap.String("user_id", c.UserID), zap.Error(err))
			return false
		}
		if len(latest) > 0 && latest[0].Nickname == c.After {
			return false
		}
	}

	err := r.store.InsertNickname(ctx, storage.Nickname{GuildID: c.GuildID, UserID: c.UserID, Nickname: c.After, ChangedAt: r.now().UTC()})
	if err != nil {
		r.logger.Warn("nickname insert failed", zap.String("guild_id", c.GuildID), zap.String("user_id", c.UserID), zap.Error(err))
		return false
	}
	return true
}

// Recent returns up to Shown nicknames from the last Window, newest first.
func (r *Recorder) Recent(ctx context.Context, guildID, userID string) ([]string, error) {
	items, err := r.store.Nicknames(ctx, guildID, userID, r.now().Add(-Window), Shown)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, n := range items {
		names = append(names, n.Nickname)
	}
	return names, nil
}
