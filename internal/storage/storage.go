package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("storage: not found")

// Warning is one persisted moderator warning. IDs are random and unique only by convention.
type Warning struct {
	ID       int64
	GuildID  string
	UserID   string
	Reason   string
	IssuedAt time.Time
}

// Nickname is one recorded nickname change.
type Nickname struct {
	GuildID   string
	UserID    string
	Nickname  string
	ChangedAt time.Time
}

type Store interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()

	InsertWarning(ctx context.Context, w Warning) error
	Warning(ctx context.Context, guildID string, id int64) (Warning, error)
	UserWarnings(ctx context.Context, guildID, userID string) ([]Warning, error)
	GuildWarnings(ctx context.Context, guildID string) ([]Warning, error)
	DeleteWarning(ctx context.Context, guildID, userID string, id int64) (int64, error)
	DeleteUserWarnings(ctx context.Context, guildID, userID string) (int64, error)

	RaidMode(ctx context.Context, guildID string) (bool, error)
	SetRaidMode(ctx context.Context, guildID string, enabled bool) error

	ModLogChannel(ctx context.Context, guildID string) (string, error)
	SetModLogChannel(ctx context.Context, guildID, channelID string) error

	InsertNickname(ctx context.Context, n Nickname) error
	// Nicknames returns at most limit nicknames changed after since, newest first.
	Nicknames(ctx context.Context, guildID, userID string, since time.Time, limit int) ([]Nickname, error)
}

// Open picks the Postgres backend for postgres:// URLs and SQLite for anything else.
func Open(ctx context.Context, url string) (Store, error) {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return NewPostgres(ctx, url)
	}
	return NewSQLite(url)
}

type execer func(ctx context.Context, statement string) error

func runMigrations(ctx context.Context, dialect string, exec execer) error {
	dir := path.Join("migrations", dialect)
	entries, err := migrations.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join(dir, file))
		if err != nil {
			return err
		}
		if err := exec(ctx, string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
