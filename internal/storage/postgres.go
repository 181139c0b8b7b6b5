package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MinConns = 0
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, "postgres", func(ctx context.Context, statement string) error {
		_, err := s.pool.Exec(ctx, statement)
		return err
	})
}

func (s *PostgresStore) InsertWarning(ctx context.Context, w Warning) error {
	issued := w.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO warnings (id, guild_id, user_id, reason, "time")
VALUES ($1, $2, $3, $4, $5)
`, w.ID, w.GuildID, w.UserID, w.Reason, issued.UTC())
	if err != nil {
		return fmt.Errorf("insert warning: %w", err)
	}
	return nil
}

func (s *PostgresStore) Warning(ctx context.Context, guildID string, id int64) (Warning, error) {
	var w Warning
	err := s.pool.QueryRow(ctx, `
SELECT id, guild_id, user_id, reason, "time"
FROM warnings
WHERE guild_id = $1 AND id = $2
LIMIT 1
`, guildID, id).Scan(&w.ID, &w.GuildID, &w.UserID, &w.Reason, &w.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warning{}, ErrNotFound
		}
		return Warning{}, fmt.Errorf("get warning: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) UserWarnings(ctx context.Context, guildID, userID string) ([]Warning, error) {
	return s.listWarnings(ctx, `
SELECT id, guild_id, user_id, reason, "time"
FROM warnings
WHERE guild_id = $1 AND user_id = $2
ORDER BY "time" ASC, ctid ASC
`, guildID, userID)
}

func (s *PostgresStore) GuildWarnings(ctx context.Context, guildID string) ([]Warning, error) {
	return s.listWarnings(ctx, `
SELECT id, guild_id, user_id, reason, "time"
FROM warnings
WHERE guild_id = $1
ORDER BY "time" ASC, ctid ASC
`, guildID)
}

func (s *PostgresStore) listWarnings(ctx context.Context, query string, args ...any) ([]Warning, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()

	items := make([]Warning, 0)
	for rows.Next() {
		var w Warning
		if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.Reason, &w.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (s *PostgresStore) DeleteWarning(ctx context.Context, guildID, userID string, id int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
DELETE FROM warnings WHERE ctid IN (
	SELECT ctid FROM warnings
	WHERE guild_id = $1 AND user_id = $2 AND id = $3
	LIMIT 1
)
`, guildID, userID, id)
	if err != nil {
		return 0, fmt.Errorf("delete warning: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteUserWarnings(ctx context.Context, guildID, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM warnings WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete warnings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) RaidMode(ctx context.Context, guildID string) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx, `SELECT raidmode FROM guilds WHERE guild_id = $1`, guildID).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get raidmode: %w", err)
	}
	return enabled, nil
}

func (s *PostgresStore) SetRaidMode(ctx context.Context, guildID string, enabled bool) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO guilds (guild_id, raidmode) VALUES ($1, $2)
ON CONFLICT (guild_id) DO UPDATE SET raidmode = EXCLUDED.raidmode
`, guildID, enabled)
	if err != nil {
		return fmt.Errorf("set raidmode: %w", err)
	}
	return nil
}

func (s *PostgresStore) ModLogChannel(ctx context.Context, guildID string) (string, error) {
	var channelID string
	err := s.pool.QueryRow(ctx, `SELECT channel_id FROM moderation WHERE guild_id = $1`, guildID).Scan(&channelID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get modlog channel: %w", err)
	}
	return channelID, nil
}

func (s *PostgresStore) SetModLogChannel(ctx context.Context, guildID, channelID string) error {
	if channelID == "" {
		_, err := s.pool.Exec(ctx, `DELETE FROM moderation WHERE guild_id = $1`, guildID)
		return err
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO moderation (guild_id, channel_id) VALUES ($1, $2)
ON CONFLICT (guild_id) DO UPDATE SET channel_id = EXCLUDED.channel_id
`, guildID, channelID)
	if err != nil {
		return fmt.Errorf("set modlog channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertNickname(ctx context.Context, n Nickname) error {
	changed := n.ChangedAt
	if changed.IsZero() {
		changed = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO nicknames (user_id, guild_id, nickname, "time")
VALUES ($1, $2, $3, $4)
`, n.UserID, n.GuildID, n.Nickname, changed.UTC())
	if err != nil {
		return fmt.Errorf("insert nickname: %w", err)
	}
	return nil
}

func (s *PostgresStore) Nicknames(ctx context.Context, guildID, userID string, since time.Time, limit int) ([]Nickname, error) {
	rows, err := s.pool.Query(ctx, `
SELECT guild_id, user_id, nickname, "time"
FROM nicknames
WHERE guild_id = $1 AND user_id = $2 AND "time" >= $3
ORDER BY "time" DESC, ctid DESC
LIMIT $4
`, guildID, userID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list nicknames: %w", err)
	}
	defer rows.Close()

	items := make([]Nickname, 0)
	for rows.Next() {
		var n Nickname
		if err := rows.Scan(&n.GuildID, &n.UserID, &n.Nickname, &n.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan nickname: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}
