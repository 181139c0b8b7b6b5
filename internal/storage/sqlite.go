package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sqlx.DB
}

type warningRow struct {
	ID      int64  `db:"id"`
	GuildID string `db:"guild_id"`
	UserID  string `db:"user_id"`
	Reason  string `db:"reason"`
	Time    int64  `db:"time"`
}

func (r warningRow) warning() Warning {
	return Warning{ID: r.ID, GuildID: r.GuildID, UserID: r.UserID, Reason: r.Reason, IssuedAt: time.Unix(r.Time, 0).UTC()}
}

func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, "sqlite", func(ctx context.Context, statement string) error {
		_, err := s.db.ExecContext(ctx, statement)
		return err
	})
}

func (s *SQLiteStore) InsertWarning(ctx context.Context, w Warning) error {
	issued := w.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO warnings (id, guild_id, user_id, reason, time)
		VALUES (?, ?, ?, ?, ?)
	`, w.ID, w.GuildID, w.UserID, w.Reason, issued.Unix())
	return err
}

func (s *SQLiteStore) Warning(ctx context.Context, guildID string, id int64) (Warning, error) {
	var row warningRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, guild_id, user_id, reason, time
		FROM warnings WHERE guild_id = ? AND id = ?
		LIMIT 1
	`, guildID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Warning{}, ErrNotFound
		}
		return Warning{}, err
	}
	return row.warning(), nil
}

func (s *SQLiteStore) UserWarnings(ctx context.Context, guildID, userID string) ([]Warning, error) {
	var rows []warningRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, guild_id, user_id, reason, time
		FROM warnings WHERE guild_id = ? AND user_id = ?
		ORDER BY time ASC, rowid ASC
	`, guildID, userID)
	if err != nil {
		return nil, err
	}
	return toWarnings(rows), nil
}

func (s *SQLiteStore) GuildWarnings(ctx context.Context, guildID string) ([]Warning, error) {
	var rows []warningRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, guild_id, user_id, reason, time
		FROM warnings WHERE guild_id = ?
		ORDER BY time ASC, rowid ASC
	`, guildID)
	if err != nil {
		return nil, err
	}
	return toWarnings(rows), nil
}

func (s *SQLiteStore) DeleteWarning(ctx context.Context, guildID, userID string, id int64) (int64, error) {
	// rowid pins the delete to one row when random ids collide.
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM warnings WHERE rowid = (
			SELECT rowid FROM warnings
			WHERE guild_id = ? AND user_id = ? AND id = ?
			LIMIT 1
		)
	`, guildID, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) DeleteUserWarnings(ctx context.Context, guildID, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM warnings WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) RaidMode(ctx context.Context, guildID string) (bool, error) {
	var enabled int
	err := s.db.GetContext(ctx, &enabled, `SELECT raidmode FROM guilds WHERE guild_id = ?`, guildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return enabled == 1, nil
}

func (s *SQLiteStore) SetRaidMode(ctx context.Context, guildID string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guilds (guild_id, raidmode) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET raidmode = excluded.raidmode
	`, guildID, boolToInt(enabled))
	return err
}

func (s *SQLiteStore) ModLogChannel(ctx context.Context, guildID string) (string, error) {
	var channelID string
	err := s.db.GetContext(ctx, &channelID, `SELECT channel_id FROM moderation WHERE guild_id = ?`, guildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return channelID, nil
}

func (s *SQLiteStore) SetModLogChannel(ctx context.Context, guildID, channelID string) error {
	if channelID == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM moderation WHERE guild_id = ?`, guildID)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation (guild_id, channel_id) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET channel_id = excluded.channel_id
	`, guildID, channelID)
	return err
}

type nicknameRow struct {
	GuildID  string `db:"guild_id"`
	UserID   string `db:"user_id"`
	Nickname string `db:"nickname"`
	Time     int64  `db:"time"`
}

func (s *SQLiteStore) InsertNickname(ctx context.Context, n Nickname) error {
	changed := n.ChangedAt
	if changed.IsZero() {
		changed = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nicknames (user_id, guild_id, nickname, time)
		VALUES (?, ?, ?, ?)
	`, n.UserID, n.GuildID, n.Nickname, changed.Unix())
	return err
}

func (s *SQLiteStore) Nicknames(ctx context.Context, guildID, userID string, since time.Time, limit int) ([]Nickname, error) {
	var rows []nicknameRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT guild_id, user_id, nickname, time
		FROM nicknames WHERE guild_id = ? AND user_id = ? AND time >= ?
		ORDER BY time DESC, rowid DESC
		LIMIT ?
	`, guildID, userID, since.Unix(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]Nickname, 0, len(rows))
	for _, row := range rows {
		out = append(out, Nickname{GuildID: row.GuildID, UserID: row.UserID, Nickname: row.Nickname, ChangedAt: time.Unix(row.Time, 0).UTC()})
	}
	return out, nil
}

func toWarnings(rows []warningRow) []Warning {
	out := make([]Warning, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.warning())
	}
	return out
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
