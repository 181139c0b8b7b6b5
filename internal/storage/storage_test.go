package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrateTwice(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestWarningRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.InsertWarning(ctx, Warning{ID: 4242, GuildID: "g1", UserID: "u1", Reason: "spam", IssuedAt: issued}); err != nil {
		t.Fatalf("insert warning: %v", err)
	}

	got, err := store.Warning(ctx, "g1", 4242)
	if err != nil {
		t.Fatalf("get warning: %v", err)
	}
	if got.UserID != "u1" || got.Reason != "spam" || !got.IssuedAt.Equal(issued) {
		t.Fatalf("unexpected warning %+v", got)
	}

	if _, err := store.Warning(ctx, "g2", 4242); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other guild, got %v", err)
	}
}

func TestDeleteWarningRemovesExactlyOneRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, w := range []Warning{
		{ID: 1111, GuildID: "g1", UserID: "u1", Reason: "a"},
		{ID: 2222, GuildID: "g1", UserID: "u1", Reason: "b"},
		{ID: 2222, GuildID: "g1", UserID: "u1", Reason: "duplicate id"},
		{ID: 3333, GuildID: "g1", UserID: "u2", Reason: "c"},
	} {
		if err := store.InsertWarning(ctx, w); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	removed, err := store.DeleteWarning(ctx, "g1", "u1", 2222)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 row removed, got %d", removed)
	}

	left, err := store.UserWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("expected 2 warnings left, got %d", len(left))
	}

	removed, err = store.DeleteWarning(ctx, "g1", "u1", 3333)
	if err != nil {
		t.Fatalf("delete other user's id: %v", err)
	}
	if removed != 0 {
		t.Fatalf("warning of another user must not be removed")
	}
}

func TestDeleteUserWarnings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := int64(0); i < 3; i++ {
		if err := store.InsertWarning(ctx, Warning{ID: 5000 + i, GuildID: "g1", UserID: "u1", Reason: "x"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := store.InsertWarning(ctx, Warning{ID: 9000, GuildID: "g1", UserID: "u2", Reason: "x"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	removed, err := store.DeleteUserWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	all, err := store.GuildWarnings(ctx, "g1")
	if err != nil {
		t.Fatalf("guild warnings: %v", err)
	}
	if len(all) != 1 || all[0].UserID != "u2" {
		t.Fatalf("unexpected remaining warnings %+v", all)
	}
}

func TestRaidModeToggle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	enabled, err := store.RaidMode(ctx, "g1")
	if err != nil {
		t.Fatalf("raidmode: %v", err)
	}
	if enabled {
		t.Fatalf("raid mode should default to off")
	}
	if err := store.SetRaidMode(ctx, "g1", true); err != nil {
		t.Fatalf("set raidmode: %v", err)
	}
	if enabled, _ = store.RaidMode(ctx, "g1"); !enabled {
		t.Fatalf("expected raid mode on")
	}
	if err := store.SetRaidMode(ctx, "g1", false); err != nil {
		t.Fatalf("unset raidmode: %v", err)
	}
	if enabled, _ = store.RaidMode(ctx, "g1"); enabled {
		t.Fatalf("expected raid mode off")
	}
}

func TestModLogChannel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SetModLogChannel(ctx, "g1", "c1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetModLogChannel(ctx, "g1", "c2"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.ModLogChannel(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "c2" {
		t.Fatalf("expected c2, got %q", got)
	}
	if err := store.SetModLogChannel(ctx, "g1", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ = store.ModLogChannel(ctx, "g1"); got != "" {
		t.Fatalf("expected cleared channel, got %q", got)
	}
}

func TestNicknamesNewestFirstWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"ancient", "first", "second", "third"} {
		changed := base.Add(time.Duration(i) * time.Hour)
		if name == "ancient" {
			changed = base.Add(-100 * 24 * time.Hour)
		}
		if err := store.InsertNickname(ctx, Nickname{GuildID: "g1", UserID: "u1", Nickname: name, ChangedAt: changed}); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}
	if err := store.InsertNickname(ctx, Nickname{GuildID: "g2", UserID: "u1", Nickname: "elsewhere", ChangedAt: base}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.Nicknames(ctx, "g1", "u1", base.Add(-90*24*time.Hour), 2)
	if err != nil {
		t.Fatalf("nicknames: %v", err)
	}
	if len(got) != 2 || got[0].Nickname != "third" || got[1].Nickname != "second" {
		t.Fatalf("expected the two newest nicknames, got %+v", got)
	}

	all, err := store.Nicknames(ctx, "g1", "u1", base.Add(-90*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("nicknames: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("nicknames older than the window must be left out, got %+v", all)
	}
}

func TestPostgresWarnings(t *testing.T) {
	dsn := os.Getenv("DREDD_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("DREDD_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	guild := "test-" + time.Now().Format("150405.000000")
	if err := store.InsertWarning(ctx, Warning{ID: 777, GuildID: guild, UserID: "u1", Reason: "spam"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if removed, err := store.DeleteWarning(ctx, guild, "u1", 777); err != nil || removed != 1 {
		t.Fatalf("delete: removed=%d err=%v", removed, err)
	}
}
