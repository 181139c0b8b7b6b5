package raidmode

import (
	"context"
	"testing"
	"time"

	"dredd/internal/config"
	"dredd/internal/modules/audit"
	"dredd/internal/storage"

	"go.uber.org/zap"
)

type fakeEnforcer struct {
	dms    []string
	kicked []string
	reason string
}

func (f *fakeEnforcer) DM(_ context.Context, userID, _ string) error {
	f.dms = append(f.dms, userID)
	return nil
}

func (f *fakeEnforcer) Kick(_ context.Context, _, userID, reason string) error {
	f.kicked = append(f.kicked, userID)
	f.reason = reason
	return nil
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestRaidModeKicksNewMembers(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	enforcer := &fakeEnforcer{}
	module := New(config.RaidModeConfig{}, store, enforcer, audit.NewLogger(zap.NewNop()), zap.NewNop())

	join := Join{GuildID: "g1", GuildName: "Guild", UserID: "u1", Username: "newbie"}
	if module.HandleJoin(ctx, join) {
		t.Fatalf("member must not be kicked while raid mode is off")
	}

	if err := store.SetRaidMode(ctx, "g1", true); err != nil {
		t.Fatalf("set raidmode: %v", err)
	}
	if !module.HandleJoin(ctx, join) {
		t.Fatalf("expected kick while raid mode is on")
	}
	if len(enforcer.dms) != 1 || len(enforcer.kicked) != 1 || enforcer.reason != "Anti raid mode" {
		t.Fatalf("unexpected enforcement %+v", enforcer)
	}
}

func TestJoinBurstWarnsOncePerWindow(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	var entries []audit.Entry
	auditLogger := audit.NewLogger(zap.NewNop())
	auditLogger.SetNotifier(func(_ context.Context, e audit.Entry) { entries = append(entries, e) })

	module := New(config.RaidModeConfig{BurstJoins: 3, BurstWindowSeconds: 10}, store, &fakeEnforcer{}, auditLogger, zap.NewNop())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	module.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	for i := 0; i < 5; i++ {
		module.HandleJoin(ctx, Join{GuildID: "g1", UserID: "u"})
	}
	if len(entries) != 1 || entries[0].Action != "join_burst" || entries[0].Level != audit.LevelWarn {
		t.Fatalf("expected a single burst warning, got %+v", entries)
	}
}
