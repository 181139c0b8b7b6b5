package moderation

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"dredd/internal/config"
	"dredd/internal/events"
	"dredd/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type sentMessage struct {
	ChannelID string
	ID        string
	Content   string
	Embed     *discordgo.MessageEmbed
	File      string
	Data      string
}

type fakeMessenger struct {
	mu        sync.Mutex
	next      int
	sent      []sentMessage
	edits     []sentMessage
	reactions map[string][]string
	cleared   []string
	deleted   []string
	dms       map[string]string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{reactions: map[string][]string{}, dms: map[string]string{}}
}

func (m *fakeMessenger) Send(_ context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("msg-%d", m.next)
	m.sent = append(m.sent, sentMessage{ChannelID: channelID, ID: id, Content: content, Embed: embed})
	return id, nil
}

func (m *fakeMessenger) SendFile(_ context.Context, channelID, content, name string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChannelID: channelID, Content: content, File: name, Data: string(raw)})
	return nil
}

func (m *fakeMessenger) Edit(_ context.Context, channelID, messageID, content string, embed *discordgo.MessageEmbed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, sentMessage{ChannelID: channelID, ID: messageID, Content: content, Embed: embed})
	return nil
}

func (m *fakeMessenger) React(_ context.Context, _, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions[messageID] = append(m.reactions[messageID], emoji)
	return nil
}

func (m *fakeMessenger) ClearReactions(_ context.Context, _, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, messageID)
	return nil
}

func (m *fakeMessenger) Delete(_ context.Context, _, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *fakeMessenger) DM(_ context.Context, userID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dms[userID] = content
	return nil
}

// scriptedWaiter answers each wait with the next emoji; "" means the wait timed out.
type scriptedWaiter struct {
	t        *testing.T
	actorID  string
	messages *fakeMessenger
	script   []string
	timeouts []time.Duration
	// reactsAtSubscribe is how many reactions the prompt had when each waiter was registered.
	reactsAtSubscribe []int
}

func (w *scriptedWaiter) SubscribeReaction(match func(events.Reaction) bool) events.Waiter[events.Reaction] {
	w.messages.mu.Lock()
	total := 0
	for _, r := range w.messages.reactions {
		total += len(r)
	}
	w.messages.mu.Unlock()
	w.reactsAtSubscribe = append(w.reactsAtSubscribe, total)
	return &scriptedWait{owner: w, match: match}
}

type scriptedWait struct {
	owner *scriptedWaiter
	match func(events.Reaction) bool
}

func (s *scriptedWait) Cancel() {}

func (s *scriptedWait) Wait(_ context.Context, timeout time.Duration) (events.Reaction, bool, error) {
	w := s.owner
	w.timeouts = append(w.timeouts, timeout)
	if len(w.script) == 0 {
		w.t.Fatalf("unexpected wait for reaction")
	}
	emoji := w.script[0]
	w.script = w.script[1:]
	if emoji == "" {
		return events.Reaction{}, false, nil
	}

	w.messages.mu.Lock()
	messageID := w.messages.sent[len(w.messages.sent)-1].ID
	w.messages.mu.Unlock()

	stranger := events.Reaction{UserID: "stranger", MessageID: messageID, Emoji: emoji}
	if s.match(stranger) {
		w.t.Fatalf("prompt must ignore reactions from other users")
	}
	r := events.Reaction{UserID: w.actorID, MessageID: messageID, Emoji: emoji}
	if !s.match(r) {
		w.t.Fatalf("reaction %q was not accepted by the prompt", emoji)
	}
	return r, true, nil
}

// scriptedMentions answers each message wait with the next scripted message; a nil entry times out.
type scriptedMentions struct {
	t        *testing.T
	script   []*events.Message
	timeouts []time.Duration
}

func (m *scriptedMentions) SubscribeMessage(match func(events.Message) bool) events.Waiter[events.Message] {
	return &scriptedMention{owner: m, match: match}
}

type scriptedMention struct {
	owner *scriptedMentions
	match func(events.Message) bool
}

func (s *scriptedMention) Cancel() {}

func (s *scriptedMention) Wait(_ context.Context, timeout time.Duration) (events.Message, bool, error) {
	m := s.owner
	m.timeouts = append(m.timeouts, timeout)
	if len(m.script) == 0 {
		m.t.Fatalf("unexpected wait for message")
	}
	next := m.script[0]
	m.script = m.script[1:]
	if next == nil {
		return events.Message{}, false, nil
	}
	if !s.match(*next) {
		m.t.Fatalf("message %+v was not accepted", *next)
	}
	return *next, true, nil
}

type fakeGateway struct {
	mu sync.Mutex

	roles    []*discordgo.Role
	members  []*discordgo.Member
	bans     []*discordgo.GuildBan
	channels map[string]*discordgo.Channel
	history  []*discordgo.Message
	fail     map[string]error

	kicked      []string
	banned      []string
	unbanned    []string
	roleAdds    []string
	roleRemovs  []string
	voiceMuted  map[string]bool
	nicknames   map[string]string
	overwrites  map[string][2]int64
	removedOW   []string
	created     []discordgo.GuildChannelCreateData
	bulkCalls   [][]string
	reasons     []string
	// mentionable records each SetRoleMentionable call as roleID:bool.
	mentionable []string

	// banHook runs after a successful ban.
	banHook func(userID string)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels:   map[string]*discordgo.Channel{},
		fail:       map[string]error{},
		voiceMuted: map[string]bool{},
		nicknames:  map[string]string{},
		overwrites: map[string][2]int64{},
	}
}

func (g *fakeGateway) mutation(userID, reason string) error {
	g.reasons = append(g.reasons, reason)
	return g.fail[userID]
}

func (g *fakeGateway) Roles(context.Context, string) ([]*discordgo.Role, error) {
	return g.roles, nil
}

func (g *fakeGateway) SetRoleMentionable(_ context.Context, _, roleID string, mentionable bool, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.mutation(roleID, reason); err != nil {
		return err
	}
	g.mentionable = append(g.mentionable, fmt.Sprintf("%s:%t", roleID, mentionable))
	return nil
}

func (g *fakeGateway) Members(context.Context, string) ([]*discordgo.Member, error) {
	return g.members, nil
}

func (g *fakeGateway) Kick(_ context.Context, _, userID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.mutation(userID, reason); err != nil {
		return err
	}
	g.kicked = append(g.kicked, userID)
	return nil
}

func (g *fakeGateway) Ban(_ context.Context, _, userID, reason string, _ int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.mutation(userID, reason); err != nil {
		return err
	}
	g.banned = append(g.banned, userID)
	if g.banHook != nil {
		g.banHook(userID)
	}
	return nil
}

func (g *fakeGateway) Unban(_ context.Context, _, userID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.mutation(userID, reason); err != nil {
		return err
	}
	g.unbanned = append(g.unbanned, userID)
	return nil
}

func (g *fakeGateway) Bans(context.Context, string) ([]*discordgo.GuildBan, error) {
	return g.bans, nil
}

func (g *fakeGateway) AddRole(_ context.Context, _, userID, roleID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.mutation(userID, reason); err != nil {
		return err
	}
	g.roleAdds = append(g.roleAdds, userID+":"+roleID)
	return nil
}

func (g *fakeGateway) RemoveRole(_ context.Context, _, userID, roleID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.mutation(userID, reason); err != nil {
		return err
	}
	g.roleRemovs = append(g.roleRemovs, userID+":"+roleID)
	return nil
}

func (g *fakeGateway) VoiceMute(_ context.Context, _, userID string, mute bool, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.mutation(userID, reason); err != nil {
		return err
	}
	g.voiceMuted[userID] = mute
	return nil
}

func (g *fakeGateway) SetNickname(_ context.Context, _, userID, nickname, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.mutation(userID, reason); err != nil {
		return err
	}
	g.nicknames[userID] = nickname
	return nil
}

func (g *fakeGateway) Channel(_ context.Context, channelID string) (*discordgo.Channel, error) {
	ch, ok := g.channels[channelID]
	if !ok {
		return nil, &RemoteError{Kind: RemoteNotFound, Err: fmt.Errorf("unknown channel %s", channelID)}
	}
	return ch, nil
}

func (g *fakeGateway) Channels(context.Context, string) ([]*discordgo.Channel, error) {
	out := make([]*discordgo.Channel, 0, len(g.channels))
	for _, ch := range g.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (g *fakeGateway) CreateChannel(_ context.Context, guildID string, data discordgo.GuildChannelCreateData, _ string) (*discordgo.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, data)
	ch := &discordgo.Channel{ID: fmt.Sprintf("created-%d", len(g.created)), GuildID: guildID, Name: data.Name, Type: data.Type}
	g.channels[ch.ID] = ch
	return ch, nil
}

func (g *fakeGateway) SetRoleOverwrite(_ context.Context, channelID, _ string, allow, deny int64, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.overwrites[channelID] = [2]int64{allow, deny}
	return nil
}

func (g *fakeGateway) DeleteOverwrite(_ context.Context, channelID, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removedOW = append(g.removedOW, channelID)
	return nil
}

// Messages pages through history newest first, like the Discord API.
func (g *fakeGateway) Messages(_ context.Context, _ string, limit int, beforeID string) ([]*discordgo.Message, error) {
	start := 0
	if beforeID != "" {
		for i, m := range g.history {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(g.history))
	return g.history[start:end], nil
}

func (g *fakeGateway) DeleteMessages(_ context.Context, _ string, ids []string, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bulkCalls = append(g.bulkCalls, ids)
	if len(ids) == 1 {
		return g.fail[ids[0]]
	}
	return nil
}

func (g *fakeGateway) mutations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.kicked) + len(g.banned) + len(g.unbanned) + len(g.roleAdds) + len(g.roleRemovs) +
		len(g.voiceMuted) + len(g.nicknames) + len(g.overwrites) + len(g.removedOW) + len(g.created) + len(g.bulkCalls)
}

type fixture struct {
	svc       *Service
	store     storage.Store
	gateway   *fakeGateway
	messenger *fakeMessenger
	waiter    *scriptedWaiter
	mentions  *scriptedMentions
	inv       Invocation
}

func testModerationConfig() config.ModerationConfig {
	cfg := config.DefaultConfig().Moderation
	cfg.ActionsPerSecond = 0
	return cfg
}

func newFixture(t *testing.T, script ...string) *fixture {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	gateway := newFakeGateway()
	messenger := newFakeMessenger()
	waiter := &scriptedWaiter{t: t, actorID: "actor", messages: messenger, script: script}
	mentions := &scriptedMentions{t: t}
	svc := NewService(testModerationConfig(), 0x0058D6, Deps{
		Store:     store,
		Gateway:   gateway,
		Messenger: messenger,
		Waiter:    waiter,
		Mentions:  mentions,
		Logger:    zap.NewNop(),
	})
	svc.WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) })

	return &fixture{
		svc:       svc,
		store:     store,
		gateway:   gateway,
		messenger: messenger,
		waiter:    waiter,
		mentions:  mentions,
		inv: Invocation{
			GuildID:   "guild",
			GuildName: "Test Guild",
			ChannelID: "chan",
			Actor:     Member{Entity: Entity{ID: "actor", Rank: 5}, Username: "mod"},
			Executor:  Member{Entity: Entity{ID: "bot", Rank: 10}, Username: "dredd"},
			Hierarchy: NewHierarchy("owner", nil),
		},
	}
}

func member(id string, rank int) Member {
	return Member{Entity: Entity{ID: id, Rank: rank}, Username: "user-" + id, DisplayName: "user-" + id}
}
