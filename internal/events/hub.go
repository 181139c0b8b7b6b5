package events

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Reaction is a reaction-add event reduced to what waiters match on.
type Reaction struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
}

func FromDiscord(r *discordgo.MessageReaction) Reaction {
	return Reaction{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.APIName(),
	}
}

// Message is a message-create event reduced to what waiters match on.
type Message struct {
	GuildID      string
	ChannelID    string
	MessageID    string
	AuthorID     string
	RoleMentions []string
}

func MessageFromDiscord(m *discordgo.Message) Message {
	msg := Message{
		GuildID:      m.GuildID,
		ChannelID:    m.ChannelID,
		MessageID:    m.ID,
		RoleMentions: m.MentionRoles,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	return msg
}

// MentionsRole reports whether the message pings roleID.
func (m Message) MentionsRole(roleID string) bool {
	for _, id := range m.RoleMentions {
		if id == roleID {
			return true
		}
	}
	return false
}

// Waiter is a registered interest in one event. It is live from the moment it
// is returned, so events fired before Wait is called are not lost.
type Waiter[T any] interface {
	// Wait blocks until the event arrives, the timeout elapses (ok is false) or ctx is done.
	Wait(ctx context.Context, timeout time.Duration) (T, bool, error)
	// Cancel unregisters a waiter that will not be waited on.
	Cancel()
}

type subscription[T any] struct {
	queue *queue[T]
	clock Clock
	match func(T) bool
	ch    chan T
}

func (s *subscription[T]) Wait(ctx context.Context, timeout time.Duration) (T, bool, error) {
	var zero T
	select {
	case v := <-s.ch:
		return v, true, nil
	default:
	}

	expired := make(chan struct{})
	timer := s.clock.AfterFunc(timeout, func() { close(expired) })
	defer timer.Stop()

	select {
	case v := <-s.ch:
		return v, true, nil
	case <-expired:
		if v, ok := s.queue.remove(s); ok {
			return v, true, nil
		}
		return zero, false, nil
	case <-ctx.Done():
		if v, ok := s.queue.remove(s); ok {
			return v, true, nil
		}
		return zero, false, ctx.Err()
	}
}

func (s *subscription[T]) Cancel() {
	s.queue.remove(s)
}

// queue delivers each event to the first live subscription that matches it.
type queue[T any] struct {
	mu   sync.Mutex
	subs []*subscription[T]
}

func (q *queue[T]) subscribe(clock Clock, match func(T) bool) *subscription[T] {
	s := &subscription[T]{queue: q, clock: clock, match: match, ch: make(chan T, 1)}
	q.mu.Lock()
	q.subs = append(q.subs, s)
	q.mu.Unlock()
	return s
}

func (q *queue[T]) dispatch(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, s := range q.subs {
		if !s.match(v) {
			continue
		}
		q.subs = append(q.subs[:i], q.subs[i+1:]...)
		s.ch <- v
		return true
	}
	return false
}

// remove unregisters s. An event delivered while racing the timeout still wins.
func (q *queue[T]) remove(s *subscription[T]) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, candidate := range q.subs {
		if candidate == s {
			q.subs = append(q.subs[:i], q.subs[i+1:]...)
			break
		}
	}
	select {
	case v := <-s.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

func (q *queue[T]) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subs)
}

// Hub fans gateway reaction and message events out to waiters registered with
// a predicate. Events nobody matches are dropped.
type Hub struct {
	reactions queue[Reaction]
	messages  queue[Message]
	clock     Clock
	logger    *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{clock: realClock{}, logger: logger}
}

func (h *Hub) WithClock(clock Clock) {
	h.clock = clock
}

func (h *Hub) SubscribeReaction(match func(Reaction) bool) Waiter[Reaction] {
	return h.reactions.subscribe(h.clock, match)
}

func (h *Hub) SubscribeMessage(match func(Message) bool) Waiter[Message] {
	return h.messages.subscribe(h.clock, match)
}

func (h *Hub) OnReactionAdd(s *discordgo.Session, event *discordgo.MessageReactionAdd) {
	if event == nil || event.MessageReaction == nil {
		return
	}
	if isSelf(s, event.UserID) {
		return
	}
	h.Dispatch(FromDiscord(event.MessageReaction))
}

func (h *Hub) OnMessageCreate(s *discordgo.Session, event *discordgo.MessageCreate) {
	if event == nil || event.Message == nil || event.GuildID == "" {
		return
	}
	if event.Author == nil || isSelf(s, event.Author.ID) {
		return
	}
	if h.messages.size() == 0 {
		return
	}
	if h.DispatchMessage(MessageFromDiscord(event.Message)) {
		h.logger.Debug("message delivered to waiter", zap.String("channel_id", event.ChannelID), zap.String("message_id", event.ID))
	}
}

func (h *Hub) Dispatch(r Reaction) bool {
	return h.reactions.dispatch(r)
}

func (h *Hub) DispatchMessage(m Message) bool {
	return h.messages.dispatch(m)
}

func isSelf(s *discordgo.Session, userID string) bool {
	return s != nil && s.State != nil && s.State.User != nil && userID == s.State.User.ID
}
