package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mahaj/vconnect/pkg/model"
)

// DefaultTypingTimeout is how long a typing episode stays alive without a
// refresh before the coordinator synthesizes the stop broadcast.
const DefaultTypingTimeout = 4 * time.Second

type typingKey struct {
	channelID string
	userID    string
}

type typingEpisode struct {
	timer *time.Timer
	gen   uint64
}

// TypingCoordinator holds the ephemeral per-channel typing state. It is a
// two-state machine per (channel, user): idle→typing broadcasts a start and
// arms the expiry timer, a refreshed start re-arms without re-broadcasting,
// and an explicit stop or timer expiry broadcasts exactly one stop. Nothing
// here is persisted; expiry is the only lifecycle.
type TypingCoordinator struct {
	mu       sync.Mutex
	episodes map[typingKey]*typingEpisode

	timeout  time.Duration
	registry *ConnectionRegistry
	subs     *SubscriptionManager
	log      *slog.Logger
}

func NewTypingCoordinator(registry *ConnectionRegistry, subs *SubscriptionManager, timeout time.Duration, log *slog.Logger) *TypingCoordinator {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingCoordinator{
		episodes: make(map[typingKey]*typingEpisode),
		timeout:  timeout,
		registry: registry,
		subs:     subs,
		log:      log,
	}
}

// SetTyping applies a typing signal from userID on channelID and broadcasts
// the resulting state change, if any, to the channel's other subscribers.
// Broadcasts are emitted while t.mu is held, so subscribers observe them in
// state-transition order: a stop from an expired episode can never arrive
// after the start of the user's next one. Sinks never block, so holding the
// mutex across the sends is safe.
func (t *TypingCoordinator) SetTyping(userID, channelID string, isTyping bool) {
	key := typingKey{channelID: channelID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()
	ep, active := t.episodes[key]
	switch {
	case isTyping && active:
		// Refresh: re-arm without rebroadcast. The generation bump
		// invalidates an expiry callback that already fired but has not
		// run yet, and the replacement timer carries the new generation.
		ep.gen++
		gen := ep.gen
		ep.timer.Stop()
		ep.timer = time.AfterFunc(t.timeout, func() { t.expire(key, gen) })

	case isTyping:
		ep = &typingEpisode{}
		gen := ep.gen
		ep.timer = time.AfterFunc(t.timeout, func() { t.expire(key, gen) })
		t.episodes[key] = ep
		t.broadcast(channelID, userID, true)

	case active:
		ep.timer.Stop()
		delete(t.episodes, key)
		t.broadcast(channelID, userID, false)

	default:
		// Stop while idle: nothing to do.
	}
}

func (t *TypingCoordinator) expire(key typingKey, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ep, ok := t.episodes[key]
	if !ok || ep.gen != gen {
		return
	}
	delete(t.episodes, key)
	t.broadcast(key.channelID, key.userID, false)
}

// broadcast sends typing_changed to every subscriber of the channel except
// the typist's own connections. Called with t.mu held. Delivery failures
// are advisory-state noise and are absorbed.
func (t *TypingCoordinator) broadcast(channelID, userID string, isTyping bool) {
	frame, err := model.EncodeFrame(model.FrameTypingChanged, model.TypingChanged{
		ChannelID: channelID,
		UserID:    userID,
		IsTyping:  isTyping,
	})
	if err != nil {
		t.log.Error("encode typing change", "error", err)
		return
	}

	for _, connID := range t.subs.MembersOf(channelID) {
		owner, ok := t.registry.OwnerOf(connID)
		if !ok || owner == userID {
			continue
		}
		if sink := t.registry.SinkOf(connID); sink != nil {
			sink.Send(frame)
		}
	}
}
