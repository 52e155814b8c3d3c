// Package engine implements the real-time messaging core: connection and
// presence tracking, channel subscription, ordered message fan-out,
// ephemeral typing state, and unread/read bookkeeping. It owns all shared
// mutable state behind narrow, per-key-locked components; durable storage,
// identity verification, and transport live in collaborator packages.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mahaj/vconnect/pkg/model"
)

// Options carries the collaborators and tunables the engine is built from.
// Repo and IDs are required; the rest default to off or to package
// constants.
type Options struct {
	Repo          Repository
	IDs           IDGenerator
	PresenceStore PresenceStore // optional write-through
	Notifier      Notifier      // optional offline signals
	TypingTimeout time.Duration
	Log           *slog.Logger
}

// Engine wires the core components together and owns the connection
// lifecycle. Constructed at service start, torn down with the process; no
// ambient globals.
type Engine struct {
	Registry *ConnectionRegistry
	Presence *PresenceTracker
	Subs     *SubscriptionManager
	Router   *MessageRouter
	Typing   *TypingCoordinator
	Receipts *ReadReceiptTracker

	repo Repository
	log  *slog.Logger
}

func New(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	registry := NewConnectionRegistry()
	presence := NewPresenceTracker(opts.PresenceStore, log)
	registry.SetPresenceListener(presence)

	subs := NewSubscriptionManager()
	receipts := NewReadReceiptTracker(opts.Repo, registry, subs, log)
	router := NewMessageRouter(opts.Repo, registry, subs, receipts, opts.IDs, log)
	if opts.Notifier != nil {
		router.SetNotifier(opts.Notifier)
	}
	typing := NewTypingCoordinator(registry, subs, opts.TypingTimeout, log)

	e := &Engine{
		Registry: registry,
		Presence: presence,
		Subs:     subs,
		Router:   router,
		Typing:   typing,
		Receipts: receipts,
		repo:     opts.Repo,
		log:      log,
	}
	presence.SetBroadcast(e.broadcastPresence)
	return e
}

// Connect registers a new authenticated connection and returns its id.
func (e *Engine) Connect(userID string, sink Sink) string {
	connID := uuid.NewString()
	e.Registry.Register(userID, connID, sink)
	e.log.Info("connection registered", "user_id", userID, "conn_id", connID)
	return connID
}

// Disconnect tears a connection down: subscriptions first, then the
// registry entry, so no other connection can observe a ghost membership
// for a connection that is already gone.
func (e *Engine) Disconnect(connID string) {
	e.Subs.LeaveAll(connID)
	e.Registry.Unregister(connID)
	e.log.Info("connection unregistered", "conn_id", connID)
}

// JoinChannel subscribes a connection to a channel after access checks:
// conversation channels admit participants only. Room membership is open.
func (e *Engine) JoinChannel(ctx context.Context, connID, userID, channelID string) error {
	kind, id, ok := model.ParseChannel(channelID)
	if !ok {
		return ErrInvalidChannel
	}
	if kind == model.KindConversation {
		conv, err := e.repo.FindConversation(ctx, id)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(userID) {
			return ErrNotParticipant
		}
	}
	e.Subs.Join(connID, channelID)
	return nil
}

// LeaveChannel drops one subscription; unknown memberships are a no-op.
func (e *Engine) LeaveChannel(connID, channelID string) {
	e.Subs.Leave(connID, channelID)
}

// broadcastPresence pushes presence_changed to every live connection.
func (e *Engine) broadcastPresence(p model.PresenceChanged) {
	frame, err := model.EncodeFrame(model.FramePresenceChanged, p)
	if err != nil {
		e.log.Error("encode presence change", "error", err)
		return
	}
	e.Registry.EachSink(func(_ string, sink Sink) {
		sink.Send(frame)
	})
}
