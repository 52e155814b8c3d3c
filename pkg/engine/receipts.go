package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mahaj/vconnect/pkg/model"
)

type counterKey struct {
	conversationID string
	userID         string
}

func (k counterKey) String() string {
	return k.conversationID + "/" + k.userID
}

// ReadReceiptTracker owns the per-user, per-conversation unread counters and
// the mark-as-read flow. All mutations of one (conversation, user) counter
// serialize on its key lock, which keeps the counter non-negative and
// MarkRead idempotent under concurrent calls.
type ReadReceiptTracker struct {
	locks  *keyedMutex
	shards [shardCount]struct {
		mu       sync.RWMutex
		counters map[counterKey]int64
	}

	repo     Repository
	registry *ConnectionRegistry
	subs     *SubscriptionManager
	now      func() time.Time
	log      *slog.Logger
}

func NewReadReceiptTracker(repo Repository, registry *ConnectionRegistry, subs *SubscriptionManager, log *slog.Logger) *ReadReceiptTracker {
	t := &ReadReceiptTracker{
		locks:    newKeyedMutex(),
		repo:     repo,
		registry: registry,
		subs:     subs,
		now:      time.Now,
		log:      log,
	}
	for i := range t.shards {
		t.shards[i].counters = make(map[counterKey]int64)
	}
	return t
}

// Increment bumps the unread counter for one recipient of a conversation
// message. Called by the router after the message persisted. The stored
// counter is written through best-effort; the in-memory value is
// authoritative for the live engine.
func (t *ReadReceiptTracker) Increment(ctx context.Context, conversationID, userID string) {
	key := counterKey{conversationID: conversationID, userID: userID}
	unlock := t.locks.Lock(key.String())
	defer unlock()

	s := &t.shards[shardIndex(key.String())]
	s.mu.Lock()
	s.counters[key]++
	s.mu.Unlock()

	if err := t.repo.UpdateUnreadCounter(ctx, conversationID, userID, 1); err != nil {
		t.log.Warn("unread counter write-through failed",
			"conversation_id", conversationID, "user_id", userID, "error", err)
	}
}

// Unread returns the current unread count for (conversationID, userID).
func (t *ReadReceiptTracker) Unread(conversationID, userID string) int64 {
	key := counterKey{conversationID: conversationID, userID: userID}
	s := &t.shards[shardIndex(key.String())]
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[key]
}

// MarkRead marks every message in the conversation addressed to userID as
// read, resets the unread counter to zero, and broadcasts a read_receipt to
// the other subscribers of the conversation channel. Idempotent: a repeat
// call with no new messages leaves the counter at zero and emits the same
// broadcast.
func (t *ReadReceiptTracker) MarkRead(ctx context.Context, userID, conversationID string) error {
	conv, err := t.repo.FindConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}

	key := counterKey{conversationID: conversationID, userID: userID}
	unlock := t.locks.Lock(key.String())

	readAt := t.now()
	if err := t.repo.MarkConversationRead(ctx, conversationID, userID, readAt); err != nil {
		unlock()
		return fmt.Errorf("mark conversation read: %w", err)
	}
	if err := t.repo.ResetUnreadCounter(ctx, conversationID, userID); err != nil {
		t.log.Warn("unread counter reset write-through failed",
			"conversation_id", conversationID, "user_id", userID, "error", err)
	}

	s := &t.shards[shardIndex(key.String())]
	s.mu.Lock()
	s.counters[key] = 0
	s.mu.Unlock()
	unlock()

	t.broadcastReceipt(conversationID, userID, readAt)
	return nil
}

func (t *ReadReceiptTracker) broadcastReceipt(conversationID, userID string, readAt time.Time) {
	frame, err := model.EncodeFrame(model.FrameReadReceipt, model.ReadReceipt{
		ConversationID: conversationID,
		UserID:         userID,
		ReadAt:         readAt,
	})
	if err != nil {
		t.log.Error("encode read receipt", "error", err)
		return
	}

	channelID := model.ConversationChannel(conversationID)
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
