package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mahaj/vconnect/pkg/model"
)

// IDGenerator produces globally unique, roughly time-ordered message ids.
// Satisfied by the snowflake node.
type IDGenerator interface {
	Generate() int64
}

// MessageRouter validates, orders, persists, and fans out messages.
//
// All sends on one channel serialize on that channel's key lock: the
// message id and server timestamp are assigned, the message persisted,
// and the fan-out completed under it, so every subscriber observes the
// same relative order as the persisted order, and id order matches
// timestamp order within a channel (history pages by id). Sends on
// distinct channels never contend. Persistence failure aborts before any
// broadcast. Best-effort side effects (counter write-through, offline
// notification) run after the lock is released.
type MessageRouter struct {
	channelLocks *keyedMutex
	clockShards  [shardCount]struct {
		mu   sync.Mutex
		last map[string]int64 // channelID -> last assigned unix nanos
	}

	repo     Repository
	registry *ConnectionRegistry
	subs     *SubscriptionManager
	receipts *ReadReceiptTracker
	notifier Notifier // optional
	ids      IDGenerator
	now      func() time.Time
	log      *slog.Logger
}

func NewMessageRouter(repo Repository, registry *ConnectionRegistry, subs *SubscriptionManager, receipts *ReadReceiptTracker, ids IDGenerator, log *slog.Logger) *MessageRouter {
	r := &MessageRouter{
		channelLocks: newKeyedMutex(),
		repo:         repo,
		registry:     registry,
		subs:         subs,
		receipts:     receipts,
		ids:          ids,
		now:          time.Now,
		log:          log,
	}
	for i := range r.clockShards {
		r.clockShards[i].last = make(map[string]int64)
	}
	return r
}

// SetNotifier wires the optional offline-notification producer.
func (r *MessageRouter) SetNotifier(n Notifier) {
	r.notifier = n
}

// SendRoomMessage persists and fans out a message to a named room.
func (r *MessageRouter) SendRoomMessage(ctx context.Context, senderID, room, content string) (model.Message, error) {
	content, err := validateContent(senderID, content)
	if err != nil {
		return model.Message{}, err
	}
	return r.deliver(ctx, model.Message{
		ChannelID: model.RoomChannel(room),
		Kind:      model.KindRoom,
		SenderID:  senderID,
		Content:   content,
	}, nil)
}

// SendConversationMessage persists and fans out a message to a two-party
// conversation, then bumps the unread counter of the other participant and,
// if they have no live connection, emits the best-effort offline signal.
func (r *MessageRouter) SendConversationMessage(ctx context.Context, senderID, conversationID, content string) (model.Message, error) {
	content, err := validateContent(senderID, content)
	if err != nil {
		return model.Message{}, err
	}

	conv, err := r.repo.FindConversation(ctx, conversationID)
	if err != nil {
		return model.Message{}, err
	}
	if !conv.HasParticipant(senderID) {
		return model.Message{}, ErrNotParticipant
	}

	msg := model.Message{
		ChannelID: model.ConversationChannel(conversationID),
		Kind:      model.KindConversation,
		SenderID:  senderID,
		Content:   content,
		// The sender has trivially read their own message.
		ReadBy: map[string]time.Time{senderID: r.now()},
	}
	return r.deliver(ctx, msg, &conv)
}

// deliver runs the persist-then-broadcast sequence under the channel lock.
// The id is minted under the same lock as the timestamp: ids from one node
// are strictly increasing, so the id-clustered history table and the live
// fan-out agree on the relative order. conv is non-nil for conversation
// messages only.
func (r *MessageRouter) deliver(ctx context.Context, msg model.Message, conv *model.Conversation) (model.Message, error) {
	unlock := r.channelLocks.Lock(msg.ChannelID)

	msg.ID = r.ids.Generate()
	msg.Timestamp = r.nextTimestamp(msg.ChannelID)

	if err := r.repo.InsertMessage(ctx, &msg); err != nil {
		unlock()
		return model.Message{}, fmt.Errorf("persist message: %w", err)
	}

	r.fanOut(msg)
	unlock()

	// Counter write-through and the offline signal touch external systems
	// with their own timeouts; they must not hold up the next send on this
	// channel.
	if conv != nil {
		for _, participant := range conv.Participants {
			if participant == msg.SenderID {
				continue
			}
			r.receipts.Increment(ctx, conv.ID, participant)
			if len(r.registry.ConnectionsFor(participant)) == 0 {
				r.notifyOffline(ctx, participant, conv.ID, msg.SenderID)
			}
		}
	}
	return msg, nil
}

// nextTimestamp assigns the server-side ordering key for a channel:
// strictly greater than every timestamp previously assigned on it, even
// under identical clock reads.
func (r *MessageRouter) nextTimestamp(channelID string) time.Time {
	s := &r.clockShards[shardIndex(channelID)]
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := r.now().UnixNano()
	if last := s.last[channelID]; ts <= last {
		ts = last + 1
	}
	s.last[channelID] = ts
	return time.Unix(0, ts).UTC()
}

// fanOut delivers one copy of the message to every connection subscribed to
// the channel at this moment. Connections whose buffers are full drop the
// frame; they recover the message later from history.
func (r *MessageRouter) fanOut(msg model.Message) {
	frame, err := model.EncodeFrame(model.FrameMessageReceived, msg)
	if err != nil {
		r.log.Error("encode message frame", "channel_id", msg.ChannelID, "error", err)
		return
	}

	for _, connID := range r.subs.MembersOf(msg.ChannelID) {
		sink := r.registry.SinkOf(connID)
		if sink == nil {
			continue
		}
		if !sink.Send(frame) {
			r.log.Warn("dropping frame for slow connection",
				"conn_id", connID, "channel_id", msg.ChannelID, "message_id", msg.ID)
		}
	}
}

func (r *MessageRouter) notifyOffline(ctx context.Context, recipientID, conversationID, senderID string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyOffline(ctx, recipientID, conversationID, senderID); err != nil {
		r.log.Warn("offline notification failed",
			"recipient_id", recipientID, "conversation_id", conversationID, "error", err)
	}
}

func validateContent(senderID, content string) (string, error) {
	if senderID == "" {
		return "", ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}
