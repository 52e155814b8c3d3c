package engine

import (
	"context"
	"time"

	"github.com/mahaj/vconnect/pkg/model"
)

// Sink is the outbound side of a live connection. Send queues a frame and
// must never block; it reports false when the connection's buffer is full,
// in which case the frame is dropped for that connection.
type Sink interface {
	Send(frame []byte) bool
}

// Repository is the narrow persistence collaborator the engine writes
// through. Implementations live outside the engine (pkg/store); tests use
// an in-memory fake.
type Repository interface {
	// InsertMessage durably stores a message. A failure here aborts the
	// send before any broadcast.
	InsertMessage(ctx context.Context, msg *model.Message) error

	// FindConversation returns the conversation record or
	// ErrConversationNotFound.
	FindConversation(ctx context.Context, conversationID string) (model.Conversation, error)

	// UpdateUnreadCounter adds delta to the stored unread counter for
	// (conversationID, userID).
	UpdateUnreadCounter(ctx context.Context, conversationID, userID string, delta int) error

	// ResetUnreadCounter sets the stored unread counter to zero.
	ResetUnreadCounter(ctx context.Context, conversationID, userID string) error

	// MarkConversationRead records userID in the readBy set of every
	// message in the conversation not sent by userID and not already read
	// by them, stamped with at. Already-read messages are untouched, so
	// repeated calls are no-ops.
	MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) error
}

// Notifier emits the best-effort, at-most-once side-channel signal for a
// conversation message whose recipient has no live connection. The payload
// is an address (conversation and sender), never message content.
type Notifier interface {
	NotifyOffline(ctx context.Context, recipientID, conversationID, senderID string) error
}

// PresenceStore is the write-through store for presence state. Failures are
// logged and absorbed: the in-memory tracker stays authoritative.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
}
