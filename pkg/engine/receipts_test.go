package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/vconnect/pkg/model"
)

// receiptHarness: alice and bob share conversation c1, both connected and
// subscribed to its channel.
type receiptHarness struct {
	engine    *Engine
	repo      *fakeRepo
	aliceSink *fakeSink
	bobSink   *fakeSink
}

func newReceiptHarness(t *testing.T) *receiptHarness {
	t.Helper()
	repo := newFakeRepo()
	repo.addConversation("c1", "alice", "bob")
	e := newTestEngine(repo)

	aliceSink, bobSink := &fakeSink{}, &fakeSink{}
	aliceConn := e.Connect("alice", aliceSink)
	bobConn := e.Connect("bob", bobSink)
	channel := model.ConversationChannel("c1")
	e.Subs.Join(aliceConn, channel)
	e.Subs.Join(bobConn, channel)

	return &receiptHarness{engine: e, repo: repo, aliceSink: aliceSink, bobSink: bobSink}
}

func Test_MarkRead_Resets_Counter_And_Broadcasts(t *testing.T) {
	req := require.New(t)
	h := newReceiptHarness(t)
	ctx := context.Background()

	_, err := h.engine.Router.SendConversationMessage(ctx, "alice", "c1", "hello")
	req.NoError(err)
	_, err = h.engine.Router.SendConversationMessage(ctx, "alice", "c1", "bob?")
	req.NoError(err)
	req.EqualValues(2, h.engine.Receipts.Unread("c1", "bob"))

	req.NoError(h.engine.Receipts.MarkRead(ctx, "bob", "c1"))

	req.Zero(h.engine.Receipts.Unread("c1", "bob"))
	req.Zero(h.repo.unreadPersisted("c1", "bob"))

	// Every stored message addressed to bob now carries his read marker.
	h.repo.mu.Lock()
	for _, msg := range h.repo.messages {
		req.Contains(msg.ReadBy, "bob")
	}
	h.repo.mu.Unlock()

	// Alice, the other subscriber, observes the receipt; bob does not
	// receive his own.
	receipts := h.aliceSink.byType(model.FrameReadReceipt)
	req.Len(receipts, 1)
	receipt, err := model.DecodePayload[model.ReadReceipt](receipts[0])
	req.NoError(err)
	req.Equal("c1", receipt.ConversationID)
	req.Equal("bob", receipt.UserID)
	req.False(receipt.ReadAt.IsZero())
	req.Empty(h.bobSink.byType(model.FrameReadReceipt))
}

func Test_MarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	h := newReceiptHarness(t)
	ctx := context.Background()

	_, err := h.engine.Router.SendConversationMessage(ctx, "alice", "c1", "hello")
	req.NoError(err)

	req.NoError(h.engine.Receipts.MarkRead(ctx, "bob", "c1"))
	req.NoError(h.engine.Receipts.MarkRead(ctx, "bob", "c1"))

	req.Zero(h.engine.Receipts.Unread("c1", "bob"), "counter stays at zero, never negative")
	req.Zero(h.repo.unreadPersisted("c1", "bob"))

	// The repeat emits the same observable broadcast shape.
	receipts := h.aliceSink.byType(model.FrameReadReceipt)
	req.Len(receipts, 2)
	second, err := model.DecodePayload[model.ReadReceipt](receipts[1])
	req.NoError(err)
	req.Equal("c1", second.ConversationID)
	req.Equal("bob", second.UserID)

	h.repo.mu.Lock()
	defer h.repo.mu.Unlock()
	for _, msg := range h.repo.messages {
		req.Contains(msg.ReadBy, "bob")
	}
}

func Test_MarkRead_Validates_Conversation_And_Membership(t *testing.T) {
	req := require.New(t)
	h := newReceiptHarness(t)
	ctx := context.Background()

	req.ErrorIs(h.engine.Receipts.MarkRead(ctx, "bob", "ghost"), ErrConversationNotFound)
	req.ErrorIs(h.engine.Receipts.MarkRead(ctx, "mallory", "c1"), ErrNotParticipant)
}

func Test_Unread_Then_Read_Round_Trip_While_Disconnected(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.addConversation("c1", "alice", "bob")
	e := newTestEngine(repo)
	ctx := context.Background()

	aliceSink := &fakeSink{}
	aliceConn := e.Connect("alice", aliceSink)
	e.Subs.Join(aliceConn, model.ConversationChannel("c1"))

	// Bob is disconnected: counter 0 -> 1.
	_, err := e.Router.SendConversationMessage(ctx, "alice", "c1", "ping")
	req.NoError(err)
	req.EqualValues(1, e.Receipts.Unread("c1", "bob"))

	// Bob comes back, subscribes, reads.
	bobSink := &fakeSink{}
	bobConn := e.Connect("bob", bobSink)
	e.Subs.Join(bobConn, model.ConversationChannel("c1"))
	req.NoError(e.Receipts.MarkRead(ctx, "bob", "c1"))

	req.Zero(e.Receipts.Unread("c1", "bob"))
	req.Len(aliceSink.byType(model.FrameReadReceipt), 1)
}
