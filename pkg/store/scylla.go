// Package store is the ScyllaDB-backed persistence collaborator: messages,
// conversations, and unread counters. It satisfies engine.Repository and
// additionally serves the API's history and conversation listings.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mahaj/vconnect/pkg/db"
	"github.com/mahaj/vconnect/pkg/engine"
	"github.com/mahaj/vconnect/pkg/model"
)

type Store struct {
	session *db.Session
	log     *slog.Logger
}

func New(session *db.Session, log *slog.Logger) *Store {
	return &Store{session: session, log: log}
}

// InsertMessage persists one message. For conversation messages it also
// refreshes both participants' conversation listing rows.
func (s *Store) InsertMessage(ctx context.Context, msg *model.Message) error {
	const q = `INSERT INTO messages
		(channel_id, id, sender_id, kind, content, ts, read_by, delivered, edited, edited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	err := s.session.Query(q,
		msg.ChannelID, msg.ID, msg.SenderID, string(msg.Kind), msg.Content,
		msg.Timestamp, msg.ReadBy, msg.Delivered, msg.Edited, msg.EditedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert message %d: %w", msg.ID, err)
	}

	if msg.Kind == model.KindConversation {
		s.touchConversationListings(ctx, msg)
	}
	return nil
}

// touchConversationListings upserts the per-user conversation rows that
// back the inbox listing. Failures here degrade the listing only, never the
// send, so they are logged and absorbed.
func (s *Store) touchConversationListings(ctx context.Context, msg *model.Message) {
	_, conversationID, ok := model.ParseChannel(msg.ChannelID)
	if !ok {
		return
	}
	conv, err := s.FindConversation(ctx, conversationID)
	if err != nil {
		s.log.Warn("conversation listing refresh failed",
			"conversation_id", conversationID, "error", err)
		return
	}

	const q = `INSERT INTO user_conversations
		(user_id, conversation_id, other_user_id, last_updated, last_sender, last_content)
		VALUES (?, ?, ?, ?, ?, ?)`
	for _, userID := range conv.Participants {
		other, _ := conv.OtherParticipant(userID)
		if err := s.session.Query(q,
			userID, conversationID, other, msg.Timestamp, msg.SenderID, msg.Content,
		).WithContext(ctx).Exec(); err != nil {
			s.log.Warn("conversation listing upsert failed",
				"user_id", userID, "conversation_id", conversationID, "error", err)
		}
	}
}

func (s *Store) FindConversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	var conv model.Conversation
	err := s.session.Query(
		`SELECT id, participants, created_at FROM conversations WHERE id = ?`,
		conversationID,
	).WithContext(ctx).Scan(&conv.ID, &conv.Participants, &conv.CreatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return model.Conversation{}, engine.ErrConversationNotFound
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("find conversation %s: %w", conversationID, err)
	}
	return conv, nil
}

// CreateOrGetConversation returns the existing two-party conversation for
// the pair, creating it on first contact. The pair key is order-independent.
func (s *Store) CreateOrGetConversation(ctx context.Context, userID, otherID string) (model.Conversation, error) {
	if userID == otherID {
		return model.Conversation{}, engine.ErrSelfConversation
	}
	pair := pairKey(userID, otherID)

	var existingID string
	err := s.session.Query(
		`SELECT conversation_id FROM conversation_lookup WHERE user_pair = ?`, pair,
	).WithContext(ctx).Scan(&existingID)
	if err == nil {
		return s.FindConversation(ctx, existingID)
	}
	if !errors.Is(err, gocql.ErrNotFound) {
		return model.Conversation{}, fmt.Errorf("lookup conversation pair %s: %w", pair, err)
	}

	newID := uuid.NewString()
	applied, err := s.session.Query(
		`INSERT INTO conversation_lookup (user_pair, conversation_id) VALUES (?, ?) IF NOT EXISTS`,
		pair, newID,
	).WithContext(ctx).ScanCAS(&existingID)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("reserve conversation pair %s: %w", pair, err)
	}
	if !applied {
		// Lost the race: someone else created it between lookup and insert.
		return s.FindConversation(ctx, existingID)
	}

	conv := model.Conversation{
		ID:           newID,
		Participants: []string{userID, otherID},
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.session.Query(
		`INSERT INTO conversations (id, participants, created_at) VALUES (?, ?, ?)`,
		conv.ID, conv.Participants, conv.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		return model.Conversation{}, fmt.Errorf("insert conversation %s: %w", conv.ID, err)
	}
	return conv, nil
}

func (s *Store) UpdateUnreadCounter(ctx context.Context, conversationID, userID string, delta int) error {
	return s.session.Query(
		`UPDATE conversation_counters SET unread_count = unread_count + ?
		 WHERE conversation_id = ? AND user_id = ?`,
		delta, conversationID, userID,
	).WithContext(ctx).Exec()
}

// ResetUnreadCounter deletes the counter row; with Scylla counter columns
// deletion is the reset.
func (s *Store) ResetUnreadCounter(ctx context.Context, conversationID, userID string) error {
	return s.session.Query(
		`DELETE FROM conversation_counters WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID,
	).WithContext(ctx).Exec()
}

// MarkConversationRead stamps userID into the read_by map of every message
// in the conversation they have not read and did not send. Messages already
// carrying the marker are untouched, which makes the operation idempotent.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	channelID := model.ConversationChannel(conversationID)
	iter := s.session.Query(
		`SELECT id, sender_id, read_by FROM messages WHERE channel_id = ?`, channelID,
	).WithContext(ctx).Iter()

	var unread []int64
	var id int64
	var senderID string
	var readBy map[string]time.Time
	for iter.Scan(&id, &senderID, &readBy) {
		if senderID == userID {
			continue
		}
		if _, read := readBy[userID]; read {
			continue
		}
		unread = append(unread, id)
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("scan unread messages %s: %w", conversationID, err)
	}

	for _, messageID := range unread {
		if err := s.session.Query(
			`UPDATE messages SET read_by[?] = ? WHERE channel_id = ? AND id = ?`,
			userID, at, channelID, messageID,
		).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("mark message %d read: %w", messageID, err)
		}
	}
	return nil
}

// ListMessages returns up to limit messages of a channel in ascending
// timestamp order. beforeID > 0 pages backwards from that message id.
func (s *Store) ListMessages(ctx context.Context, channelID string, limit int, beforeID int64) ([]model.Message, error) {
	q := `SELECT channel_id, id, sender_id, kind, content, ts, read_by, delivered, edited FROM messages WHERE channel_id = ?`
	args := []any{channelID}
	if beforeID > 0 {
		q += ` AND id < ?`
		args = append(args, beforeID)
	}
	q += ` LIMIT ?`
	args = append(args, limit)

	iter := s.session.Query(q, args...).WithContext(ctx).Iter()
	var messages []model.Message
	var msg model.Message
	var kind string
	for iter.Scan(&msg.ChannelID, &msg.ID, &msg.SenderID, &kind, &msg.Content,
		&msg.Timestamp, &msg.ReadBy, &msg.Delivered, &msg.Edited) {
		msg.Kind = model.ChannelKind(kind)
		messages = append(messages, msg)
		msg = model.Message{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list messages %s: %w", channelID, err)
	}

	// The clustering order is newest first; callers want chronological.
	return lo.Reverse(messages), nil
}

// ConversationSummary is one row of a user's inbox listing.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	OtherUserID    string    `json:"other_user_id"`
	LastUpdated    time.Time `json:"last_updated"`
	LastSender     string    `json:"last_sender"`
	LastContent    string    `json:"last_content"`
	UnreadCount    int64     `json:"unread_count"`
}

// ListConversations returns the user's conversations with unread counts.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	iter := s.session.Query(
		`SELECT conversation_id, other_user_id, last_updated, last_sender, last_content
		 FROM user_conversations WHERE user_id = ?`, userID,
	).WithContext(ctx).Iter()

	var out []ConversationSummary
	var c ConversationSummary
	for iter.Scan(&c.ConversationID, &c.OtherUserID, &c.LastUpdated, &c.LastSender, &c.LastContent) {
		var count int64
		if err := s.session.Query(
			`SELECT unread_count FROM conversation_counters WHERE conversation_id = ? AND user_id = ?`,
			c.ConversationID, userID,
		).WithContext(ctx).Scan(&count); err == nil {
			c.UnreadCount = count
		}
		out = append(out, c)
		c = ConversationSummary{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list conversations for %s: %w", userID, err)
	}
	return out, nil
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, ":")
}
