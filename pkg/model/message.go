package model

import (
	"strings"
	"time"
)

// ChannelKind discriminates the two broadcast domains: name-addressed rooms
// and two-party conversations.
type ChannelKind string

const (
	KindRoom         ChannelKind = "room"
	KindConversation ChannelKind = "conversation"
)

const (
	roomPrefix         = "room:"
	conversationPrefix = "conversation:"
)

// RoomChannel returns the channel id for a named room.
func RoomChannel(name string) string {
	return roomPrefix + name
}

// ConversationChannel returns the channel id for a conversation.
func ConversationChannel(conversationID string) string {
	return conversationPrefix + conversationID
}

// ParseChannel splits a channel id into its kind and bare identifier
// (room name or conversation id). ok is false for malformed ids.
func ParseChannel(channelID string) (kind ChannelKind, id string, ok bool) {
	switch {
	case strings.HasPrefix(channelID, roomPrefix):
		id = channelID[len(roomPrefix):]
		return KindRoom, id, id != ""
	case strings.HasPrefix(channelID, conversationPrefix):
		id = channelID[len(conversationPrefix):]
		return KindConversation, id, id != ""
	default:
		return "", "", false
	}
}

// Message is a persisted chat message. Timestamp is the server-assigned
// ordering key, strictly increasing per channel; it is never taken from the
// client. ReadBy maps reader ids to the time they marked the message read.
type Message struct {
	ID        int64                `json:"id"`
	ChannelID string               `json:"channel_id"`
	Kind      ChannelKind          `json:"channel_kind"`
	SenderID  string               `json:"sender_id"`
	Content   string               `json:"content"`
	Timestamp time.Time            `json:"timestamp"`
	ReadBy    map[string]time.Time `json:"read_by,omitempty"`
	Delivered bool                 `json:"delivered"`
	Edited    bool                 `json:"edited,omitempty"`
	EditedAt  *time.Time           `json:"edited_at,omitempty"`
}

// Conversation is a private channel between exactly two users.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is one of the participants.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID.
func (c Conversation) OtherParticipant(userID string) (string, bool) {
	for _, p := range c.Participants {
		if p != userID {
			return p, true
		}
	}
	return "", false
}

// Identity is the presence view of a user. Users are soft entities: an
// Identity is created at first authenticated connection and never deleted.
type Identity struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}
