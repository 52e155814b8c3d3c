package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// FrameType tags the frames exchanged over a websocket connection. The set
// is closed: the gateway dispatcher switches over every inbound kind and
// rejects anything else.
type FrameType string

// Inbound (client to server).
const (
	FrameJoinChannel  FrameType = "join_channel"
	FrameLeaveChannel FrameType = "leave_channel"
	FrameSendMessage  FrameType = "send_message"
	FrameSetTyping    FrameType = "set_typing"
	FrameMarkRead     FrameType = "mark_read"
)

// Outbound (server to client).
const (
	FrameMessageReceived FrameType = "message_received"
	FrameTypingChanged   FrameType = "typing_changed"
	FrameReadReceipt     FrameType = "read_receipt"
	FramePresenceChanged FrameType = "presence_changed"
	FrameError           FrameType = "error"
)

// Frame is the wire envelope: a type tag plus a type-specific payload.
type Frame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinChannel struct {
	ChannelID string `json:"channel_id"`
}

type LeaveChannel struct {
	ChannelID string `json:"channel_id"`
}

type SendMessage struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

type SetTyping struct {
	ChannelID string `json:"channel_id"`
	IsTyping  bool   `json:"is_typing"`
}

type MarkRead struct {
	ConversationID string `json:"conversation_id"`
}

type TypingChanged struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	IsTyping  bool   `json:"is_typing"`
}

type ReadReceipt struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

type PresenceChanged struct {
	UserID   string    `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeFrame marshals a payload into a tagged frame ready for the wire.
func EncodeFrame(t FrameType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Frame{Type: t, Payload: raw})
}

// DecodePayload unmarshals a frame's payload into dst.
func DecodePayload[T any](f Frame) (T, error) {
	var dst T
	if err := json.Unmarshal(f.Payload, &dst); err != nil {
		return dst, fmt.Errorf("decode %s payload: %w", f.Type, err)
	}
	return dst, nil
}
