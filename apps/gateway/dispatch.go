package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mahaj/vconnect/pkg/engine"
	"github.com/mahaj/vconnect/pkg/model"
)

// handleFrame dispatches one inbound frame. The switch is the closed event
// surface: every inbound kind is handled, anything else is rejected with an
// error frame. Failures reach the sender only; nothing is broadcast.
func (c *Client) handleFrame(data []byte) {
	var frame model.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.sendError("bad_frame", "frame is not valid JSON")
		return
	}
	ctx := context.Background()

	switch frame.Type {
	case model.FrameJoinChannel:
		p, err := model.DecodePayload[model.JoinChannel](frame)
		if err != nil {
			c.sendError("bad_frame", err.Error())
			return
		}
		if err := c.engine.JoinChannel(ctx, c.connID, c.userID, p.ChannelID); err != nil {
			c.sendEngineError(err)
			return
		}
		if c.presence != nil {
			if err := c.presence.AddChannelMember(ctx, p.ChannelID, c.userID); err != nil {
				c.log.Warn("channel presence add failed", "channel_id", p.ChannelID, "error", err)
			}
		}

	case model.FrameLeaveChannel:
		p, err := model.DecodePayload[model.LeaveChannel](frame)
		if err != nil {
			c.sendError("bad_frame", err.Error())
			return
		}
		c.engine.LeaveChannel(c.connID, p.ChannelID)
		c.dropChannelPresence(p.ChannelID)

	case model.FrameSendMessage:
		p, err := model.DecodePayload[model.SendMessage](frame)
		if err != nil {
			c.sendError("bad_frame", err.Error())
			return
		}
		c.sendMessage(ctx, p)

	case model.FrameSetTyping:
		p, err := model.DecodePayload[model.SetTyping](frame)
		if err != nil {
			c.sendError("bad_frame", err.Error())
			return
		}
		c.engine.Typing.SetTyping(c.userID, p.ChannelID, p.IsTyping)

	case model.FrameMarkRead:
		p, err := model.DecodePayload[model.MarkRead](frame)
		if err != nil {
			c.sendError("bad_frame", err.Error())
			return
		}
		if err := c.engine.Receipts.MarkRead(ctx, c.userID, p.ConversationID); err != nil {
			c.sendEngineError(err)
		}

	default:
		c.sendError("unknown_frame_type", string(frame.Type))
	}
}

func (c *Client) sendMessage(ctx context.Context, p model.SendMessage) {
	kind, id, ok := model.ParseChannel(p.ChannelID)
	if !ok {
		c.sendEngineError(engine.ErrInvalidChannel)
		return
	}

	var err error
	switch kind {
	case model.KindRoom:
		_, err = c.engine.Router.SendRoomMessage(ctx, c.userID, id, p.Content)
	case model.KindConversation:
		_, err = c.engine.Router.SendConversationMessage(ctx, c.userID, id, p.Content)
	}
	if err != nil {
		c.sendEngineError(err)
	}
}

func (c *Client) sendError(code, message string) {
	frame, err := model.EncodeFrame(model.FrameError, model.ErrorInfo{Code: code, Message: message})
	if err != nil {
		c.log.Error("encode error frame", "error", err)
		return
	}
	c.Send(frame)
}

// sendEngineError maps the engine taxonomy onto wire error codes.
func (c *Client) sendEngineError(err error) {
	code := "internal_error"
	switch {
	case errors.Is(err, engine.ErrEmptyContent),
		errors.Is(err, engine.ErrContentTooLong),
		errors.Is(err, engine.ErrInvalidChannel),
		errors.Is(err, engine.ErrSelfConversation):
		code = "validation_error"
	case errors.Is(err, engine.ErrNotParticipant):
		code = "forbidden"
	case errors.Is(err, engine.ErrConversationNotFound):
		code = "not_found"
	case errors.Is(err, engine.ErrUnauthorized):
		code = "unauthorized"
	}
	c.sendError(code, err.Error())
}
