package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahaj/vconnect/pkg/auth"
	"github.com/mahaj/vconnect/pkg/engine"
	"github.com/mahaj/vconnect/pkg/presence"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer: 1000 runes of content plus
	// envelope overhead.
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Client is the middleman between one websocket connection and the engine.
// It satisfies engine.Sink: outbound frames are queued on the buffered send
// channel and dropped when it is full.
type Client struct {
	engine   *engine.Engine
	presence *presence.Store

	conn   *websocket.Conn
	send   chan []byte
	connID string
	userID string
	log    *slog.Logger
}

// Send queues an outbound frame without blocking.
func (c *Client) Send(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// readPump pumps frames from the websocket connection into the dispatcher.
// Its deferred teardown runs LeaveAll/Unregister before the connection is
// gone for good, so no ghost membership survives.
func (c *Client) readPump() {
	defer func() {
		c.teardown()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", "conn_id", c.connID, "error", err)
			}
			break
		}
		c.handleFrame(data)
	}
}

// writePump pumps queued frames to the websocket connection and keeps the
// peer alive with pings. One frame per websocket message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) teardown() {
	// Mirror the channel member sets before the subscriptions disappear.
	for _, channelID := range c.engine.Subs.Channels(c.connID) {
		c.dropChannelPresence(channelID)
	}
	c.engine.Disconnect(c.connID)
}

// dropChannelPresence removes the user from a channel's Redis member set,
// unless another of their connections is still subscribed to it.
func (c *Client) dropChannelPresence(channelID string) {
	if c.presence == nil {
		return
	}
	for _, connID := range c.engine.Subs.MembersOf(channelID) {
		if connID == c.connID {
			continue
		}
		if owner, ok := c.engine.Registry.OwnerOf(connID); ok && owner == c.userID {
			return
		}
	}
	if err := c.presence.RemoveChannelMember(context.Background(), channelID, c.userID); err != nil {
		c.log.Warn("channel presence removal failed",
			"channel_id", channelID, "user_id", c.userID, "error", err)
	}
}

// serveWs authenticates the upgrade request and hands the connection to the
// engine. A missing or invalid credential refuses the connection before any
// state is mutated.
func serveWs(e *engine.Engine, ps *presence.Store, tokens *auth.Manager, sendBuffer int, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			log.Warn("websocket auth rejected", "error", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := &Client{
			engine:   e,
			presence: ps,
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
			userID:   claims.UserID,
			log:      log,
		}
		client.connID = e.Connect(claims.UserID, client)

		go client.writePump()
		go client.readPump()
	}
}
