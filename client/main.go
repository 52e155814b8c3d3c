package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahaj/vconnect/pkg/model"
)

type loginResponse struct {
	Token string `json:"token"`
}

func login(apiAddr, userID string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", err
	}
	return lr.Token, nil
}

// openConversation creates or fetches the two-party conversation with the
// peer and returns its channel id.
func openConversation(apiAddr, token, peerID string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"participant_id": peerID})
	req, _ := http.NewRequest("POST", apiAddr+"/conversations", bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("open conversation failed: %s", string(body))
	}

	var conv model.Conversation
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return "", err
	}
	return model.ConversationChannel(conv.ID), nil
}

func sendFrame(c *websocket.Conn, t model.FrameType, payload any) error {
	frame, err := model.EncodeFrame(t, payload)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, frame)
}

func printFrame(data []byte) {
	var frame model.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		fmt.Printf("\rReceived raw: %s\n> ", data)
		return
	}

	switch frame.Type {
	case model.FrameMessageReceived:
		msg, err := model.DecodePayload[model.Message](frame)
		if err == nil {
			fmt.Printf("\r%s: %s\n> ", msg.SenderID, msg.Content)
		}
	case model.FrameTypingChanged:
		ev, err := model.DecodePayload[model.TypingChanged](frame)
		if err == nil && ev.IsTyping {
			fmt.Printf("\r%s is typing...\n> ", ev.UserID)
		}
	case model.FramePresenceChanged:
		ev, err := model.DecodePayload[model.PresenceChanged](frame)
		if err == nil {
			state := "offline"
			if ev.Online {
				state = "online"
			}
			fmt.Printf("\r* %s is %s\n> ", ev.UserID, state)
		}
	case model.FrameReadReceipt:
		ev, err := model.DecodePayload[model.ReadReceipt](frame)
		if err == nil {
			fmt.Printf("\r* %s read the conversation\n> ", ev.UserID)
		}
	case model.FrameError:
		ev, err := model.DecodePayload[model.ErrorInfo](frame)
		if err == nil {
			fmt.Printf("\r! %s: %s\n> ", ev.Code, ev.Message)
		}
	}
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "gateway service address")
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	userID := flag.String("user", "user1", "user id")
	room := flag.String("room", "general", "room to join")
	dmUser := flag.String("dm", "", "user id to message privately (overrides -room)")
	flag.Parse()

	log.Printf("Logging in as %s...", *userID)
	token, err := login(*apiAddr, *userID)
	if err != nil {
		log.Fatal("Login failed:", err)
	}

	channelID := model.RoomChannel(*room)
	if *dmUser != "" {
		channelID, err = openConversation(*apiAddr, token, *dmUser)
		if err != nil {
			log.Fatal(err)
		}
	}

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	if err := sendFrame(c, model.FrameJoinChannel, model.JoinChannel{ChannelID: channelID}); err != nil {
		log.Fatal("join:", err)
	}
	log.Printf("joined %s", channelID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			printFrame(data)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			var err error
			switch {
			case text == "":
			case text == "/quit":
				close(interrupt)
				return
			case text == "/typing":
				err = sendFrame(c, model.FrameSetTyping, model.SetTyping{ChannelID: channelID, IsTyping: true})
			case text == "/stop":
				err = sendFrame(c, model.FrameSetTyping, model.SetTyping{ChannelID: channelID, IsTyping: false})
			case text == "/read":
				kind, id, ok := model.ParseChannel(channelID)
				if !ok || kind != model.KindConversation {
					fmt.Print("! /read works in conversations only\n> ")
					continue
				}
				err = sendFrame(c, model.FrameMarkRead, model.MarkRead{ConversationID: id})
			case strings.HasPrefix(text, "/join "):
				channelID = model.RoomChannel(strings.TrimSpace(strings.TrimPrefix(text, "/join ")))
				err = sendFrame(c, model.FrameJoinChannel, model.JoinChannel{ChannelID: channelID})
			default:
				err = sendFrame(c, model.FrameSendMessage, model.SendMessage{ChannelID: channelID, Content: text})
			}
			if err != nil {
				log.Println("write:", err)
				return
			}
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")

			// Cleanly close the connection by sending a close message and then
			// waiting (with timeout) for the server to close the connection.
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
