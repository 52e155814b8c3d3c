package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

type LoginResponse struct {
	Token string `json:"token"`
}

type ConversationResponse struct {
	ID string `json:"id"`
}

func main() {
	apiAddr := "http://localhost:8081"

	// 1. Login
	reqBody, _ := json.Marshal(map[string]string{"user_id": "test_user"})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Token: %s...\n", loginResp.Token[:10])

	// 2. Open a conversation with a second user
	log.Println("Opening conversation with test_peer...")
	convBody, _ := json.Marshal(map[string]string{"participant_id": "test_peer"})
	req, _ := http.NewRequest("POST", apiAddr+"/conversations", bytes.NewBuffer(convBody))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer "+loginResp.Token)

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("Conversation request failed:", err)
	}
	defer resp.Body.Close()

	var conv ConversationResponse
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		log.Fatal(err)
	}
	log.Printf("Conversation: %s", conv.ID)

	// 3. Get history for the conversation channel
	log.Println("Fetching history...")
	req, _ = http.NewRequest("GET", apiAddr+"/history?channel_id=conversation:"+conv.ID, nil)
	req.Header.Add("Authorization", "Bearer "+loginResp.Token)

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("History request failed:", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	log.Printf("History: %s", string(body))

	// 4. List conversations
	log.Println("Listing conversations...")
	req, _ = http.NewRequest("GET", apiAddr+"/conversations", nil)
	req.Header.Add("Authorization", "Bearer "+loginResp.Token)

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("Conversations request failed:", err)
	}
	defer resp.Body.Close()

	body, _ = io.ReadAll(resp.Body)
	log.Printf("Conversations: %s", string(body))
}
