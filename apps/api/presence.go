package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mahaj/vconnect/pkg/model"
)

// presenceDirectory is the slice of the presence store these handlers read.
type presenceDirectory interface {
	ChannelMembers(ctx context.Context, channelID string) ([]string, error)
	Online(ctx context.Context, userID string) (bool, error)
	LastSeen(ctx context.Context, userID string) (time.Time, error)
	OnlineUsers(ctx context.Context) ([]string, error)
}

// ChannelUsersHandler serves the member set of a channel from Redis.
// Route: /channels/{id}/users, parsed manually.
func ChannelUsersHandler(ps presenceDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(r.URL.Path, "/")
		if len(pathParts) < 4 || pathParts[3] != "users" {
			http.Error(w, "Invalid path", http.StatusBadRequest)
			return
		}
		channelID := pathParts[2]

		users, err := ps.ChannelMembers(r.Context(), channelID)
		if err != nil {
			http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(users)
	}
}

// OnlineUsersHandler lists every user currently online.
// Route: /users/online.
func OnlineUsersHandler(ps presenceDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := ps.OnlineUsers(r.Context())
		if err != nil {
			http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(users)
	}
}

// UserPresenceHandler serves one user's online flag and last-seen time.
// Route: /users/{id}/presence.
func UserPresenceHandler(ps presenceDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(r.URL.Path, "/")
		if len(pathParts) < 4 || pathParts[3] != "presence" {
			http.Error(w, "Invalid path", http.StatusBadRequest)
			return
		}
		userID := pathParts[2]

		online, err := ps.Online(r.Context(), userID)
		if err != nil {
			http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
			return
		}
		lastSeen, err := ps.LastSeen(r.Context(), userID)
		if err != nil {
			http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.Identity{
			UserID:   userID,
			Online:   online,
			LastSeen: lastSeen,
		})
	}
}
