package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mahaj/vconnect/pkg/auth"
	"github.com/mahaj/vconnect/pkg/engine"
	"github.com/mahaj/vconnect/pkg/store"
)

type CreateConversationRequest struct {
	ParticipantID string `json:"participant_id"`
}

// ConversationsHandler lists the caller's conversations (GET) or creates /
// returns the conversation with another user (POST).
func ConversationsHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		switch r.Method {
		case http.MethodGet:
			summaries, err := s.ListConversations(r.Context(), claims.UserID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(summaries)

		case http.MethodPost:
			var req CreateConversationRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
				http.Error(w, "participant_id is required", http.StatusBadRequest)
				return
			}
			conv, err := s.CreateOrGetConversation(r.Context(), claims.UserID, req.ParticipantID)
			if errors.Is(err, engine.ErrSelfConversation) {
				http.Error(w, "Cannot create conversation with yourself", http.StatusBadRequest)
				return
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(conv)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
