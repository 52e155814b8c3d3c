package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mahaj/vconnect/pkg/auth"
	"github.com/mahaj/vconnect/pkg/engine"
	"github.com/mahaj/vconnect/pkg/store"
)

type ReadRequest struct {
	ConversationID string `json:"conversation_id"`
}

// ReadHandler is the HTTP form of mark-as-read: it updates the durable
// read state and resets the stored counter. The live read_receipt
// broadcast happens only for the websocket mark_read frame, which runs
// through the gateway's tracker.
func ReadHandler(s *store.Store, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req ReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
			http.Error(w, "conversation_id is required", http.StatusBadRequest)
			return
		}

		conv, err := s.FindConversation(r.Context(), req.ConversationID)
		if errors.Is(err, engine.ErrConversationNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !conv.HasParticipant(claims.UserID) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if err := s.MarkConversationRead(r.Context(), req.ConversationID, claims.UserID, time.Now().UTC()); err != nil {
			http.Error(w, "Failed to mark conversation read", http.StatusInternalServerError)
			return
		}
		if err := s.ResetUnreadCounter(r.Context(), req.ConversationID, claims.UserID); err != nil {
			log.Warn("unread counter reset failed",
				"conversation_id", req.ConversationID, "user_id", claims.UserID, "error", err)
		}

		w.WriteHeader(http.StatusOK)
	}
}
