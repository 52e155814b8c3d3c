package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mahaj/vconnect/pkg/model"
	"github.com/mahaj/vconnect/pkg/store"
)

const defaultHistoryLimit = 50

type HistoryResponse struct {
	Messages []model.Message `json:"messages"`
	HasMore  bool            `json:"has_more"`
}

// HistoryHandler serves paginated channel history, oldest first. The
// before parameter pages backwards from a message id.
func HistoryHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := r.URL.Query().Get("channel_id")
		if _, _, ok := model.ParseChannel(channelID); !ok {
			http.Error(w, "invalid channel_id", http.StatusBadRequest)
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		var before int64
		if raw := r.URL.Query().Get("before"); raw != "" {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				before = n
			}
		}

		messages, err := s.ListMessages(r.Context(), channelID, limit, before)
		if err != nil {
			http.Error(w, "Failed to retrieve history", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(HistoryResponse{
			Messages: messages,
			HasMore:  len(messages) == limit,
		})
	}
}
