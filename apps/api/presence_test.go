package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/vconnect/pkg/model"
)

type stubPresence struct {
	online   []string
	members  map[string][]string
	lastSeen map[string]time.Time
}

func (s *stubPresence) ChannelMembers(_ context.Context, channelID string) ([]string, error) {
	return s.members[channelID], nil
}

func (s *stubPresence) Online(_ context.Context, userID string) (bool, error) {
	for _, u := range s.online {
		if u == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubPresence) LastSeen(_ context.Context, userID string) (time.Time, error) {
	return s.lastSeen[userID], nil
}

func (s *stubPresence) OnlineUsers(context.Context) ([]string, error) {
	return s.online, nil
}

func Test_Online_Users_Listing(t *testing.T) {
	req := require.New(t)
	ps := &stubPresence{online: []string{"alice", "bob"}}

	rec := httptest.NewRecorder()
	OnlineUsersHandler(ps)(rec, httptest.NewRequest("GET", "/users/online", nil))

	req.Equal(http.StatusOK, rec.Code)
	var users []string
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &users))
	req.Equal([]string{"alice", "bob"}, users)
}

func Test_User_Presence_Lookup(t *testing.T) {
	req := require.New(t)
	seen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ps := &stubPresence{
		online:   []string{"alice"},
		lastSeen: map[string]time.Time{"bob": seen},
	}

	rec := httptest.NewRecorder()
	UserPresenceHandler(ps)(rec, httptest.NewRequest("GET", "/users/bob/presence", nil))

	req.Equal(http.StatusOK, rec.Code)
	var id model.Identity
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &id))
	req.Equal("bob", id.UserID)
	req.False(id.Online)
	req.Equal(seen, id.LastSeen)

	rec = httptest.NewRecorder()
	UserPresenceHandler(ps)(rec, httptest.NewRequest("GET", "/users/bob/unknown", nil))
	req.Equal(http.StatusBadRequest, rec.Code)
}

func Test_Channel_Users_Lookup(t *testing.T) {
	req := require.New(t)
	ps := &stubPresence{
		members: map[string][]string{"room:general": {"alice", "clara"}},
	}

	rec := httptest.NewRecorder()
	ChannelUsersHandler(ps)(rec, httptest.NewRequest("GET", "/channels/room:general/users", nil))

	req.Equal(http.StatusOK, rec.Code)
	var users []string
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &users))
	req.Equal([]string{"alice", "clara"}, users)
}
