package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mahaj/vconnect/pkg/model"
)

// PresenceTracker derives online/offline state from the registry's
// connection-count transitions. lastSeen is advanced only when a user goes
// offline and is monotonically non-decreasing; while a user is connected it
// stays at the previous disconnect time.
type PresenceTracker struct {
	shards [shardCount]struct {
		mu    sync.RWMutex
		users map[string]model.Identity
	}

	store     PresenceStore // optional write-through, best effort
	broadcast func(model.PresenceChanged)
	now       func() time.Time
	log       *slog.Logger
}

func NewPresenceTracker(store PresenceStore, log *slog.Logger) *PresenceTracker {
	t := &PresenceTracker{
		store: store,
		now:   time.Now,
		log:   log,
	}
	for i := range t.shards {
		t.shards[i].users = make(map[string]model.Identity)
	}
	return t
}

// SetBroadcast wires the outbound presence_changed emitter.
func (t *PresenceTracker) SetBroadcast(fn func(model.PresenceChanged)) {
	t.broadcast = fn
}

// OnConnect is invoked by the registry on a user's 0→1 connection
// transition. The registry serializes OnConnect/OnDisconnect per user.
func (t *PresenceTracker) OnConnect(userID string) {
	s := &t.shards[shardIndex(userID)]
	s.mu.Lock()
	id := s.users[userID]
	id.UserID = userID
	id.Online = true
	s.users[userID] = id
	s.mu.Unlock()

	if t.store != nil {
		if err := t.store.SetOnline(context.Background(), userID); err != nil {
			t.log.Warn("presence store set online failed", "user_id", userID, "error", err)
		}
	}
	t.emit(id)
}

// OnDisconnect is invoked by the registry on a user's 1→0 connection
// transition. Advances lastSeen to the disconnect time.
func (t *PresenceTracker) OnDisconnect(userID string) {
	now := t.now()

	s := &t.shards[shardIndex(userID)]
	s.mu.Lock()
	id := s.users[userID]
	id.UserID = userID
	id.Online = false
	if now.After(id.LastSeen) {
		id.LastSeen = now
	}
	s.users[userID] = id
	s.mu.Unlock()

	if t.store != nil {
		if err := t.store.SetOffline(context.Background(), userID, id.LastSeen); err != nil {
			t.log.Warn("presence store set offline failed", "user_id", userID, "error", err)
		}
	}
	t.emit(id)
}

// Identity returns the tracked presence state for a user. ok is false for
// users that never connected.
func (t *PresenceTracker) Identity(userID string) (model.Identity, bool) {
	s := &t.shards[shardIndex(userID)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.users[userID]
	return id, ok
}

func (t *PresenceTracker) emit(id model.Identity) {
	if t.broadcast == nil {
		return
	}
	t.broadcast(model.PresenceChanged{
		UserID:   id.UserID,
		Online:   id.Online,
		LastSeen: id.LastSeen,
	})
}
