package engine

import "sync"

// SubscriptionManager tracks which connections are subscribed to which
// channels. Join is idempotent, Leave on a channel that was never joined is
// a no-op, and LeaveAll tears down everything a disconnecting connection
// held. Channel and connection indexes are sharded independently so joins
// on distinct channels do not serialize.
type SubscriptionManager struct {
	channelShards [shardCount]struct {
		mu      sync.RWMutex
		members map[string]map[string]struct{} // channelID -> set of connID
	}
	connShards [shardCount]struct {
		mu       sync.RWMutex
		channels map[string]map[string]struct{} // connID -> set of channelID
	}
}

func NewSubscriptionManager() *SubscriptionManager {
	m := &SubscriptionManager{}
	for i := range m.channelShards {
		m.channelShards[i].members = make(map[string]map[string]struct{})
	}
	for i := range m.connShards {
		m.connShards[i].channels = make(map[string]map[string]struct{})
	}
	return m
}

// Join subscribes a connection to a channel.
func (m *SubscriptionManager) Join(connID, channelID string) {
	ch := &m.channelShards[shardIndex(channelID)]
	ch.mu.Lock()
	set := ch.members[channelID]
	if set == nil {
		set = make(map[string]struct{})
		ch.members[channelID] = set
	}
	set[connID] = struct{}{}
	ch.mu.Unlock()

	cs := &m.connShards[shardIndex(connID)]
	cs.mu.Lock()
	chans := cs.channels[connID]
	if chans == nil {
		chans = make(map[string]struct{})
		cs.channels[connID] = chans
	}
	chans[channelID] = struct{}{}
	cs.mu.Unlock()
}

// Leave removes one subscription.
func (m *SubscriptionManager) Leave(connID, channelID string) {
	ch := &m.channelShards[shardIndex(channelID)]
	ch.mu.Lock()
	if set, ok := ch.members[channelID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(ch.members, channelID)
		}
	}
	ch.mu.Unlock()

	cs := &m.connShards[shardIndex(connID)]
	cs.mu.Lock()
	if chans, ok := cs.channels[connID]; ok {
		delete(chans, channelID)
		if len(chans) == 0 {
			delete(cs.channels, connID)
		}
	}
	cs.mu.Unlock()
}

// LeaveAll removes every subscription held by a connection. Invoked on
// disconnect before the connection is unregistered, so no ghost membership
// survives the connection.
func (m *SubscriptionManager) LeaveAll(connID string) {
	cs := &m.connShards[shardIndex(connID)]
	cs.mu.Lock()
	chans := cs.channels[connID]
	delete(cs.channels, connID)
	cs.mu.Unlock()

	for channelID := range chans {
		ch := &m.channelShards[shardIndex(channelID)]
		ch.mu.Lock()
		if set, ok := ch.members[channelID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(ch.members, channelID)
			}
		}
		ch.mu.Unlock()
	}
}

// MembersOf returns a point-in-time snapshot of the connections subscribed
// to a channel. Fan-out uses this snapshot: a connection joining afterwards
// is not included.
func (m *SubscriptionManager) MembersOf(channelID string) []string {
	ch := &m.channelShards[shardIndex(channelID)]
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	set := ch.members[channelID]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// Channels returns the channels a connection is currently subscribed to.
func (m *SubscriptionManager) Channels(connID string) []string {
	cs := &m.connShards[shardIndex(connID)]
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	chans := cs.channels[connID]
	out := make([]string, 0, len(chans))
	for channelID := range chans {
		out = append(out, channelID)
	}
	return out
}
