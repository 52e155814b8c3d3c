package engine

import (
	"sync"
)

// PresenceListener receives the connection-count transitions computed by the
// registry: 0→1 connections means online, 1→0 means offline.
type PresenceListener interface {
	OnConnect(userID string)
	OnDisconnect(userID string)
}

type connection struct {
	userID string
	sink   Sink
}

// ConnectionRegistry tracks live connections per user. A user may hold any
// number of simultaneous connections (multi-device). State is sharded per
// key; the register/unregister sequence for a single user is additionally
// serialized end to end (including the presence callback) so a rapid
// drop-and-reconnect never surfaces a spurious offline transition.
type ConnectionRegistry struct {
	userLocks *keyedMutex

	userShards [shardCount]struct {
		mu     sync.RWMutex
		byUser map[string]map[string]Sink // userID -> connID -> sink
	}
	connShards [shardCount]struct {
		mu     sync.RWMutex
		owners map[string]connection // connID -> owning user + sink
	}

	presence PresenceListener
}

func NewConnectionRegistry() *ConnectionRegistry {
	r := &ConnectionRegistry{userLocks: newKeyedMutex()}
	for i := range r.userShards {
		r.userShards[i].byUser = make(map[string]map[string]Sink)
	}
	for i := range r.connShards {
		r.connShards[i].owners = make(map[string]connection)
	}
	return r
}

// SetPresenceListener wires the presence tracker. Must be called before the
// first Register.
func (r *ConnectionRegistry) SetPresenceListener(l PresenceListener) {
	r.presence = l
}

// Register adds a connection for userID. The connection is not visible to
// readers until registration completes. Returns true when this is the
// user's first live connection.
func (r *ConnectionRegistry) Register(userID, connID string, sink Sink) bool {
	unlock := r.userLocks.Lock(userID)
	defer unlock()

	cs := &r.connShards[shardIndex(connID)]
	cs.mu.Lock()
	cs.owners[connID] = connection{userID: userID, sink: sink}
	cs.mu.Unlock()

	us := &r.userShards[shardIndex(userID)]
	us.mu.Lock()
	conns := us.byUser[userID]
	if conns == nil {
		conns = make(map[string]Sink)
		us.byUser[userID] = conns
	}
	conns[connID] = sink
	first := len(conns) == 1
	us.mu.Unlock()

	if first && r.presence != nil {
		r.presence.OnConnect(userID)
	}
	return first
}

// Unregister removes a connection. Unregistering the last connection of a
// user triggers the offline transition. Unknown connection ids are a no-op.
// Returns true when the owning user has no connections left.
func (r *ConnectionRegistry) Unregister(connID string) bool {
	cs := &r.connShards[shardIndex(connID)]
	cs.mu.Lock()
	owner, ok := cs.owners[connID]
	delete(cs.owners, connID)
	cs.mu.Unlock()
	if !ok {
		return false
	}

	unlock := r.userLocks.Lock(owner.userID)
	defer unlock()

	us := &r.userShards[shardIndex(owner.userID)]
	us.mu.Lock()
	conns := us.byUser[owner.userID]
	delete(conns, connID)
	last := len(conns) == 0
	if last {
		delete(us.byUser, owner.userID)
	}
	us.mu.Unlock()

	if last && r.presence != nil {
		r.presence.OnDisconnect(owner.userID)
	}
	return last
}

// ConnectionsFor returns a snapshot of the user's live connection ids.
func (r *ConnectionRegistry) ConnectionsFor(userID string) []string {
	us := &r.userShards[shardIndex(userID)]
	us.mu.RLock()
	defer us.mu.RUnlock()

	conns := us.byUser[userID]
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	return out
}

// SinkOf resolves a connection id to its outbound sink, or nil when the
// connection is gone.
func (r *ConnectionRegistry) SinkOf(connID string) Sink {
	cs := &r.connShards[shardIndex(connID)]
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.owners[connID].sink
}

// OwnerOf resolves a connection id to the user that registered it.
func (r *ConnectionRegistry) OwnerOf(connID string) (string, bool) {
	cs := &r.connShards[shardIndex(connID)]
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.owners[connID]
	return c.userID, ok
}

// EachSink calls fn with every live sink. Used for service-wide broadcasts
// such as presence changes.
func (r *ConnectionRegistry) EachSink(fn func(userID string, sink Sink)) {
	for i := range r.connShards {
		cs := &r.connShards[i]
		cs.mu.RLock()
		snapshot := make([]connection, 0, len(cs.owners))
		for _, c := range cs.owners {
			snapshot = append(snapshot, c)
		}
		cs.mu.RUnlock()
		for _, c := range snapshot {
			fn(c.userID, c.sink)
		}
	}
}
