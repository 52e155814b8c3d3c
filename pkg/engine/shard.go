package engine

import (
	"hash/fnv"
	"sync"
)

// shardCount is the number of lock shards used by the keyed state maps.
// Operations on distinct keys land on distinct shards with high probability
// and never serialize against each other; operations on the same key always
// hit the same shard and therefore serialize.
const shardCount = 32

func shardIndex(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}

// keyedMutex hands out one mutex per key, sharded so unrelated keys rarely
// contend. Entries are never removed: keys are user and channel ids, which
// are soft entities with bounded cardinality.
type keyedMutex struct {
	shards [shardCount]struct {
		mu    sync.Mutex
		locks map[string]*sync.Mutex
	}
}

func newKeyedMutex() *keyedMutex {
	km := &keyedMutex{}
	for i := range km.shards {
		km.shards[i].locks = make(map[string]*sync.Mutex)
	}
	return km
}

// Lock acquires the mutex for key and returns its unlock function.
func (km *keyedMutex) Lock(key string) func() {
	s := &km.shards[shardIndex(key)]
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
