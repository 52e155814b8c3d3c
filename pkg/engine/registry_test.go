package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingListener captures presence transitions in arrival order.
type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) OnConnect(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "online:"+userID)
}

func (l *recordingListener) OnDisconnect(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "offline:"+userID)
}

func (l *recordingListener) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func Test_Register_Tracks_Multiple_Devices(t *testing.T) {
	req := require.New(t)
	listener := &recordingListener{}
	r := NewConnectionRegistry()
	r.SetPresenceListener(listener)

	phone, laptop := &fakeSink{}, &fakeSink{}
	req.True(r.Register("alice", "conn-phone", phone))
	req.False(r.Register("alice", "conn-laptop", laptop))

	req.ElementsMatch([]string{"conn-phone", "conn-laptop"}, r.ConnectionsFor("alice"))
	req.Same(phone, r.SinkOf("conn-phone").(*fakeSink))

	owner, ok := r.OwnerOf("conn-laptop")
	req.True(ok)
	req.Equal("alice", owner)

	// Only the last unregister flips the user offline.
	req.False(r.Unregister("conn-phone"))
	req.True(r.Unregister("conn-laptop"))
	req.Empty(r.ConnectionsFor("alice"))
	req.Equal([]string{"online:alice", "offline:alice"}, listener.snapshot())
}

func Test_Unregister_Unknown_Connection_Is_Noop(t *testing.T) {
	req := require.New(t)
	listener := &recordingListener{}
	r := NewConnectionRegistry()
	r.SetPresenceListener(listener)

	req.False(r.Unregister("never-registered"))
	req.Empty(listener.snapshot())
}

func Test_Concurrent_Transitions_Stay_Serialized_Per_User(t *testing.T) {
	req := require.New(t)
	listener := &recordingListener{}
	r := NewConnectionRegistry()
	r.SetPresenceListener(listener)

	const rounds = 64
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn-%d", i)
			r.Register("alice", connID, &fakeSink{})
			r.Unregister(connID)
		}(i)
	}
	wg.Wait()

	req.Empty(r.ConnectionsFor("alice"))

	// Transitions for one user must strictly alternate online/offline,
	// starting online and ending offline.
	events := listener.snapshot()
	req.NotEmpty(events)
	req.Equal("online:alice", events[0])
	req.Equal("offline:alice", events[len(events)-1])
	for i, ev := range events {
		if i%2 == 0 {
			req.Equal("online:alice", ev, "event %d", i)
		} else {
			req.Equal("offline:alice", ev, "event %d", i)
		}
	}
}

func Test_EachSink_Visits_Live_Connections(t *testing.T) {
	req := require.New(t)
	r := NewConnectionRegistry()

	r.Register("alice", "c1", &fakeSink{})
	r.Register("bob", "c2", &fakeSink{})
	r.Unregister("c1")

	var seen []string
	r.EachSink(func(userID string, _ Sink) { seen = append(seen, userID) })
	req.Equal([]string{"bob"}, seen)
}
