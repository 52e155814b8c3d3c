package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/vconnect/pkg/model"
)

func newTrackedPresence() (*PresenceTracker, *fakeClock, *[]model.PresenceChanged, *sync.Mutex) {
	tracker := NewPresenceTracker(nil, testLogger())
	clock := newFakeClock()
	tracker.now = clock.Now

	var mu sync.Mutex
	var emitted []model.PresenceChanged
	tracker.SetBroadcast(func(p model.PresenceChanged) {
		mu.Lock()
		defer mu.Unlock()
		emitted = append(emitted, p)
	})
	return tracker, clock, &emitted, &mu
}

func Test_LastSeen_Advances_Only_On_Offline_Transition(t *testing.T) {
	req := require.New(t)
	tracker, clock, _, _ := newTrackedPresence()

	tracker.OnConnect("alice")
	id, ok := tracker.Identity("alice")
	req.True(ok)
	req.True(id.Online)
	req.True(id.LastSeen.IsZero(), "lastSeen must not move while connected")

	clock.Advance(10 * time.Minute)
	tracker.OnDisconnect("alice")
	id, _ = tracker.Identity("alice")
	req.False(id.Online)
	firstSeen := id.LastSeen
	req.Equal(clock.Now(), firstSeen)

	// Reconnecting does not touch lastSeen.
	clock.Advance(time.Minute)
	tracker.OnConnect("alice")
	id, _ = tracker.Identity("alice")
	req.True(id.Online)
	req.Equal(firstSeen, id.LastSeen)

	clock.Advance(time.Minute)
	tracker.OnDisconnect("alice")
	id, _ = tracker.Identity("alice")
	req.True(id.LastSeen.After(firstSeen), "lastSeen is monotonically non-decreasing")
}

func Test_Presence_Emits_Transitions(t *testing.T) {
	req := require.New(t)
	tracker, clock, emitted, mu := newTrackedPresence()

	tracker.OnConnect("bob")
	clock.Advance(time.Second)
	tracker.OnDisconnect("bob")

	mu.Lock()
	defer mu.Unlock()
	req.Len(*emitted, 2)
	req.True((*emitted)[0].Online)
	req.False((*emitted)[1].Online)
	req.Equal(clock.Now(), (*emitted)[1].LastSeen)
}

func Test_Rapid_Reconnect_Shows_No_Spurious_Offline(t *testing.T) {
	req := require.New(t)
	listener := &recordingListener{}
	r := NewConnectionRegistry()
	r.SetPresenceListener(listener)

	r.Register("alice", "c-old", &fakeSink{})

	// The replacement connection registers before the old one unregisters:
	// the user never drops to zero connections, so no offline transition
	// may be observed.
	r.Register("alice", "c-new", &fakeSink{})
	r.Unregister("c-old")

	req.Equal([]string{"online:alice"}, listener.snapshot())
	req.Equal([]string{"c-new"}, r.ConnectionsFor("alice"))
}
