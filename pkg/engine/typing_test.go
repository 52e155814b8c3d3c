package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/vconnect/pkg/model"
)

// typingHarness wires two subscribed users on one room channel with a short
// expiry window.
type typingHarness struct {
	engine    *Engine
	channelID string
	aliceSink *fakeSink
	bobSink   *fakeSink
}

func newTypingHarness(t *testing.T) *typingHarness {
	t.Helper()
	e := newTestEngine(newFakeRepo())
	channelID := model.RoomChannel("general")

	aliceSink, bobSink := &fakeSink{}, &fakeSink{}
	aliceConn := e.Connect("alice", aliceSink)
	bobConn := e.Connect("bob", bobSink)
	e.Subs.Join(aliceConn, channelID)
	e.Subs.Join(bobConn, channelID)

	return &typingHarness{engine: e, channelID: channelID, aliceSink: aliceSink, bobSink: bobSink}
}

func (h *typingHarness) bobTypingEvents(t *testing.T) []model.TypingChanged {
	t.Helper()
	var out []model.TypingChanged
	for _, f := range h.bobSink.byType(model.FrameTypingChanged) {
		ev, err := model.DecodePayload[model.TypingChanged](f)
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func Test_Typing_Start_Excludes_The_Typist(t *testing.T) {
	req := require.New(t)
	h := newTypingHarness(t)

	h.engine.Typing.SetTyping("alice", h.channelID, true)

	events := h.bobTypingEvents(t)
	req.Len(events, 1)
	req.Equal(model.TypingChanged{ChannelID: h.channelID, UserID: "alice", IsTyping: true}, events[0])
	req.Empty(h.aliceSink.byType(model.FrameTypingChanged))
}

func Test_Typing_Expires_With_Exactly_One_Stop(t *testing.T) {
	req := require.New(t)
	h := newTypingHarness(t)

	h.engine.Typing.SetTyping("alice", h.channelID, true)

	// Wait out the 60ms test window plus slack, then make sure no second
	// stop arrives later.
	req.Eventually(func() bool {
		events := h.bobTypingEvents(t)
		return len(events) == 2 && !events[1].IsTyping
	}, time.Second, 5*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	req.Len(h.bobTypingEvents(t), 2)
}

func Test_Typing_Refresh_Rearms_Without_Rebroadcast(t *testing.T) {
	req := require.New(t)
	h := newTypingHarness(t)

	h.engine.Typing.SetTyping("alice", h.channelID, true)
	// Keep refreshing past several would-be expiries.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		h.engine.Typing.SetTyping("alice", h.channelID, true)
	}

	events := h.bobTypingEvents(t)
	req.Len(events, 1, "refresh must not rebroadcast the start")
	req.True(events[0].IsTyping)

	// After the refreshes cease the episode still expires exactly once.
	req.Eventually(func() bool {
		events := h.bobTypingEvents(t)
		return len(events) == 2 && !events[1].IsTyping
	}, time.Second, 5*time.Millisecond)
}

func Test_Explicit_Stop_Cancels_The_Timer(t *testing.T) {
	req := require.New(t)
	h := newTypingHarness(t)

	h.engine.Typing.SetTyping("alice", h.channelID, true)
	h.engine.Typing.SetTyping("alice", h.channelID, false)

	events := h.bobTypingEvents(t)
	req.Len(events, 2)
	req.False(events[1].IsTyping)

	// The cancelled timer must not synthesize a second stop.
	time.Sleep(150 * time.Millisecond)
	req.Len(h.bobTypingEvents(t), 2)
}

func Test_Stop_While_Idle_Is_Silent(t *testing.T) {
	req := require.New(t)
	h := newTypingHarness(t)

	h.engine.Typing.SetTyping("alice", h.channelID, false)
	req.Empty(h.bobTypingEvents(t))
}

func Test_Typing_Events_Alternate_When_Starts_Race_Expiry(t *testing.T) {
	req := require.New(t)
	h := newTypingHarness(t)

	// Each new start lands right around the 60ms expiry of the previous
	// episode. However the races resolve, an episode's stop must never be
	// observed after the start of the next one: the stream strictly
	// alternates start/stop.
	for i := 0; i < 12; i++ {
		h.engine.Typing.SetTyping("alice", h.channelID, true)
		time.Sleep(60 * time.Millisecond)
	}

	req.Eventually(func() bool {
		events := h.bobTypingEvents(t)
		return len(events) >= 2 && !events[len(events)-1].IsTyping
	}, time.Second, 5*time.Millisecond)

	events := h.bobTypingEvents(t)
	for i, ev := range events {
		req.Equal(i%2 == 0, ev.IsTyping, "event %d out of order", i)
	}
}

func Test_Typing_Expiry_On_Emptied_Channel_Is_Absorbed(t *testing.T) {
	req := require.New(t)
	h := newTypingHarness(t)

	h.engine.Typing.SetTyping("alice", h.channelID, true)

	// Every subscriber leaves before the expiry fires; the synthesized
	// stop has nowhere to go and must not blow up.
	for _, connID := range h.engine.Subs.MembersOf(h.channelID) {
		h.engine.Disconnect(connID)
	}

	time.Sleep(150 * time.Millisecond)
	req.Len(h.bobTypingEvents(t), 1, "only the start was observed")
}
