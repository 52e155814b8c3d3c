package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ParseChannel(t *testing.T) {
	req := require.New(t)

	kind, id, ok := ParseChannel(RoomChannel("general"))
	req.True(ok)
	req.Equal(KindRoom, kind)
	req.Equal("general", id)

	kind, id, ok = ParseChannel(ConversationChannel("c-42"))
	req.True(ok)
	req.Equal(KindConversation, kind)
	req.Equal("c-42", id)

	for _, bad := range []string{"", "general", "room:", "conversation:", "dm:a:b"} {
		_, _, ok := ParseChannel(bad)
		req.False(ok, "expected %q to be rejected", bad)
	}
}

func Test_Frame_Round_Trip(t *testing.T) {
	req := require.New(t)

	data, err := EncodeFrame(FrameSetTyping, SetTyping{ChannelID: "room:general", IsTyping: true})
	req.NoError(err)

	var frame Frame
	req.NoError(json.Unmarshal(data, &frame))
	req.Equal(FrameSetTyping, frame.Type)

	payload, err := DecodePayload[SetTyping](frame)
	req.NoError(err)
	req.Equal("room:general", payload.ChannelID)
	req.True(payload.IsTyping)
}

func Test_Conversation_Participants(t *testing.T) {
	req := require.New(t)

	conv := Conversation{ID: "c-1", Participants: []string{"alice", "bob"}}
	req.True(conv.HasParticipant("alice"))
	req.False(conv.HasParticipant("mallory"))

	other, ok := conv.OtherParticipant("alice")
	req.True(ok)
	req.Equal("bob", other)
}
