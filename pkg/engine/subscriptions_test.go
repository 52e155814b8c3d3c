package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/vconnect/pkg/model"
)

func Test_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	m := NewSubscriptionManager()
	general := model.RoomChannel("general")

	m.Join("c1", general)
	m.Join("c1", general)

	req.Equal([]string{"c1"}, m.MembersOf(general))
	req.Equal([]string{general}, m.Channels("c1"))
}

func Test_Leave_Unjoined_Channel_Is_Noop(t *testing.T) {
	req := require.New(t)
	m := NewSubscriptionManager()

	m.Leave("c1", model.RoomChannel("general"))
	req.Empty(m.MembersOf(model.RoomChannel("general")))
	req.Empty(m.Channels("c1"))
}

func Test_Connection_Subscribes_To_Many_Channels(t *testing.T) {
	req := require.New(t)
	m := NewSubscriptionManager()
	general := model.RoomChannel("general")
	conv := model.ConversationChannel("c42")

	m.Join("c1", general)
	m.Join("c1", conv)
	m.Join("c2", general)

	req.ElementsMatch([]string{"c1", "c2"}, m.MembersOf(general))
	req.Equal([]string{"c1"}, m.MembersOf(conv))
	req.ElementsMatch([]string{general, conv}, m.Channels("c1"))

	m.Leave("c1", general)
	req.Equal([]string{"c2"}, m.MembersOf(general))
	req.Equal([]string{conv}, m.Channels("c1"))
}

func Test_LeaveAll_Clears_Every_Membership(t *testing.T) {
	req := require.New(t)
	m := NewSubscriptionManager()
	general := model.RoomChannel("general")
	random := model.RoomChannel("random")

	m.Join("c1", general)
	m.Join("c1", random)
	m.Join("c2", general)

	m.LeaveAll("c1")

	req.Equal([]string{"c2"}, m.MembersOf(general))
	req.Empty(m.MembersOf(random))
	req.Empty(m.Channels("c1"))
}
