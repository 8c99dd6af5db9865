package runtime

import (
	"testing"

	"chat-gateway/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRooms_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	connID := uuid.New()

	// When the same connection joins the same room twice
	rooms.Join("conv-1", connID)
	rooms.Join("conv-1", connID)

	// Then the membership set is the same as after a single join
	req.Len(rooms.MembersOf("conv-1"), 1)
	req.Equal([]uuid.UUID{connID}, rooms.MembersOf("conv-1"))
}

func TestRooms_Leave_Unknown_Member_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	member := uuid.New()
	stranger := uuid.New()
	rooms.Join("conv-1", member)

	rooms.Leave("conv-1", stranger)
	rooms.Leave("conv-2", member)

	req.Len(rooms.MembersOf("conv-1"), 1)
}

func TestRooms_MembersOf_Unknown_Room_Is_Empty(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()

	req.Empty(rooms.MembersOf("nowhere"))
}

func TestRooms_Room_Vanishes_With_Its_Last_Member(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	connID := uuid.New()
	rooms.Join("conv-1", connID)

	rooms.Leave("conv-1", connID)

	req.Empty(rooms.MembersOf("conv-1"))
	req.Empty(rooms.RoomsOf(connID))
}

func TestRooms_LeaveAll_Clears_Every_Membership(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	leaving := uuid.New()
	staying := uuid.New()
	rooms.Join("conv-1", leaving)
	rooms.Join("conv-2", leaving)
	rooms.Join("conv-1", staying)

	// When the connection disconnects
	left := rooms.LeaveAll(leaving)

	// Then it left both rooms and the other member is untouched
	req.ElementsMatch([]domain.RoomID{"conv-1", "conv-2"}, left)
	req.Empty(rooms.RoomsOf(leaving))
	req.Equal([]uuid.UUID{staying}, rooms.MembersOf("conv-1"))
	req.Empty(rooms.MembersOf("conv-2"))
}

func TestRooms_LeaveAll_For_Unknown_Connection_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()

	req.Empty(rooms.LeaveAll(uuid.New()))
}
