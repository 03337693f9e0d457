package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupNameRoundTrip(t *testing.T) {
	for _, ref := range []RoomRef{{Kind: RoomPublic, ID: 1}, {Kind: RoomPrivate, ID: 42}} {
		parsed, err := ParseGroupName(ref.GroupName())
		require.NoError(t, err)
		assert.Equal(t, ref, parsed)
	}
	assert.Equal(t, "public:7", RoomRef{Kind: RoomPublic, ID: 7}.GroupName())
}

func TestParseGroupNameRejectsGarbage(t *testing.T) {
	for _, g := range []string{"", "public:", "lobby:1", "private:x"} {
		_, err := ParseGroupName(g)
		assert.Error(t, err, g)
	}
}

func TestPrivateRoomParticipants(t *testing.T) {
	room := PrivateRoom{ID: 3, User1ID: 1, User2ID: 2}
	assert.True(t, room.HasParticipant(1))
	assert.True(t, room.HasParticipant(2))
	assert.False(t, room.HasParticipant(3))
	assert.False(t, room.HasParticipant(0))
	assert.Equal(t, 2, room.Counterpart(1))
	assert.Equal(t, 1, room.Counterpart(2))
}
