package models

import (
	"fmt"
	"strconv"
	"time"
)

// RoomKind distinguishes public chatrooms from private one-to-one chats.
type RoomKind string

const (
	RoomPublic  RoomKind = "public"
	RoomPrivate RoomKind = "private"
)

// Valid reports whether k is a known kind.
func (k RoomKind) Valid() bool {
	return k == RoomPublic || k == RoomPrivate
}

// RoomRef identifies a room across both kinds.
type RoomRef struct {
	Kind RoomKind `json:"kind"`
	ID   int      `json:"id"`
}

// GroupName is the broadcast group identifier for the room.
func (r RoomRef) GroupName() string {
	return string(r.Kind) + ":" + strconv.Itoa(r.ID)
}

func (r RoomRef) String() string {
	return r.GroupName()
}

// ParseGroupName reverses GroupName.
func ParseGroupName(group string) (RoomRef, error) {
	for _, kind := range []RoomKind{RoomPublic, RoomPrivate} {
		prefix := string(kind) + ":"
		if len(group) > len(prefix) && group[:len(prefix)] == prefix {
			id, err := strconv.Atoi(group[len(prefix):])
			if err != nil {
				return RoomRef{}, fmt.Errorf("invalid group %q: %w", group, err)
			}
			return RoomRef{Kind: kind, ID: id}, nil
		}
	}
	return RoomRef{}, fmt.Errorf("invalid group %q", group)
}

// PublicRoom is a named chatroom open to every connection.
type PublicRoom struct {
	ID        int       `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ref returns the room reference.
func (r PublicRoom) Ref() RoomRef {
	return RoomRef{Kind: RoomPublic, ID: r.ID}
}

// PrivateRoom is a chat between exactly two users. User1ID < User2ID.
type PrivateRoom struct {
	ID        int       `db:"id" json:"id"`
	User1ID   int       `db:"user1_id" json:"user1_id"`
	User2ID   int       `db:"user2_id" json:"user2_id"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ref returns the room reference.
func (r PrivateRoom) Ref() RoomRef {
	return RoomRef{Kind: RoomPrivate, ID: r.ID}
}

// HasParticipant reports whether userID is one of the two fixed participants.
func (r PrivateRoom) HasParticipant(userID int) bool {
	return userID != 0 && (r.User1ID == userID || r.User2ID == userID)
}

// Counterpart returns the other participant.
func (r PrivateRoom) Counterpart(userID int) int {
	if r.User1ID == userID {
		return r.User2ID
	}
	return r.User1ID
}

// PrivateRoomSummary provides an API-friendly view of a private room for a user.
type PrivateRoomSummary struct {
	RoomID    int       `json:"room_id"`
	FriendID  int       `json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}
