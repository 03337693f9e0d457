package bus

import (
	"time"

	"chatroom-service/internal/models"
)

// EventKind names the variants of Event.
type EventKind string

const (
	EventMessage  EventKind = "message"
	EventPresence EventKind = "presence_count"
	EventUserLeft EventKind = "user_left"
)

// Event is everything that travels over a group. Exactly one of the payload
// pointers matching Kind is set.
type Event struct {
	Kind     EventKind      `json:"kind"`
	Room     models.RoomRef `json:"room"`
	Origin   string         `json:"origin,omitempty"`
	Message  *MessageEvent  `json:"message,omitempty"`
	Presence *PresenceEvent `json:"presence,omitempty"`
	UserLeft *UserLeftEvent `json:"user_left,omitempty"`
}

// MessageEvent carries a stored chat message and its author's display fields.
type MessageEvent struct {
	MessageID    int       `json:"message_id"`
	UserID       int       `json:"user_id"`
	Username     string    `json:"username"`
	ProfileImage string    `json:"profile_image"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

// PresenceEvent carries the current connected-user count of a public room.
type PresenceEvent struct {
	Count int64 `json:"count"`
}

// UserLeftEvent tells a private-room counterpart that the other user left.
type UserLeftEvent struct {
	UserID       int    `json:"user_id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
}

// NewMessageEvent builds a message event from a stored message and its author.
func NewMessageEvent(msg models.Message, author models.Participant) Event {
	return Event{
		Kind: EventMessage,
		Room: msg.Room(),
		Message: &MessageEvent{
			MessageID:    msg.ID,
			UserID:       author.ID,
			Username:     author.Username,
			ProfileImage: author.AvatarURL,
			Text:         msg.Content,
			CreatedAt:    msg.CreatedAt,
		},
	}
}

// NewPresenceEvent builds a presence count event.
func NewPresenceEvent(room models.RoomRef, count int64) Event {
	return Event{Kind: EventPresence, Room: room, Presence: &PresenceEvent{Count: count}}
}

// NewUserLeftEvent builds a user-left notice.
func NewUserLeftEvent(room models.RoomRef, who models.Participant) Event {
	return Event{
		Kind:     EventUserLeft,
		Room:     room,
		UserLeft: &UserLeftEvent{UserID: who.ID, Username: who.Username, ProfileImage: who.AvatarURL},
	}
}
