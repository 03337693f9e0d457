package models

import "time"

// Message is a chat message persisted in a room's log.
type Message struct {
	ID        int       `db:"id" json:"id"`
	RoomKind  RoomKind  `db:"room_kind" json:"room_kind"`
	RoomID    int       `db:"room_id" json:"room_id"`
	Seq       int64     `db:"seq" json:"seq"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Room returns the message's room reference.
func (m Message) Room() RoomRef {
	return RoomRef{Kind: m.RoomKind, ID: m.RoomID}
}

// MessagePage is one page of history, newest first.
type MessagePage struct {
	Messages  []Message
	Page      int
	NextPage  int
	Exhausted bool
}
