package chat

import (
	"time"

	"chatroom-service/internal/models"
)

const (
	MsgTypeMessage            = "message"
	MsgTypeConnectedUserCount = "connected_user_count"
	MsgTypeUserLeft           = "user_left"
)

type joinFrame struct {
	Join int `json:"join"`
}

type leaveFrame struct {
	Leave int `json:"leave"`
}

type messageFrame struct {
	MsgType          string `json:"msg_type"`
	MsgID            int    `json:"msg_id"`
	Username         string `json:"username"`
	UserID           int    `json:"user_id"`
	ProfileImage     string `json:"profile_image"`
	Message          string `json:"message"`
	NaturalTimestamp string `json:"natural_timestamp"`
}

type countFrame struct {
	MsgType            string `json:"msg_type"`
	ConnectedUserCount int64  `json:"connected_user_count"`
}

type userLeftFrame struct {
	MsgType      string `json:"msg_type"`
	RoomID       int    `json:"room_id"`
	UserID       int    `json:"user_id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
}

type errorFrame struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type historyFrame struct {
	MessagesPayload string         `json:"messages_payload"`
	Messages        []messageFrame `json:"messages"`
	NewPageNumber   int            `json:"new_page_number"`
	EndOfHistory    bool           `json:"end_of_history"`
}

type progressFrame struct {
	Display bool `json:"display_progress_bar"`
}

type userInfoFrame struct {
	UserInfo models.UserProfile `json:"user_info"`
}

// NaturalTimestamp renders t relative to now in loc: "Today at 3:04 PM",
// "Yesterday at 3:04 PM", otherwise the date as 01/02/2006.
func NaturalTimestamp(t, now time.Time, loc *time.Location) string {
	t, now = t.In(loc), now.In(loc)
	if sameDay(t, now) {
		return "Today at " + t.Format("3:04 PM")
	}
	if sameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday at " + t.Format("3:04 PM")
	}
	return t.Format("01/02/2006")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
