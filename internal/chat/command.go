package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Command is one client request. The set of commands is closed: only the
// types in this file implement it.
type Command interface {
	Name() string
	RoomID() int
	isCommand()
}

type JoinCommand struct {
	Room int
}

type LeaveCommand struct {
	Room int
}

type SendCommand struct {
	Room    int
	Message string
}

type HistoryCommand struct {
	Room int
	Page int
}

type UserInfoCommand struct {
	Room int
}

func (JoinCommand) Name() string     { return "join" }
func (LeaveCommand) Name() string    { return "leave" }
func (SendCommand) Name() string     { return "send" }
func (HistoryCommand) Name() string  { return "get_room_chat_messages" }
func (UserInfoCommand) Name() string { return "get_user_info" }

func (c JoinCommand) RoomID() int     { return c.Room }
func (c LeaveCommand) RoomID() int    { return c.Room }
func (c SendCommand) RoomID() int     { return c.Room }
func (c HistoryCommand) RoomID() int  { return c.Room }
func (c UserInfoCommand) RoomID() int { return c.Room }

func (JoinCommand) isCommand()     {}
func (LeaveCommand) isCommand()    {}
func (SendCommand) isCommand()     {}
func (HistoryCommand) isCommand()  {}
func (UserInfoCommand) isCommand() {}

type frame struct {
	Command    string          `json:"command"`
	RoomID     json.RawMessage `json:"room_id"`
	Message    string          `json:"message"`
	PageNumber json.RawMessage `json:"page_number"`
}

var errMissing = errors.New("missing")

// ParseCommand decodes a client frame. Every failure is an invalid-command
// validation error.
func ParseCommand(data []byte) (Command, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, invalidCommand("Malformed command frame.")
	}
	if f.Command == "" {
		return nil, invalidCommand("Missing command.")
	}

	roomID, err := parseInt(f.RoomID)
	if err != nil {
		return nil, invalidCommand("room_id must be an integer.")
	}

	switch f.Command {
	case "join":
		return JoinCommand{Room: roomID}, nil
	case "leave":
		return LeaveCommand{Room: roomID}, nil
	case "send":
		return SendCommand{Room: roomID, Message: f.Message}, nil
	case "get_room_chat_messages":
		page, err := parseInt(f.PageNumber)
		if err != nil {
			return nil, invalidCommand("page_number must be an integer.")
		}
		return HistoryCommand{Room: roomID, Page: page}, nil
	case "get_user_info":
		return UserInfoCommand{Room: roomID}, nil
	default:
		return nil, invalidCommand(fmt.Sprintf("Unknown command %q.", f.Command))
	}
}

// parseInt accepts a JSON number or a numeric string.
func parseInt(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errMissing
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.Atoi(strings.TrimSpace(s))
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}
