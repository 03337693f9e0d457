package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the client and for HTTP status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAccessDenied
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a coded error that can be reported to a client.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// Kind sentinels. errors.Is(err, ErrNotFound) matches any not-found error.
var (
	ErrInternal     = &Error{Kind: KindInternal}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrAccessDenied = &Error{Kind: KindAccessDenied}
	ErrConflict     = &Error{Kind: KindConflict}
)

// New builds a coded error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a cause to a copy of e.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels (no code) by kind and coded errors by kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// As returns the first *Error in err's chain, or an internal error wrapping err.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

// Client-facing codes.
const (
	CodeInternal         = "INTERNAL_ERROR"
	CodeInvalidCommand   = "INVALID_COMMAND"
	CodeEmptyMessage     = "EMPTY_MESSAGE"
	CodeInvalidPage      = "INVALID_PAGE"
	CodeRoomInvalid      = "ROOM_INVALID"
	CodeRoomAccessDenied = "ROOM_ACCESS_DENIED"
	CodeNotInRoom        = "NOT_IN_ROOM"
	CodeAuth             = "AUTH_ERROR"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeAccessDenied     = "ACCESS_DENIED"
	CodeNotFriends       = "NOT_FRIENDS"
	CodeTitleTaken       = "ROOM_TITLE_TAKEN"
	CodeInvalidTitle     = "INVALID_TITLE"
	CodeSelfChat         = "SELF_CHAT"
	CodeUnsupported      = "UNSUPPORTED_COMMAND"
)
