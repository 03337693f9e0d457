package chat

import "chatroom-service/internal/apperr"

var (
	ErrInvalidCommand   = apperr.New(apperr.KindValidation, apperr.CodeInvalidCommand, "Invalid command.")
	ErrRoomAccessDenied = apperr.New(apperr.KindAccessDenied, apperr.CodeRoomAccessDenied, "Room access denied")
	ErrNotInRoom        = apperr.New(apperr.KindValidation, apperr.CodeNotInRoom, "You are not in this room.")
	ErrAuthRequired     = apperr.New(apperr.KindAccessDenied, apperr.CodeAuth, "You must be authenticated to chat.")
	ErrAccessDenied     = apperr.New(apperr.KindAccessDenied, apperr.CodeAccessDenied, "You do not have permission to join this room.")
	ErrNotFriends       = apperr.New(apperr.KindAccessDenied, apperr.CodeNotFriends, "You must be friends to chat.")
	ErrUnsupported      = apperr.New(apperr.KindValidation, apperr.CodeUnsupported, "This command is not available in this room.")
)

func invalidCommand(message string) error {
	return apperr.New(apperr.KindValidation, apperr.CodeInvalidCommand, message)
}
