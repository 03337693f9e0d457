package repositories

import "chatroom-service/internal/apperr"

var (
	ErrRoomNotFound   = apperr.New(apperr.KindNotFound, apperr.CodeRoomInvalid, "room not found")
	ErrRoomTitleTaken = apperr.New(apperr.KindConflict, apperr.CodeTitleTaken, "a public room with this title already exists")
	ErrInvalidTitle   = apperr.New(apperr.KindValidation, apperr.CodeInvalidTitle, "room title must be 1-255 characters")
	ErrSelfChat       = apperr.New(apperr.KindValidation, apperr.CodeSelfChat, "cannot create chat with self")
	ErrEmptyMessage   = apperr.New(apperr.KindValidation, apperr.CodeEmptyMessage, "You can't send an empty message.")
	ErrInvalidPage    = apperr.New(apperr.KindValidation, apperr.CodeInvalidPage, "page number and size must be positive")
)
