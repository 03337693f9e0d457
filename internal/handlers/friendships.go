package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatroom-service/internal/apperr"
	"chatroom-service/internal/models"
	"chatroom-service/internal/telemetry"
)

type friendshipUpdater interface {
	FriendshipChanged(ctx context.Context, userID, friendID int, friends bool) (models.PrivateRoom, error)
}

const (
	friendshipAdded   = "added"
	friendshipRemoved = "removed"
)

var errInvalidFriendship = apperr.New(apperr.KindValidation, apperr.CodeInvalidCommand, "user_id, friend_id and status (added|removed) are required")

// FriendshipHandler receives friendship changes from the social graph
// service and keeps private rooms in step.
type FriendshipHandler struct {
	updater friendshipUpdater
	audit   *telemetry.AuditEmitter
}

// NewFriendshipHandler constructs a FriendshipHandler.
func NewFriendshipHandler(updater friendshipUpdater, audit *telemetry.AuditEmitter) *FriendshipHandler {
	return &FriendshipHandler{updater: updater, audit: audit}
}

// Changed handles POST /internal/friendships.
func (h *FriendshipHandler) Changed(c *gin.Context) {
	var req struct {
		UserID   int    `json:"user_id"`
		FriendID int    `json:"friend_id"`
		Status   string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 || req.FriendID <= 0 {
		writeError(c, errInvalidFriendship)
		return
	}
	var friends bool
	switch req.Status {
	case friendshipAdded:
		friends = true
	case friendshipRemoved:
	default:
		writeError(c, errInvalidFriendship)
		return
	}

	room, err := h.updater.FriendshipChanged(c.Request.Context(), req.UserID, req.FriendID, friends)
	if err != nil {
		writeError(c, err)
		return
	}

	if room.ID == 0 {
		// unfriended a pair that never had a private room
		c.JSON(http.StatusOK, gin.H{"room_id": nil, "is_active": false})
		return
	}

	if h.audit != nil {
		action := "private_room_deactivated"
		if friends {
			action = "private_room_activated"
		}
		h.audit.EmitAction(c.Request.Context(), "INFO", action, int64(room.ID),
			fmt.Sprintf("friendship %d/%d %s", req.UserID, req.FriendID, req.Status),
			requestIDFromContext(c), telemetry.UserRef(int64(req.UserID)))
	}
	c.JSON(http.StatusOK, gin.H{"room_id": room.ID, "is_active": room.IsActive})
}
