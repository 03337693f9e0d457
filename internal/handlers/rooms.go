package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatroom-service/internal/apperr"
	"chatroom-service/internal/middleware"
	"chatroom-service/internal/models"
	"chatroom-service/internal/repositories"
	"chatroom-service/internal/telemetry"
)

type presenceCounter interface {
	PresenceCount(ctx context.Context, roomID int) (int64, error)
}

var errInvalidRoomID = apperr.New(apperr.KindValidation, apperr.CodeRoomInvalid, "invalid room id")

// RoomHandler manages room endpoints.
type RoomHandler struct {
	rooms    repositories.RoomRepository
	presence presenceCounter
	audit    *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository, presence presenceCounter, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{rooms: rooms, presence: presence, audit: audit}
}

// CreatePublic handles POST /rooms/public.
func (h *RoomHandler) CreatePublic(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, repositories.ErrInvalidTitle)
		return
	}

	room, err := h.rooms.CreatePublic(c.Request.Context(), req.Title)
	if err != nil {
		h.emitAudit(c, "ERROR", "public_room_create_failed", 0, err.Error())
		writeError(c, err)
		return
	}
	h.emitAudit(c, "INFO", "public_room_created", room.ID, "public room "+strconv.Quote(room.Title)+" created")
	c.JSON(http.StatusCreated, room)
}

// ListPublic handles GET /rooms/public.
func (h *RoomHandler) ListPublic(c *gin.Context) {
	rooms, err := h.rooms.ListPublic(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if rooms == nil {
		rooms = []models.PublicRoom{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetPublic handles GET /rooms/public/:room_id.
func (h *RoomHandler) GetPublic(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		writeError(c, errInvalidRoomID)
		return
	}
	room, err := h.rooms.GetPublic(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// Presence handles GET /rooms/public/:room_id/presence.
func (h *RoomHandler) Presence(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		writeError(c, errInvalidRoomID)
		return
	}
	count, err := h.presence.PresenceCount(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "connected_user_count": count})
}

// ListPrivate handles GET /rooms/private for the authenticated caller.
func (h *RoomHandler) ListPrivate(c *gin.Context) {
	who := middleware.ParticipantFrom(c)
	rooms, err := h.rooms.ListActivePrivate(c.Request.Context(), who.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if rooms == nil {
		rooms = []models.PrivateRoomSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, action string, roomID int, text string) {
	if h.audit == nil {
		return
	}
	h.audit.EmitAction(c.Request.Context(), level, action, int64(roomID), text, requestIDFromContext(c), userIDFromContext(c))
}
