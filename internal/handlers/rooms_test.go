package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatroom-service/internal/apperr"
	"chatroom-service/internal/middleware"
	"chatroom-service/internal/mocks"
	"chatroom-service/internal/models"
	"chatroom-service/internal/repositories"
	"chatroom-service/internal/telemetry"
)

func setupRoomRouter(handler *RoomHandler, who models.Participant) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ParticipantKey, who)
		c.Set(middleware.UserIDKey, who.ID)
		c.Next()
	})
	r.POST("/rooms/public", handler.CreatePublic)
	r.GET("/rooms/public", handler.ListPublic)
	r.GET("/rooms/public/:room_id", handler.GetPublic)
	r.GET("/rooms/public/:room_id/presence", handler.Presence)
	r.GET("/rooms/private", handler.ListPrivate)
	return r
}

var operator = models.Participant{ID: 9, Username: "op", Authenticated: true}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreatePublicSuccessEmitsAudit(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "audit.chatroom", "chatroom-service", "test")
	router := setupRoomRouter(NewRoomHandler(rooms, nil, audit), operator)

	rooms.On("CreatePublic", mock.Anything, "General").Return(models.PublicRoom{ID: 4, Title: "General"}, nil).Once()
	publisher.On("Publish", mock.Anything, "audit.chatroom", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Action == "public_room_created" && env.Payload.RoomID == 4 && env.UserID != nil && *env.UserID == "9"
	}), mock.Anything).Return(nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms/public", bytes.NewBufferString(`{"title":"General"}`)))

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, float64(4), resp["id"])
	assert.Equal(t, "General", resp["title"])
	rooms.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCreatePublicErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"duplicate", `{"title":"General"}`, repositories.ErrRoomTitleTaken, http.StatusConflict, apperr.CodeTitleTaken},
		{"blank", `{"title":"  "}`, repositories.ErrInvalidTitle, http.StatusBadRequest, apperr.CodeInvalidTitle},
		{"store down", `{"title":"General"}`, errors.New("db down"), http.StatusInternalServerError, apperr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rooms := new(mocks.RoomRepositoryMock)
			router := setupRoomRouter(NewRoomHandler(rooms, nil, nil), operator)
			rooms.On("CreatePublic", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms/public", bytes.NewBufferString(tc.body)))

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode(t, rec)["error"])
		})
	}
}

func TestCreatePublicBadJSON(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(NewRoomHandler(rooms, nil, nil), operator)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms/public", bytes.NewBufferString(`{`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rooms.AssertNotCalled(t, "CreatePublic", mock.Anything, mock.Anything)
}

func TestGetPublic(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(NewRoomHandler(rooms, nil, nil), operator)
	rooms.On("GetPublic", mock.Anything, 3).Return(models.PublicRoom{ID: 3, Title: "Random"}, nil).Once()
	rooms.On("GetPublic", mock.Anything, 404).Return(nil, repositories.ErrRoomNotFound).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/public/3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Random", decode(t, rec)["title"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/public/404", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeRoomInvalid, decode(t, rec)["error"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/public/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rooms.AssertExpectations(t)
}

func TestListPublicEmpty(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(NewRoomHandler(rooms, nil, nil), operator)
	rooms.On("ListPublic", mock.Anything).Return(nil, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/public", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rooms":[]}`, rec.Body.String())
}

func TestPresence(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupRoomRouter(NewRoomHandler(new(mocks.RoomRepositoryMock), svc, nil), operator)
	svc.On("PresenceCount", mock.Anything, 2).Return(int64(7), nil).Once()
	svc.On("PresenceCount", mock.Anything, 5).Return(int64(0), repositories.ErrRoomNotFound).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/public/2/presence", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"room_id":2,"connected_user_count":7}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/public/5/presence", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestListPrivate(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(NewRoomHandler(rooms, nil, nil), operator)
	rooms.On("ListActivePrivate", mock.Anything, operator.ID).Return([]models.PrivateRoomSummary{{RoomID: 3, FriendID: 2}}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/private", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["rooms"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, float64(2), list[0].(map[string]any)["friend_id"])
	rooms.AssertExpectations(t)
}

func TestFriendshipChanged(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/internal/friendships", NewFriendshipHandler(svc, nil).Changed)

	svc.On("FriendshipChanged", mock.Anything, 1, 2, true).Return(models.PrivateRoom{ID: 8, User1ID: 1, User2ID: 2, IsActive: true}, nil).Once()
	svc.On("FriendshipChanged", mock.Anything, 2, 1, false).Return(models.PrivateRoom{ID: 8, User1ID: 1, User2ID: 2}, nil).Once()
	svc.On("FriendshipChanged", mock.Anything, 3, 3, true).Return(nil, repositories.ErrSelfChat).Once()
	svc.On("FriendshipChanged", mock.Anything, 4, 5, false).Return(models.PrivateRoom{}, nil).Once()

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/friendships", bytes.NewBufferString(body)))
		return rec
	}

	rec := post(`{"user_id":1,"friend_id":2,"status":"added"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"room_id":8,"is_active":true}`, rec.Body.String())

	rec = post(`{"user_id":2,"friend_id":1,"status":"removed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"room_id":8,"is_active":false}`, rec.Body.String())

	rec = post(`{"user_id":4,"friend_id":5,"status":"removed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"room_id":null,"is_active":false}`, rec.Body.String())

	rec = post(`{"user_id":3,"friend_id":3,"status":"added"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeSelfChat, decode(t, rec)["error"])

	assert.Equal(t, http.StatusBadRequest, post(`{"user_id":1,"friend_id":2,"status":"blocked"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"user_id":0,"friend_id":2,"status":"added"}`).Code)
	svc.AssertExpectations(t)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestDebugAndHealthRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, func() map[string]int { return map[string]int{"public:1": 2} }, nil, true)
	r.GET("/healthz", Health(stubPinger{}))
	r.GET("/down", Health(stubPinger{err: errors.New("gone")}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/groups", nil))
	assert.JSONEq(t, `{"groups":{"public:1":2}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	disabled := gin.New()
	RegisterDebugRoutes(disabled, nil, nil, false)
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/groups", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
