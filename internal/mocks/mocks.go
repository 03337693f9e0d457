package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chatroom-service/internal/models"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreatePublic(ctx context.Context, title string) (models.PublicRoom, error) {
	args := m.Called(ctx, title)
	var room models.PublicRoom
	if val := args.Get(0); val != nil {
		room = val.(models.PublicRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetPublic(ctx context.Context, roomID int) (models.PublicRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.PublicRoom
	if val := args.Get(0); val != nil {
		room = val.(models.PublicRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListPublic(ctx context.Context) ([]models.PublicRoom, error) {
	args := m.Called(ctx)
	var rooms []models.PublicRoom
	if val := args.Get(0); val != nil {
		rooms = val.([]models.PublicRoom)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) FindOrCreatePrivate(ctx context.Context, userID int, friendID int) (models.PrivateRoom, error) {
	args := m.Called(ctx, userID, friendID)
	var room models.PrivateRoom
	if val := args.Get(0); val != nil {
		room = val.(models.PrivateRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) FindPrivate(ctx context.Context, userID int, friendID int) (models.PrivateRoom, error) {
	args := m.Called(ctx, userID, friendID)
	var room models.PrivateRoom
	if val := args.Get(0); val != nil {
		room = val.(models.PrivateRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetPrivate(ctx context.Context, roomID int) (models.PrivateRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.PrivateRoom
	if val := args.Get(0); val != nil {
		room = val.(models.PrivateRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) SetActive(ctx context.Context, roomID int, active bool) error {
	args := m.Called(ctx, roomID, active)
	return args.Error(0)
}

func (m *RoomRepositoryMock) ListActivePrivate(ctx context.Context, userID int) ([]models.PrivateRoomSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.PrivateRoomSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.PrivateRoomSummary)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, room models.RoomRef, senderID int, content string) (models.Message, error) {
	args := m.Called(ctx, room, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Page(ctx context.Context, room models.RoomRef, page int, size int) (models.MessagePage, error) {
	args := m.Called(ctx, room, page, size)
	var p models.MessagePage
	if val := args.Get(0); val != nil {
		p = val.(models.MessagePage)
	}
	return p, args.Error(1)
}

func (m *MessageRepositoryMock) Count(ctx context.Context, room models.RoomRef) (int, error) {
	args := m.Called(ctx, room)
	return args.Int(0), args.Error(1)
}

type UserClientMock struct {
	mock.Mock
}

func (m *UserClientMock) AreFriends(ctx context.Context, userID, friendID int) (bool, error) {
	args := m.Called(ctx, userID, friendID)
	return args.Bool(0), args.Error(1)
}

func (m *UserClientMock) GetUser(ctx context.Context, userID int) (models.UserProfile, error) {
	args := m.Called(ctx, userID)
	var profile models.UserProfile
	if val := args.Get(0); val != nil {
		profile = val.(models.UserProfile)
	}
	return profile, args.Error(1)
}

type TrackerMock struct {
	mock.Mock
}

func (m *TrackerMock) Increment(ctx context.Context, room models.RoomRef) (int64, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TrackerMock) Decrement(ctx context.Context, room models.RoomRef) (int64, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TrackerMock) Count(ctx context.Context, room models.RoomRef) (int64, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TrackerMock) Close() error {
	return m.Called().Error(0)
}

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) PresenceCount(ctx context.Context, roomID int) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ChatServiceMock) FriendshipChanged(ctx context.Context, userID, friendID int, friends bool) (models.PrivateRoom, error) {
	args := m.Called(ctx, userID, friendID, friends)
	var room models.PrivateRoom
	if val := args.Get(0); val != nil {
		room = val.(models.PrivateRoom)
	}
	return room, args.Error(1)
}
