package grpc

import (
	"context"
	"fmt"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatroom-service/internal/apperr"
	"chatroom-service/internal/models"
)

// ErrUserNotFound is returned when the user service has no such user.
var ErrUserNotFound = apperr.New(apperr.KindNotFound, apperr.CodeUserNotFound, "user not found")

// UserClient wraps the user-service gRPC client.
type UserClient struct {
	c caller
}

// NewUserClient constructs the wrapper.
func NewUserClient(conn grpclib.ClientConnInterface, timeout time.Duration) *UserClient {
	return &UserClient{c: caller{conn: conn, timeout: timeout}}
}

// AreFriends verifies friendship between two users.
func (u *UserClient) AreFriends(ctx context.Context, userID, friendID int) (bool, error) {
	resp, err := u.c.call(ctx, methodAreFriends, map[string]interface{}{"user_id": userID, "friend_id": friendID})
	if err != nil {
		return false, fmt.Errorf("are friends: %w", err)
	}
	return boolField(resp, "are_friends"), nil
}

// GetUser retrieves user details.
func (u *UserClient) GetUser(ctx context.Context, userID int) (models.UserProfile, error) {
	resp, err := u.c.call(ctx, methodGetUser, map[string]interface{}{"user_id": userID})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.UserProfile{}, ErrUserNotFound
		}
		return models.UserProfile{}, fmt.Errorf("get user %d: %w", userID, err)
	}
	if intField(resp, "id") == 0 {
		return models.UserProfile{}, ErrUserNotFound
	}
	return models.UserProfile{
		ID:        intField(resp, "id"),
		Username:  stringField(resp, "username"),
		Email:     stringField(resp, "email"),
		AvatarURL: stringField(resp, "avatar_url"),
	}, nil
}
