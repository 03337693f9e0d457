package grpc

import (
	"context"
	"fmt"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatroom-service/internal/apperr"
)

// ErrInvalidToken is returned when the auth service rejects a token.
var ErrInvalidToken = apperr.New(apperr.KindAccessDenied, apperr.CodeAuth, "invalid token")

// AuthClient wraps the auth-service gRPC client.
type AuthClient struct {
	c caller
}

// NewAuthClient constructs the wrapper.
func NewAuthClient(conn grpclib.ClientConnInterface, timeout time.Duration) *AuthClient {
	return &AuthClient{c: caller{conn: conn, timeout: timeout}}
}

// ValidateToken verifies the JWT and returns the authenticated user id.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (int, error) {
	resp, err := a.c.call(ctx, methodValidateToken, map[string]interface{}{"token": token})
	if err != nil {
		if status.Code(err) == codes.Unauthenticated {
			return 0, ErrInvalidToken
		}
		return 0, fmt.Errorf("validate token: %w", err)
	}
	userID := intField(resp, "user_id")
	if !boolField(resp, "valid") || userID == 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
