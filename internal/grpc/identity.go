package grpc

import (
	"context"
	"fmt"

	"chatroom-service/internal/models"
)

type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (int, error)
}

type profileSource interface {
	GetUser(ctx context.Context, userID int) (models.UserProfile, error)
}

// IdentityResolver turns a bearer token into the participant of a connection.
type IdentityResolver struct {
	auth  tokenValidator
	users profileSource
}

func NewIdentityResolver(auth tokenValidator, users profileSource) *IdentityResolver {
	return &IdentityResolver{auth: auth, users: users}
}

// Resolve returns the anonymous participant for an empty token. A rejected
// token yields ErrInvalidToken.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (models.Participant, error) {
	if token == "" {
		return models.Anonymous(), nil
	}
	userID, err := r.auth.ValidateToken(ctx, token)
	if err != nil {
		return models.Participant{}, err
	}
	profile, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return models.Participant{}, fmt.Errorf("load profile: %w", err)
	}
	return profile.Participant(), nil
}
