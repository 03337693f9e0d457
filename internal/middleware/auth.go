package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"chatroom-service/internal/apperr"
	"chatroom-service/internal/models"
)

const (
	// UserIDKey holds the authenticated user's numeric ID (0 when anonymous).
	UserIDKey = "userID"
	// ParticipantKey holds the models.Participant of the caller.
	ParticipantKey = "participant"
)

// IdentityResolver maps a bearer token to a participant.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (models.Participant, error)
}

// TokenFromRequest reads the bearer token from the Authorization header or
// the token query parameter used by browser websocket clients.
func TokenFromRequest(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	return c.Query("token"), true
}

// Identity attaches the caller's participant. Requests without a token are
// anonymous; a rejected token aborts with 401.
func Identity(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := TokenFromRequest(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		participant, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, apperr.ErrAccessDenied) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			log.Error().Err(err).Str("module", "middleware").Msg("identity lookup failed")
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "identity service unavailable"})
			return
		}

		c.Set(ParticipantKey, participant)
		c.Set(UserIDKey, participant.ID)
		c.Next()
	}
}

// RequireAuth rejects anonymous callers. It must run after Identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ParticipantFrom(c).Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		c.Next()
	}
}

// ParticipantFrom returns the participant set by Identity, or anonymous.
func ParticipantFrom(c *gin.Context) models.Participant {
	if val, ok := c.Get(ParticipantKey); ok {
		if p, ok := val.(models.Participant); ok {
			return p
		}
	}
	return models.Anonymous()
}
