package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"stockroom/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const actorKey contextKey = "actor"

var (
	errMissingHeader = errors.New("missing authorization header")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errTokenExpired  = errors.New("token expired")
	errInvalidToken  = errors.New("invalid token")
	errInvalidClaims = errors.New("invalid token claims")
)

// AuthMiddleware rejects requests without a valid bearer token and stores the
// caller as a *domain.Actor in the request context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, logger, true)
}

// OptionalAuthMiddleware lets anonymous requests through. A token that is
// present but invalid is still rejected.
func OptionalAuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, logger, false)
}

func authenticate(jwtSecret string, logger *zap.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := actorFromRequest(r, jwtSecret)
			if errors.Is(err, errMissingHeader) && !required {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				logger.Debug("Authentication failed", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", actor.ID.String()),
				zap.String("role", string(actor.Role)),
			)

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func actorFromRequest(r *http.Request, jwtSecret string) (*domain.Actor, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errMissingHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errHeaderFormat
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errInvalidToken
	}
	if !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidClaims
	}

	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, errInvalidClaims
	}

	rawRole, _ := claims["role"].(string)
	role := domain.Role(rawRole)
	if !role.IsValid() {
		return nil, errInvalidClaims
	}

	return &domain.Actor{ID: userID, Role: role}, nil
}

// WithActor stores actor in ctx
func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the authenticated caller, or nil for anonymous requests
func ActorFromContext(ctx context.Context) *domain.Actor {
	actor, _ := ctx.Value(actorKey).(*domain.Actor)
	return actor
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	actor := ActorFromContext(ctx)
	if actor == nil {
		return uuid.Nil, false
	}
	return actor.ID, true
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (domain.Role, bool) {
	actor := ActorFromContext(ctx)
	if actor == nil {
		return "", false
	}
	return actor.Role, true
}
