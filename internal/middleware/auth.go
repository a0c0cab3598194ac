// Package middleware hosts authentication, logging, and rate limiting
// middleware.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const (
	ctxActorIDKey contextKey = "actor_id"
	ctxRoleKey    contextKey = "role"
)

// Roles recognized by the engine. Reviewing and escalating require an
// officer; confirming a filing requires admin.
const (
	RoleComplianceOfficer = "compliance_officer"
	RoleAdmin             = "admin"
)

// AuthMiddleware validates bearer JWTs and injects the actor identity
// into the context.
type AuthMiddleware struct {
	jwtSecret string
}

// NewAuthMiddleware constructs an AuthMiddleware with the given secret.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: secret}
}

// Authenticate enforces bearer auth and populates actor details on the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			jsonError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			jsonError(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}
		tokenString := parts[1]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(m.jwtSecret), nil
		})

		if err != nil || !token.Valid {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		if exp, ok := claims["exp"].(float64); ok {
			if time.Now().Unix() > int64(exp) {
				jsonError(w, http.StatusUnauthorized, "Token expired")
				return
			}
		}

		actorIDStr, ok := claims["actor_id"].(string)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid actor ID in token")
			return
		}

		actorID, err := uuid.Parse(actorIDStr)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid actor ID format")
			return
		}

		ctx := context.WithValue(r.Context(), ctxActorIDKey, actorID)
		if role, ok := claims["role"].(string); ok {
			ctx = context.WithValue(ctx, ctxRoleKey, role)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorIDFromContext extracts the authenticated actor's id.
func ActorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxActorIDKey).(uuid.UUID)
	return id, ok
}

// RoleFromContext extracts the authenticated actor's role.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(ctxRoleKey).(string)
	return role, ok
}

// RequireRole rejects requests whose actor lacks the given role. Admin
// satisfies every role check.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actual, ok := RoleFromContext(r.Context())
			if !ok || (actual != role && actual != RoleAdmin) {
				jsonError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
