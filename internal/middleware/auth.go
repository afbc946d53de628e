package middleware

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for storing the authenticated user's email.
	EmailKey contextKey = "email"
	// RequestIDKey is the context key for the request ID set by LoggingInterceptor.
	RequestIDKey contextKey = "request_id"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetEmail extracts the user email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// WithUser returns a context carrying an authenticated caller.
func WithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, EmailKey, email)
}

// RequireAuth returns an interceptor that validates the bearer token and rejects
// requests without one. The caller's user ID becomes the creator of any transaction
// the request records.
func RequireAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token, err := auth.BearerToken(req.Header().Get("Authorization"))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			claims, err := jwtManager.Validate(token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithUser(ctx, claims.UserID, claims.Email), req)
		}
	}
}

// OptionalAuth returns an interceptor that validates a bearer token if present but also
// lets anonymous requests through. Used when the server runs without a JWT secret on a
// trusted network.
func OptionalAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token, err := auth.BearerToken(req.Header().Get("Authorization"))
			if err == nil && jwtManager != nil {
				// Ignore invalid tokens: optional auth.
				if claims, err := jwtManager.Validate(token); err == nil {
					ctx = WithUser(ctx, claims.UserID, claims.Email)
				}
			}
			return next(ctx, req)
		}
	}
}
