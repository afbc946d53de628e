package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call.
// It logs the procedure name, request ID, user ID, duration, and any error codes/messages.
// A request ID sent by the client is reused, otherwise a new one is generated.
// Install it after the auth interceptor so the user ID is known.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			userID := GetUserID(ctx) // empty if anonymous

			requestID := req.Header().Get(RequestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}
			ctx = context.WithValue(ctx, RequestIDKey, requestID)

			resp, err := next(ctx, req)

			duration := time.Since(start).Milliseconds()
			attrs := []any{
				"procedure", procedure,
				"request_id", requestID,
				"user_id", userID,
				"duration_ms", duration,
			}
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					connectErr.Meta().Set(RequestIDHeader, requestID)
					switch connectErr.Code() {
					case connect.CodeInternal, connect.CodeUnknown, connect.CodeDataLoss:
						logger.Error("RPC error", append(attrs, "code", connectErr.Code(), "error", connectErr.Message())...)
					default:
						logger.Warn("RPC error", append(attrs, "code", connectErr.Code(), "error", connectErr.Message())...)
					}
				} else {
					logger.Error("RPC error", append(attrs, "error", err)...)
				}
				return resp, err
			}

			resp.Header().Set(RequestIDHeader, requestID)
			logger.Info("RPC ok", attrs...)
			return resp, nil
		}
	}
}
