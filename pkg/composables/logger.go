package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/provisioning-sdk/pkg/constants"
)

// WithLogger returns a new context carrying the request scoped logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger from the context.
// Outside of an HTTP request (CLI, background loads) it falls back to the standard logger.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// WithRequestID stores the request id so downstream HTTP clients can propagate it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, requestID)
}

// UseRequestID returns the request id from the context.
// If the request id is not found, the second return value will be false.
func UseRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(constants.RequestIDKey).(string)
	if !ok || requestID == "" {
		return "", false
	}
	return requestID, true
}
