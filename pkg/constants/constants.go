package constants

import (
	"github.com/go-playground/validator/v10"
)

type contextKey string

const (
	LoggerKey    contextKey = "logger"
	RequestIDKey contextKey = "requestID"
)

// Validate is the shared validator instance; validator caches struct metadata per instance.
var Validate = validator.New(validator.WithRequiredStructEnabled())
