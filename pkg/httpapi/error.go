package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iota-uz/provisioning-sdk/pkg/composables"
	"github.com/iota-uz/provisioning-sdk/pkg/serrors"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// RequestMeta carries the request id of r, if any, into an error envelope.
func RequestMeta(r *http.Request) map[string]string {
	if r == nil {
		return nil
	}
	if id, ok := composables.UseRequestID(r.Context()); ok && id != "" {
		return map[string]string{"request_id": id}
	}
	return nil
}

// WriteCodedError writes err using its code when it is a *serrors.BaseError
// and falls back to fallbackCode otherwise.
func WriteCodedError(w http.ResponseWriter, r *http.Request, status int, fallbackCode string, err error) error {
	var coded *serrors.BaseError
	if errors.As(err, &coded) {
		return WriteError(w, status, coded.Code, coded.Message, RequestMeta(r))
	}
	return WriteError(w, status, fallbackCode, err.Error(), RequestMeta(r))
}
