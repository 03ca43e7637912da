package controllers

import (
	"net/http"

	"github.com/iota-uz/provisioning-sdk/pkg/composables"
	"github.com/iota-uz/provisioning-sdk/pkg/httpapi"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	composables.UseLogger(r.Context()).WithField("code", code).Debug(message)
	if err := httpapi.WriteError(w, status, code, message, httpapi.RequestMeta(r)); err != nil {
		panic(err)
	}
}

func writeCodedError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err := httpapi.WriteCodedError(w, r, status, "INTERNAL", err); err != nil {
		panic(err)
	}
}
