package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/provisioning-sdk/pkg/composables"
	"github.com/iota-uz/provisioning-sdk/pkg/routing"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestWithLogger_StoresRequestScope(t *testing.T) {
	r := mux.NewRouter()
	r.Use(WithLogger(quietLogger(), DefaultLoggerOptions()))

	var gotID string
	var hasID bool
	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		gotID, hasID = composables.UseRequestID(r.Context())
		composables.UseLogger(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "rid-7")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, hasID)
	assert.Equal(t, "rid-7", gotID)
	assert.Equal(t, "rid-7", rec.Header().Get("X-Request-ID"))
}

func TestWithLogger_RecoversPanics(t *testing.T) {
	r := mux.NewRouter()
	r.Use(WithLogger(quietLogger(), LoggerOptions{
		Classifier: routing.NewClassifier(routing.Rule{Prefix: "/health", Class: routing.RouteClassOps}),
	}))
	boom := func(http.ResponseWriter, *http.Request) { panic("boom") }
	r.HandleFunc("/provisioning/api/rule-builder/sessions", boom)
	r.HandleFunc("/page", boom)

	t.Run("api path gets the envelope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/provisioning/api/rule-builder/sessions", nil)
		req.Header.Set("X-Request-ID", "rid-9")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var body struct {
			Code string            `json:"code"`
			Meta map[string]string `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Code)
		assert.Equal(t, "rid-9", body.Meta["request_id"])
	})

	t.Run("other paths get plain text", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Internal Server Error")
	})
}

func TestRateLimit_RejectsBeyondLimit(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	r.Use(RateLimit(RateLimitConfig{RequestsPerPeriod: 1, Store: NewMemoryStore()}))
	r.HandleFunc("/x", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")
}

func TestCors_AllowsConfiguredOrigin(t *testing.T) {
	t.Parallel()

	h := Cors("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
