package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/collaborators"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/infrastructure/backend"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/services"
	"github.com/iota-uz/provisioning-sdk/pkg/composables"
)

func newClient(t *testing.T, handler http.Handler) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := backend.New(backend.Config{
		BaseURL:         srv.URL + "/services/apexrest/provisioning/",
		Token:           "secret",
		RequestIDHeader: "X-Request-ID",
	})
	require.NoError(t, err)
	return c
}

func TestNew_RejectsInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := backend.New(backend.Config{BaseURL: "not a url"})
	require.Error(t, err)
	_, err = backend.New(backend.Config{BaseURL: ""})
	require.Error(t, err)
}

func TestClient_Catalogs(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/services/apexrest/provisioning/lookup-values", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"jobTitles":["Engineer"],"departments":["R&D"]}`))
	})
	mux.HandleFunc("/services/apexrest/provisioning/permission-sets", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"ps1","label":"Sales Cloud"}]`))
	})
	mux.HandleFunc("/services/apexrest/provisioning/permission-set-groups", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	c := newClient(t, mux)
	ctx := context.Background()

	lookups, err := c.GetLookupValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Engineer"}, lookups.JobTitles)
	assert.NotNil(t, lookups.Roles)

	sets, err := c.GetPermissionSets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "Sales Cloud", sets[0].Label)

	groups, err := c.GetPermissionSetGroups(ctx)
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestClient_SaveDynamicRule(t *testing.T) {
	t.Parallel()

	var got collaborators.SaveRuleRequest
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/services/apexrest/provisioning/dynamic-rules", r.URL.Path)
		assert.Equal(t, "req-42", r.Header.Get("X-Request-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))

	ctx := composables.WithRequestID(context.Background(), "req-42")
	req := collaborators.SaveRuleRequest{
		JobTitle:              "Engineer",
		Department:            "R&D",
		PermissionSetIDs:      []string{"ps1"},
		PermissionSetGroupIDs: []string{},
		IsActive:              true,
	}
	require.NoError(t, c.SaveDynamicRule(ctx, req))
	assert.Equal(t, req, got)
}

func TestClient_RemoteErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  int
		body    string
		message string
		code    string
	}{
		{"structured", http.StatusBadRequest, `{"message":"DUPLICATE_VALUE: duplicate rule","errorCode":"DUPLICATE_VALUE"}`, "DUPLICATE_VALUE: duplicate rule", "DUPLICATE_VALUE"},
		{"plain body", http.StatusForbidden, "insufficient access", "insufficient access", ""},
		{"empty body", http.StatusInternalServerError, "", "Internal Server Error", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))

			err := c.SaveDynamicRule(context.Background(), collaborators.SaveRuleRequest{})
			var remote *backend.RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tc.status, remote.StatusCode)
			assert.Equal(t, tc.message, remote.Message)
			assert.Equal(t, tc.code, remote.ErrorCode)
			assert.Equal(t, tc.message, services.FailureMessage(err))
		})
	}
}

func TestClient_Ask(t *testing.T) {
	t.Parallel()

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/apexrest/provisioning/assistant/ask", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["userQuery"])
		_, _ = w.Write([]byte(`"hi there"`))
	}))

	reply, err := c.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
}
