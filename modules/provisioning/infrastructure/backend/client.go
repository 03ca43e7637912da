package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/collaborators"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/entities/catalog"
	"github.com/iota-uz/provisioning-sdk/pkg/composables"
	"github.com/iota-uz/provisioning-sdk/pkg/configuration"
)

const (
	PathLookupValues        = "/lookup-values"
	PathPermissionSets      = "/permission-sets"
	PathPermissionSetGroups = "/permission-set-groups"
	PathDynamicRules        = "/dynamic-rules"
	PathAssistantAsk        = "/assistant/ask"
)

// RemoteError is a non-2xx answer of the backend.
type RemoteError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	ErrorCode  string `json:"errorCode"`
}

func (e *RemoteError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("backend status=%d: %s (%s)", e.StatusCode, e.Message, e.ErrorCode)
	}
	return fmt.Sprintf("backend status=%d: %s", e.StatusCode, e.Message)
}

func (e *RemoteError) RemoteMessage() string {
	return e.Message
}

type Config struct {
	BaseURL string
	// Token is a static bearer token. It is ignored when Auth is set.
	Token           string
	Auth            *AuthConfig
	Timeout         time.Duration
	RequestIDHeader string
	HTTPClient      *http.Client
}

// Client talks JSON over HTTP to the system of record. It serves every
// provisioning collaborator and the assistant proxy.
type Client struct {
	baseURL         *url.URL
	token           string
	refresher       *TokenRefresher
	requestIDHeader string
	httpClient      *http.Client
}

var (
	_ collaborators.LookupSource             = (*Client)(nil)
	_ collaborators.PermissionSetSource      = (*Client)(nil)
	_ collaborators.PermissionSetGroupSource = (*Client)(nil)
	_ collaborators.RuleSaver                = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid backend url: %q", raw)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		baseURL:         u,
		token:           strings.TrimSpace(cfg.Token),
		requestIDHeader: cfg.RequestIDHeader,
		httpClient:      httpClient,
	}
	if cfg.Auth != nil && cfg.Auth.TokenURL != "" {
		c.refresher = NewTokenRefresher(*cfg.Auth, httpClient)
	}
	return c, nil
}

func NewFromConfiguration(conf *configuration.Configuration) (*Client, error) {
	return New(Config{
		BaseURL: conf.Backend.URL,
		Token:   conf.Backend.Token,
		Auth: &AuthConfig{
			TokenURL:     conf.Backend.AuthURL,
			ClientID:     conf.Backend.ClientID,
			ClientSecret: conf.Backend.ClientSecret,
		},
		Timeout:         conf.Backend.Timeout,
		RequestIDHeader: conf.RequestIDHeader,
	})
}

// doJSON sends one request. With a token refresher, a 401 answer invalidates
// the token; only GET requests are then retried once with a fresh one.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody any, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	var payload []byte
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return errors.Wrap(err, "json marshal request")
		}
		payload = b
	}

	requestID := ""
	if c.requestIDHeader != "" {
		var ok bool
		if requestID, ok = composables.UseRequestID(ctx); !ok {
			requestID = uuid.NewString()
		}
	}

	for attempt := 0; ; attempt++ {
		token, err := c.bearer(ctx)
		if err != nil {
			return err
		}

		status, respBody, err := c.send(ctx, method, u.String(), path, payload, requestID, token)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized && c.refresher != nil {
			c.refresher.Invalidate(token)
			if method == http.MethodGet && attempt == 0 {
				continue
			}
		}

		if status < 200 || status >= 300 {
			remote := &RemoteError{StatusCode: status}
			if err := json.Unmarshal(respBody, remote); err != nil || strings.TrimSpace(remote.Message) == "" {
				remote.Message = strings.TrimSpace(string(respBody))
			}
			if remote.Message == "" {
				remote.Message = http.StatusText(status)
			}
			return remote
		}

		if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(err, "json unmarshal response")
		}
		return nil
	}
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.refresher == nil {
		return c.token, nil
	}
	token, err := c.refresher.Token(ctx)
	if err != nil {
		return "", errors.Wrap(err, "backend auth")
	}
	return token, nil
}

func (c *Client) send(ctx context.Context, method, target, path string, payload []byte, requestID, token string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "http request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID != "" {
		req.Header.Set(c.requestIDHeader, requestID)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("backend call")

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "http read")
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) GetLookupValues(ctx context.Context) (catalog.LookupOptions, error) {
	var out catalog.LookupOptions
	if err := c.doJSON(ctx, http.MethodGet, PathLookupValues, nil, &out); err != nil {
		return catalog.LookupOptions{}, err
	}
	return out.Clone(), nil
}

func (c *Client) GetPermissionSets(ctx context.Context) ([]catalog.PermissionEntry, error) {
	return c.getEntries(ctx, PathPermissionSets)
}

func (c *Client) GetPermissionSetGroups(ctx context.Context) ([]catalog.PermissionEntry, error) {
	return c.getEntries(ctx, PathPermissionSetGroups)
}

func (c *Client) getEntries(ctx context.Context, path string) ([]catalog.PermissionEntry, error) {
	var out []catalog.PermissionEntry
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return catalog.CloneEntries(out), nil
}

func (c *Client) SaveDynamicRule(ctx context.Context, req collaborators.SaveRuleRequest) error {
	return c.doJSON(ctx, http.MethodPost, PathDynamicRules, req, nil)
}

type askRequest struct {
	UserQuery string `json:"userQuery"`
}

// Ask forwards one chat turn; the backend answers with a bare JSON string.
func (c *Client) Ask(ctx context.Context, userQuery string) (string, error) {
	var reply string
	if err := c.doJSON(ctx, http.MethodPost, PathAssistantAsk, askRequest{UserQuery: userQuery}, &reply); err != nil {
		return "", err
	}
	return reply, nil
}
