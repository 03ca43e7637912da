package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

const (
	maxRetries = 3
	baseDelay  = time.Second
)

type AuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// TokenRefresher fetches bearer tokens with the OAuth2 client credentials
// grant and keeps the last one until it is invalidated.
type TokenRefresher struct {
	httpClient *http.Client
	cfg        AuthConfig
	retryDelay time.Duration

	mu    sync.Mutex
	token string
}

func NewTokenRefresher(cfg AuthConfig, httpClient *http.Client) *TokenRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenRefresher{httpClient: httpClient, cfg: cfg, retryDelay: baseDelay}
}

func (r *TokenRefresher) CurrentToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// Token returns the cached token, fetching one first when none is held.
func (r *TokenRefresher) Token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token != "" {
		return r.token, nil
	}
	return r.refreshTokenLocked(ctx)
}

// Invalidate drops the cached token if it is still stale, so concurrent
// callers rejected with the same token trigger one refresh.
func (r *TokenRefresher) Invalidate(stale string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token == stale {
		r.token = ""
	}
}

func (r *TokenRefresher) RefreshToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.refreshTokenLocked(ctx)
}

func (r *TokenRefresher) refreshTokenLocked(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", errors.New("context cannot be nil")
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * r.retryDelay
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		token, err := r.fetch(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		r.token = token
		return token, nil
	}

	return "", lastErr
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (r *TokenRefresher) fetch(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {r.cfg.ClientID},
		"client_secret": {r.cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "token request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("token endpoint status=%d", resp.StatusCode)
	}
	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "token response")
	}
	if out.AccessToken == "" {
		return "", errors.New("received empty token from auth endpoint")
	}
	return out.AccessToken, nil
}
