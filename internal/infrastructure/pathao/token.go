package pathao

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"

	"github.com/goccy/go-json"
)

const (
	issueTokenPath = "/aladdin/api/v1/issue-token"
	tokenLeeway    = time.Minute
)

// tokenSource caches the provider access token and renews it before expiry
// or after a 401. Concurrent callers share one renewal.
type tokenSource struct {
	mu      sync.Mutex
	creds   Credentials
	http    *http.Client
	now     func() time.Time
	access  string
	refresh string
	expires time.Time
}

func newTokenSource(creds Credentials, httpClient *http.Client) *tokenSource {
	return &tokenSource{
		creds: creds,
		http:  httpClient,
		now:   time.Now,
	}
}

// Token returns a valid access token. A failed renewal is an error; callers
// must not fall back to an unauthenticated request.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.access != "" && t.now().Add(tokenLeeway).Before(t.expires) {
		return t.access, nil
	}

	if t.refresh != "" {
		tok, err := t.issue(ctx, tokenRequest{
			ClientID:     t.creds.ClientID,
			ClientSecret: t.creds.ClientSecret,
			GrantType:    "refresh_token",
			RefreshToken: t.refresh,
		})
		if err == nil {
			return t.store(tok), nil
		}
		logger.WithContext(ctx).Warn().Err(err).Msg("courier token refresh failed, requesting a new token")
		t.refresh = ""
	}

	tok, err := t.issue(ctx, tokenRequest{
		ClientID:     t.creds.ClientID,
		ClientSecret: t.creds.ClientSecret,
		GrantType:    "password",
		Username:     t.creds.Username,
		Password:     t.creds.Password,
	})
	if err != nil {
		return "", err
	}
	return t.store(tok), nil
}

// Invalidate drops the cached token if it is still the one that was rejected.
func (t *tokenSource) Invalidate(rejected string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.access == rejected {
		t.access = ""
		t.expires = time.Time{}
	}
}

func (t *tokenSource) store(tok *tokenResponse) string {
	t.access = tok.AccessToken
	if tok.RefreshToken != "" {
		t.refresh = tok.RefreshToken
	}
	t.expires = t.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return t.access
}

func (t *tokenSource) issue(ctx context.Context, body tokenRequest) (*tokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.creds.BaseURL+issueTokenPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindCourierUnavailable, "courier authentication unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindCourierUnavailable, "courier authentication unreachable", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := parseAPIError(resp.StatusCode, raw)
		kind := domain.KindCourierRejected
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = domain.KindCourierUnavailable
		}
		return nil, domain.NewError(kind, "courier authentication failed", apiErr)
	}

	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, domain.NewError(domain.KindCourierUnavailable, "courier returned an unreadable token", err)
	}
	if tok.AccessToken == "" {
		return nil, domain.NewError(domain.KindCourierRejected, "courier returned an empty token", nil)
	}
	if tok.ExpiresIn <= 0 {
		return nil, domain.NewError(domain.KindCourierRejected, fmt.Sprintf("courier token has invalid lifetime %d", tok.ExpiresIn), nil)
	}
	return &tok, nil
}
