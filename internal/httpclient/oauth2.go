package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridiangw/gateway/pkg/models"
)

// refreshWindow is how far before ExpiresAt a cached token is considered
// stale.
const refreshWindow = 30 * time.Second

// tokenCache holds the cached OAuth2 access token and serializes refreshes
// through a single in-flight request: one refresh is shared across every
// concurrent caller, and a single cancelled waiter never cancels the
// in-flight refresh for the others.
type tokenCache struct {
	mu    sync.RWMutex
	entry models.TokenCacheEntry
	group singleflight.Group
}

func newTokenCache() *tokenCache {
	return &tokenCache{}
}

// oauth2Token returns a usable access token, refreshing it first if stale.
func (c *Client) oauth2Token(ctx context.Context) (string, error) {
	c.tokens.mu.RLock()
	entry := c.tokens.entry
	c.tokens.mu.RUnlock()

	if entry.AccessToken != "" && time.Until(entry.ExpiresAt) > refreshWindow {
		return entry.AccessToken, nil
	}
	return c.refreshOAuth2Token(ctx)
}

// refreshOAuth2Token performs (or awaits an in-flight) token refresh.
// Multiple concurrent callers collapse onto one HTTP call via singleflight;
// a caller whose own context is cancelled does not cancel the refresh for
// the others still awaiting it, since the refresh itself runs detached from
// any single caller's context.
func (c *Client) refreshOAuth2Token(ctx context.Context) (string, error) {
	v, err, _ := c.tokens.group.Do(c.cfg.Name, func() (interface{}, error) {
		entry, rerr := c.doOAuth2Refresh(context.Background())
		if rerr != nil {
			return "", rerr
		}
		c.tokens.mu.Lock()
		c.tokens.entry = entry
		c.tokens.mu.Unlock()
		return entry.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type oauth2TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *Client) doOAuth2Refresh(ctx context.Context) (models.TokenCacheEntry, error) {
	auth := c.cfg.Authentication
	if auth.TokenURL == "" {
		return models.TokenCacheEntry{}, fmt.Errorf("oauth2: no token url configured for %s", c.cfg.Name)
	}

	refreshToken := auth.RefreshToken
	c.tokens.mu.RLock()
	if c.tokens.entry.RefreshToken != "" {
		refreshToken = c.tokens.entry.RefreshToken
	}
	c.tokens.mu.RUnlock()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", auth.ClientID)
	form.Set("client_secret", auth.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return models.TokenCacheEntry{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.TokenCacheEntry{}, fmt.Errorf("oauth2 refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return models.TokenCacheEntry{}, fmt.Errorf("oauth2 refresh: status %d", resp.StatusCode)
	}

	var tr oauth2TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return models.TokenCacheEntry{}, fmt.Errorf("oauth2 refresh: decode response: %w", err)
	}

	entry := models.TokenCacheEntry{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	if entry.RefreshToken == "" {
		entry.RefreshToken = refreshToken
	}
	return entry, nil
}
