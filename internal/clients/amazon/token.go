package amazon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"order-ingestion-service/internal/clients"
)

// DefaultSafetyMargin is how long before its reported expiry a token stops being reused
const DefaultSafetyMargin = 5 * time.Minute

// refreshTimeout bounds a shared refresh, which outlives the caller that started it
const refreshTimeout = 30 * time.Second

// Credentials are the Login with Amazon secrets of one seller application
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Validate fails with a ConfigurationError naming every missing secret
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client secret")
	}
	if strings.TrimSpace(c.RefreshToken) == "" {
		missing = append(missing, "refresh token")
	}
	if len(missing) > 0 {
		return &clients.ConfigurationError{Missing: missing}
	}
	return nil
}

// Token is an LWA access token with its absolute expiry
type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// TokenStore shares access tokens between replicas. Load returns nil, nil when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*Token, error)
	Save(ctx context.Context, token *Token) error
	Delete(ctx context.Context) error
}

// CredentialCache owns the access token of one client.
// The cached token is either absent or valid until ExpiresAt minus the safety margin.
// Concurrent callers that find it absent share a single refresh.
type CredentialCache struct {
	creds      Credentials
	endpoint   string
	httpClient *http.Client
	store      TokenStore
	margin     time.Duration
	now        func() time.Time
	logger     *logrus.Entry

	mu    sync.Mutex
	token *Token
	group singleflight.Group
}

// NewCredentialCache creates a cache that refreshes against the given LWA token endpoint.
// store may be nil.
func NewCredentialCache(creds Credentials, endpoint string, httpClient *http.Client, store TokenStore, logger *logrus.Entry) *CredentialCache {
	if endpoint == "" {
		endpoint = lwaTokenEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logrus.WithField("component", "amazon_credentials")
	}
	return &CredentialCache{
		creds:      creds,
		endpoint:   endpoint,
		httpClient: httpClient,
		store:      store,
		margin:     DefaultSafetyMargin,
		now:        time.Now,
		logger:     logger,
	}
}

func (c *CredentialCache) usable(t *Token) bool {
	return t != nil && t.AccessToken != "" && c.now().Before(t.ExpiresAt.Add(-c.margin))
}

// AccessToken returns a valid access token, refreshing it when absent or about to expire
func (c *CredentialCache) AccessToken(ctx context.Context) (string, error) {
	if err := c.creds.Validate(); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.usable(c.token) {
		token := c.token.AccessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	if c.store != nil {
		shared, err := c.store.Load(ctx)
		if err != nil {
			c.logger.WithError(err).Warn("failed to load shared access token")
		} else if c.usable(shared) {
			c.mu.Lock()
			c.token = shared
			c.mu.Unlock()
			return shared.AccessToken, nil
		}
	}

	return c.refresh(ctx)
}

// Invalidate drops the cached token locally and in the shared store
func (c *CredentialCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(ctx); err != nil {
			c.logger.WithError(err).Warn("failed to delete shared access token")
		}
	}
}

// ForceRefresh discards the cached token and obtains a new one
func (c *CredentialCache) ForceRefresh(ctx context.Context) (string, error) {
	if err := c.creds.Validate(); err != nil {
		return "", err
	}
	c.Invalidate(ctx)
	return c.refresh(ctx)
}

// refresh runs one token exchange for every concurrent caller. Each caller stops
// waiting when its own ctx ends; the exchange itself is not bound to any of them.
func (c *CredentialCache) refresh(ctx context.Context) (string, error) {
	ch := c.group.DoChan("access_token", func() (interface{}, error) {
		// a flight that finished just before this one started already stored a token
		c.mu.Lock()
		if c.usable(c.token) {
			token := c.token.AccessToken
			c.mu.Unlock()
			return token, nil
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		token, err := c.exchange(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.token = token
		c.mu.Unlock()

		if c.store != nil {
			if err := c.store.Save(ctx, token); err != nil {
				c.logger.WithError(err).Warn("failed to share access token")
			}
		}

		c.logger.WithField("expires_at", token.ExpiresAt.Format(time.RFC3339)).Debug("access token refreshed")
		return token.AccessToken, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// exchange performs the refresh-token grant
func (c *CredentialCache) exchange(ctx context.Context) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", c.creds.RefreshToken)
	data.Set("client_id", c.creds.ClientID)
	data.Set("client_secret", c.creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, &clients.AuthorizationError{
				StatusCode:  resp.StatusCode,
				Body:        string(body),
				Remediation: "Check the LWA client id, client secret and refresh token of the seller application",
			}
		}
		return nil, fmt.Errorf("token refresh failed: %w", &clients.APIError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response carried no access token")
	}

	return &Token{
		AccessToken: tokenResp.AccessToken,
		ExpiresAt:   c.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}
