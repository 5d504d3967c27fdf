package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// MarketplaceSecret is the envelope Amazon credentials may be stored in
type MarketplaceSecret struct {
	MarketplaceType string          `json:"marketplace_type"`
	Credentials     json.RawMessage `json:"credentials"`
}

// AmazonCredentials represents Amazon SP-API credentials
type AmazonCredentials struct {
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
	RefreshToken  string `json:"refresh_token"`
	MarketplaceID string `json:"marketplace_id,omitempty"`
	Region        string `json:"region,omitempty"` // na, eu, fe
}

// cacheEntry represents a cached secret payload with expiration
type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

type accessFunc func(ctx context.Context, name string) ([]byte, error)

// GCPSecretManager reads secrets from Google Cloud Secret Manager
type GCPSecretManager struct {
	client    *secretmanager.Client
	access    accessFunc
	projectID string
	cache     map[string]*cacheEntry
	cacheMu   sync.RWMutex
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewGCPSecretManager creates a new GCP Secret Manager client
func NewGCPSecretManager(ctx context.Context, projectID string) (*GCPSecretManager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	sm := newManager(projectID, func(ctx context.Context, name string) ([]byte, error) {
		result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: name + "/versions/latest",
		})
		if err != nil {
			return nil, err
		}
		return result.Payload.Data, nil
	})
	sm.client = client
	return sm, nil
}

func newManager(projectID string, access accessFunc) *GCPSecretManager {
	return &GCPSecretManager{
		access:    access,
		projectID: projectID,
		cache:     make(map[string]*cacheEntry),
		cacheTTL:  5 * time.Minute,
		now:       time.Now,
	}
}

// Close closes the Secret Manager client
func (sm *GCPSecretManager) Close() error {
	if sm.client != nil {
		return sm.client.Close()
	}
	return nil
}

// SecretName expands a bare secret id to projects/{project}/secrets/{id}.
// Fully qualified names are returned unchanged.
func (sm *GCPSecretManager) SecretName(secretID string) string {
	if strings.HasPrefix(secretID, "projects/") {
		return secretID
	}
	return fmt.Sprintf("projects/%s/secrets/%s", sm.projectID, sanitizeSecretID(secretID))
}

// GetSecret returns the latest version of a secret, cached for the cache TTL
func (sm *GCPSecretManager) GetSecret(ctx context.Context, secretID string) ([]byte, error) {
	name := sm.SecretName(secretID)

	sm.cacheMu.RLock()
	if entry, ok := sm.cache[name]; ok && sm.now().Before(entry.expiresAt) {
		sm.cacheMu.RUnlock()
		return entry.data, nil
	}
	sm.cacheMu.RUnlock()

	data, err := sm.access(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to access secret %s: %w", name, err)
	}

	sm.cacheMu.Lock()
	sm.cache[name] = &cacheEntry{data: data, expiresAt: sm.now().Add(sm.cacheTTL)}
	sm.cacheMu.Unlock()

	return data, nil
}

// GetString returns a plain-text secret such as a database password
func (sm *GCPSecretManager) GetString(ctx context.Context, secretID string) (string, error) {
	data, err := sm.GetSecret(ctx, secretID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// GetAmazonCredentials reads SP-API credentials stored either as a flat JSON
// object or wrapped in a MarketplaceSecret envelope
func (sm *GCPSecretManager) GetAmazonCredentials(ctx context.Context, secretID string) (*AmazonCredentials, error) {
	data, err := sm.GetSecret(ctx, secretID)
	if err != nil {
		return nil, err
	}

	var envelope MarketplaceSecret
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret: %w", err)
	}
	if len(envelope.Credentials) > 0 {
		if envelope.MarketplaceType != "" && !strings.EqualFold(envelope.MarketplaceType, "AMAZON") {
			return nil, fmt.Errorf("invalid marketplace type: expected AMAZON, got %s", envelope.MarketplaceType)
		}
		data = envelope.Credentials
	}

	var creds AmazonCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal amazon credentials: %w", err)
	}
	return &creds, nil
}

// InvalidateCache removes a secret from the cache
func (sm *GCPSecretManager) InvalidateCache(secretID string) {
	sm.cacheMu.Lock()
	delete(sm.cache, sm.SecretName(secretID))
	sm.cacheMu.Unlock()
}

// sanitizeSecretID removes or replaces invalid characters for GCP secret IDs
// Secret IDs can only contain alphanumeric characters, hyphens, and underscores
func sanitizeSecretID(input string) string {
	var result strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}
	return result.String()
}
