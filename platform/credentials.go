package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCredentialStore resolves per-team platform credentials from Redis,
// where the OAuth connection flow (an external collaborator) writes them.
type RedisCredentialStore struct {
	rc        *redis.Client
	keyPrefix string
}

// NewRedisCredentialStore creates a Redis-backed credential store
func NewRedisCredentialStore(rc *redis.Client, keyPrefix string) *RedisCredentialStore {
	if keyPrefix == "" {
		keyPrefix = "platform:credentials"
	}
	return &RedisCredentialStore{rc: rc, keyPrefix: keyPrefix}
}

// GetCredentials returns the stored token bundle, or nil when the team has
// not connected the platform
func (s *RedisCredentialStore) GetCredentials(ctx context.Context, teamID uint, platform string) (*Credentials, error) {
	key := fmt.Sprintf("%s:%d:%s", s.keyPrefix, teamID, platform)

	raw, err := s.rc.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials for team %d platform %s: %w", teamID, platform, err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("stored credentials for team %d platform %s are malformed: %w", teamID, platform, err)
	}

	return &creds, nil
}

// SetCredentials stores a token bundle. Used by the OAuth callback flow and tests.
func (s *RedisCredentialStore) SetCredentials(ctx context.Context, teamID uint, platform string, creds Credentials) error {
	key := fmt.Sprintf("%s:%d:%s", s.keyPrefix, teamID, platform)

	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	return s.rc.Set(ctx, key, raw, 0).Err()
}

// MockCredentialStore implements CredentialStore for testing
type MockCredentialStore struct {
	GetCredentialsFunc func(ctx context.Context, teamID uint, platform string) (*Credentials, error)
	Creds              map[string]*Credentials
}

func (m *MockCredentialStore) GetCredentials(ctx context.Context, teamID uint, platform string) (*Credentials, error) {
	if m.GetCredentialsFunc != nil {
		return m.GetCredentialsFunc(ctx, teamID, platform)
	}
	if m.Creds != nil {
		return m.Creds[fmt.Sprintf("%d:%s", teamID, platform)], nil
	}
	return &Credentials{AccessToken: "test-token", AccountID: "test-account"}, nil
}
