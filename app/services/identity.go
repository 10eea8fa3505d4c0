package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/amirphl/Kage-Bunshin/ratelimit"
	"github.com/redis/go-redis/v9"
)

// ErrUnknownToken is returned when an access token has no identity record
var ErrUnknownToken = errors.New("unknown access token")

// identityRecord is the stored shape of a provisioned API token
type identityRecord struct {
	TeamID uint   `json:"team_id"`
	UserID uint   `json:"user_id"`
	Tier   string `json:"tier"`
}

// RedisIdentityResolver resolves API tokens against identity records written
// by the account provisioning system. Tokens are stored hashed, never raw.
type RedisIdentityResolver struct {
	rc        *redis.Client
	keyPrefix string
	timeout   time.Duration
}

// NewRedisIdentityResolver creates a resolver using the given client and key prefix
func NewRedisIdentityResolver(rc *redis.Client, keyPrefix string) *RedisIdentityResolver {
	if keyPrefix == "" {
		keyPrefix = "identity:token"
	}
	return &RedisIdentityResolver{rc: rc, keyPrefix: keyPrefix, timeout: 3 * time.Second}
}

func (r *RedisIdentityResolver) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.keyPrefix + ":" + hex.EncodeToString(sum[:])
}

// Resolve looks up the token's identity record and returns the caller's team,
// user, and plan tier
func (r *RedisIdentityResolver) Resolve(token string) (uint, uint, ratelimit.Tier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.rc.Get(ctx, r.key(token)).Bytes()
	if err == redis.Nil {
		return 0, 0, "", ErrUnknownToken
	}
	if err != nil {
		return 0, 0, "", err
	}

	var rec identityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, 0, "", err
	}

	tier := ratelimit.Tier(rec.Tier)
	switch tier {
	case ratelimit.TierFree, ratelimit.TierPro, ratelimit.TierEnterprise:
	default:
		tier = ratelimit.TierFree
	}
	return rec.TeamID, rec.UserID, tier, nil
}

// ProvisionToken stores the identity record for a token. Used by provisioning
// tooling and tests.
func (r *RedisIdentityResolver) ProvisionToken(ctx context.Context, token string, teamID, userID uint, tier ratelimit.Tier) error {
	data, err := json.Marshal(identityRecord{TeamID: teamID, UserID: userID, Tier: string(tier)})
	if err != nil {
		return err
	}
	return r.rc.Set(ctx, r.key(token), data, 0).Err()
}

// MockIdentityResolver is a mock implementation for testing
type MockIdentityResolver struct {
	ResolveFunc func(token string) (uint, uint, ratelimit.Tier, error)
}

func (m *MockIdentityResolver) Resolve(token string) (uint, uint, ratelimit.Tier, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(token)
	}
	return 1, 1, ratelimit.TierFree, nil
}
