package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/ratelimit"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	teamID uint
	userID uint
	tier   ratelimit.Tier
	err    error
}

func (r *stubResolver) Resolve(token string) (uint, uint, ratelimit.Tier, error) {
	return r.teamID, r.userID, r.tier, r.err
}

// stubLimiter is a canned-decision Limiter recording consume calls
type stubLimiter struct {
	decision *ratelimit.Decision
	err      error
	consumed []string
}

func (l *stubLimiter) IsAllowed(ctx context.Context, key string, cfg ratelimit.Config) (*ratelimit.Decision, error) {
	return l.decision, l.err
}

func (l *stubLimiter) Consume(ctx context.Context, key string, cfg ratelimit.Config) error {
	l.consumed = append(l.consumed, key)
	return nil
}

func (l *stubLimiter) IsBlocked(ctx context.Context, key string) (bool, error) { return false, nil }
func (l *stubLimiter) Block(ctx context.Context, key string, dur time.Duration) error {
	return nil
}
func (l *stubLimiter) Reset(ctx context.Context, key string) error { return nil }

func identityApp(resolver IdentityResolver) *fiber.App {
	app := fiber.New()
	m := NewIdentityMiddleware(resolver)
	app.Get("/protected", m.Authenticate(), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"team_id": c.Locals("team_id"),
			"user_id": c.Locals("user_id"),
			"key":     RateLimitKey(c),
			"tier":    string(CallerTier(c)),
		})
	})
	return app
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error dto.ErrorDetail `json:"error"`
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &body))
	return body.Error.Code
}

func TestAuthenticateMissingHeader(t *testing.T) {
	app := identityApp(&stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", errorCode(t, resp))
}

func TestAuthenticateBadFormat(t *testing.T) {
	app := identityApp(&stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc123")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_AUTHORIZATION_FORMAT", errorCode(t, resp))
}

func TestAuthenticateEmptyToken(t *testing.T) {
	app := identityApp(&stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_ACCESS_TOKEN", errorCode(t, resp))
}

func TestAuthenticateRejectedToken(t *testing.T) {
	app := identityApp(&stubResolver{err: errors.New("unknown token")})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_ACCESS_TOKEN", errorCode(t, resp))
}

func TestAuthenticatePopulatesIdentity(t *testing.T) {
	app := identityApp(&stubResolver{teamID: 7, userID: 3, tier: ratelimit.TierPro})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &body))

	assert.Equal(t, float64(7), body["team_id"])
	assert.Equal(t, float64(3), body["user_id"])
	assert.Equal(t, "team:7", body["key"])
	assert.Equal(t, "pro", body["tier"])
}

func TestRateLimitKeyFallsBackToIP(t *testing.T) {
	app := fiber.New()
	app.Get("/open", func(c fiber.Ctx) error {
		return c.SendString(RateLimitKey(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ip:")
}

func rateLimitApp(limiter ratelimit.Limiter, base ratelimit.Config) *fiber.App {
	app := fiber.New()
	m := NewRateLimitMiddleware(limiter)
	app.Post("/limited", m.Limit("test", base), func(c fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app
}

func TestLimitAllowsAndConsumes(t *testing.T) {
	limiter := &stubLimiter{
		decision: &ratelimit.Decision{
			Allowed:   true,
			Limit:     5,
			Remaining: 4,
			ResetTime: time.Now().Add(time.Minute),
		},
	}
	app := rateLimitApp(limiter, ratelimit.Config{MaxRequests: 5, Window: time.Minute})

	req := httptest.NewRequest(http.MethodPost, "/limited", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("RateLimit-Limit"))
	assert.Equal(t, "4", resp.Header.Get("RateLimit-Remaining"))
	assert.Equal(t, "5;w=60", resp.Header.Get("RateLimit-Policy"))
	require.Len(t, limiter.consumed, 1)
	assert.Contains(t, limiter.consumed[0], "test:")
}

func TestLimitRejectsWhenExhausted(t *testing.T) {
	limiter := &stubLimiter{
		decision: &ratelimit.Decision{
			Allowed:    false,
			Limit:      5,
			Remaining:  0,
			ResetTime:  time.Now().Add(30 * time.Second),
			RetryAfter: 30 * time.Second,
		},
	}
	app := rateLimitApp(limiter, ratelimit.Config{MaxRequests: 5, Window: time.Minute})

	req := httptest.NewRequest(http.MethodPost, "/limited", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("RateLimit-Remaining"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, resp))
	assert.Empty(t, limiter.consumed, "rejected requests must not consume quota")
}

func TestLimitFailsOpenOnLimiterError(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("broken")}
	app := rateLimitApp(limiter, ratelimit.Config{MaxRequests: 5, Window: time.Minute})

	req := httptest.NewRequest(http.MethodPost, "/limited", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
