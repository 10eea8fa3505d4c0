package middleware

import (
	"log"
	"strconv"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/ratelimit"
	"github.com/gofiber/fiber/v3"
)

// RateLimitMiddleware guards mutating endpoints with a per-caller window limit
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter ratelimit.Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit admits or rejects the request against the endpoint's base config,
// scaled by the caller's plan tier. The check-then-consume pair is a single
// logical admission; handlers must never be reachable without it.
func (m *RateLimitMiddleware) Limit(scope string, base ratelimit.Config) fiber.Handler {
	return func(c fiber.Ctx) error {
		key := scope + ":" + RateLimitKey(c)
		cfg := base.Scaled(CallerTier(c))

		decision, err := m.limiter.IsAllowed(c.Context(), key, cfg)
		if err != nil {
			// The limiter itself fails open; an error here means a programming
			// mistake, not store unavailability
			log.Println("rate limit check failed", err)
			return c.Next()
		}

		setRateLimitHeaders(c, cfg, decision)

		if !decision.Allowed {
			RecordRateLimitRejection(scope)
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Rate limit exceeded",
				Error: dto.ErrorDetail{
					Code:    "RATE_LIMIT_EXCEEDED",
					Details: "Too many requests, retry after " + strconv.Itoa(retryAfter) + "s",
				},
			})
		}

		if err := m.limiter.Consume(c.Context(), key, cfg); err != nil {
			log.Println("rate limit consume failed", err)
		}

		return c.Next()
	}
}

func setRateLimitHeaders(c fiber.Ctx, cfg ratelimit.Config, d *ratelimit.Decision) {
	c.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Set("RateLimit-Reset", strconv.FormatInt(d.ResetTime.Unix(), 10))
	c.Set("RateLimit-Policy", strconv.Itoa(cfg.MaxRequests)+";w="+strconv.FormatInt(int64(cfg.Window.Seconds()), 10))
}
