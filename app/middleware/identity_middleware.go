// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"strconv"
	"strings"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/ratelimit"
	"github.com/gofiber/fiber/v3"
)

// IdentityResolver validates an API token and resolves the caller's team,
// user, and plan tier. Implemented by the external auth collaborator.
type IdentityResolver interface {
	Resolve(token string) (teamID, userID uint, tier ratelimit.Tier, err error)
}

// IdentityMiddleware authenticates requests and stores caller identity in locals
type IdentityMiddleware struct {
	resolver IdentityResolver
}

// NewIdentityMiddleware creates a new identity middleware
func NewIdentityMiddleware(resolver IdentityResolver) *IdentityMiddleware {
	return &IdentityMiddleware{resolver: resolver}
}

// Authenticate validates the bearer token and populates team_id, user_id,
// and tier locals for downstream handlers and the rate limiter.
func (m *IdentityMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Authorization header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_AUTHORIZATION_HEADER",
				},
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid authorization header format. Expected 'Bearer <token>'",
				Error: dto.ErrorDetail{
					Code: "INVALID_AUTHORIZATION_FORMAT",
				},
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Access token is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_ACCESS_TOKEN",
				},
			})
		}

		teamID, userID, tier, err := m.resolver.Resolve(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid or expired access token",
				Error: dto.ErrorDetail{
					Code: "INVALID_ACCESS_TOKEN",
				},
			})
		}

		c.Locals("team_id", teamID)
		c.Locals("user_id", userID)
		c.Locals("tier", tier)

		return c.Next()
	}
}

// RateLimitKey builds the limiter key for the authenticated caller, falling
// back to the client IP for unauthenticated routes
func RateLimitKey(c fiber.Ctx) string {
	if teamID, ok := c.Locals("team_id").(uint); ok {
		return "team:" + strconv.FormatUint(uint64(teamID), 10)
	}
	return "ip:" + c.IP()
}

// CallerTier returns the resolved plan tier, defaulting to free
func CallerTier(c fiber.Ctx) ratelimit.Tier {
	if tier, ok := c.Locals("tier").(ratelimit.Tier); ok {
		return tier
	}
	return ratelimit.TierFree
}
