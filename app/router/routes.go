// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/app/handlers"
	"github.com/amirphl/Kage-Bunshin/app/middleware"
	"github.com/amirphl/Kage-Bunshin/config"
	"github.com/amirphl/Kage-Bunshin/ratelimit"
	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.ProductionConfig
	postHandler    handlers.PostHandlerInterface
	webhookHandler handlers.WebhookHandlerInterface
	identity       *middleware.IdentityMiddleware
	rateLimit      *middleware.RateLimitMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	postHandler handlers.PostHandlerInterface,
	webhookHandler handlers.WebhookHandlerInterface,
	identity *middleware.IdentityMiddleware,
	rateLimit *middleware.RateLimitMiddleware,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Kage Bunshin API",
		ServerHeader: "Kage-Bunshin",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:            app,
		cfg:            cfg,
		postHandler:    postHandler,
		webhookHandler: webhookHandler,
		identity:       identity,
		rateLimit:      rateLimit,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// Prometheus scrape endpoint
	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	scheduleCfg := endpointConfig(r.cfg.RateLimit.SchedulePost, r.cfg.RateLimit.BlockDuration)
	mutateCfg := endpointConfig(r.cfg.RateLimit.MutatePost, r.cfg.RateLimit.BlockDuration)
	webhookCfg := endpointConfig(r.cfg.RateLimit.WebhookAdmin, r.cfg.RateLimit.BlockDuration)

	// Post scheduling endpoints. Every mutating route sits behind the limiter.
	posts := api.Group("/posts", r.identity.Authenticate())
	posts.Post("/schedule", r.postHandler.SchedulePost, r.rateLimit.Limit("schedule", scheduleCfg))
	posts.Get("/:uuid", r.postHandler.GetPostStatus)
	posts.Post("/:uuid/cancel", r.postHandler.CancelPost, r.rateLimit.Limit("mutate", mutateCfg))
	posts.Post("/:uuid/reschedule", r.postHandler.ReschedulePost, r.rateLimit.Limit("mutate", mutateCfg))
	posts.Post("/:uuid/retry", r.postHandler.RetryPost, r.rateLimit.Limit("mutate", mutateCfg))

	// Webhook configuration endpoints
	webhooks := api.Group("/webhooks", r.identity.Authenticate())
	webhooks.Post("/", r.webhookHandler.CreateWebhookConfig, r.rateLimit.Limit("webhook", webhookCfg))
	webhooks.Get("/", r.webhookHandler.ListWebhookConfigs)
	webhooks.Patch("/:uuid", r.webhookHandler.UpdateWebhookConfig, r.rateLimit.Limit("webhook", webhookCfg))
	webhooks.Delete("/:uuid", r.webhookHandler.DeleteWebhookConfig, r.rateLimit.Limit("webhook", webhookCfg))
	webhooks.Post("/:uuid/test", r.webhookHandler.TestWebhook, r.rateLimit.Limit("webhook", webhookCfg))
	webhooks.Get("/:uuid/deliveries", r.webhookHandler.ListDeliveries)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: utils.RequestIDHeader,
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		ContentTypeNosniff: r.cfg.Security.XContentTypeOptions,
		XFrameOptions:      r.cfg.Security.XFrameOptions,
		ReferrerPolicy:     r.cfg.Security.ReferrerPolicy,
		HSTSMaxAge:         31536000,
	}))

	// CORS middleware with production settings
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{utils.RequestIDHeader, "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	// Compression middleware
	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	// Structured access logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks in production
			return c.Path() == "/api/v1/health"
		},
	}))

	// Prometheus metrics
	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "kage-bunshin-api",
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

func endpointConfig(limit config.EndpointLimit, block time.Duration) ratelimit.Config {
	return ratelimit.Config{
		MaxRequests:   limit.MaxRequests,
		Window:        limit.Window,
		BlockDuration: block,
	}
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
