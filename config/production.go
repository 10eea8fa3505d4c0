// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Cache      CacheConfig      `json:"cache"`
	Queue      QueueConfig      `json:"queue"`
	Webhook    WebhookConfig    `json:"webhook"`
	Platforms  PlatformsConfig  `json:"platforms"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableMetrics     bool          `json:"enable_metrics"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

type SecurityConfig struct {
	// TLS/HTTPS
	TLSEnabled    bool   `json:"tls_enabled"`
	TLSCertFile   string `json:"tls_cert_file"`
	TLSKeyFile    string `json:"tls_key_file"`
	TLSMinVersion string `json:"tls_min_version"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Content Security
	XFrameOptions       string `json:"x_frame_options"`
	XContentTypeOptions string `json:"x_content_type_options"`
	ReferrerPolicy      string `json:"referrer_policy"`
}

// EndpointLimit is one endpoint's base rate limit window before tier scaling
type EndpointLimit struct {
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
}

type RateLimitConfig struct {
	// Per-endpoint base limits, scaled by the caller's plan tier
	SchedulePost  EndpointLimit `json:"schedule_post"`
	MutatePost    EndpointLimit `json:"mutate_post"`
	WebhookAdmin  EndpointLimit `json:"webhook_admin"`
	BlockDuration time.Duration `json:"block_duration"`
	KeyPrefix     string        `json:"key_prefix"`
}

type CacheConfig struct {
	RedisURL      string        `json:"redis_url"`
	RedisDB       int           `json:"redis_db"`
	RedisPrefix   string        `json:"redis_prefix"`
	RedisPassword string        `json:"redis_password"`
	DialTimeout   time.Duration `json:"dial_timeout"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	PoolSize      int           `json:"pool_size"`
}

type QueueConfig struct {
	KeyPrefix        string        `json:"key_prefix"`
	WorkerCount      int           `json:"worker_count"`
	PromoterInterval time.Duration `json:"promoter_interval"`
	JobStatusTTL     time.Duration `json:"job_status_ttl"`
}

type WebhookConfig struct {
	Timeout     time.Duration   `json:"timeout"`
	MaxRetries  int             `json:"max_retries"`
	RetryDelays []time.Duration `json:"retry_delays"`
	UserAgent   string          `json:"user_agent"`
}

// PlatformConfig is the API endpoint configuration for one adapter
type PlatformConfig struct {
	Enabled bool          `json:"enabled"`
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

type PlatformsConfig struct {
	Twitter  PlatformConfig `json:"twitter"`
	LinkedIn PlatformConfig `json:"linkedin"`
	Facebook PlatformConfig `json:"facebook"`
	Mastodon PlatformConfig `json:"mastodon"`
}

type LoggingConfig struct {
	Level        string `json:"level"`  // debug, info, warn, error
	Format       string `json:"format"` // json, text
	Output       string `json:"output"` // stdout, file, both
	FilePath     string `json:"file_path"`
	EnableCaller bool   `json:"enable_caller"`

	// Access Logs
	EnableAccessLog bool   `json:"enable_access_log"`
	AccessLogPath   string `json:"access_log_path"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`

	// Custom Metrics
	CollectDBMetrics    bool `json:"collect_db_metrics"`
	CollectQueueMetrics bool `json:"collect_queue_metrics"`
	CollectAppMetrics   bool `json:"collect_app_metrics"`
}

type DeploymentConfig struct {
	Domain    string `json:"domain"`
	APIDomain string `json:"api_domain"`

	// Build Information
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			EnableMetrics:     getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Security: SecurityConfig{
			TLSEnabled:          getEnvBool("TLS_ENABLED", true),
			TLSCertFile:         getEnvString("TLS_CERT_FILE", "/etc/ssl/certs/kage-bunshin.crt"),
			TLSKeyFile:          getEnvString("TLS_KEY_FILE", "/etc/ssl/private/kage-bunshin.key"),
			TLSMinVersion:       getEnvString("TLS_MIN_VERSION", "1.3"),
			AllowedOrigins:      getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://kage-bunshin.com", "https://api.kage-bunshin.com", "https://app.kage-bunshin.com"}),
			AllowedMethods:      getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:      getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Request-ID"}),
			AllowCredentials:    getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:          getEnvInt("CORS_MAX_AGE", 86400),
			XFrameOptions:       getEnvString("X_FRAME_OPTIONS", "DENY"),
			XContentTypeOptions: getEnvString("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:      getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		RateLimit: RateLimitConfig{
			SchedulePost: EndpointLimit{
				MaxRequests: getEnvInt("RATE_LIMIT_SCHEDULE_MAX", 30),
				Window:      getEnvDuration("RATE_LIMIT_SCHEDULE_WINDOW", 1*time.Minute),
			},
			MutatePost: EndpointLimit{
				MaxRequests: getEnvInt("RATE_LIMIT_MUTATE_MAX", 60),
				Window:      getEnvDuration("RATE_LIMIT_MUTATE_WINDOW", 1*time.Minute),
			},
			WebhookAdmin: EndpointLimit{
				MaxRequests: getEnvInt("RATE_LIMIT_WEBHOOK_MAX", 20),
				Window:      getEnvDuration("RATE_LIMIT_WEBHOOK_WINDOW", 1*time.Minute),
			},
			BlockDuration: getEnvDuration("RATE_LIMIT_BLOCK_DURATION", 0),
			KeyPrefix:     getEnvString("RATE_LIMIT_KEY_PREFIX", "ratelimit:"),
		},
		Cache: CacheConfig{
			RedisURL:      getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:       getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:   getEnvString("CACHE_REDIS_PREFIX", "kage:"),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			DialTimeout:   getEnvDuration("CACHE_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("CACHE_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("CACHE_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:      getEnvInt("CACHE_POOL_SIZE", 10),
		},
		Queue: QueueConfig{
			KeyPrefix:        getEnvString("QUEUE_KEY_PREFIX", "queue:posts:"),
			WorkerCount:      getEnvInt("QUEUE_WORKER_COUNT", 4),
			PromoterInterval: getEnvDuration("QUEUE_PROMOTER_INTERVAL", 1*time.Second),
			JobStatusTTL:     getEnvDuration("QUEUE_JOB_STATUS_TTL", 24*time.Hour),
		},
		Webhook: WebhookConfig{
			Timeout:     getEnvDuration("WEBHOOK_TIMEOUT", 30*time.Second),
			MaxRetries:  getEnvInt("WEBHOOK_MAX_RETRIES", 3),
			RetryDelays: getEnvDurationSlice("WEBHOOK_RETRY_DELAYS", []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}),
			UserAgent:   getEnvString("WEBHOOK_USER_AGENT", "Kage-Bunshin-Webhooks/1.0"),
		},
		Platforms: PlatformsConfig{
			Twitter: PlatformConfig{
				Enabled: getEnvBool("PLATFORM_TWITTER_ENABLED", true),
				BaseURL: getEnvString("PLATFORM_TWITTER_BASE_URL", ""),
				Timeout: getEnvDuration("PLATFORM_TWITTER_TIMEOUT", 30*time.Second),
			},
			LinkedIn: PlatformConfig{
				Enabled: getEnvBool("PLATFORM_LINKEDIN_ENABLED", true),
				BaseURL: getEnvString("PLATFORM_LINKEDIN_BASE_URL", ""),
				Timeout: getEnvDuration("PLATFORM_LINKEDIN_TIMEOUT", 30*time.Second),
			},
			Facebook: PlatformConfig{
				Enabled: getEnvBool("PLATFORM_FACEBOOK_ENABLED", true),
				BaseURL: getEnvString("PLATFORM_FACEBOOK_BASE_URL", ""),
				Timeout: getEnvDuration("PLATFORM_FACEBOOK_TIMEOUT", 30*time.Second),
			},
			Mastodon: PlatformConfig{
				Enabled: getEnvBool("PLATFORM_MASTODON_ENABLED", true),
				BaseURL: getEnvString("PLATFORM_MASTODON_BASE_URL", ""),
				Timeout: getEnvDuration("PLATFORM_MASTODON_TIMEOUT", 30*time.Second),
			},
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/kage/app.log"),
			EnableCaller:    getEnvBool("LOG_ENABLE_CALLER", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
			AccessLogPath:   getEnvString("LOG_ACCESS_PATH", "/var/log/kage/access.log"),
		},
		Metrics: MetricsConfig{
			Enabled:             getEnvBool("METRICS_ENABLED", true),
			Path:                getEnvString("METRICS_PATH", "/metrics"),
			CollectDBMetrics:    getEnvBool("METRICS_COLLECT_DB", true),
			CollectQueueMetrics: getEnvBool("METRICS_COLLECT_QUEUE", true),
			CollectAppMetrics:   getEnvBool("METRICS_COLLECT_APP", true),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "your-domain.com"),
			APIDomain:   getEnvString("API_DOMAIN", "api.your-domain.com"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func getEnvDurationSlice(key string, defaultValue []time.Duration) []time.Duration {
	if value := os.Getenv(key); value != "" {
		var result []time.Duration
		for _, item := range strings.Split(value, ",") {
			parsed, err := time.ParseDuration(strings.TrimSpace(item))
			if err != nil {
				return defaultValue
			}
			result = append(result, parsed)
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate rate limit configuration
	if cfg.RateLimit.SchedulePost.MaxRequests <= 0 {
		errors = append(errors, "RATE_LIMIT_SCHEDULE_MAX must be positive")
	}
	if cfg.RateLimit.SchedulePost.Window <= 0 {
		errors = append(errors, "RATE_LIMIT_SCHEDULE_WINDOW must be positive")
	}
	if cfg.RateLimit.MutatePost.MaxRequests <= 0 {
		errors = append(errors, "RATE_LIMIT_MUTATE_MAX must be positive")
	}
	if cfg.RateLimit.WebhookAdmin.MaxRequests <= 0 {
		errors = append(errors, "RATE_LIMIT_WEBHOOK_MAX must be positive")
	}

	// Validate cache configuration
	if cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required")
	}

	// Validate queue configuration
	if cfg.Queue.WorkerCount <= 0 {
		errors = append(errors, "QUEUE_WORKER_COUNT must be positive")
	}
	if cfg.Queue.PromoterInterval <= 0 {
		errors = append(errors, "QUEUE_PROMOTER_INTERVAL must be positive")
	}

	// Validate webhook configuration
	if cfg.Webhook.Timeout <= 0 {
		errors = append(errors, "WEBHOOK_TIMEOUT must be positive")
	}
	if cfg.Webhook.MaxRetries < 0 {
		errors = append(errors, "WEBHOOK_MAX_RETRIES cannot be negative")
	}

	// Validate TLS configuration if enabled
	if cfg.Security.TLSEnabled {
		if cfg.Security.TLSCertFile == "" {
			errors = append(errors, "TLS_CERT_FILE is required when TLS is enabled")
		}
		if cfg.Security.TLSKeyFile == "" {
			errors = append(errors, "TLS_KEY_FILE is required when TLS is enabled")
		}
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
