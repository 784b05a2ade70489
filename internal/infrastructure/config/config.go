package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Scheduler    SchedulerConfig
	RateLimit    RateLimitConfig
	Retry        RetryConfig
	SmartStore   SmartStoreConfig
	Shopify      ShopifyConfig
	Orders       OrdersConfig
	ExchangeRate ExchangeRateConfig
	Retention    RetentionConfig
	Storage      StorageConfig
	Notifier     NotifierConfig
	Telemetry    TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// When disabled every shared component falls back to its in-process version.
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// SchedulerConfig holds sync scheduler and cron configuration
type SchedulerConfig struct {
	Enabled            bool // Whether cron triggers fire; manual triggers always work
	Concurrency        int
	JobTimeout         time.Duration
	Timezone           string
	FullSyncCron       string
	OrderIngestionCron string
	ExchangeRateCron   string
	LogRetentionCron   string
	CronTaskTimeout    time.Duration
	CronLockTTL        time.Duration
}

// RateLimitConfig holds outbound platform request budgets
type RateLimitConfig struct {
	Store              string // memory or redis
	SmartStorePoints   int
	SmartStoreDuration time.Duration
	ShopifyPoints      int
	ShopifyDuration    time.Duration
	WaitInterval       time.Duration
}

// RetryConfig holds retry parameters for remote calls
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// SmartStoreConfig holds Naver Commerce API settings
type SmartStoreConfig struct {
	Enabled        bool
	ClientID       string
	ClientSecret   string
	APIBaseURL     string
	TimeoutSeconds int
}

// ShopifyConfig holds Shopify Admin API settings
type ShopifyConfig struct {
	Enabled        bool
	ShopDomain     string
	AccessToken    string
	APIVersion     string
	LocationID     string
	APIBaseURL     string
	TimeoutSeconds int
}

// OrdersConfig holds order ingestion settings
type OrdersConfig struct {
	AckStore        string // database, redis or memory
	PageSize        int
	PageDelay       time.Duration
	Overlap         time.Duration
	InitialLookback time.Duration
	AckTTL          time.Duration
	ConfirmOrders   bool
}

// ExchangeRateConfig holds the FX provider settings
type ExchangeRateConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Pairs     []string          // e.g. ["KRW/USD"]
	Fallbacks map[string]string // e.g. {"KRW/USD": "0.00075"}
}

// RetentionConfig holds audit log retention settings
type RetentionConfig struct {
	Retention      time.Duration
	BatchSize      int
	ArchiveEnabled bool
	ArchivePrefix  string
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
}

// NotifierConfig holds the event sink settings
type NotifierConfig struct {
	BufferSize int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool // Export zap logs through the OTLP log bridge
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STORELINK_ prefix (e.g., STORELINK_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("STORELINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:            v.GetBool("scheduler.enabled"),
			Concurrency:        v.GetInt("scheduler.concurrency"),
			JobTimeout:         v.GetDuration("scheduler.job_timeout"),
			Timezone:           v.GetString("scheduler.timezone"),
			FullSyncCron:       v.GetString("scheduler.full_sync_cron"),
			OrderIngestionCron: v.GetString("scheduler.order_ingestion_cron"),
			ExchangeRateCron:   v.GetString("scheduler.exchange_rate_cron"),
			LogRetentionCron:   v.GetString("scheduler.log_retention_cron"),
			CronTaskTimeout:    v.GetDuration("scheduler.cron_task_timeout"),
			CronLockTTL:        v.GetDuration("scheduler.cron_lock_ttl"),
		},
		RateLimit: RateLimitConfig{
			Store:              v.GetString("ratelimit.store"),
			SmartStorePoints:   v.GetInt("ratelimit.smartstore_points"),
			SmartStoreDuration: v.GetDuration("ratelimit.smartstore_duration"),
			ShopifyPoints:      v.GetInt("ratelimit.shopify_points"),
			ShopifyDuration:    v.GetDuration("ratelimit.shopify_duration"),
			WaitInterval:       v.GetDuration("ratelimit.wait_interval"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retry.max_attempts"),
			BaseDelay:   v.GetDuration("retry.base_delay"),
			MaxDelay:    v.GetDuration("retry.max_delay"),
			Jitter:      v.GetFloat64("retry.jitter"),
		},
		SmartStore: SmartStoreConfig{
			Enabled:        v.GetBool("smartstore.enabled"),
			ClientID:       v.GetString("smartstore.client_id"),
			ClientSecret:   v.GetString("smartstore.client_secret"),
			APIBaseURL:     v.GetString("smartstore.api_base_url"),
			TimeoutSeconds: v.GetInt("smartstore.timeout_seconds"),
		},
		Shopify: ShopifyConfig{
			Enabled:        v.GetBool("shopify.enabled"),
			ShopDomain:     v.GetString("shopify.shop_domain"),
			AccessToken:    v.GetString("shopify.access_token"),
			APIVersion:     v.GetString("shopify.api_version"),
			LocationID:     v.GetString("shopify.location_id"),
			APIBaseURL:     v.GetString("shopify.api_base_url"),
			TimeoutSeconds: v.GetInt("shopify.timeout_seconds"),
		},
		Orders: OrdersConfig{
			AckStore:        v.GetString("orders.ack_store"),
			PageSize:        v.GetInt("orders.page_size"),
			PageDelay:       v.GetDuration("orders.page_delay"),
			Overlap:         v.GetDuration("orders.overlap"),
			InitialLookback: v.GetDuration("orders.initial_lookback"),
			AckTTL:          v.GetDuration("orders.ack_ttl"),
			ConfirmOrders:   v.GetBool("orders.confirm_orders"),
		},
		ExchangeRate: ExchangeRateConfig{
			BaseURL:   v.GetString("exchange_rate.base_url"),
			APIKey:    v.GetString("exchange_rate.api_key"),
			Timeout:   v.GetDuration("exchange_rate.timeout"),
			Pairs:     v.GetStringSlice("exchange_rate.pairs"),
			Fallbacks: v.GetStringMapString("exchange_rate.fallbacks"),
		},
		Retention: RetentionConfig{
			Retention:      v.GetDuration("retention.retention"),
			BatchSize:      v.GetInt("retention.batch_size"),
			ArchiveEnabled: v.GetBool("retention.archive_enabled"),
			ArchivePrefix:  v.GetString("retention.archive_prefix"),
		},
		Storage: StorageConfig{
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Notifier: NotifierConfig{
			BufferSize: v.GetInt("notifier.buffer_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storelink"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storelink"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "storelink:"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// An empty origin list means no cross-origin requests until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Scheduler.Concurrency == 0 {
		cfg.Scheduler.Concurrency = 4
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 2 * time.Hour
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}
	if cfg.Scheduler.FullSyncCron == "" {
		cfg.Scheduler.FullSyncCron = "0 3 * * *"
	}
	if cfg.Scheduler.OrderIngestionCron == "" {
		cfg.Scheduler.OrderIngestionCron = "*/30 * * * *"
	}
	if cfg.Scheduler.ExchangeRateCron == "" {
		cfg.Scheduler.ExchangeRateCron = "0 6 * * *"
	}
	if cfg.Scheduler.LogRetentionCron == "" {
		cfg.Scheduler.LogRetentionCron = "0 4 * * 0"
	}
	if cfg.Scheduler.CronTaskTimeout == 0 {
		cfg.Scheduler.CronTaskTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.CronLockTTL == 0 {
		cfg.Scheduler.CronLockTTL = 5 * time.Minute
	}
	if cfg.RateLimit.Store == "" {
		cfg.RateLimit.Store = "memory"
	}
	// SmartStore allows 2 requests per second per application
	if cfg.RateLimit.SmartStorePoints == 0 {
		cfg.RateLimit.SmartStorePoints = 2
	}
	if cfg.RateLimit.SmartStoreDuration == 0 {
		cfg.RateLimit.SmartStoreDuration = time.Second
	}
	if cfg.RateLimit.ShopifyPoints == 0 {
		cfg.RateLimit.ShopifyPoints = 2
	}
	if cfg.RateLimit.ShopifyDuration == 0 {
		cfg.RateLimit.ShopifyDuration = time.Second
	}
	if cfg.RateLimit.WaitInterval == 0 {
		cfg.RateLimit.WaitInterval = 500 * time.Millisecond
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 200 * time.Millisecond
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 5 * time.Second
	}
	if cfg.Retry.Jitter == 0 {
		cfg.Retry.Jitter = 0.2
	}
	if cfg.SmartStore.TimeoutSeconds == 0 {
		cfg.SmartStore.TimeoutSeconds = 30
	}
	if cfg.Shopify.TimeoutSeconds == 0 {
		cfg.Shopify.TimeoutSeconds = 30
	}
	if cfg.Orders.AckStore == "" {
		cfg.Orders.AckStore = "database"
	}
	if cfg.Orders.PageSize == 0 {
		cfg.Orders.PageSize = 100
	}
	if cfg.Orders.PageDelay == 0 {
		cfg.Orders.PageDelay = 500 * time.Millisecond
	}
	if cfg.Orders.Overlap == 0 {
		cfg.Orders.Overlap = 10 * time.Minute
	}
	if cfg.Orders.InitialLookback == 0 {
		cfg.Orders.InitialLookback = 24 * time.Hour
	}
	if cfg.Orders.AckTTL == 0 {
		cfg.Orders.AckTTL = 30 * 24 * time.Hour
	}
	if cfg.ExchangeRate.Timeout == 0 {
		cfg.ExchangeRate.Timeout = 10 * time.Second
	}
	if len(cfg.ExchangeRate.Pairs) == 0 {
		cfg.ExchangeRate.Pairs = []string{"KRW/USD"}
	}
	if cfg.Retention.Retention == 0 {
		cfg.Retention.Retention = 30 * 24 * time.Hour
	}
	if cfg.Retention.BatchSize == 0 {
		cfg.Retention.BatchSize = 500
	}
	if cfg.Retention.ArchivePrefix == "" {
		cfg.Retention.ArchivePrefix = "sync-logs"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "storelink-archive"
	}
	if cfg.Notifier.BufferSize == 0 {
		cfg.Notifier.BufferSize = 256
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "storelink"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.RateLimit.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("ratelimit.store must be memory or redis, got %q", c.RateLimit.Store)
	}
	switch c.Orders.AckStore {
	case "database", "redis", "memory":
	default:
		return fmt.Errorf("orders.ack_store must be database, redis or memory, got %q", c.Orders.AckStore)
	}
	if (c.RateLimit.Store == "redis" || c.Orders.AckStore == "redis") && !c.Redis.Enabled {
		return fmt.Errorf("redis.enabled is required when a component uses the redis store")
	}
	if c.Orders.PageSize > 300 {
		return fmt.Errorf("orders.page_size cannot exceed 300, got %d", c.Orders.PageSize)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}

	if c.SmartStore.Enabled {
		if c.SmartStore.ClientID == "" || c.SmartStore.ClientSecret == "" {
			return fmt.Errorf("smartstore.client_id and smartstore.client_secret are required when smartstore is enabled")
		}
	}
	if c.Shopify.Enabled {
		if c.Shopify.ShopDomain == "" && c.Shopify.APIBaseURL == "" {
			return fmt.Errorf("shopify.shop_domain is required when shopify is enabled")
		}
		if c.Shopify.AccessToken == "" {
			return fmt.Errorf("shopify.access_token is required when shopify is enabled")
		}
	}
	if c.Retention.ArchiveEnabled && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key are required when retention.archive_enabled is set")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone is invalid: %w", err)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		// Full SQL in traces may carry platform tokens
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// Location returns the scheduler time zone
func (s *SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
