package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	DTOne     DTOneConfig
	GlobeLabs GlobeLabsConfig
	Notify    NotifyConfig
	Callback  CallbackConfig
	Dispatch  DispatchConfig
	Query     QueryConfig
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

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	RequestTimeout time.Duration // handler deadline, 0 disables
	// Per user limit on the load endpoints
	RateLimitRequests int
	RateLimitWindow   time.Duration
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
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// DTOneConfig holds DT One credentials. The provider is disabled when no
// API key is set.
type DTOneConfig struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	CallbackURL    string
	TimeoutSeconds int
}

// Enabled reports whether DT One credentials are configured
func (c DTOneConfig) Enabled() bool {
	return c.APIKey != ""
}

// GlobeLabsConfig holds Globe Labs Rewards credentials. The provider is
// disabled when no app id is set.
type GlobeLabsConfig struct {
	BaseURL        string
	AppID          string
	AppSecret      string
	RewardsToken   string
	TimeoutSeconds int
}

// Enabled reports whether Globe Labs credentials are configured
func (c GlobeLabsConfig) Enabled() bool {
	return c.AppID != ""
}

// NotifyConfig holds the notification service endpoints
type NotifyConfig struct {
	SMSURL         string
	MessengerURL   string
	TelegramURL    string
	ViberURL       string
	UserURL        string
	APIKey         string
	TimeoutSeconds int
}

// CallbackConfig holds callback authentication and correlation retry settings
type CallbackConfig struct {
	APIKey        string // path key accepted for Globe Labs payloads
	DTOneKey      string // path key accepted for DT One payloads
	RetryDelay    time.Duration
	RetryJitter   float64
	RetryAttempts int
	RetryMaxTotal time.Duration
}

// DispatchConfig holds dispatch settings
type DispatchConfig struct {
	Deadline time.Duration // per provider call
}

// QueryConfig holds free-text query intake settings
type QueryConfig struct {
	DuplicateWindow time.Duration
	PhoneRegion     string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LOAD_ prefix (e.g., LOAD_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("LOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			RequestTimeout: v.GetDuration("http.request_timeout"),

			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
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
		},
		DTOne: DTOneConfig{
			BaseURL:        v.GetString("dtone.base_url"),
			APIKey:         v.GetString("dtone.api_key"),
			APISecret:      v.GetString("dtone.api_secret"),
			CallbackURL:    v.GetString("dtone.callback_url"),
			TimeoutSeconds: v.GetInt("dtone.timeout_seconds"),
		},
		GlobeLabs: GlobeLabsConfig{
			BaseURL:        v.GetString("globelabs.base_url"),
			AppID:          v.GetString("globelabs.app_id"),
			AppSecret:      v.GetString("globelabs.app_secret"),
			RewardsToken:   v.GetString("globelabs.rewards_token"),
			TimeoutSeconds: v.GetInt("globelabs.timeout_seconds"),
		},
		Notify: NotifyConfig{
			SMSURL:         v.GetString("notify.sms_url"),
			MessengerURL:   v.GetString("notify.messenger_url"),
			TelegramURL:    v.GetString("notify.telegram_url"),
			ViberURL:       v.GetString("notify.viber_url"),
			UserURL:        v.GetString("notify.user_url"),
			APIKey:         v.GetString("notify.api_key"),
			TimeoutSeconds: v.GetInt("notify.timeout_seconds"),
		},
		Callback: CallbackConfig{
			APIKey:        v.GetString("callback.api_key"),
			DTOneKey:      v.GetString("callback.dtone_key"),
			RetryDelay:    v.GetDuration("callback.retry_delay"),
			RetryJitter:   v.GetFloat64("callback.retry_jitter"),
			RetryAttempts: v.GetInt("callback.retry_attempts"),
			RetryMaxTotal: v.GetDuration("callback.retry_max_total"),
		},
		Dispatch: DispatchConfig{
			Deadline: v.GetDuration("dispatch.deadline"),
		},
		Query: QueryConfig{
			DuplicateWindow: v.GetDuration("query.duplicate_window"),
			PhoneRegion:     v.GetString("query.phone_region"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "load-engine"
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
		cfg.Database.DBName = "load"
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
		// must outlast a provider call
		cfg.HTTP.WriteTimeout = 45 * time.Second
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
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 40 * time.Second
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 30
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DTOne.TimeoutSeconds == 0 {
		cfg.DTOne.TimeoutSeconds = 30
	}
	if cfg.GlobeLabs.TimeoutSeconds == 0 {
		cfg.GlobeLabs.TimeoutSeconds = 30
	}
	if cfg.Notify.TimeoutSeconds == 0 {
		cfg.Notify.TimeoutSeconds = 10
	}
	if cfg.Callback.DTOneKey == "" {
		cfg.Callback.DTOneKey = "intlprov"
	}
	if cfg.Callback.RetryDelay == 0 {
		cfg.Callback.RetryDelay = 3 * time.Second
	}
	if cfg.Callback.RetryJitter == 0 {
		cfg.Callback.RetryJitter = 0.2
	}
	if cfg.Callback.RetryAttempts == 0 {
		cfg.Callback.RetryAttempts = 5
	}
	if cfg.Callback.RetryMaxTotal == 0 {
		cfg.Callback.RetryMaxTotal = 2 * time.Minute
	}
	if cfg.Dispatch.Deadline == 0 {
		cfg.Dispatch.Deadline = 30 * time.Second
	}
	if cfg.Query.DuplicateWindow == 0 {
		cfg.Query.DuplicateWindow = 30 * time.Minute
	}
	if cfg.Query.PhoneRegion == "" {
		cfg.Query.PhoneRegion = "PH"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
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
	if c.Callback.RetryJitter < 0 || c.Callback.RetryJitter >= 1 {
		return fmt.Errorf("callback.retry_jitter must be in [0, 1), got %f", c.Callback.RetryJitter)
	}
	if c.Callback.RetryAttempts < 1 {
		return fmt.Errorf("callback.retry_attempts must be at least 1")
	}
	if c.Callback.APIKey != "" && c.Callback.APIKey == c.Callback.DTOneKey {
		return fmt.Errorf("callback.api_key and callback.dtone_key must differ")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Callback.APIKey == "" {
			return fmt.Errorf("callback.api_key is required in production")
		}
		if !c.DTOne.Enabled() && !c.GlobeLabs.Enabled() {
			return fmt.Errorf("at least one provider must be configured in production")
		}
		if c.DTOne.Enabled() && (c.DTOne.APISecret == "" || c.DTOne.CallbackURL == "") {
			return fmt.Errorf("dtone.api_secret and dtone.callback_url are required when dtone is enabled")
		}
		if c.GlobeLabs.Enabled() && (c.GlobeLabs.AppSecret == "" || c.GlobeLabs.RewardsToken == "") {
			return fmt.Errorf("globelabs.app_secret and globelabs.rewards_token are required when globelabs is enabled")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
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

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
