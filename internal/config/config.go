// Package config loads the guildhall configuration. Defaults are overlaid by
// an optional YAML file named by CONFIG_FILE, and environment variables win
// over both.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment names a deployment stage.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete application configuration.
type Config struct {
	Environment    Environment    `yaml:"environment"`
	Version        string         `yaml:"version"`
	Server         Server         `yaml:"server"`
	AWS            AWS            `yaml:"aws"`
	Auth           Auth           `yaml:"auth"`
	Access         Access         `yaml:"access"`
	Service        Service        `yaml:"service"`
	Cache          Cache          `yaml:"cache"`
	RateLimit      RateLimit      `yaml:"rateLimit"`
	Metrics        Metrics        `yaml:"metrics"`
	Tracing        Tracing        `yaml:"tracing"`
	CircuitBreaker CircuitBreaker `yaml:"circuitBreaker"`
	Reconcile      Reconcile      `yaml:"reconcile"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

type Server struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	Debug           bool          `yaml:"debug"`
}

type AWS struct {
	Region       string        `yaml:"region"`
	TableName    string        `yaml:"tableName"`
	IndexName    string        `yaml:"indexName"`
	EventBusName string        `yaml:"eventBusName"`
	StoreTimeout time.Duration `yaml:"storeTimeout"`
	// DynamoDBEndpoint points the client at DynamoDB Local.
	DynamoDBEndpoint string `yaml:"dynamodbEndpoint"`
}

type Auth struct {
	SigningMethod string   `yaml:"signingMethod"`
	Secret        string   `yaml:"secret"`
	PublicKey     string   `yaml:"publicKey"`
	Issuer        string   `yaml:"issuer"`
	Audience      []string `yaml:"audience"`
	// TrustGatewayHeaders accepts identity headers set by the API Gateway
	// authorizer. Only enable behind the gateway.
	TrustGatewayHeaders bool `yaml:"trustGatewayHeaders"`
}

type Access struct {
	Moderators  []string `yaml:"moderators"`
	PolicyFile  string   `yaml:"policyFile"`
	WatchPolicy bool     `yaml:"watchPolicy"`
}

type Service struct {
	DefaultListLimit int           `yaml:"defaultListLimit"`
	MaxListLimit     int           `yaml:"maxListLimit"`
	IdempotencyTTL   time.Duration `yaml:"idempotencyTTL"`
}

type Cache struct {
	Provider      string        `yaml:"provider"` // none, memory or redis
	MaxItems      int           `yaml:"maxItems"`
	ListTTL       time.Duration `yaml:"listTTL"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	KeyPrefix     string        `yaml:"keyPrefix"`
}

type RateLimit struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type Tracing struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
	Insecure   bool    `yaml:"insecure"`
}

type CircuitBreaker struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold float64       `yaml:"failureThreshold"`
	MinRequests      uint32        `yaml:"minRequests"`
	Timeout          time.Duration `yaml:"timeout"`
}

type Reconcile struct {
	PageSize int `yaml:"pageSize"`
	// CloudWatchNamespace receives drift metrics from the reconcile job.
	// Empty disables publishing.
	CloudWatchNamespace string `yaml:"cloudwatchNamespace"`
}

// Default returns the configuration used when nothing overrides it.
func Default(env Environment) *Config {
	return &Config{
		Environment: env,
		Version:     "1.0.0",
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  10 * time.Second,
			AllowedOrigins:  []string{"*"},
			Debug:           env == Development,
		},
		AWS: AWS{
			Region:       "us-east-1",
			TableName:    "guildhall-" + shortEnv(env),
			IndexName:    "GSI1",
			StoreTimeout: 3 * time.Second,
		},
		Auth: Auth{
			SigningMethod: "HS256",
		},
		Service: Service{
			DefaultListLimit: 50,
			MaxListLimit:     100,
			IdempotencyTTL:   24 * time.Hour,
		},
		Cache: Cache{
			Provider:  "memory",
			MaxItems:  1000,
			ListTTL:   30 * time.Second,
			KeyPrefix: "guildhall:",
		},
		RateLimit: RateLimit{
			Enabled:           env != Development,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "guildhall",
		},
		Tracing: Tracing{
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
			Insecure:   true,
		},
		CircuitBreaker: CircuitBreaker{
			Enabled:          env != Development,
			FailureThreshold: 0.8,
			MinRequests:      5,
			Timeout:          60 * time.Second,
		},
		Reconcile: Reconcile{
			PageSize: 100,
		},
	}
}

func shortEnv(env Environment) string {
	switch env {
	case Production:
		return "prod"
	case Staging:
		return "staging"
	default:
		return "dev"
	}
}

// Load builds the configuration from defaults, the CONFIG_FILE overlay and
// the environment, then validates it.
func Load() (*Config, error) {
	env := Environment(strings.ToLower(getEnv("ENVIRONMENT", string(Development))))
	cfg := Default(env)
	cfg.LoadedFrom = []string{"defaults"}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, path)
	}

	cfg.loadEnvironment()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load for entrypoints that cannot run without configuration.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironment() {
	c.Version = getEnv("APP_VERSION", c.Version)

	// Server
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Address = ":" + port
	}
	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.Server.RequestTimeout)
	c.Server.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Server.Debug = getEnvBool("DEBUG", c.Server.Debug)

	// AWS
	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)
	c.AWS.TableName = getEnv("TABLE_NAME", c.AWS.TableName)
	c.AWS.IndexName = getEnv("INDEX_NAME", c.AWS.IndexName)
	c.AWS.EventBusName = getEnv("EVENT_BUS_NAME", c.AWS.EventBusName)
	c.AWS.StoreTimeout = getEnvDuration("STORE_TIMEOUT", c.AWS.StoreTimeout)
	c.AWS.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.AWS.DynamoDBEndpoint)

	// Auth
	c.Auth.SigningMethod = getEnv("JWT_SIGNING_METHOD", c.Auth.SigningMethod)
	c.Auth.Secret = getEnv("JWT_SECRET", c.Auth.Secret)
	c.Auth.PublicKey = getEnv("JWT_PUBLIC_KEY", c.Auth.PublicKey)
	c.Auth.Issuer = getEnv("JWT_ISSUER", c.Auth.Issuer)
	c.Auth.Audience = getEnvList("JWT_AUDIENCE", c.Auth.Audience)
	c.Auth.TrustGatewayHeaders = getEnvBool("TRUST_GATEWAY_HEADERS", c.Auth.TrustGatewayHeaders)

	// Access
	c.Access.Moderators = getEnvList("MODERATORS", c.Access.Moderators)
	c.Access.PolicyFile = getEnv("ACCESS_POLICY_FILE", c.Access.PolicyFile)
	c.Access.WatchPolicy = getEnvBool("WATCH_ACCESS_POLICY", c.Access.WatchPolicy)

	// Service
	c.Service.DefaultListLimit = getEnvInt("DEFAULT_LIST_LIMIT", c.Service.DefaultListLimit)
	c.Service.MaxListLimit = getEnvInt("MAX_LIST_LIMIT", c.Service.MaxListLimit)
	c.Service.IdempotencyTTL = getEnvDuration("IDEMPOTENCY_TTL", c.Service.IdempotencyTTL)

	// Cache
	c.Cache.Provider = strings.ToLower(getEnv("CACHE_PROVIDER", c.Cache.Provider))
	c.Cache.MaxItems = getEnvInt("CACHE_MAX_ITEMS", c.Cache.MaxItems)
	c.Cache.ListTTL = getEnvDuration("GUILD_LIST_CACHE_TTL", c.Cache.ListTTL)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getEnvInt("REDIS_DB", c.Cache.RedisDB)

	// Rate limiting
	c.RateLimit.Enabled = getEnvBool("ENABLE_RATE_LIMIT", c.RateLimit.Enabled)
	c.RateLimit.RequestsPerSecond = getEnvFloat("RATE_LIMIT_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", c.RateLimit.Burst)

	// Observability
	c.Metrics.Enabled = getEnvBool("ENABLE_METRICS", c.Metrics.Enabled)
	c.Metrics.Namespace = getEnv("METRICS_NAMESPACE", c.Metrics.Namespace)
	c.Tracing.Enabled = getEnvBool("ENABLE_TRACING", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", c.Tracing.SampleRate)
	c.Tracing.Insecure = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", c.Tracing.Insecure)

	c.CircuitBreaker.Enabled = getEnvBool("ENABLE_CIRCUIT_BREAKER", c.CircuitBreaker.Enabled)

	c.Reconcile.PageSize = getEnvInt("RECONCILE_PAGE_SIZE", c.Reconcile.PageSize)
	c.Reconcile.CloudWatchNamespace = getEnv("RECONCILE_CLOUDWATCH_NAMESPACE", c.Reconcile.CloudWatchNamespace)
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}

	if c.AWS.TableName == "" {
		errs = append(errs, errors.New("table name is required"))
	}
	if c.AWS.StoreTimeout < 0 {
		errs = append(errs, errors.New("store timeout cannot be negative"))
	}

	switch c.Auth.SigningMethod {
	case "HS256", "":
		if c.Environment == Production && c.Auth.Secret == "" && !c.Auth.TrustGatewayHeaders {
			errs = append(errs, errors.New("JWT secret is required in production"))
		}
	case "RS256":
		if c.Auth.PublicKey == "" {
			errs = append(errs, errors.New("JWT public key is required for RS256"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT signing method %q", c.Auth.SigningMethod))
	}

	switch c.Cache.Provider {
	case "none", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("redis address is required for the redis cache provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache provider %q", c.Cache.Provider))
	}

	if c.Service.MaxListLimit < 0 || c.Service.DefaultListLimit < 0 {
		errs = append(errs, errors.New("list limits cannot be negative"))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("rate limit must be positive when enabled"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("tracing sample rate must be between 0 and 1"))
	}
	if c.CircuitBreaker.FailureThreshold < 0 || c.CircuitBreaker.FailureThreshold > 1 {
		errs = append(errs, errors.New("circuit breaker failure threshold must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether c targets production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
