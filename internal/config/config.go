package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from the environment; a .env file in the working directory is loaded first if present.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Calls     CallsConfig
	Signaling SignalingConfig
	Store     StoreConfig
}

type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// SignalingTicketTTL bounds how long a websocket upgrade ticket stays usable.
	SignalingTicketTTL time.Duration
}

type CallsConfig struct {
	// StaleAfter is the age after which a live call nobody joined may be reclaimed.
	StaleAfter time.Duration
	// ReaperInterval enables the background stale-call sweep when > 0.
	ReaperInterval time.Duration
	// FanoutTimeout bounds one notification fan-out.
	FanoutTimeout time.Duration
}

const (
	BackendRedis    = "redis"
	BackendLocal    = "local"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type SignalingConfig struct {
	// Backend is "redis" (multi-node pub/sub) or "local" (in-process hub only).
	Backend         string
	MaxConnsPerUser int
	ConnSlotTTL     time.Duration
}

type StoreConfig struct {
	// Backend is "postgres" or "memory".
	Backend string
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments inject env directly.
	_ = godotenv.Load()

	c := Config{}
	env := &envReader{}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	c.App.Port = env.requiredInt("APP_PORT")

	c.Store.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	c.Signaling.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("SIGNALING_BACKEND")))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = env.optionalInt("DB_PORT", 5432)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = env.optionalInt("REDIS_PORT", 6379)
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = env.duration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = env.duration("JWT_REFRESH_TTL")
	c.Auth.SignalingTicketTTL = env.duration("JWT_SIGNALING_TTL")

	c.Calls.StaleAfter = env.duration("CALL_STALE_AFTER")
	c.Calls.ReaperInterval = env.duration("CALL_REAPER_INTERVAL")
	c.Calls.FanoutTimeout = env.duration("CALL_FANOUT_TIMEOUT")

	c.Signaling.MaxConnsPerUser = env.optionalInt("WS_MAX_CONNS_PER_USER", 0)
	c.Signaling.ConnSlotTTL = env.duration("WS_CONN_SLOT_TTL")

	if err := joinErrors(env.errs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the config and fills defaults in place. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendPostgres
	}
	switch c.Store.Backend {
	case BackendPostgres:
		errs = append(errs, c.validateDB()...)
	case BackendMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_BACKEND=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", c.Store.Backend))
	}

	if c.Signaling.Backend == "" {
		c.Signaling.Backend = BackendRedis
	}
	switch c.Signaling.Backend {
	case BackendRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when SIGNALING_BACKEND=redis"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	case BackendLocal:
	default:
		errs = append(errs, fmt.Errorf("SIGNALING_BACKEND must be redis or local, got %q", c.Signaling.Backend))
	}
	if c.Signaling.MaxConnsPerUser < 0 {
		errs = append(errs, errors.New("WS_MAX_CONNS_PER_USER must be >= 0"))
	}
	if c.Signaling.MaxConnsPerUser == 0 {
		c.Signaling.MaxConnsPerUser = 10
	}
	if c.Signaling.ConnSlotTTL <= 0 {
		c.Signaling.ConnSlotTTL = 2 * time.Hour
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.SignalingTicketTTL <= 0 {
		c.Auth.SignalingTicketTTL = time.Minute
	}
	if c.Auth.SignalingTicketTTL > c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_SIGNALING_TTL must not exceed JWT_ACCESS_TTL"))
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Calls.StaleAfter <= 0 {
		c.Calls.StaleAfter = 60 * time.Second
	}
	if c.Calls.ReaperInterval < 0 {
		errs = append(errs, errors.New("CALL_REAPER_INTERVAL must be >= 0"))
	}
	if c.Calls.FanoutTimeout <= 0 {
		c.Calls.FanoutTimeout = 5 * time.Second
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// envReader parses typed env values, collecting every parse error instead of stopping at the first.
type envReader struct {
	errs []error
}

func (r *envReader) requiredInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		r.errs = append(r.errs, fmt.Errorf("%s is required", key))
		return 0
	}
	return r.parseInt(key, v)
}

func (r *envReader) optionalInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return r.parseInt(key, v)
}

func (r *envReader) parseInt(key, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

// duration returns 0 for an unset key so Validate can apply the default.
func (r *envReader) duration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be a duration like 30s or 5m, got %q", key, v))
		return 0
	}
	return d
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
