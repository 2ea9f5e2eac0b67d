package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	// ConfirmLimit caps code confirmation attempts per email and flow.
	ConfirmLimit RateLimitConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// VerificationConfig tunes issued email codes.
type VerificationConfig struct {
	CodeLength    int
	CodeAlphabet  string
	TTLMinutes    int
	SweepSchedule string
}

// TTL returns the code lifetime.
func (v VerificationConfig) TTL() time.Duration {
	return time.Duration(v.TTLMinutes) * time.Minute
}

// RateLimitConfig bounds how often an action may be taken per identifier.
// A zero MaxRequests disables the limiter.
type RateLimitConfig struct {
	CooldownSeconds int
	WindowSeconds   int
	MaxRequests     int
}

// Cooldown returns the minimum gap between two requests.
func (r RateLimitConfig) Cooldown() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

// Window returns the counting window.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// NotificationConfig holds outbound email settings. An empty SMTPHost makes
// the service log messages instead of sending them.
type NotificationConfig struct {
	EmailFrom    string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "identity-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Verification: VerificationConfig{
			CodeLength:    getEnvAsInt("VERIFICATION_CODE_LENGTH", 6),
			CodeAlphabet:  getEnv("VERIFICATION_CODE_ALPHABET", "abcdefghijklmnopqrstuvwxyz"),
			TTLMinutes:    getEnvAsInt("VERIFICATION_TTL_MINUTES", 30),
			SweepSchedule: getEnv("VERIFICATION_SWEEP_SCHEDULE", "@every 10m"),
		},
		RateLimit: RateLimitConfig{
			CooldownSeconds: getEnvAsInt("RATE_LIMIT_COOLDOWN_SECONDS", 60),
			WindowSeconds:   getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 900),
			MaxRequests:     getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 5),
		},
		ConfirmLimit: RateLimitConfig{
			WindowSeconds: getEnvAsInt("CONFIRM_LIMIT_WINDOW_SECONDS", 900),
			MaxRequests:   getEnvAsInt("CONFIRM_LIMIT_MAX_ATTEMPTS", 10),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		},
	}

	if err := cfg.Verification.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would make issued codes unusable.
func (v VerificationConfig) Validate() error {
	if v.CodeLength <= 0 {
		return errors.New("VERIFICATION_CODE_LENGTH must be positive")
	}
	if v.TTLMinutes <= 0 {
		return errors.New("VERIFICATION_TTL_MINUTES must be positive")
	}
	if v.CodeAlphabet == "" {
		return errors.New("VERIFICATION_CODE_ALPHABET must not be empty")
	}
	seen := make(map[rune]struct{}, len(v.CodeAlphabet))
	for _, r := range v.CodeAlphabet {
		if _, dup := seen[r]; dup {
			return fmt.Errorf("VERIFICATION_CODE_ALPHABET repeats %q", r)
		}
		seen[r] = struct{}{}
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
