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

const defaultJWTSecret = "dev-secret"

// ErrInsecureSecret is returned when production runs without its own signing secret.
var ErrInsecureSecret = errors.New("AUTH_JWT_SECRET must be set in production")

// Session profiles select the default credential lifetimes.
const (
	ProfileTesting    = "testing"
	ProfileProduction = "production"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
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

// AuthConfig defines credential issuance and renewal parameters.
type AuthConfig struct {
	JWTSecret         string
	CookieName        string
	RefreshCookieName string
	CookieSecure      bool
	SessionProfile    string
	Session           SessionPolicy
	RefreshTokenTTL   time.Duration
	RefreshReuseGrace time.Duration
	RefreshURL        string
	RefreshTimeout    time.Duration
	RefreshFailHold   time.Duration
	BcryptCost        int
	// FederatedProviders maps an identity provider name to the secret its ID
	// tokens are signed with.
	FederatedProviders map[string]string
	FederatedAudience  string
}

// SessionPolicy is the lifetime of a credential and the window before expiry
// in which it is renewed.
type SessionPolicy struct {
	Duration         time.Duration
	RenewalThreshold time.Duration
}

// RateLimitConfig bounds sign-in attempts per client.
type RateLimitConfig struct {
	LoginPerMinute int
}

// DefaultSessionPolicy returns the lifetimes for a profile.
func DefaultSessionPolicy(profile string) (SessionPolicy, error) {
	switch profile {
	case ProfileTesting:
		return SessionPolicy{Duration: time.Minute, RenewalThreshold: 30 * time.Second}, nil
	case ProfileProduction:
		return SessionPolicy{Duration: time.Hour, RenewalThreshold: 5 * time.Minute}, nil
	default:
		return SessionPolicy{}, fmt.Errorf("unknown session profile %q", profile)
	}
}

// Validate checks the policy invariants.
func (p SessionPolicy) Validate() error {
	if p.Duration <= 0 {
		return fmt.Errorf("session duration must be positive, got %s", p.Duration)
	}
	if p.RenewalThreshold <= 0 {
		return fmt.Errorf("renewal threshold must be positive, got %s", p.RenewalThreshold)
	}
	if p.RenewalThreshold >= p.Duration {
		return fmt.Errorf("renewal threshold %s must be shorter than session duration %s", p.RenewalThreshold, p.Duration)
	}
	return nil
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

	appEnv := getEnv("APP_ENV", "development")
	profile := getEnv("AUTH_SESSION_PROFILE", defaultProfile(appEnv))
	policy, err := DefaultSessionPolicy(profile)
	if err != nil {
		return nil, err
	}
	if policy.Duration, err = getEnvAsDuration("AUTH_SESSION_DURATION", policy.Duration); err != nil {
		return nil, err
	}
	if policy.RenewalThreshold, err = getEnvAsDuration("AUTH_RENEWAL_THRESHOLD", policy.RenewalThreshold); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	refreshTTL, err := getEnvAsDuration("AUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshTimeout, err := getEnvAsDuration("AUTH_REFRESH_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	failHold, err := getEnvAsDuration("AUTH_REFRESH_FAILURE_HOLD", time.Minute)
	if err != nil {
		return nil, err
	}
	reuseGrace, err := getEnvAsDuration("AUTH_REFRESH_REUSE_GRACE", 30*time.Second)
	if err != nil {
		return nil, err
	}
	providers, err := parseProviders(os.Getenv("AUTH_FEDERATED_PROVIDERS"))
	if err != nil {
		return nil, err
	}

	jwtSecret := getEnv("AUTH_JWT_SECRET", defaultJWTSecret)
	if appEnv == "production" && jwtSecret == defaultJWTSecret {
		return nil, ErrInsecureSecret
	}
	appName := getEnv("APP_NAME", "session-gate")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   appEnv,
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
			JWTSecret:          jwtSecret,
			CookieName:         getEnv("AUTH_COOKIE_NAME", "session_token"),
			RefreshCookieName:  getEnv("AUTH_REFRESH_COOKIE_NAME", "refresh_token"),
			CookieSecure:       getEnvAsBool("AUTH_COOKIE_SECURE", appEnv == "production"),
			SessionProfile:     profile,
			Session:            policy,
			RefreshTokenTTL:    refreshTTL,
			RefreshReuseGrace:  reuseGrace,
			RefreshURL:         os.Getenv("AUTH_REFRESH_URL"),
			RefreshTimeout:     refreshTimeout,
			RefreshFailHold:    failHold,
			BcryptCost:         getEnvAsInt("AUTH_BCRYPT_COST", 12),
			FederatedProviders: providers,
			FederatedAudience:  getEnv("AUTH_FEDERATED_AUDIENCE", appName),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: getEnvAsInt("RATE_LIMIT_LOGIN_PER_MINUTE", 10),
		},
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in the production environment.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
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

func defaultProfile(appEnv string) string {
	if appEnv == "production" {
		return ProfileProduction
	}
	return ProfileTesting
}

// parseProviders reads "name=secret" pairs separated by commas.
func parseProviders(raw string) (map[string]string, error) {
	providers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, secret, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || secret == "" {
			return nil, fmt.Errorf("invalid AUTH_FEDERATED_PROVIDERS entry %q", pair)
		}
		providers[name] = secret
	}
	return providers, nil
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

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
