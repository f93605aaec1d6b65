package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	LogID           string
	KeyDir          string
	IssuerDID       string
	CanonicalIssuer string
	TreeStrategy    string

	PolicyBundlePath string
	PolicyBundleID   string

	ResolverTimeoutSeconds int
	ValidityDays           int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	return Config{
		HTTPAddr:               envDefault("HTTP_ADDR", ":8080"),
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		LogID:                  envDefault("CPOE_LOG_ID", "cpoe-log"),
		KeyDir:                 envDefault("CPOE_KEY_DIR", "."),
		IssuerDID:              os.Getenv("CPOE_ISSUER_DID"),
		CanonicalIssuer:        os.Getenv("CPOE_CANONICAL_ISSUER"),
		TreeStrategy:           envDefault("CPOE_TREE_STRATEGY", "linear"),
		PolicyBundlePath:       os.Getenv("CPOE_POLICY_BUNDLE"),
		PolicyBundleID:         envDefault("CPOE_POLICY_BUNDLE_ID", "registration_v1"),
		ResolverTimeoutSeconds: envIntDefault("CPOE_RESOLVER_TIMEOUT_SECONDS", 8),
		ValidityDays:           envIntDefault("CPOE_VALIDITY_DAYS", 90),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func (c Config) ResolverTimeout() time.Duration {
	return time.Duration(c.ResolverTimeoutSeconds) * time.Second
}

func (c Config) Validity() time.Duration {
	return time.Duration(c.ValidityDays) * 24 * time.Hour
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}
