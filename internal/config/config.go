// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (feature gates, reach estimate cache, rate limiting)
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Reach estimation service
	ReachEstimatorURL    string `koanf:"reach_estimator_url"`
	ReachCacheTTLMinutes int    `koanf:"reach_cache_ttl_minutes"`

	// Scout ranking
	ScoutFreshnessHours  int    `koanf:"scout_freshness_hours"`
	ScoutLimit           int    `koanf:"scout_limit"`
	ScoutSecondaryAdjust bool   `koanf:"scout_secondary_adjust"`
	ScoutCalibrationFile string `koanf:"scout_calibration_file"`

	// Boost feature gate fallback for sponsors with no explicit gate
	BoostEnabled bool `koanf:"boost_enabled"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporterType string  `koanf:"tracing_exporter_type"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL    = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret      = errors.New("JWT_SECRET is required")
	ErrMissingReachEstimator = errors.New("REACH_ESTIMATOR_URL is required when boost is enabled")
	ErrInvalidPort           = errors.New("PORT must be a valid integer")
	ErrInvalidScoutLimit     = errors.New("SCOUT_LIMIT must be > 0")
	ErrInvalidScoutFreshness = errors.New("SCOUT_FRESHNESS_HOURS must be > 0")
	ErrInvalidSamplingRate   = errors.New("TRACING_SAMPLING_RATE must be between 0.0 and 1.0")
)

// Default values for non-secret configuration.
const (
	DefaultPort                 = 8080
	DefaultEnv                  = "development"
	DefaultReachCacheTTLMinutes = 60
	DefaultScoutFreshnessHours  = 6
	DefaultScoutLimit           = 10
	DefaultScoutSecondaryAdjust = true
	DefaultBoostEnabled         = true
	DefaultTracingSamplingRate  = 1.0
	DefaultTracingExporterType  = "otlp-http"
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	cacheTTL, cacheTTLErr := getEnvIntOrDefault("REACH_CACHE_TTL_MINUTES", k.Int("reach_cache_ttl_minutes"), DefaultReachCacheTTLMinutes)
	if cacheTTLErr != nil {
		loadErrs = append(loadErrs, cacheTTLErr)
	}

	freshness, freshnessErr := getEnvIntOrDefault("SCOUT_FRESHNESS_HOURS", k.Int("scout_freshness_hours"), DefaultScoutFreshnessHours)
	if freshnessErr != nil {
		loadErrs = append(loadErrs, freshnessErr)
	}

	scoutLimit, scoutLimitErr := getEnvIntOrDefault("SCOUT_LIMIT", k.Int("scout_limit"), DefaultScoutLimit)
	if scoutLimitErr != nil {
		loadErrs = append(loadErrs, scoutLimitErr)
	}

	samplingRate, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                 port,
		Env:                  getEnvOrDefaultMulti([]string{"APP_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:          getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:            getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword:        getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		JWTSecret:            getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:    getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		ReachEstimatorURL:    getEnvOrKoanf("REACH_ESTIMATOR_URL", k, "reach_estimator_url"),
		ReachCacheTTLMinutes: cacheTTL,
		ScoutFreshnessHours:  freshness,
		ScoutLimit:           scoutLimit,
		ScoutSecondaryAdjust: getEnvBool("SCOUT_SECONDARY_ADJUST", k, "scout_secondary_adjust", DefaultScoutSecondaryAdjust),
		ScoutCalibrationFile: getEnvOrKoanf("SCOUT_CALIBRATION_FILE", k, "scout_calibration_file"),
		BoostEnabled:         getEnvBool("BOOST_ENABLED", k, "boost_enabled", DefaultBoostEnabled),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:       getEnvBool("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporterType:  getEnvOrDefault("TRACING_EXPORTER_TYPE", k.String("tracing_exporter_type"), DefaultTracingExporterType),
		TracingOTLPEndpoint:  getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate:  samplingRate,
		TracingInsecure:      getEnvBool("TRACING_INSECURE", k, "tracing_insecure", false),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBool returns the environment variable as bool if set, otherwise the
// koanf value, or default. Accepts true/1/yes/on and false/0/no/off.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey)
	}
	return defaultVal
}

// getEnvList returns the environment variable split on commas if set,
// otherwise the koanf string slice.
func getEnvList(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.BoostEnabled && c.ReachEstimatorURL == "" {
		errs = append(errs, ErrMissingReachEstimator)
	}
	if c.ScoutLimit <= 0 {
		errs = append(errs, ErrInvalidScoutLimit)
	}
	if c.ScoutFreshnessHours <= 0 {
		errs = append(errs, ErrInvalidScoutFreshness)
	}
	if c.TracingSamplingRate < 0.0 || c.TracingSamplingRate > 1.0 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                   fmt.Sprintf("%d", c.Port),
		"env":                    c.Env,
		"database_url":           maskDatabaseURL(c.DatabaseURL),
		"redis_addr":             c.RedisAddr,
		"jwt_secret":             maskSecret(c.JWTSecret),
		"jwt_previous_secret":    maskSecret(c.JWTPreviousSecret),
		"reach_estimator_url":    c.ReachEstimatorURL,
		"reach_cache_ttl_min":    fmt.Sprintf("%d", c.ReachCacheTTLMinutes),
		"scout_freshness_hours":  fmt.Sprintf("%d", c.ScoutFreshnessHours),
		"scout_limit":            fmt.Sprintf("%d", c.ScoutLimit),
		"scout_secondary_adjust": fmt.Sprintf("%t", c.ScoutSecondaryAdjust),
		"scout_calibration_file": c.ScoutCalibrationFile,
		"boost_enabled":          fmt.Sprintf("%t", c.BoostEnabled),
		"cors_allowed_origins":   strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":        fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter_type":  c.TracingExporterType,
		"tracing_otlp_endpoint":  c.TracingOTLPEndpoint,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
