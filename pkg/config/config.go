package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Bulk grade entry modes.
const (
	BulkModePartial = "partial"
	BulkModeAtomic  = "atomic"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Retry        RetryConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Tracing      TracingConfig
	Registration RegistrationConfig
	Grading      GradingConfig
	Transcript   TranscriptConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RetryConfig bounds retries of transient data-store failures.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	Namespace string
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TracingConfig selects the OpenTelemetry exporter. An empty exporter disables tracing.
type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	ServiceName  string
	SampleRatio  float64
}

// RegistrationConfig tunes course registration checks.
type RegistrationConfig struct {
	EnforceWindow bool
	PassingGrades []string
}

// GradingConfig controls the grading policy and grade entry behaviour.
type GradingConfig struct {
	ScaleFile             string
	BulkMode              string
	AllowSubmittedReentry bool
}

// TranscriptConfig governs transcript caching.
type TranscriptConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	attempts := v.GetInt("DB_RETRY_MAX_ATTEMPTS")
	if attempts <= 0 {
		attempts = 1
	}
	cfg.Retry = RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: parseDuration(v.GetString("DB_RETRY_INITIAL_INTERVAL"), 100*time.Millisecond),
		MaxInterval:     parseDuration(v.GetString("DB_RETRY_MAX_INTERVAL"), 2*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		Namespace: v.GetString("REDIS_NAMESPACE"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Tracing = TracingConfig{
		Exporter:     strings.ToLower(v.GetString("TRACING_EXPORTER")),
		OTLPEndpoint: v.GetString("TRACING_OTLP_ENDPOINT"),
		ServiceName:  v.GetString("TRACING_SERVICE_NAME"),
		SampleRatio:  v.GetFloat64("TRACING_SAMPLE_RATIO"),
	}

	passing := splitAndTrim(strings.ToUpper(v.GetString("REGISTRATION_PASSING_GRADES")))
	if len(passing) == 0 {
		passing = []string{"A", "B", "C", "D", "E"}
	}
	cfg.Registration = RegistrationConfig{
		EnforceWindow: v.GetBool("REGISTRATION_ENFORCE_WINDOW"),
		PassingGrades: passing,
	}

	mode := strings.ToLower(v.GetString("GRADING_BULK_MODE"))
	if mode != BulkModeAtomic {
		mode = BulkModePartial
	}
	cfg.Grading = GradingConfig{
		ScaleFile:             v.GetString("GRADING_SCALE_FILE"),
		BulkMode:              mode,
		AllowSubmittedReentry: v.GetBool("GRADING_ALLOW_SUBMITTED_REENTRY"),
	}

	cfg.Transcript = TranscriptConfig{
		CacheEnabled: v.GetBool("TRANSCRIPT_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("TRANSCRIPT_CACHE_TTL"), 10*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "academic_records")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("DB_RETRY_INITIAL_INTERVAL", "100ms")
	v.SetDefault("DB_RETRY_MAX_INTERVAL", "2s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_NAMESPACE", "academic-records")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "academic-records-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TRACING_EXPORTER", "")
	v.SetDefault("TRACING_OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SERVICE_NAME", "academic-records-api")
	v.SetDefault("TRACING_SAMPLE_RATIO", 1.0)

	v.SetDefault("REGISTRATION_ENFORCE_WINDOW", true)
	v.SetDefault("REGISTRATION_PASSING_GRADES", "A,B,C,D,E")

	v.SetDefault("GRADING_SCALE_FILE", "")
	v.SetDefault("GRADING_BULK_MODE", BulkModePartial)
	v.SetDefault("GRADING_ALLOW_SUBMITTED_REENTRY", false)

	v.SetDefault("TRANSCRIPT_CACHE_ENABLED", false)
	v.SetDefault("TRANSCRIPT_CACHE_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
