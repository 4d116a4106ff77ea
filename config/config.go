package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QueueKey string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// Enabled reports whether every R2 setting needed for uploads is present.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	LogLevel slog.Level
	LogFile  string

	Redis RedisConfig
	R2    R2Config

	SyncGenerationThreshold int
	GenerationWorkers       int
	GenerationMaxAttempts   int
	QueueCapacity           int
	SweepInterval           time.Duration
	RequeueInterval         time.Duration
	StaleJobAfter           time.Duration
	AutoComplete            bool

	EnrollRateLimit float64
	EnrollRateBurst int
}

// Load reads configuration from the environment. A .env file, when present,
// is loaded first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	level, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,
		LogLevel:     level,
		LogFile:      os.Getenv("LOG_FILE"),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			QueueKey: os.Getenv("REDIS_QUEUE_KEY"),
		},
		R2: R2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicURL:       os.Getenv("R2_PUBLIC_URL"),
		},
	}

	ints := []struct {
		key  string
		def  int
		dst  *int
		min  int
		name string
	}{
		{"REDIS_DB", 0, &cfg.Redis.DB, 0, "REDIS_DB"},
		{"SYNC_GENERATION_THRESHOLD", 128, &cfg.SyncGenerationThreshold, 1, "SYNC_GENERATION_THRESHOLD"},
		{"GENERATION_WORKERS", 4, &cfg.GenerationWorkers, 1, "GENERATION_WORKERS"},
		{"GENERATION_MAX_ATTEMPTS", 3, &cfg.GenerationMaxAttempts, 1, "GENERATION_MAX_ATTEMPTS"},
		{"GENERATION_QUEUE_CAPACITY", 256, &cfg.QueueCapacity, 1, "GENERATION_QUEUE_CAPACITY"},
		{"ENROLL_RATE_BURST", 10, &cfg.EnrollRateBurst, 1, "ENROLL_RATE_BURST"},
	}
	for _, v := range ints {
		n, err := intEnv(v.key, v.def)
		if err != nil {
			return nil, err
		}
		if n < v.min {
			return nil, fmt.Errorf("%s must be at least %d, got %d", v.name, v.min, n)
		}
		*v.dst = n
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"SWEEP_INTERVAL", time.Minute, &cfg.SweepInterval},
		{"REQUEUE_INTERVAL", 5 * time.Minute, &cfg.RequeueInterval},
		{"STALE_JOB_AFTER", 10 * time.Minute, &cfg.StaleJobAfter},
	}
	for _, v := range durations {
		d, err := durationEnv(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.dst = d
	}

	if cfg.AutoComplete, err = boolEnv("AUTO_COMPLETE", true); err != nil {
		return nil, err
	}
	if cfg.EnrollRateLimit, err = floatEnv("ENROLL_RATE_LIMIT", 2); err != nil {
		return nil, err
	}
	if cfg.EnrollRateLimit <= 0 {
		return nil, fmt.Errorf("ENROLL_RATE_LIMIT must be positive, got %v", cfg.EnrollRateLimit)
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
}
