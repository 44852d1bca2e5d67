package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the booking API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	ProviderAPIKey   string
	ProviderEndpoint string
	ProviderModel    string

	JWTSecret string
	TokenTTL  time.Duration

	RideTick            time.Duration
	CourierTick         time.Duration
	DriverSimTick       time.Duration
	DriverRequestTTL    time.Duration
	DriverRequestChance float64

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:            ":8080",
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        10 * time.Second,
		IdleTimeout:         120 * time.Second,
		ShutdownTimeout:     15 * time.Second,
		KafkaTopic:          "booking-events",
		ProviderEndpoint:    "https://generativelanguage.googleapis.com",
		ProviderModel:       "gemini-2.5-flash",
		JWTSecret:           "naijago-dev-secret",
		TokenTTL:            24 * time.Hour,
		RideTick:            15 * time.Second,
		CourierTick:         3 * time.Second,
		DriverSimTick:       5 * time.Second,
		DriverRequestTTL:    30 * time.Second,
		DriverRequestChance: 0.4,
		LogLevel:            "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	cfg.ProviderAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	setStringFromEnv(&cfg.ProviderEndpoint, "PROVIDER_ENDPOINT")
	setStringFromEnv(&cfg.ProviderModel, "PROVIDER_MODEL")

	setStringFromEnv(&cfg.JWTSecret, "JWT_SECRET")
	setDurationFromEnv(&cfg.TokenTTL, "TOKEN_TTL", &errs)

	setDurationFromEnv(&cfg.RideTick, "RIDE_ETA_TICK", &errs)
	setDurationFromEnv(&cfg.CourierTick, "COURIER_STAGE_TICK", &errs)
	setDurationFromEnv(&cfg.DriverSimTick, "DRIVER_SIM_TICK", &errs)
	setDurationFromEnv(&cfg.DriverRequestTTL, "DRIVER_REQUEST_TTL", &errs)
	setFloatFromEnv(&cfg.DriverRequestChance, "DRIVER_REQUEST_CHANCE", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.DriverRequestChance < 0 || cfg.DriverRequestChance > 1 {
		errs = append(errs, fmt.Errorf("DRIVER_REQUEST_CHANCE must be in [0, 1]"))
	}
	if cfg.RideTick <= 0 || cfg.CourierTick <= 0 || cfg.DriverSimTick <= 0 {
		errs = append(errs, fmt.Errorf("tick intervals must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
