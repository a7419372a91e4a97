package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the trading simulator.
type Config struct {
	Port                int
	GRPCPort            int // 0 disables the gRPC health server
	LogLevel            string
	PriceUpdateInterval time.Duration
	Volatility          float64
	SimulationAutostart bool
	RandomSeed          uint64 // 0 seeds from the clock
	DefaultUserID       string
	AllowShortSelling   bool
	WebhookURL          string // empty disables execution webhooks
	WebhookTimeout      time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	ShutdownTimeout     time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 3000)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d out of range 1-65535", port)
	}

	grpcPort, err := getInt("GRPC_PORT", 50051)
	if err != nil {
		return nil, fmt.Errorf("invalid GRPC_PORT: %w", err)
	}
	if grpcPort < 0 || grpcPort > 65535 {
		return nil, fmt.Errorf("invalid GRPC_PORT: %d out of range 0-65535", grpcPort)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	interval, err := getDuration("PRICE_UPDATE_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_UPDATE_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid PRICE_UPDATE_INTERVAL: %v, must be positive", interval)
	}

	volatility, err := getFloat("VOLATILITY", 0.005)
	if err != nil {
		return nil, fmt.Errorf("invalid VOLATILITY: %w", err)
	}
	if volatility <= 0 || volatility >= 0.5 {
		return nil, fmt.Errorf("invalid VOLATILITY: %v, must be in (0, 0.5)", volatility)
	}

	autostart, err := getBool("SIMULATION_AUTOSTART", true)
	if err != nil {
		return nil, fmt.Errorf("invalid SIMULATION_AUTOSTART: %w", err)
	}

	seed, err := getUint("RANDOM_SEED", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid RANDOM_SEED: %w", err)
	}

	allowShort, err := getBool("ALLOW_SHORT_SELLING", true)
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOW_SHORT_SELLING: %w", err)
	}

	webhookURL := getStr("WEBHOOK_URL", "")
	if webhookURL != "" {
		u, err := url.ParseRequestURI(webhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid WEBHOOK_URL: %q, must be an absolute http(s) URL", webhookURL)
		}
	}

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                port,
		GRPCPort:            grpcPort,
		LogLevel:            logLevel,
		PriceUpdateInterval: interval,
		Volatility:          volatility,
		SimulationAutostart: autostart,
		RandomSeed:          seed,
		DefaultUserID:       getStr("DEFAULT_USER_ID", "user_001"),
		AllowShortSelling:   allowShort,
		WebhookURL:          webhookURL,
		WebhookTimeout:      webhookTimeout,
		ReadTimeout:         readTimeout,
		WriteTimeout:        writeTimeout,
		IdleTimeout:         idleTimeout,
		ShutdownTimeout:     shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getUint(key string, defaultVal uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
