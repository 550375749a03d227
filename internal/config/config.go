package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/ratelimit"
)

// Config holds all configuration for the application.
type Config struct {
	Env         string
	Host        string
	Port        int
	DBPath      string
	MDNSEnabled bool
	CORSOrigins []string

	RateLimits map[ratelimit.Bucket]ratelimit.Limit
}

// Load reads configuration from environment variables, consulting a .env
// file when present for development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Host:        getEnv("HTTP_HOST", "0.0.0.0"),
		Port:        getEnvAsInt("ROCKET_PORT", 8000),
		DBPath:      getEnv("CHAT_DB", "./data/chat.db"),
		MDNSEnabled: mdnsEnabled(),
		RateLimits:  ratelimit.DefaultLimits(),
	}

	if cors := getEnv("CORS_ORIGINS", ""); cors != "" {
		for _, part := range strings.Split(cors, ",") {
			if part = strings.TrimSpace(part); part != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, part)
			}
		}
	} else {
		cfg.CORSOrigins = []string{"*"}
	}

	// Per-bucket overrides: RATE_MESSAGES_MAX, RATE_MESSAGES_WINDOW_SECS, ...
	for bucket, limit := range cfg.RateLimits {
		prefix := "RATE_" + strings.ToUpper(string(bucket))
		limit.Max = getEnvAsInt(prefix+"_MAX", limit.Max)
		if secs := getEnvAsInt(prefix+"_WINDOW_SECS", 0); secs > 0 {
			limit.Window = time.Duration(secs) * time.Second
		}
		cfg.RateLimits[bucket] = limit
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	return cfg, nil
}

// HTTPAddr returns the listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func mdnsEnabled() bool {
	v := strings.ToLower(os.Getenv("MDNS_ENABLED"))
	return v != "0" && v != "false"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
