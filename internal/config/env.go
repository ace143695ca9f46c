package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Env is the process configuration read from the environment.
type Env struct {
	ListenAddr         string
	DataPath           string
	SiteFile           string
	DatabaseURL        string
	ProfileSecret      string
	IPLookupURL        string
	TrustCloudflare    bool
	AWSRegion          string
	SMSRelayFrom       string
	SMSRelayTo         string
	EventRetentionDays int
	RateLimitPerMinute int
	LogLevel           string
}

// LoadEnv reads .env when present, then the process environment.
func LoadEnv() Env {
	_ = godotenv.Load()

	dataPath := envOr("DATA_PATH", "./data")
	return Env{
		ListenAddr:         envOr("LISTEN_ADDR", ":8080"),
		DataPath:           dataPath,
		SiteFile:           envOr("SITE_FILE", dataPath+"/site.yaml"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		ProfileSecret:      os.Getenv("PROFILE_SECRET"),
		IPLookupURL:        os.Getenv("IP_LOOKUP_URL"),
		TrustCloudflare:    envBool("TRUST_CLOUDFLARE", false),
		AWSRegion:          envOr("AWS_REGION", "us-east-1"),
		SMSRelayFrom:       os.Getenv("SMS_RELAY_FROM"),
		SMSRelayTo:         os.Getenv("SMS_RELAY_TO"),
		EventRetentionDays: envInt("EVENT_RETENTION_DAYS", 90),
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 20),
		LogLevel:           envOr("LOG_LEVEL", "info"),
	}
}

// RelayConfigured reports whether SMS relay through SES is set up.
func (e Env) RelayConfigured() bool {
	return e.SMSRelayFrom != "" && e.SMSRelayTo != ""
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}
