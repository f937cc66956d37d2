package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	PostgresDSN     string
	Redis           RedisConfig
	KafkaBrokers    []string
	EventTopic      string
	AdminJWTKey     string
	ShutdownTimeout time.Duration
}

// RedisConfig captures connection settings for the eligibility cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// EligibilityCacheTTL caps how long a positive eligibility check may be served
// from cache. Revocation invalidates explicitly; this bound covers missed
// invalidations.
var EligibilityCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("AURUM_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("AURUM_EVENT_TOPIC")
	if topic == "" {
		topic = "aurum.ledger.events"
	}

	var brokers []string
	if raw := os.Getenv("AURUM_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	jwtKey := os.Getenv("AURUM_ADMIN_JWT_KEY")
	if jwtKey == "" {
		// Development default; must be overridden in production.
		jwtKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:        addr,
		PostgresDSN: os.Getenv("AURUM_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("AURUM_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:    brokers,
		EventTopic:      topic,
		AdminJWTKey:     jwtKey,
		ShutdownTimeout: 10 * time.Second,
	}
}
