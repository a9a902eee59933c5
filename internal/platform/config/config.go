package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures SSO server level configuration.
type Server struct {
	Addr        string
	Host        string
	BrokersFile string
	Redis       RedisConfig
	SessionTTL  time.Duration
	Audit       AuditConfig
}

// Broker captures the configuration of a broker-side deployment: where the
// SSO server gateway lives and the credentials this broker signs with.
type Broker struct {
	Addr     string
	Gateway  string
	BrokerID string
	Secret   string
	LoginURL string
}

// RedisConfig captures connection settings for the session store. An empty
// URL means Redis is not configured and the in-memory store is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig selects the audit publisher. Empty brokers list disables Kafka
// and falls back to the in-memory publisher.
type AuditConfig struct {
	KafkaBrokers []string
	Topic        string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SSO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	brokersFile := os.Getenv("SSO_BROKERS_FILE")
	if brokersFile == "" {
		brokersFile = "brokers.json"
	}

	topic := os.Getenv("SSO_AUDIT_TOPIC")
	if topic == "" {
		topic = "sso.audit"
	}

	var kafkaBrokers []string
	if v := os.Getenv("SSO_AUDIT_KAFKA"); v != "" {
		kafkaBrokers = []string{v}
	}

	return Server{
		Addr:        addr,
		Host:        os.Getenv("SSO_HOST"),
		BrokersFile: brokersFile,
		Redis: RedisConfig{
			URL:          os.Getenv("SSO_REDIS_URL"),
			PoolSize:     envInt("SSO_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SSO_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("SSO_REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  envDuration("SSO_REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: envDuration("SSO_REDIS_WRITE_TIMEOUT", time.Second),
		},
		SessionTTL: envDuration("SSO_SESSION_TTL", 24*time.Hour),
		Audit: AuditConfig{
			KafkaBrokers: kafkaBrokers,
			Topic:        topic,
		},
	}
}

// BrokerFromEnv builds a Broker config from environment variables.
func BrokerFromEnv() Broker {
	addr := os.Getenv("SSO_BROKER_ADDR")
	if addr == "" {
		addr = ":8090"
	}

	return Broker{
		Addr:     addr,
		Gateway:  os.Getenv("SSO_GATEWAY_URL"),
		BrokerID: os.Getenv("SSO_BROKER_ID"),
		Secret:   os.Getenv("SSO_BROKER_SECRET"),
		LoginURL: os.Getenv("SSO_LOGIN_URL"),
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
