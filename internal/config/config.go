package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPListenAddr  string        // ex: ":8000"
	RPCListenAddr   string        // ex: ":8100" (internal TCP channel)
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Store
	StoreDriver string // "postgres" | "sqlite" | "memory"
	StoreDSN    string // DSN for postgres/sqlite (ignored for memory)

	// Authorization service (internal RPC)
	AuthzAddr        string        // ex: "authz-server:8110"
	AuthzDialTimeout time.Duration // per-call dial timeout (ex: 2s)
	AuthzCallTimeout time.Duration // per-call overall timeout (ex: 3s)

	// Health probing of catalog entries
	ProbeTimeout time.Duration // timeout per baseUrl probe (ex: 3s)

	// JWT (HTTP adapter). Empty path disables auth, for local dev only.
	JWTPublicKeyFile string

	// Redis cache (optional; empty addr disables caching)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial retry wait, grows exponentially
	RedisWarnThreshold  int           // warn after this many attempts
	CacheTTL            time.Duration // TTL for cached service records

	// Soft-delete purge
	PurgeInterval  time.Duration // how often to run the purge
	PurgeThreshold time.Duration // hard-delete rows soft-deleted longer than this

	// Optional YAML seed file applied when the catalog is empty
	SeedFile string

	TrustProxy bool // true => resolve client IP from X-Forwarded-For
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		HTTPListenAddr:  getenv("PORTAL_HTTP_ADDR", ":8000"),
		RPCListenAddr:   getenv("PORTAL_RPC_ADDR", ":8100"),
		ShutdownTimeout: mustDuration("PORTAL_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("PORTAL_LOG_LEVEL", "info"),
		PrettyLog: mustBool("PORTAL_PRETTY_LOG", false),

		// Store
		StoreDriver: getenv("PORTAL_STORE_DRIVER", "postgres"),
		StoreDSN:    getenv("PORTAL_STORE_DSN", ""),

		// Authorization service
		AuthzAddr:        getenv("PORTAL_AUTHZ_ADDR", "authz-server:8110"),
		AuthzDialTimeout: mustDuration("PORTAL_AUTHZ_DIAL_TIMEOUT", 2*time.Second),
		AuthzCallTimeout: mustDuration("PORTAL_AUTHZ_CALL_TIMEOUT", 3*time.Second),

		ProbeTimeout: mustDuration("PORTAL_PROBE_TIMEOUT", 3*time.Second),

		JWTPublicKeyFile: getenv("PORTAL_JWT_PUBLIC_KEY_FILE", ""),

		// Redis settings (optional)
		RedisAddr:           getenv("PORTAL_REDIS_ADDR", ""),
		RedisUser:           getenv("PORTAL_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("PORTAL_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("PORTAL_REDIS_DB", 0),
		RedisDT:             mustDuration("PORTAL_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("PORTAL_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("PORTAL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("PORTAL_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("PORTAL_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("PORTAL_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("PORTAL_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("PORTAL_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("PORTAL_REDIS_WARN_THRESHOLD", 3),
		CacheTTL:            mustDuration("PORTAL_CACHE_TTL", 5*time.Minute),

		// Purge
		PurgeInterval:  mustDuration("PORTAL_PURGE_INTERVAL", 24*time.Hour),
		PurgeThreshold: mustDuration("PORTAL_PURGE_THRESHOLD", 30*24*time.Hour),

		SeedFile: getenv("PORTAL_SEED_FILE", ""),

		TrustProxy: mustBool("PORTAL_TRUST_PROXY", false),
	}

	switch cfg.StoreDriver {
	case "postgres", "sqlite":
		if cfg.StoreDSN == "" {
			panic(fmt.Sprintf("FATAL: PORTAL_STORE_DSN is required when PORTAL_STORE_DRIVER=%s", cfg.StoreDriver))
		}
	case "memory":
	default:
		panic(fmt.Sprintf("FATAL: unknown PORTAL_STORE_DRIVER %q (want postgres, sqlite or memory)", cfg.StoreDriver))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		cfgCopy.StoreDSN = redactDSN(cfg.StoreDSN)
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// redactDSN hides the credentials part of a URL-style DSN.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***REDACTED***" + dsn[at:]
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
