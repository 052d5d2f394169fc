package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           int
	DBDriver       string
	DBDsn          string
	JWTSecret      string
	JWTTTL         int64
	CookieName     string
	AdminInitUser  string
	AdminInitPass  string
	RateLimitRPS   int
	RateLimitBurst int

	// Code generation pipeline
	CodeLength     int
	ChunkSize      int
	InsertWorkers  int
	SyncBudget     int
	TickBudget     int
	TickBatchLimit int
	TickWallClock  time.Duration
	ResumeInterval time.Duration

	// Geolocation enrichment
	GeoEnabled    bool
	GeoBaseURL    string
	GeoTimeout    time.Duration
	GeoCacheTTL   time.Duration
	GeoRatePerMin int

	// Redis cache (optional; memory fallback when unavailable)
	RedisEnabled      bool
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisUseTLS       bool
	RedisDialTimeout  time.Duration
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration
	CacheMaxEntries   int

	// Batch-complete notification webhook (fire-and-forget)
	NotifyWebhookURL string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getinti(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getseconds(key string, def int) time.Duration {
	return time.Duration(getinti(key, def)) * time.Second
}

func generateJWTSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	return hex.EncodeToString(bytes)
}

func Load() *Config {
	jwtSecret := getenv("JWT_SECRET", "")
	if jwtSecret == "" || jwtSecret == "please_change_me" {
		jwtSecret = generateJWTSecret()
	}

	return &Config{
		Port:           getinti("PORT", 8000),
		DBDriver:       getenv("DB_DRIVER", "sqlite"),
		DBDsn:          getenv("DB_DSN", "./data/app.db"),
		JWTSecret:      jwtSecret,
		JWTTTL:         getint64("JWT_TTL", 86400),
		CookieName:     getenv("COOKIE_NAME", "auth_token"),
		AdminInitUser:  getenv("ADMIN_INIT_USER", ""),
		AdminInitPass:  getenv("ADMIN_INIT_PASS", ""),
		RateLimitRPS:   getinti("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getinti("RATE_LIMIT_BURST", 40),

		CodeLength:     getinti("CODE_LENGTH", 12),
		ChunkSize:      getinti("INSERT_CHUNK_SIZE", 500),
		InsertWorkers:  getinti("INSERT_WORKERS", 8),
		SyncBudget:     getinti("SYNC_GENERATION_BUDGET", 10000),
		TickBudget:     getinti("TICK_GENERATION_BUDGET", 10000),
		TickBatchLimit: getinti("TICK_BATCH_LIMIT", 5),
		TickWallClock:  getseconds("TICK_WALL_CLOCK_SEC", 25),
		ResumeInterval: getseconds("RESUME_INTERVAL_SEC", 0),

		GeoEnabled:    getbool("GEO_ENABLED", true),
		GeoBaseURL:    getenv("GEO_BASE_URL", "http://ip-api.com/json/"),
		GeoTimeout:    getseconds("GEO_TIMEOUT_SEC", 5),
		GeoCacheTTL:   getseconds("GEO_CACHE_TTL_SEC", 86400),
		GeoRatePerMin: getinti("GEO_RATE_PER_MIN", 40),

		RedisEnabled:      getbool("REDIS_ENABLED", false),
		RedisAddr:         getenv("REDIS_ADDR", ""),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getinti("REDIS_DB", 0),
		RedisUseTLS:       getbool("REDIS_TLS", false),
		RedisDialTimeout:  getseconds("REDIS_DIAL_TIMEOUT_SEC", 2),
		RedisReadTimeout:  getseconds("REDIS_READ_TIMEOUT_SEC", 1),
		RedisWriteTimeout: getseconds("REDIS_WRITE_TIMEOUT_SEC", 1),
		CacheMaxEntries:   getinti("CACHE_MAX_ENTRIES", 4096),

		NotifyWebhookURL: getenv("NOTIFY_WEBHOOK_URL", ""),
	}
}
