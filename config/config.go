package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port           string
	HTTPBindAddr   string
	APIEnabled     bool
	Environment    string
	LoggingConfig  LoggingConfig
	PostgresConfig PostgresConfig
	RedisConfig    RedisConfig
	WorkerConfig   WorkerConfig
	CrawlerConfig  CrawlerConfig
	NTFYConfig     NTFYConfig
	WorkerEnabled  bool
	InitSchema     bool
	SeedReference  bool
}

// NTFYConfig holds push notification settings. Notifications stay off
// unless a topic is configured.
type NTFYConfig struct {
	ServerURL string
	Topic     string
	Enabled   bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host                   string
	Port                   string
	Password               string
	DB                     int
	QueueGroup             string
	QueueStreamPrefix      string
	QueueBlockTimeout      time.Duration
	QueueVisibilityTimeout time.Duration
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	Concurrency     int
	MaxRetries      int
	RetryDelay      time.Duration
	JobTimeout      time.Duration
	ShutdownTimeout time.Duration
}

// CrawlerConfig holds per-source credentials and crawl tunables. All
// variables carry the CRAWLER_ prefix. Sources whose credentials are
// absent fail construction individually; the rest stay usable.
type CrawlerConfig struct {
	DefaultCurrency string

	// Transport timeouts per layer. Browser runs are slow by nature.
	L1Timeout time.Duration
	L2Timeout time.Duration
	L3Timeout time.Duration

	// Rate limits in requests per minute.
	L1RateLimit      int
	L2RateLimit      int
	DefaultRateLimit int
	SourceRateLimits map[string]int

	L1ProxyURL string

	KiwiAPIKey string

	AmadeusClientID     string
	AmadeusClientSecret string
	AmadeusHostname     string

	LufthansaClientID     string
	LufthansaClientSecret string
	LufthansaHostname     string

	SingaporeAPIKey string

	TurkishAPIKey         string
	TurkishAPISecret      string
	TurkishAPIHostname    string
	TurkishUseOfficialAPI bool

	SputnikAPIKey string

	// BrowserExecPath overrides headless Chrome discovery for L3.
	BrowserExecPath string
	BrowserHeadless bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	port := getEnv("PORT", "8080")
	httpBindAddr := getEnv("HTTP_BIND_ADDR", "")
	environment := getEnv("ENVIRONMENT", "development")
	apiEnabled, _ := strconv.ParseBool(getEnv("API_ENABLED", "true"))
	workerEnabled, _ := strconv.ParseBool(getEnv("WORKER_ENABLED", "true"))
	initSchema, _ := strconv.ParseBool(getEnv("INIT_SCHEMA", "true"))
	seedReference, _ := strconv.ParseBool(getEnv("SEED_REFERENCE_DATA", "true"))

	loggingConfig := LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	postgresConfig := PostgresConfig{
		Host:     getEnv("DB_HOST", "postgres"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "skyfare"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "skyfare"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	queueBlockTimeout, err := time.ParseDuration(getEnv("REDIS_QUEUE_BLOCK_TIMEOUT", "5s"))
	if err != nil {
		queueBlockTimeout = 5 * time.Second
	}
	queueVisibilityTimeout, err := time.ParseDuration(getEnv("REDIS_QUEUE_VISIBILITY_TIMEOUT", "2m"))
	if err != nil {
		queueVisibilityTimeout = 2 * time.Minute
	}

	redisConfig := RedisConfig{
		Host:                   getEnv("REDIS_HOST", "redis"),
		Port:                   getEnv("REDIS_PORT", "6379"),
		Password:               getEnv("REDIS_PASSWORD", ""),
		DB:                     0,
		QueueGroup:             getEnv("REDIS_QUEUE_GROUP", "crawl_workers"),
		QueueStreamPrefix:      getEnv("REDIS_QUEUE_STREAM_PREFIX", "skyfare"),
		QueueBlockTimeout:      queueBlockTimeout,
		QueueVisibilityTimeout: queueVisibilityTimeout,
	}

	concurrency, _ := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "5"))
	maxRetries, _ := strconv.Atoi(getEnv("WORKER_MAX_RETRIES", "3"))
	retryDelay, _ := time.ParseDuration(getEnv("WORKER_RETRY_DELAY", "30s"))
	jobTimeout, _ := time.ParseDuration(getEnv("WORKER_JOB_TIMEOUT", "10m"))
	shutdownTimeout, _ := time.ParseDuration(getEnv("WORKER_SHUTDOWN_TIMEOUT", "30s"))

	workerConfig := WorkerConfig{
		Concurrency:     concurrency,
		MaxRetries:      maxRetries,
		RetryDelay:      retryDelay,
		JobTimeout:      jobTimeout,
		ShutdownTimeout: shutdownTimeout,
	}

	return &Config{
		Port:           port,
		HTTPBindAddr:   httpBindAddr,
		APIEnabled:     apiEnabled,
		Environment:    environment,
		LoggingConfig:  loggingConfig,
		PostgresConfig: postgresConfig,
		RedisConfig:    redisConfig,
		WorkerConfig:   workerConfig,
		CrawlerConfig:  loadCrawlerConfig(),
		NTFYConfig:     loadNTFYConfig(),
		WorkerEnabled:  workerEnabled,
		InitSchema:     initSchema,
		SeedReference:  seedReference,
	}, nil
}

func loadCrawlerConfig() CrawlerConfig {
	l1Timeout, _ := time.ParseDuration(getEnv("CRAWLER_L1_TIMEOUT", "30s"))
	l2Timeout, _ := time.ParseDuration(getEnv("CRAWLER_L2_TIMEOUT", "45s"))
	l3Timeout, _ := time.ParseDuration(getEnv("CRAWLER_L3_TIMEOUT", "180s"))

	l1Rate, _ := strconv.Atoi(getEnv("CRAWLER_L1_RATE_LIMIT", "30"))
	l2Rate, _ := strconv.Atoi(getEnv("CRAWLER_L2_RATE_LIMIT", "10"))
	defaultRate, _ := strconv.Atoi(getEnv("CRAWLER_DEFAULT_RATE_LIMIT", "10"))

	useOfficialTK, _ := strconv.ParseBool(getEnv("CRAWLER_TK_USE_OFFICIAL_API", "false"))
	headless, _ := strconv.ParseBool(getEnv("CRAWLER_BROWSER_HEADLESS", "true"))

	return CrawlerConfig{
		DefaultCurrency: getEnv("CRAWLER_DEFAULT_CURRENCY", "KRW"),

		L1Timeout: l1Timeout,
		L2Timeout: l2Timeout,
		L3Timeout: l3Timeout,

		L1RateLimit:      l1Rate,
		L2RateLimit:      l2Rate,
		DefaultRateLimit: defaultRate,
		SourceRateLimits: parseRateLimits(getEnv("CRAWLER_SOURCE_RATE_LIMITS", "")),

		L1ProxyURL: getEnv("CRAWLER_L1_PROXY_URL", ""),

		KiwiAPIKey: getEnv("CRAWLER_KIWI_API_KEY", ""),

		AmadeusClientID:     getEnv("CRAWLER_AMADEUS_CLIENT_ID", ""),
		AmadeusClientSecret: getEnv("CRAWLER_AMADEUS_CLIENT_SECRET", ""),
		AmadeusHostname:     getEnv("CRAWLER_AMADEUS_HOSTNAME", "test.api.amadeus.com"),

		LufthansaClientID:     getEnv("CRAWLER_LUFTHANSA_CLIENT_ID", ""),
		LufthansaClientSecret: getEnv("CRAWLER_LUFTHANSA_CLIENT_SECRET", ""),
		LufthansaHostname:     getEnv("CRAWLER_LUFTHANSA_HOSTNAME", "api.lufthansa.com"),

		SingaporeAPIKey: getEnv("CRAWLER_SINGAPORE_API_KEY", ""),

		TurkishAPIKey:         getEnv("CRAWLER_TK_API_KEY", ""),
		TurkishAPISecret:      getEnv("CRAWLER_TK_API_SECRET", ""),
		TurkishAPIHostname:    getEnv("CRAWLER_TK_API_HOSTNAME", "api.turkishairlines.com"),
		TurkishUseOfficialAPI: useOfficialTK,

		SputnikAPIKey: getEnv("CRAWLER_SPUTNIK_API_KEY", ""),

		BrowserExecPath: getEnv("CRAWLER_BROWSER_EXEC_PATH", ""),
		BrowserHeadless: headless,
	}
}

func loadNTFYConfig() NTFYConfig {
	topic := getEnv("NTFY_TOPIC", "")
	enabled, _ := strconv.ParseBool(getEnv("NTFY_ENABLED", "true"))
	return NTFYConfig{
		ServerURL: getEnv("NTFY_SERVER_URL", "https://ntfy.sh"),
		Topic:     topic,
		Enabled:   enabled && topic != "",
	}
}

// parseRateLimits parses "source:rpm,source:rpm" into a map.
func parseRateLimits(s string) map[string]int {
	out := map[string]int{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || n < 0 {
			continue
		}
		out[strings.TrimSpace(parts[0])] = n
	}
	return out
}

// TestConfig returns a default test configuration
func TestConfig() *Config {
	return &Config{
		Environment: "test",
		PostgresConfig: PostgresConfig{
			Host:    getEnv("DB_HOST", "localhost"),
			Port:    getEnv("DB_PORT", "5432"),
			User:    getEnv("DB_USER", "skyfare"),
			DBName:  getEnv("DB_NAME_TEST", "skyfare_test"),
			SSLMode: "disable",
		},
		RedisConfig: RedisConfig{
			Host:                   getEnv("REDIS_HOST", "localhost"),
			Port:                   getEnv("REDIS_PORT", "6379"),
			QueueGroup:             "crawl_workers",
			QueueStreamPrefix:      "skyfare",
			QueueBlockTimeout:      5 * time.Second,
			QueueVisibilityTimeout: 2 * time.Minute,
		},
		CrawlerConfig: CrawlerConfig{
			DefaultCurrency:  "KRW",
			L1Timeout:        5 * time.Second,
			L2Timeout:        5 * time.Second,
			L3Timeout:        10 * time.Second,
			DefaultRateLimit: 600,

			// Dummy credentials so credentialed sources construct in
			// tests; nothing dials until a crawl runs.
			KiwiAPIKey:            "test-key",
			AmadeusClientID:       "test-client",
			AmadeusClientSecret:   "test-secret",
			LufthansaClientID:     "test-client",
			LufthansaClientSecret: "test-secret",
			SingaporeAPIKey:       "test-key",
			TurkishAPIKey:         "test-key",
			TurkishAPISecret:      "test-secret",
			SputnikAPIKey:         "test-key",
		},
		WorkerEnabled: false,
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if len(strings.TrimSpace(value)) == 0 {
		return defaultValue
	}
	return strings.TrimSpace(value)
}
