package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Risk thresholds
	Limits LimitsConfig

	// VaR estimation
	VaR VaRConfig

	// Files
	Paths PathsConfig

	// Ticker risk cache
	Cache CacheConfig

	// Price history
	Prices PriceConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Scheduler
	EvaluationSchedule string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// LimitsConfig holds the portfolio rule thresholds
type LimitsConfig struct {
	SectorPercentageLimit   float64
	MaxPositionPercentage   float64
	MaxLeveragedPercentage  float64 // 0 disables the leveraged sizing rule
	MaxPortfolioSize        int
	MaxPortfolioExposure    float64
	AllowedBadPositions     int
	AllowedRatioGoodToTotal float64
	ProfilePath             string // optional YAML profile overriding the values above
}

// VaRConfig holds the parameters of the per-ticker VaR estimate
type VaRConfig struct {
	InitialInvestment float64
	NetLiquidity      float64
	StartDate         time.Time
	Confidence        float64
}

// PathsConfig holds file locations
type PathsConfig struct {
	DataDir           string
	AllTickers        string // ticker risk cache (csv/msgpack/sqlite file)
	TickerList        string // plain ticker list used by `cache warm`
	FinishedPortfolio string // standardized portfolio snapshot
}

// CacheConfig selects the ticker risk cache backend
type CacheConfig struct {
	Backend string // csv, msgpack, sqlite, postgres
}

// PriceConfig holds price-history provider settings
type PriceConfig struct {
	Provider         string // yahoo, postgres
	RateLimit        float64
	RateBurst        int
	FetchConcurrency int
	CacheTTL         time.Duration
	BreakerTimeout   time.Duration
	BreakerFailures  uint32
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only caller of os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	env := &envReader{}
	dataDir := getEnv("DATA_DIR", "data")
	startDate := env.date("START_DATE_FOR_VAR", "2018-01-01")

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Limits: LimitsConfig{
			SectorPercentageLimit:   env.float("SECTOR_PERCENTAGE_LIMIT", 0.2),
			MaxPositionPercentage:   env.float("MAX_POSITION_PERCENTAGE", 0.05),
			MaxLeveragedPercentage:  env.float("MAX_LEVERAGED_POSITION_PERCENTAGE", 0),
			MaxPortfolioSize:        env.int("MAX_PORTFOLIO_SIZE", 20),
			MaxPortfolioExposure:    env.float("MAX_PORTFOLIO_EXPOSURE", 1.3),
			AllowedBadPositions:     env.int("ALLOWED_BAD_POSITIONS", 0),
			AllowedRatioGoodToTotal: env.float("ALLOWED_RATIO_GOOD_TO_TOTAL", 0.4),
			ProfilePath:             getEnv("RISK_LIMITS_FILE", ""),
		},

		VaR: VaRConfig{
			InitialInvestment: env.float("INITIAL_INVESTMENT", 1000000),
			NetLiquidity:      env.float("NET_LIQUIDITY", 294000),
			StartDate:         startDate,
			Confidence:        0.95,
		},

		Paths: PathsConfig{
			DataDir:           dataDir,
			AllTickers:        getEnv("ALL_TICKERS_PATH", filepath.Join(dataDir, "alltickers.csv")),
			TickerList:        getEnv("TICKER_LIST_PATH", filepath.Join(dataDir, "alltickers.txt")),
			FinishedPortfolio: getEnv("FINISHED_PORTFOLIO_PATH", filepath.Join(dataDir, "finished.csv")),
		},

		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", "csv"),
		},

		Prices: PriceConfig{
			Provider:         getEnv("PRICE_PROVIDER", "yahoo"),
			RateLimit:        env.float("PRICE_RATE_LIMIT", 2),
			RateBurst:        env.int("PRICE_RATE_BURST", 2),
			FetchConcurrency: env.int("PRICE_FETCH_CONCURRENCY", 1),
			CacheTTL:         env.duration("PRICE_CACHE_TTL", "24h"),
			BreakerTimeout:   env.duration("PRICE_BREAKER_TIMEOUT", "1m"),
			BreakerFailures:  uint32(env.int("PRICE_BREAKER_FAILURES", 5)),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        env.int("DB_MAX_CONNS", 10),
			MinConns:        env.int("DB_MIN_CONNS", 1),
			MaxConnLifetime: env.duration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: env.duration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       env.int("REDIS_DB", 0),
			Enabled:  env.bool("REDIS_ENABLED", false),
		},

		// Weekdays after the US close
		EvaluationSchedule: getEnv("EVALUATION_SCHEDULE", "0 30 16 * * 1-5"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		// Monitoring
		MetricsEnabled: env.bool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Malformed numbers are rejected rather than replaced by defaults
	if err := env.err(); err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks enums and ranges
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Cache.Backend {
	case "csv", "msgpack", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when CACHE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of: csv, msgpack, sqlite, postgres")
	}

	switch c.Prices.Provider {
	case "yahoo":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when PRICE_PROVIDER=postgres")
		}
	default:
		return fmt.Errorf("PRICE_PROVIDER must be one of: yahoo, postgres")
	}

	if c.VaR.InitialInvestment <= 0 {
		return fmt.Errorf("INITIAL_INVESTMENT must be > 0")
	}
	if c.VaR.NetLiquidity <= 0 {
		return fmt.Errorf("NET_LIQUIDITY must be > 0")
	}
	if c.Prices.FetchConcurrency < 1 {
		return fmt.Errorf("PRICE_FETCH_CONCURRENCY must be >= 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// LoadError is an environment value that could not be parsed
type LoadError struct {
	Key   string
	Value string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// envReader parses typed values, falling back to the default only when the
// key is unset, and collects every malformed value
type envReader struct {
	errs []error
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

// lookup returns the raw value and whether it needs parsing
func (r *envReader) lookup(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

func (r *envReader) fail(key, value string, err error) {
	r.errs = append(r.errs, &LoadError{Key: key, Value: value, Err: err})
}

func (r *envReader) int(key string, defaultValue int) int {
	valueStr, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}

	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		r.fail(key, valueStr, errors.New("not an integer"))
		return defaultValue
	}

	return value
}

func (r *envReader) float(key string, defaultValue float64) float64 {
	valueStr, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		r.fail(key, valueStr, errors.New("not a finite number"))
		return defaultValue
	}

	return value
}

func (r *envReader) bool(key string, defaultValue bool) bool {
	valueStr, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}

	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		r.fail(key, valueStr, errors.New("not a boolean"))
		return defaultValue
	}

	return value
}

func (r *envReader) duration(key string, defaultValue string) time.Duration {
	valueStr, ok := r.lookup(key)
	if !ok {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		r.fail(key, valueStr, errors.New("not a duration"))
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func (r *envReader) date(key string, defaultValue string) time.Time {
	valueStr := getEnv(key, defaultValue)

	date, err := time.Parse("2006-01-02", strings.TrimSpace(valueStr))
	if err != nil {
		r.fail(key, valueStr, errors.New("not a YYYY-MM-DD date"))
		date, _ = time.Parse("2006-01-02", defaultValue)
	}

	return date
}
