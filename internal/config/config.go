package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Amap      AmapConfig
	Ranking   RankingConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig selects the repository backend. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AmapConfig holds the Amap web-service key and the search defaults.
type AmapConfig struct {
	Key           string
	BaseURL       string
	Transport     string // "jsonp" or "direct"
	Timeout       time.Duration
	RatePerSecond int
	DefaultRadius int
	PageSize      int
}

type RankingConfig struct {
	TTL            time.Duration
	WorkerInterval time.Duration
	Limit          int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("POSTGRES_URL", ""),
			MaxConns: int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Amap: AmapConfig{
			Key:           getEnv("AMAP_KEY", ""),
			BaseURL:       getEnv("AMAP_BASE_URL", "https://restapi.amap.com/v3"),
			Transport:     strings.ToLower(getEnv("AMAP_TRANSPORT", "jsonp")),
			Timeout:       getEnvAsDuration("AMAP_TIMEOUT", 10*time.Second),
			RatePerSecond: getEnvAsInt("AMAP_QPS", 20),
			DefaultRadius: getEnvAsInt("AMAP_DEFAULT_RADIUS", 2000),
			PageSize:      getEnvAsInt("PAGE_SIZE", 20),
		},
		Ranking: RankingConfig{
			TTL:            getEnvAsDuration("RANKING_TTL", 10*time.Minute),
			WorkerInterval: getEnvAsDuration("RANKING_WORKER_INTERVAL", 5*time.Minute),
			Limit:          getEnvAsInt("RANKING_LIMIT", 20),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 120),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Amap.Key == "" {
		return fmt.Errorf("AMAP_KEY is required")
	}
	if c.Amap.Transport != "jsonp" && c.Amap.Transport != "direct" {
		return fmt.Errorf("AMAP_TRANSPORT must be jsonp or direct, got %q", c.Amap.Transport)
	}
	if c.Amap.Timeout <= 0 {
		return fmt.Errorf("AMAP_TIMEOUT must be positive")
	}
	if c.Amap.RatePerSecond <= 0 {
		return fmt.Errorf("AMAP_QPS must be positive")
	}
	if c.Ranking.WorkerInterval <= 0 {
		return fmt.Errorf("RANKING_WORKER_INTERVAL must be positive")
	}
	if c.Ranking.TTL <= 0 {
		return fmt.Errorf("RANKING_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
