package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DatabaseURL   string `env:"DATABASE_URL,required"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// Redis
	RedisURL string `env:"REDIS_URL,required"`

	// JWT
	JWTSecret string `env:"JWT_SECRET,required"`

	// Gemini AI
	GeminiAPIKey         string `env:"GEMINI_API_KEY,required"`
	GeminiModel          string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiConcurrentReqs int    `env:"GEMINI_CONCURRENT_REQUESTS" envDefault:"5"`
	GeminiTimeoutSeconds int    `env:"GEMINI_TIMEOUT_SECONDS" envDefault:"30"`
	GeminiMaxAttempts    int    `env:"GEMINI_MAX_ATTEMPTS" envDefault:"3"`
	AIRateLimitPerMin    int    `env:"AI_RATE_LIMIT_PER_MIN" envDefault:"20"`

	// Background work
	WorkerCount            int `env:"WORKER_COUNT" envDefault:"2"`
	CleanupIntervalMinutes int `env:"CLEANUP_INTERVAL_MINUTES" envDefault:"15"`
	TimerMaxOpenHours      int `env:"TIMER_MAX_OPEN_HOURS" envDefault:"12"`

	// Analytics
	AnalyticsCacheTTLSeconds int `env:"ANALYTICS_CACHE_TTL_SECONDS" envDefault:"60"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) GeminiTimeout() time.Duration {
	return time.Duration(c.GeminiTimeoutSeconds) * time.Second
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func (c *Config) TimerMaxOpen() time.Duration {
	return time.Duration(c.TimerMaxOpenHours) * time.Hour
}

func (c *Config) AnalyticsCacheTTL() time.Duration {
	return time.Duration(c.AnalyticsCacheTTLSeconds) * time.Second
}

func (c *Config) Validate() error {
	if c.GeminiMaxAttempts < 1 {
		return fmt.Errorf("GEMINI_MAX_ATTEMPTS must be at least 1")
	}
	if c.GeminiConcurrentReqs < 1 {
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be at least 1")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}

	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	}
	return nil
}
