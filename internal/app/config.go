package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yungbote/caseforge-backend/internal/data/db"
	"github.com/yungbote/caseforge-backend/internal/jobs/persist"
	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
	"github.com/yungbote/caseforge-backend/internal/platform/search"
	"github.com/yungbote/caseforge-backend/internal/realtime"
)

type Config struct {
	Port        string
	LogMode     string
	Environment string
	CORSOrigins []string

	DB                db.Config
	JWTSecretKey      string
	OpenAI            openai.Config
	Search            search.Config
	Redis             realtime.RedisConfig
	Sentry            persist.SentryConfig
	Persist           persist.Config
	VerifyConcurrency int
	Otel              observability.OtelConfig
	ShutdownTimeout   time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_NAME", "caseforge")
	v.SetDefault("SQLITE_PATH", "caseforge.db")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_TEMPERATURE", 0.2)
	v.SetDefault("OPENAI_MAX_RETRIES", 3)
	v.SetDefault("OPENAI_TIMEOUT", "120s")
	v.SetDefault("GENERATOR_RPS", 5.0)
	v.SetDefault("GENERATOR_BURST", 5)
	v.SetDefault("SEARCH_CACHE_TTL", "1h")
	v.SetDefault("REDIS_CHANNEL", "caseforge:frames")
	v.SetDefault("PERSIST_WORKERS", 4)
	v.SetDefault("PERSIST_QUEUE_SIZE", 256)
	v.SetDefault("PERSIST_TASK_TIMEOUT", "60s")
	v.SetDefault("VERIFY_CONCURRENCY", 4)
	v.SetDefault("OTEL_SERVICE_NAME", "caseforge-backend")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
}

// LoadConfig reads .env (if present), then the optional YAML file, then the
// environment. Environment values win.
func LoadConfig(log *logger.Logger, file string) (Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded .env")
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	if strings.TrimSpace(file) != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
		log.Info("Using config file", "path", v.ConfigFileUsed())
	}

	cfg := Config{
		Port:        v.GetString("PORT"),
		LogMode:     v.GetString("LOG_MODE"),
		Environment: v.GetString("ENVIRONMENT"),
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		DB: db.Config{
			Driver:     v.GetString("DB_DRIVER"),
			Host:       v.GetString("POSTGRES_HOST"),
			Port:       v.GetString("POSTGRES_PORT"),
			User:       v.GetString("POSTGRES_USER"),
			Password:   v.GetString("POSTGRES_PASSWORD"),
			Name:       v.GetString("POSTGRES_NAME"),
			SQLitePath: v.GetString("SQLITE_PATH"),
		},
		JWTSecretKey: v.GetString("JWT_SECRET_KEY"),
		OpenAI: openai.Config{
			APIKey:      v.GetString("OPENAI_API_KEY"),
			BaseURL:     v.GetString("OPENAI_BASE_URL"),
			Model:       v.GetString("OPENAI_MODEL"),
			Temperature: float32(v.GetFloat64("OPENAI_TEMPERATURE")),
			RPS:         v.GetFloat64("GENERATOR_RPS"),
			Burst:       v.GetInt("GENERATOR_BURST"),
			MaxRetries:  v.GetInt("OPENAI_MAX_RETRIES"),
			Timeout:     v.GetDuration("OPENAI_TIMEOUT"),
		},
		Search: search.Config{
			BaseURL:  v.GetString("SEARCH_BASE_URL"),
			Mailto:   v.GetString("SEARCH_MAILTO"),
			CacheTTL: v.GetDuration("SEARCH_CACHE_TTL"),
		},
		Redis: realtime.RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Channel:  v.GetString("REDIS_CHANNEL"),
		},
		Sentry: persist.SentryConfig{
			DSN:         v.GetString("SENTRY_DSN"),
			Environment: v.GetString("ENVIRONMENT"),
			Release:     v.GetString("RELEASE"),
		},
		Persist: persist.Config{
			Workers:     v.GetInt("PERSIST_WORKERS"),
			Size:        v.GetInt("PERSIST_QUEUE_SIZE"),
			TaskTimeout: v.GetDuration("PERSIST_TASK_TIMEOUT"),
		},
		VerifyConcurrency: v.GetInt("VERIFY_CONCURRENCY"),
		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			Environment: v.GetString("ENVIRONMENT"),
			Version:     v.GetString("RELEASE"),
			Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Headers:     observability.ParseHeaders(v.GetString("OTEL_EXPORTER_OTLP_HEADERS")),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			SampleRatio: v.GetFloat64("OTEL_SAMPLE_RATIO"),
		},
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
	}
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; bearer tokens will be rejected")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
