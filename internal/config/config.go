package config

import (
	"os"
	"strconv"
	"time"

	"docsearch/internal/db"
)

// Config collects every runtime setting, loaded from the environment
type Config struct {
	Redis         db.RedisConfig
	Elasticsearch db.ElasticsearchConfig

	// EmbeddingServiceURL is the base URL of the embedding HTTP service
	EmbeddingServiceURL string

	// DefaultIndex is the document index written to unless a job names one
	DefaultIndex string

	// PoolSize bounds how many jobs execute concurrently
	PoolSize int

	// JobTTL is how long job records live in Redis
	JobTTL time.Duration

	// MisfireGrace is how late a scheduled fire may run before it is skipped
	MisfireGrace time.Duration
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	redis := db.DefaultRedisConfig()
	redis.Host = getEnv("REDIS_HOST", redis.Host)
	redis.Port = getEnvInt("REDIS_PORT", redis.Port)
	redis.Password = getEnv("REDIS_PASSWORD", redis.Password)
	redis.DB = getEnvInt("REDIS_DB", redis.DB)

	es := db.DefaultElasticsearchConfig()
	es.Host = getEnv("ELASTICSEARCH_HOST", es.Host)
	es.Port = getEnvInt("ELASTICSEARCH_PORT", es.Port)

	return &Config{
		Redis:               redis,
		Elasticsearch:       es,
		EmbeddingServiceURL: getEnv("EMBEDDING_SERVICE_URL", "http://localhost:8001"),
		DefaultIndex:        getEnv("DEFAULT_INDEX", "ds_content"),
		PoolSize:            getEnvInt("JOB_POOL_SIZE", 4),
		JobTTL:              time.Duration(getEnvInt("JOB_TTL_DAYS", 7)) * 24 * time.Hour,
		MisfireGrace:        time.Duration(getEnvInt("MISFIRE_GRACE_SECONDS", 3600)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
