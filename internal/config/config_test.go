package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"ELASTICSEARCH_HOST", "ELASTICSEARCH_PORT",
		"EMBEDDING_SERVICE_URL", "DEFAULT_INDEX",
		"JOB_POOL_SIZE", "JOB_TTL_DAYS", "MISFIRE_GRACE_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "localhost", cfg.Elasticsearch.Host)
	assert.Equal(t, 9200, cfg.Elasticsearch.Port)
	assert.Equal(t, "http://localhost:8001", cfg.EmbeddingServiceURL)
	assert.Equal(t, "ds_content", cfg.DefaultIndex)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, 7*24*time.Hour, cfg.JobTTL)
	assert.Equal(t, time.Hour, cfg.MisfireGrace)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ELASTICSEARCH_HOST", "es.internal")
	t.Setenv("ELASTICSEARCH_PORT", "9201")
	t.Setenv("EMBEDDING_SERVICE_URL", "http://embed.internal:8001")
	t.Setenv("DEFAULT_INDEX", "staging_content")
	t.Setenv("JOB_POOL_SIZE", "8")
	t.Setenv("JOB_TTL_DAYS", "14")
	t.Setenv("MISFIRE_GRACE_SECONDS", "600")

	cfg := Load()

	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "es.internal", cfg.Elasticsearch.Host)
	assert.Equal(t, 9201, cfg.Elasticsearch.Port)
	assert.Equal(t, "http://embed.internal:8001", cfg.EmbeddingServiceURL)
	assert.Equal(t, "staging_content", cfg.DefaultIndex)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, 14*24*time.Hour, cfg.JobTTL)
	assert.Equal(t, 10*time.Minute, cfg.MisfireGrace)
}

func TestLoad_IgnoresUnparsableNumbers(t *testing.T) {
	t.Setenv("JOB_POOL_SIZE", "many")
	cfg := Load()
	assert.Equal(t, 4, cfg.PoolSize)
}
