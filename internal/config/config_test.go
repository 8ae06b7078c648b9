package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("QR_SESSION_TTL", "")
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := FromEnv()
	assert.Equal(t, 10*time.Minute, cfg.QRSessionTTL)
	assert.Equal(t, "memory", cfg.QueueBackend)
	assert.Equal(t, 256, cfg.QRImageSize)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("QR_SESSION_TTL", "2m")
	t.Setenv("SCAN_RATE_LIMIT_PER_MIN", "3")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg := FromEnv()
	assert.True(t, cfg.Production())
	assert.Equal(t, 2*time.Minute, cfg.QRSessionTTL)
	assert.Equal(t, 3, cfg.ScanRateLimitPerMin)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "-4")

	cfg := FromEnv()
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}
