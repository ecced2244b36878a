package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, 4, cfg.Analytics.Workers)
	assert.Equal(t, 5, cfg.Analytics.DefaultTopN)
	assert.Equal(t, EnvDevelopment, cfg.Sentry.Environment)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	v.Set("ANALYTICS_TOP_N", 7)
	v.Set("ANALYTICS_CACHE_TTL", "garbage")
	v.Set("JWT_EXPIRATION", "15m")
	v.Set("SENTRY_ENVIRONMENT", "staging")

	cfg := fromViper(v)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5, cfg.Analytics.DefaultTopN)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, "staging", cfg.Sentry.Environment)
}
