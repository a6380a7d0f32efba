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
	assert.Equal(t, 5*time.Second, cfg.Admission.LockTimeout)
	assert.Equal(t, 200, cfg.Admission.MaxBulkSize)
	assert.Equal(t, 2*time.Minute, cfg.Cache.AvailabilityTTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 1, cfg.Reconcile.Workers)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 15*time.Second, cfg.Database.StatementTimeout)
	assert.Equal(t, 30*time.Second, cfg.Database.IdleInTxTimeout)
}

func TestFromViperKeepsStatementTimeoutAboveLockTimeout(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ADMISSION_LOCK_TIMEOUT", "4s")
	v.Set("DB_STATEMENT_TIMEOUT", "3s")

	cfg := fromViper(v)
	assert.Equal(t, 8*time.Second, cfg.Database.StatementTimeout)

	v.Set("DB_STATEMENT_TIMEOUT", "0s")
	assert.Zero(t, fromViper(v).Database.StatementTimeout)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	v.Set("ADMISSION_MAX_BULK_SIZE", -1)
	v.Set("AVAILABILITY_CACHE_TTL", "not-a-duration")
	v.Set("JWT_AUDIENCE", "admission-api")

	cfg := fromViper(v)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 200, cfg.Admission.MaxBulkSize)
	assert.Equal(t, 2*time.Minute, cfg.Cache.AvailabilityTTL)
	assert.Equal(t, []string{"admission-api"}, cfg.JWT.Audience)
}
