package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Database.AcquireTimeout)
	assert.Equal(t, "/login", cfg.Session.LoginPath)
	assert.False(t, cfg.SecureCookies())
	assert.False(t, cfg.OAuth.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DB_URL", "postgres://app:pw@db:5432/auth?sslmode=require")
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("JWT_ACCESS_EXPIRY", "5m")
	t.Setenv("JWT_REFRESH_EXPIRY", "14d")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("SESSION_SWEEP_INTERVAL", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.True(t, cfg.SecureCookies())
	assert.Equal(t, "postgres://app:pw@db:5432/auth?sslmode=require", cfg.Database.DSN())
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Zero(t, cfg.Session.SweepInterval)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnsafeSecrets(t *testing.T) {
	cfg := &Config{Env: EnvProduction, JWT: JWTConfig{
		AccessSecret:  defaultAccessSecret,
		RefreshSecret: "refresh",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}}
	assert.Error(t, cfg.Validate())

	cfg.JWT.AccessSecret = "same"
	cfg.JWT.RefreshSecret = "same"
	assert.Error(t, cfg.Validate())
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, parseDuration("7d", time.Second))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Second))
	assert.Equal(t, time.Second, parseDuration("", time.Second))
	assert.Equal(t, time.Second, parseDuration("soon", time.Second))
	assert.Equal(t, time.Second, parseDuration("-3d", time.Second))
}

func TestDSNFromParts(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=n sslmode=disable", d.DSN())
}
