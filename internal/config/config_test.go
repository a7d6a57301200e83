package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoad_Env(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"HTTP_ADDR":       ":9090",
		"CART_BACKEND":    "REDIS",
		"REDIS_ADDR":      "redis:6379",
		"REDIS_DB":        "2",
		"RUN_MIGRATIONS":  "no",
		"PUBLISH_EVENTS":  "true",
		"REQUEST_TIMEOUT": "750ms",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.False(t, cfg.RunMigrations)
	assert.True(t, cfg.PublishEvents)
	assert.Equal(t, 750*time.Millisecond, cfg.RequestTimeout)
}

func TestLoad_UnparseableEnvFallsBack(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"REDIS_DB":        "two",
		"RUN_MIGRATIONS":  "maybe",
		"REQUEST_TIMEOUT": "soon",
	}))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.RedisDB)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
httpAddr: ":7070"
backend: postgres
databaseDSN: postgres://file/db
logLevel: debug
shutdownTimeout: 30s
`), 0o600))

	cfg, err := load(envMap(map[string]string{
		"CART_CONFIG_FILE": path,
		"LOG_LEVEL":        "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseDSN)
	assert.Equal(t, "warn", cfg.LogLevel, "env wins over file")
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "json", cfg.LogFormat, "unset keys keep defaults")
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := load(envMap(map[string]string{"CART_CONFIG_FILE": filepath.Join(t.TempDir(), "missing.yaml")}))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("httpAddr: [unterminated"), 0o600))
	_, err = load(envMap(map[string]string{"CART_CONFIG_FILE": path}))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate  func(*Config)
		wantErr bool
	}{
		"defaults":            {mutate: func(c *Config) {}},
		"unknown backend":     {mutate: func(c *Config) { c.Backend = "sqlite" }, wantErr: true},
		"redis without addr":  {mutate: func(c *Config) { c.Backend = BackendRedis; c.RedisAddr = "" }, wantErr: true},
		"postgres no dsn":     {mutate: func(c *Config) { c.Backend = BackendPostgres; c.DatabaseDSN = "" }, wantErr: true},
		"publish without url": {mutate: func(c *Config) { c.PublishEvents = true; c.RabbitURL = "" }, wantErr: true},
		"zero timeout":        {mutate: func(c *Config) { c.RequestTimeout = 0 }, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_CORSOrigins(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"CORS_ALLOW_ORIGINS": " https://a.example , ,https://b.example",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)

	assert.Equal(t, []string{"*"}, splitCSV(" , "))
}
