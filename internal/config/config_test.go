package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, []string{"chi_sim", "eng"}, cfg.OCR.Languages)
	assert.Equal(t, DefaultBatchMemoryBytes, cfg.Planner.BatchMemoryBytes)
	assert.Equal(t, 4, cfg.Planner.DefaultWorkers)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.True(t, cfg.Output.PageMarkers)
	assert.Equal(t, QueueBackendRedis, cfg.Queue.Backend)
	assert.Equal(t, "pdfocr:jobs", cfg.Queue.Name)
	assert.Equal(t, 30*time.Minute, cfg.Queue.JobTimeout)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestFromViper_LanguagesFromString(t *testing.T) {
	v := newViper()
	v.Set("ocr.languages", []string{"chi_sim+eng"})

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"chi_sim", "eng"}, cfg.OCR.Languages)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "ocr:\n  dpi: 150\noutput:\n  dir: texts\n  page_markers: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.OCR.DPI)
	assert.Equal(t, "texts", cfg.Output.Dir)
	assert.False(t, cfg.Output.PageMarkers)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PDFOCR_PLANNER_DEFAULT_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Planner.DefaultWorkers)
}

func TestLoad_EnvDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PDFOCR_QUEUE_JOB_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Queue.JobTimeout)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := FromViper(newViper())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"dpi too low", func(c *Config) { c.OCR.DPI = 10 }, "ocr.dpi"},
		{"no languages", func(c *Config) { c.OCR.Languages = nil }, "ocr.languages"},
		{"zero memory budget", func(c *Config) { c.Planner.BatchMemoryBytes = 0 }, "batch_memory_bytes"},
		{"zero default workers", func(c *Config) { c.Planner.DefaultWorkers = 0 }, "default_workers"},
		{"negative max workers", func(c *Config) { c.Planner.MaxWorkers = -1 }, "max_workers"},
		{"empty output dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"unknown backend", func(c *Config) { c.Queue.Backend = "kafka" }, "queue.backend"},
		{"concurrency too high", func(c *Config) { c.Queue.Concurrency = 101 }, "queue.concurrency"},
		{"negative job timeout", func(c *Config) { c.Queue.JobTimeout = -time.Second }, "queue.job_timeout"},
		{"negative retries", func(c *Config) { c.Queue.MaxRetries = -1 }, "queue.max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.Error(t, InitLogger(LogConfig{Level: "loud", Format: "json"}))
}

func TestRedacted(t *testing.T) {
	cfg, err := FromViper(newViper())
	require.NoError(t, err)
	cfg.Store.DatabaseURL = "postgres://ocr:s3cret@db:5432/jobs?sslmode=disable"
	cfg.Queue.RedisURL = "redis://:hunter2@cache:6379/0"

	red := cfg.Redacted()
	assert.NotContains(t, red.Store.DatabaseURL, "s3cret")
	assert.Contains(t, red.Store.DatabaseURL, "db:5432")
	assert.NotContains(t, red.Queue.RedisURL, "hunter2")
	assert.Contains(t, cfg.Store.DatabaseURL, "s3cret", "original is untouched")
}

func TestYAML_RoundTrip(t *testing.T) {
	cfg, err := FromViper(newViper())
	require.NoError(t, err)
	cfg.OCR.DPI = 200
	cfg.Queue.JobTimeout = 45 * time.Second

	data, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "batch_memory_bytes: 524288000")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644))
	t.Chdir(dir)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 200, loaded.OCR.DPI)
	assert.Equal(t, 45*time.Second, loaded.Queue.JobTimeout)
	assert.Equal(t, cfg.OCR.Languages, loaded.OCR.Languages)
}
