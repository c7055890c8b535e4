/**
 * Configuration for the PDF OCR worker
 *
 * Loads configuration from config.yaml (optional) and PDFOCR_* environment
 * variables. Values that drive batching (DPI, languages, per-batch memory
 * budget) are carried explicitly into the planner and batch worker.
 */

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultBatchMemoryBytes is the memory one batch of rendered pages is
// assumed to hold at once.
const DefaultBatchMemoryBytes int64 = 500 * 1024 * 1024

// Config holds worker configuration
type Config struct {
	OCR     OCRConfig     `mapstructure:"ocr" yaml:"ocr"`
	Render  RenderConfig  `mapstructure:"render" yaml:"render"`
	Planner PlannerConfig `mapstructure:"planner" yaml:"planner"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Queue   QueueConfig   `mapstructure:"queue" yaml:"queue"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// OCRConfig configures the Tesseract engine.
type OCRConfig struct {
	DPI            int      `mapstructure:"dpi" yaml:"dpi"`
	Languages      []string `mapstructure:"languages" yaml:"languages"`
	TessdataPrefix string   `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix"`
}

// RenderConfig configures PDF page rasterisation.
type RenderConfig struct {
	PdftoppmPath string `mapstructure:"pdftoppm_path" yaml:"pdftoppm_path"`
	TempDir      string `mapstructure:"temp_dir" yaml:"temp_dir"`
}

// PlannerConfig configures batch sizing and worker concurrency.
type PlannerConfig struct {
	BatchMemoryBytes int64 `mapstructure:"batch_memory_bytes" yaml:"batch_memory_bytes"`
	DefaultWorkers   int   `mapstructure:"default_workers" yaml:"default_workers"`
	MaxWorkers       int   `mapstructure:"max_workers" yaml:"max_workers"`
}

// OutputConfig configures where and how text files are written.
type OutputConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	PageMarkers bool   `mapstructure:"page_markers" yaml:"page_markers"`
}

// QueueConfig configures serve/enqueue mode.
type QueueConfig struct {
	Backend     string        `mapstructure:"backend" yaml:"backend"`
	RedisURL    string        `mapstructure:"redis_url" yaml:"redis_url"`
	Name        string        `mapstructure:"name" yaml:"name"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	JobTimeout  time.Duration `mapstructure:"job_timeout" yaml:"job_timeout"` // 0 disables the per-job deadline
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// StoreConfig configures the optional Postgres job ledger.
type StoreConfig struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Queue backends
const (
	QueueBackendRedis = "redis"
	QueueBackendAsynq = "asynq"
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.languages", []string{"chi_sim", "eng"})
	v.SetDefault("ocr.tessdata_prefix", "")
	v.SetDefault("render.pdftoppm_path", "pdftoppm")
	v.SetDefault("render.temp_dir", "")
	v.SetDefault("planner.batch_memory_bytes", DefaultBatchMemoryBytes)
	v.SetDefault("planner.default_workers", 4)
	v.SetDefault("planner.max_workers", 0)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.page_markers", true)
	v.SetDefault("queue.backend", QueueBackendRedis)
	v.SetDefault("queue.redis_url", "redis://localhost:6379")
	v.SetDefault("queue.name", "pdfocr:jobs")
	v.SetDefault("queue.concurrency", 1)
	v.SetDefault("queue.job_timeout", 30*time.Minute)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PDFOCR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a prepared viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Env values for list keys arrive as a single "a,b" or "a+b" string.
	cfg.OCR.Languages = splitLanguages(cfg.OCR.Languages)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return fmt.Errorf("ocr.dpi must be between 72 and 1200, got %d", c.OCR.DPI)
	}

	if len(c.OCR.Languages) == 0 {
		return fmt.Errorf("ocr.languages must name at least one language")
	}

	if c.Planner.BatchMemoryBytes <= 0 {
		return fmt.Errorf("planner.batch_memory_bytes must be positive, got %d", c.Planner.BatchMemoryBytes)
	}

	if c.Planner.DefaultWorkers < 1 {
		return fmt.Errorf("planner.default_workers must be at least 1, got %d", c.Planner.DefaultWorkers)
	}

	if c.Planner.MaxWorkers < 0 {
		return fmt.Errorf("planner.max_workers must not be negative, got %d", c.Planner.MaxWorkers)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	switch c.Queue.Backend {
	case QueueBackendRedis, QueueBackendAsynq:
	default:
		return fmt.Errorf("queue.backend must be %q or %q, got %q", QueueBackendRedis, QueueBackendAsynq, c.Queue.Backend)
	}

	if c.Queue.Concurrency < 1 || c.Queue.Concurrency > 100 {
		return fmt.Errorf("queue.concurrency must be between 1 and 100, got %d", c.Queue.Concurrency)
	}

	if c.Queue.JobTimeout < 0 {
		return fmt.Errorf("queue.job_timeout must not be negative, got %s", c.Queue.JobTimeout)
	}

	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must not be negative, got %d", c.Queue.MaxRetries)
	}

	return nil
}

func splitLanguages(in []string) []string {
	var out []string
	for _, item := range in {
		for _, lang := range strings.FieldsFunc(item, func(r rune) bool {
			return r == ',' || r == '+' || r == ' '
		}) {
			out = append(out, lang)
		}
	}
	return out
}

// Redacted returns a copy safe to print: credentials in URLs are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.OCR.Languages = append([]string(nil), c.OCR.Languages...)
	out.Queue.RedisURL = redactURL(c.Queue.RedisURL)
	out.Store.DatabaseURL = redactURL(c.Store.DatabaseURL)
	return &out
}

// YAML renders the configuration in config.yaml form.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal yaml")
	}
	return data, nil
}

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
