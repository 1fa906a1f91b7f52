// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override config keys,
// e.g. AMPOPT_SERVER_LISTEN_ADDR for server.listen_addr.
const EnvPrefix = "AMPOPT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Optimizer() OptimizerConfig
	Sanitizer() SanitizerConfig
	Server() ServerConfig
	Batch() BatchConfig

	// CLI flag overrides
	SetBatchOutputDir(dir string)
	SetBatchReport(path string)
	SetBatchConcurrency(n int)
	SetServerListenAddr(addr string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	OptimizerCfg OptimizerConfig `mapstructure:"optimizer" yaml:"optimizer"`
	SanitizerCfg SanitizerConfig `mapstructure:"sanitizer" yaml:"sanitizer"`
	ServerCfg    ServerConfig    `mapstructure:"server" yaml:"server"`
	BatchCfg     BatchConfig     `mapstructure:"batch" yaml:"batch"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Optimizer() OptimizerConfig { return c.OptimizerCfg }
func (c *Config) Sanitizer() SanitizerConfig { return c.SanitizerCfg }
func (c *Config) Server() ServerConfig       { return c.ServerCfg }
func (c *Config) Batch() BatchConfig         { return c.BatchCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBatchOutputDir(dir string)    { c.BatchCfg.OutputDir = dir }
func (c *Config) SetBatchReport(path string)      { c.BatchCfg.Report = path }
func (c *Config) SetBatchConcurrency(n int)       { c.BatchCfg.Concurrency = n }
func (c *Config) SetServerListenAddr(addr string) { c.ServerCfg.ListenAddr = addr }

// -- Section Types --

// LoggerConfig defines all the settings for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// OptimizerConfig selects and tunes the transformers of the pipeline.
type OptimizerConfig struct {
	// Transformers run in the listed order.
	Transformers []string         `mapstructure:"transformers" yaml:"transformers"`
	SSR          SSRConfig        `mapstructure:"ssr" yaml:"ssr"`
	RuntimeCSS   RuntimeCSSConfig `mapstructure:"runtime_css" yaml:"runtime_css"`
}

// SSRConfig tunes server-side rendering.
type SSRConfig struct {
	RenderDelayingExtensions []string `mapstructure:"render_delaying_extensions" yaml:"render_delaying_extensions"`
}

// RuntimeCSSConfig points at the runtime stylesheet to inline. An empty path
// selects the stylesheet bundled with the binary.
type RuntimeCSSConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Version string `mapstructure:"version" yaml:"version"`
}

// SanitizerConfig controls the markup sanitizers that run before the optimizer.
type SanitizerConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	AMPToAMPLinking bool   `mapstructure:"amp_to_amp_linking" yaml:"amp_to_amp_linking"`
	HomeURL         string `mapstructure:"home_url" yaml:"home_url"`
}

// ServerConfig configures the HTTP hosting surface.
type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	Compress       bool          `mapstructure:"compress" yaml:"compress"`
	// RateLimit caps /api/v1 requests per second across all clients. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// BatchConfig configures `ampopt optimize` over many files.
type BatchConfig struct {
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	Report      string `mapstructure:"report" yaml:"report"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ampopt")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Optimizer --
	v.SetDefault("optimizer.transformers", []string{"ServerSideRendering", "AmpRuntimeCss", "TransformedIdentifier"})
	v.SetDefault("optimizer.ssr.render_delaying_extensions", []string{"amp-story", "amp-dynamic-css-classes"})
	v.SetDefault("optimizer.runtime_css.path", "")
	v.SetDefault("optimizer.runtime_css.version", "")

	// -- Sanitizer --
	v.SetDefault("sanitizer.enabled", false)
	v.SetDefault("sanitizer.amp_to_amp_linking", false)
	v.SetDefault("sanitizer.home_url", "/")

	// -- Server --
	v.SetDefault("server.listen_addr", "127.0.0.1:8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.request_timeout", "20s")
	v.SetDefault("server.max_body_bytes", 8<<20)
	v.SetDefault("server.compress", true)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 20)

	// -- Batch --
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.output_dir", "")
	v.SetDefault("batch.report", "")
}

// BindEnvironment makes every key overridable through AMPOPT_* variables.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Paths may be written relative to the home directory.
	for _, p := range []*string{&cfg.OptimizerCfg.RuntimeCSS.Path, &cfg.BatchCfg.OutputDir, &cfg.BatchCfg.Report, &cfg.LoggerCfg.LogFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("error expanding path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// Transformer names are checked when the pipeline is built.
func (c *Config) Validate() error {
	if c.BatchCfg.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be a positive integer")
	}
	if err := c.ServerCfg.Validate(); err != nil {
		return fmt.Errorf("server configuration invalid: %w", err)
	}
	if err := c.SanitizerCfg.Validate(); err != nil {
		return fmt.Errorf("sanitizer configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the server configuration.
func (s *ServerConfig) Validate() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be a positive integer")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.RequestTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if s.RateLimit > 0 && s.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be a positive integer when rate_limit is set")
	}
	return nil
}

// Validate checks the sanitizer configuration.
func (s *SanitizerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if _, err := url.Parse(s.HomeURL); err != nil || s.HomeURL == "" {
		return fmt.Errorf("home_url %q is not a valid url", s.HomeURL)
	}
	return nil
}
