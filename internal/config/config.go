package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/y0f/apifuzz/internal/report"
)

type Config struct {
	Contract ContractConfig `yaml:"contract"`
	Target   TargetConfig   `yaml:"target"`
	Run      RunConfig      `yaml:"run"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ContractConfig struct {
	Path string `yaml:"path"`
	// Paths limits the run to these contract paths. Empty means all.
	Paths []string `yaml:"paths"`
}

type TargetConfig struct {
	BaseURL          string            `yaml:"base_url"`
	Headers          map[string]string `yaml:"headers"`
	Timeout          time.Duration     `yaml:"timeout"`
	RateLimitPerSec  float64           `yaml:"rate_limit_per_sec"`
	RateLimitBurst   int               `yaml:"rate_limit_burst"`
	MaxRetries       int               `yaml:"max_retries"`
	RetryMaxInterval time.Duration     `yaml:"retry_max_interval"`
	HTTP2            bool              `yaml:"http2"`
	SkipTLSVerify    bool              `yaml:"skip_tls_verify"`
	// Proxy routes requests through an http(s) or socks5 proxy URL.
	Proxy            string            `yaml:"proxy"`
	MaxBodySize      int64             `yaml:"max_body_size"`
}

type RunConfig struct {
	// Fuzzers lists enabled fuzzers by name. Empty enables all registered fuzzers.
	Fuzzers        []string `yaml:"fuzzers"`
	Workers        int      `yaml:"workers"`
	SynthesisJobs  int      `yaml:"synthesis_jobs"`
	InvisibleChars []string `yaml:"invisible_chars"` // whitespace, zero_width, emoji
	// Expect overrides the response code family a fuzzer expects, keyed by
	// fuzzer name. A service that validates before trimming would set
	// LeadingWhitespacesInFieldsTrimValidateFuzzer: 4XX.
	Expect map[string]string `yaml:"expect"`
	// SkipFields lists request property paths, nested ones as "tag#label",
	// that field fuzzers do not touch.
	SkipFields []string `yaml:"skip_fields"`
}

type ReportConfig struct {
	Dir           string `yaml:"dir"`
	DatabasePath  string `yaml:"database_path"`
	MaxReadConns  int    `yaml:"max_read_conns"`
	RetentionDays int    `yaml:"retention_days"`
	MetricsFile   string `yaml:"metrics_file"`
	Color         string `yaml:"color"` // auto, on, off
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

var validInvisibleChars = map[string]bool{
	"whitespace": true, "zero_width": true, "emoji": true,
}

func Defaults() *Config {
	return &Config{
		Target: TargetConfig{
			Timeout:          10 * time.Second,
			RateLimitPerSec:  50,
			RateLimitBurst:   10,
			MaxRetries:       2,
			RetryMaxInterval: 2 * time.Second,
			MaxBodySize:      1 << 20, // 1MB
		},
		Run: RunConfig{
			Workers:        1,
			SynthesisJobs:  4,
			InvisibleChars: []string{"whitespace", "zero_width", "emoji"},
		},
		Report: ReportConfig{
			Dir:           "apifuzz-report",
			DatabasePath:  "apifuzz.db",
			MaxReadConns:  2,
			RetentionDays: 30,
			Color:         "auto",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Read parses the file at path on top of Defaults without validating, so
// command line overrides can be applied first. An empty path yields the
// defaults.
func Read(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Contract.Path == "" {
		return fmt.Errorf("contract.path is required")
	}
	if err := c.validateTarget(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validateReport(); err != nil {
		return err
	}
	return validateLogLevel(c.Logging.Level)
}

func (c *Config) validateTarget() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("target.base_url is required")
	}
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("target.base_url must be an absolute URL (e.g. http://localhost:8080)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target.base_url scheme must be http or https")
	}
	if c.Target.Timeout <= 0 {
		return fmt.Errorf("target.timeout must be positive")
	}
	if c.Target.RateLimitPerSec <= 0 {
		return fmt.Errorf("target.rate_limit_per_sec must be positive")
	}
	if c.Target.RateLimitBurst <= 0 {
		return fmt.Errorf("target.rate_limit_burst must be positive")
	}
	if c.Target.MaxRetries < 0 {
		return fmt.Errorf("target.max_retries must not be negative")
	}
	if c.Target.MaxBodySize <= 0 {
		return fmt.Errorf("target.max_body_size must be positive")
	}
	if c.Target.Proxy != "" {
		p, err := url.Parse(c.Target.Proxy)
		if err != nil || p.Host == "" {
			return fmt.Errorf("target.proxy must be a URL (e.g. socks5://127.0.0.1:1080)")
		}
		switch p.Scheme {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("target.proxy scheme must be http, https or socks5")
		}
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.Workers <= 0 {
		return fmt.Errorf("run.workers must be positive")
	}
	if c.Run.SynthesisJobs <= 0 {
		return fmt.Errorf("run.synthesis_jobs must be positive")
	}
	for _, set := range c.Run.InvisibleChars {
		if !validInvisibleChars[set] {
			return fmt.Errorf("run.invisible_chars: unknown set %q", set)
		}
	}
	for name, family := range c.Run.Expect {
		if _, err := report.ParseFamily(family); err != nil {
			return fmt.Errorf("run.expect.%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) validateReport() error {
	if c.Report.Dir == "" && c.Report.DatabasePath == "" {
		return fmt.Errorf("report.dir or report.database_path is required")
	}
	if c.Report.DatabasePath != "" && c.Report.MaxReadConns <= 0 {
		return fmt.Errorf("report.max_read_conns must be positive")
	}
	if c.Report.RetentionDays < 0 {
		return fmt.Errorf("report.retention_days must not be negative")
	}
	switch c.Report.Color {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("report.color must be one of: auto, on, off")
	}
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
}

// ResolvedBaseURL returns the target base URL without a trailing slash.
func (c *Config) ResolvedBaseURL() string {
	return strings.TrimRight(c.Target.BaseURL, "/")
}

// ExpectedFamilies returns the run.expect overrides. Entries that do not
// parse are left out; Validate reports them.
func (c *Config) ExpectedFamilies() map[string]report.CodeFamily {
	out := make(map[string]report.CodeFamily, len(c.Run.Expect))
	for name, family := range c.Run.Expect {
		if f, err := report.ParseFamily(family); err == nil {
			out[name] = f
		}
	}
	return out
}

// FuzzerEnabled reports whether the named fuzzer should run.
func (c *Config) FuzzerEnabled(name string) bool {
	if len(c.Run.Fuzzers) == 0 {
		return true
	}
	for _, f := range c.Run.Fuzzers {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}
