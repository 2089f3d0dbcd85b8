// Package config defines the application configuration and loads it from
// YAML files, MARKETSCOPE_* environment variables, and CLI flags via viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root configuration object.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Crawler CrawlerConfig `mapstructure:"crawler" yaml:"crawler"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	Social  SocialConfig  `mapstructure:"social" yaml:"social"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`

	// Audit is populated from CLI flags and arguments, not the config file.
	Audit AuditConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds logger settings, including lumberjack file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// LLMConfig configures the structured-text-generation collaborator.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Model             string        `mapstructure:"model" yaml:"model"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetryElapsed   time.Duration `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// CrawlerConfig bounds the crawl collaborator.
type CrawlerConfig struct {
	MaxPages       int           `mapstructure:"max_pages" yaml:"max_pages"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	UseSitemap     bool          `mapstructure:"use_sitemap" yaml:"use_sitemap"`
}

// BrowserConfig configures the headless-browser screenshot collaborator.
type BrowserConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// ReportConfig controls the output artifact.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// SocialConfig configures the social-listening mention search. An empty
// search URL disables the live search.
type SocialConfig struct {
	SearchURL string `mapstructure:"search_url" yaml:"search_url"`
}

// ArchiveConfig configures the optional postgres report archive.
type ArchiveConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// AuditConfig is the per-run configuration assembled from CLI flags.
type AuditConfig struct {
	CompanyName  string
	TargetURL    string
	Industry     string
	Competitors  []string
	MaxRevisions int
	AnalystName  string
}

// Defaults applied before unmarshalling.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "marketscope")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("llm.provider", "gemini")
	// Registered empty so MARKETSCOPE_LLM_API_KEY binds without a file.
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.api_timeout", 90*time.Second)
	v.SetDefault("llm.max_retry_elapsed", 2*time.Minute)
	v.SetDefault("llm.requests_per_minute", 15)

	v.SetDefault("crawler.max_pages", 20)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.request_timeout", 15*time.Second)
	v.SetDefault("crawler.user_agent", "marketscope/1.0 (+https://github.com/vantagehq/marketscope)")
	v.SetDefault("crawler.use_sitemap", true)

	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.viewport_width", 1440)
	v.SetDefault("browser.viewport_height", 900)

	v.SetDefault("report.format", "json")
	v.SetDefault("report.output", "")

	v.SetDefault("social.search_url", "https://www.reddit.com/search.json")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.database_url", "")
}

// Load reads configuration from the given file, or from the default
// search path (cwd, then ~/.marketscope) when cfgFile is empty. Missing
// config files are not an error; defaults and env vars apply.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".marketscope"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MARKETSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ValidateAudit checks the per-run configuration. These are the only
// run-fatal errors the pipeline recognizes before agents execute.
func (c *Config) ValidateAudit() error {
	if c.Audit.TargetURL == "" {
		return errors.New("audit target URL is required")
	}
	u, err := url.Parse(c.Audit.TargetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("audit target %q is not an absolute URL", c.Audit.TargetURL)
	}
	if c.Audit.CompanyName == "" {
		return errors.New("company name is required")
	}
	if c.Audit.MaxRevisions < 0 {
		return fmt.Errorf("max revisions must be >= 0, got %d", c.Audit.MaxRevisions)
	}
	return nil
}
