package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"reddit_river/internal/domain"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Reddit    RedditConfig    `yaml:"reddit"`
	Sync      SyncConfig      `yaml:"sync"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Web       WebConfig       `yaml:"web"`
	LockDir   string          `yaml:"lock_dir"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
}

// RabbitMQConfig is optional; an empty URL disables event publishing.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "postgres"
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
		)
	}
	return d.Path
}

type RedditConfig struct {
	BaseURL           string        `yaml:"base_url"`
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Retry             RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type SyncConfig struct {
	StoryPages    int           `yaml:"story_pages"`
	SourcePages   int           `yaml:"source_pages"`
	DefaultSource string        `yaml:"default_source"`
	Interval      time.Duration `yaml:"interval"`
}

type DiscoveryConfig struct {
	Enabled   *bool         `yaml:"enabled"`
	Debug     bool          `yaml:"debug"`
	RulesFile string        `yaml:"rules_file"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// IsEnabled reports whether alternate URL discovery runs for new entries.
func (d DiscoveryConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

type WebConfig struct {
	Addr           string        `yaml:"addr"`
	StoriesPerPage int           `yaml:"stories_per_page"`
	StatsUsers     int           `yaml:"stats_users"`
	StatsStories   int           `yaml:"stats_stories"`
	StatsWindow    time.Duration `yaml:"stats_window"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", domain.ErrConfig, err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Rule file paths are relative to the config file.
	if cfg.Discovery.RulesFile != "" && !filepath.IsAbs(cfg.Discovery.RulesFile) {
		cfg.Discovery.RulesFile = filepath.Join(filepath.Dir(path), cfg.Discovery.RulesFile)
	}

	return &cfg, nil
}

// LockPath returns the lock file for the given job.
func (c *Config) LockPath(job string) string {
	return filepath.Join(c.LockDir, job+".lock")
}

func (c *Config) setDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "redditriver.db"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "reddit_river"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "entries"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "river_entries"
	}
	if c.Reddit.BaseURL == "" {
		c.Reddit.BaseURL = "https://old.reddit.com"
	}
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = "RedditRiver/1.0"
	}
	if c.Reddit.Timeout == 0 {
		c.Reddit.Timeout = 30 * time.Second
	}
	if c.Reddit.RequestsPerSecond == 0 {
		c.Reddit.RequestsPerSecond = 0.5
	}
	if c.Reddit.Retry.MaxAttempts == 0 {
		c.Reddit.Retry.MaxAttempts = 1
	}
	if c.Reddit.Retry.InitialBackoff == 0 {
		c.Reddit.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Reddit.Retry.MaxBackoff == 0 {
		c.Reddit.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Sync.StoryPages == 0 {
		c.Sync.StoryPages = 2
	}
	if c.Sync.SourcePages == 0 {
		c.Sync.SourcePages = 1
	}
	if c.Sync.DefaultSource == "" {
		c.Sync.DefaultSource = domain.FrontPage
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 30 * time.Minute
	}
	if c.Discovery.Timeout == 0 {
		c.Discovery.Timeout = 15 * time.Second
	}
	if c.Discovery.UserAgent == "" {
		c.Discovery.UserAgent = "Mozilla/5.0 (compatible; RedditRiver/1.0)"
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
	if c.Web.StoriesPerPage == 0 {
		c.Web.StoriesPerPage = 25
	}
	if c.Web.StatsUsers == 0 {
		c.Web.StatsUsers = 10
	}
	if c.Web.StatsStories == 0 {
		c.Web.StatsStories = 15
	}
	if c.Web.StatsWindow == 0 {
		c.Web.StatsWindow = 7 * 24 * time.Hour
	}
	if c.LockDir == "" {
		c.LockDir = os.TempDir()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown database driver %q", domain.ErrConfig, c.Database.Driver)
	}
	if c.Sync.StoryPages < 0 || c.Sync.SourcePages < 0 {
		return fmt.Errorf("%w: page counts must be positive", domain.ErrConfig)
	}
	return nil
}
