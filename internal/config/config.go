// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	custom_errors "ecosystem-dashboard/internal/errors"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DBURL             string        `mapstructure:"DB_URL"`
	GithubToken       string        `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL      string        `mapstructure:"GITHUB_API_URL"`
	NATSURL           string        `mapstructure:"NATS_URL"`
	SnapshotBucket    string        `mapstructure:"SNAPSHOT_BUCKET"`
	SnapshotKey       string        `mapstructure:"SNAPSHOT_KEY"`
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	CronSchedule      string        `mapstructure:"CRON_SCHEDULE"`
	RunOnStartup      bool          `mapstructure:"RUN_ON_STARTUP"`
	RunTimeout        time.Duration `mapstructure:"RUN_TIMEOUT"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RequestsPerSecond float64       `mapstructure:"REQUESTS_PER_SECOND"`
	MaxRetries        int           `mapstructure:"MAX_RETRIES"`
	Concurrency       int           `mapstructure:"CONCURRENCY"`
	PageSize          int           `mapstructure:"PAGE_SIZE"`
	MaxEvents         int           `mapstructure:"MAX_EVENTS"`
	SearchQueries     []string      `mapstructure:"SEARCH_QUERIES"`
	KnownRepos        []string      `mapstructure:"KNOWN_REPOS"`
	IgnoredRepos      []string      `mapstructure:"IGNORED_REPOS"`
	ReposFile         string        `mapstructure:"REPOS_FILE"`
	MilestoneRepo     string        `mapstructure:"MILESTONE_REPO"`
	ProfileSource     string        `mapstructure:"PROFILE_SOURCE"`
	PullState         string        `mapstructure:"PULL_STATE"`
	CommitsSinceDate  string        `mapstructure:"COMMITS_SINCE_DATE"`
	CommitsSinceTime  time.Time     `mapstructure:"-"`
}

var defaults = map[string]any{
	"LOG_LEVEL":           "info",
	"DB_URL":              "",
	"GITHUB_TOKEN":        "",
	"GITHUB_API_URL":      "",
	"NATS_URL":            "nats://localhost:4222",
	"SNAPSHOT_BUCKET":     "dashboard",
	"SNAPSHOT_KEY":        "data",
	"HTTP_ADDR":           ":8080",
	"CRON_SCHEDULE":       "10 * * * *", // Hourly, ten minutes past
	"RUN_ON_STARTUP":      false,
	"RUN_TIMEOUT":         "30m",
	"REQUEST_TIMEOUT":     "30s",
	"REQUESTS_PER_SECOND": 10.0,
	"MAX_RETRIES":         0,
	"CONCURRENCY":         5,
	"PAGE_SIZE":           100,
	"MAX_EVENTS":          35,
	"SEARCH_QUERIES":      []string{},
	"KNOWN_REPOS":         []string{},
	"IGNORED_REPOS":       []string{},
	"REPOS_FILE":          "",
	"MILESTONE_REPO":      "nanocurrency/nano-node",
	"PROFILE_SOURCE":      "Joohansson/nanodevlist/donatees",
	"PULL_STATE":          "open",
	"COMMITS_SINCE_DATE":  "2014-05-01T14:49:25Z",
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.ReposFile != "" {
		if err := cfg.loadReposFile(); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadReposFile merges the query, known and ignored lists of a repos.json style file.
func (c *Config) loadReposFile() error {
	f := viper.New()
	f.SetConfigFile(c.ReposFile)
	if err := f.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read REPOS_FILE %q: %w", c.ReposFile, err)
	}
	c.SearchQueries = append(c.SearchQueries, f.GetStringSlice("queries")...)
	c.KnownRepos = append(c.KnownRepos, f.GetStringSlice("known")...)
	c.IgnoredRepos = append(c.IgnoredRepos, f.GetStringSlice("ignored")...)
	return nil
}

func (c *Config) validate() error {
	parsedTime, err := time.Parse(time.RFC3339, c.CommitsSinceDate)
	if err != nil {
		return errors.New("COMMITS_SINCE_DATE must be in RFC3339 format (e.g. 2014-05-01T14:49:25Z)")
	}
	c.CommitsSinceTime = parsedTime

	// Validate required fields
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	if c.GithubToken == "" {
		return errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if len(c.SearchQueries) == 0 && len(c.KnownRepos) == 0 {
		return errors.New("SEARCH_QUERIES or KNOWN_REPOS must contain at least one entry")
	}
	if c.Concurrency < 1 {
		return errors.New("CONCURRENCY must be at least 1")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return errors.New("PAGE_SIZE must be between 1 and 100")
	}

	for _, list := range [][]string{c.KnownRepos, c.IgnoredRepos, {c.MilestoneRepo}} {
		for _, slug := range list {
			if _, _, err := SplitSlug(slug); err != nil {
				return err
			}
		}
	}
	if _, _, _, err := c.ProfileLocation(); err != nil {
		return err
	}
	return nil
}

// ProfileLocation splits PROFILE_SOURCE into repository owner, name and directory path.
func (c *Config) ProfileLocation() (owner, name, path string, err error) {
	parts := strings.SplitN(c.ProfileSource, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("PROFILE_SOURCE must be 'owner/repo/path', got %q", c.ProfileSource)
	}
	return parts[0], parts[1], parts[2], nil
}

// SplitSlug splits an 'owner/name' repository slug.
func SplitSlug(slug string) (owner, name string, err error) {
	parts := strings.Split(slug, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &custom_errors.ErrInvalidRepoFormat{Repo: slug}
	}
	return parts[0], parts[1], nil
}
