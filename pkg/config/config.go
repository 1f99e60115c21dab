package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the harvester reads
const EnvPrefix = "DOCHARVEST_"

// Catalog sources
const (
	SourceBrowser = "browser"
	SourceHTTP    = "http"
)

// Settle detector strategies
const (
	DetectorWatch = "watch"
	DetectorPoll  = "poll"
)

// Config holds all configuration options for the document harvester
type Config struct {
	// Remote catalog and how to drive it
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// Download directory and completion detection
	Download DownloadConfig `yaml:"download" json:"download"`

	// Traversal cadence
	Traversal TraversalConfig `yaml:"traversal" json:"traversal"`

	// Request pacing for the HTTP catalog
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Run artefacts
	Output OutputConfig `yaml:"output" json:"output"`

	// Resume support
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CatalogConfig describes the catalog surface
type CatalogConfig struct {
	Source          string         `yaml:"source" json:"source"`
	URL             string         `yaml:"url" json:"url"`
	UserAgent       string         `yaml:"user_agent" json:"user_agent"`
	Cookie          string         `yaml:"cookie" json:"-"`
	Headless        bool           `yaml:"headless" json:"headless"`
	PageLoadTimeout time.Duration  `yaml:"page_load_timeout" json:"page_load_timeout"`
	TriggerTimeout  time.Duration  `yaml:"trigger_timeout" json:"trigger_timeout"`
	MenuDelay       time.Duration  `yaml:"menu_delay" json:"menu_delay"`
	ExpandWait      time.Duration  `yaml:"expand_wait" json:"expand_wait"`
	Selectors       SelectorConfig `yaml:"selectors" json:"selectors"`

	// Leading boilerplate removed from every display title
	TitleStripPrefixes []string `yaml:"title_strip_prefixes" json:"title_strip_prefixes"`

	// HTTP catalog paging
	PageParam string `yaml:"page_param" json:"page_param"`
	FirstPage int    `yaml:"first_page" json:"first_page"`
}

// SelectorConfig holds the CSS selectors used by the browser surface
type SelectorConfig struct {
	Results      string `yaml:"results" json:"results"`
	Cards        string `yaml:"cards" json:"cards"`
	TitledCards  string `yaml:"titled_cards" json:"titled_cards"`
	CardTitle    string `yaml:"card_title" json:"card_title"`
	CardButton   string `yaml:"card_button" json:"card_button"`
	MenuDownload string `yaml:"menu_download" json:"menu_download"`
	MoreResults  string `yaml:"more_results" json:"more_results"`
}

// DownloadConfig holds download directory and settle detection settings
type DownloadConfig struct {
	Directory        string        `yaml:"directory" json:"directory"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	QuiescenceWindow time.Duration `yaml:"quiescence_window" json:"quiescence_window"`
	PollInterval     time.Duration `yaml:"poll_interval" json:"poll_interval"`
	Detector         string        `yaml:"detector" json:"detector"`
	TempSuffixes     []string      `yaml:"temp_suffixes" json:"temp_suffixes"`
	AllowEmpty       bool          `yaml:"allow_empty" json:"allow_empty"`
	ClearOnStart     bool          `yaml:"clear_on_start" json:"clear_on_start"`
	Workers          int           `yaml:"workers" json:"workers"`
}

// TraversalConfig holds catalog expansion settings
type TraversalConfig struct {
	ExpansionCadence   int  `yaml:"expansion_cadence" json:"expansion_cadence"`
	ExpandOnExhaustion bool `yaml:"expand_on_exhaustion" json:"expand_on_exhaustion"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// OutputConfig holds run artefact settings
type OutputConfig struct {
	ManifestFile string `yaml:"manifest_file" json:"manifest_file"`
	Summary      bool   `yaml:"summary" json:"summary"`
}

// CheckpointConfig holds resume settings
type CheckpointConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Source:          SourceBrowser,
			URL:             "https://bdif.amf-france.org/fr?rechercheTexte=D%C3%A9claration%20de%20performance%20extra%20financi%C3%A8re",
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko)",
			Headless:        false,
			PageLoadTimeout: 60 * time.Second,
			TriggerTimeout:  30 * time.Second,
			MenuDelay:       500 * time.Millisecond,
			ExpandWait:      3 * time.Second,
			Selectors: SelectorConfig{
				Results:      "app-results-container",
				Cards:        "app-results-container mat-card",
				TitledCards:  "app-result-list-view mat-card",
				CardTitle:    ".card-title",
				CardButton:   "app-results-container ul li:nth-child(%d) mat-card button",
				MenuDownload: ".mat-menu-content button:nth-child(2)",
				MoreResults:  "button.more-results",
			},
			TitleStripPrefixes: []string{"Document d'enregistrement universel "},
			PageParam:          "page",
			FirstPage:          1,
		},
		Download: DownloadConfig{
			Directory:        "./downloads",
			Timeout:          180 * time.Second,
			QuiescenceWindow: time.Second,
			PollInterval:     time.Second,
			Detector:         DetectorWatch,
			TempSuffixes:     []string{".crdownload", ".part", ".tmp", ".download"},
			AllowEmpty:       false,
			ClearOnStart:     true,
			Workers:          1,
		},
		Traversal: TraversalConfig{
			ExpansionCadence:   20,
			ExpandOnExhaustion: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			MaxRetries:        3,
			RetryDelay:        2 * time.Second,
		},
		Output: OutputConfig{
			ManifestFile: "manifest.json",
			Summary:      true,
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(EnvPrefix + "SOURCE"); v != "" {
		c.Catalog.Source = v
	}
	if v := os.Getenv(EnvPrefix + "URL"); v != "" {
		c.Catalog.URL = v
	}
	if v := os.Getenv(EnvPrefix + "USER_AGENT"); v != "" {
		c.Catalog.UserAgent = v
	}
	if v := os.Getenv(EnvPrefix + "COOKIE"); v != "" {
		c.Catalog.Cookie = v
	}
	if v := os.Getenv(EnvPrefix + "HEADLESS"); v != "" {
		c.Catalog.Headless = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(EnvPrefix + "DOWNLOAD_DIR"); v != "" {
		c.Download.Directory = v
	}
	if v := os.Getenv(EnvPrefix + "DETECTOR"); v != "" {
		c.Download.Detector = v
	}

	durations := map[string]*time.Duration{
		"DOWNLOAD_TIMEOUT":  &c.Download.Timeout,
		"QUIESCENCE_WINDOW": &c.Download.QuiescenceWindow,
		"POLL_INTERVAL":     &c.Download.PollInterval,
	}
	for name, target := range durations {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			continue
		}
		*target = d
	}

	if v := os.Getenv(EnvPrefix + "EXPANSION_CADENCE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sEXPANSION_CADENCE: %w", EnvPrefix, err))
		} else if n > 0 {
			c.Traversal.ExpansionCadence = n
		}
	}
	if v := os.Getenv(EnvPrefix + "REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", EnvPrefix, err))
		} else if n > 0 {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv(EnvPrefix + "NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile returns the first config file found in the standard
// locations, or an empty string
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".docharvest.yaml",
		".docharvest.yml",
		filepath.Join(home, ".config", "docharvest", "config.yaml"),
		filepath.Join(home, ".config", "docharvest", "config.yml"),
		filepath.Join(home, ".docharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Catalog.Source {
	case SourceBrowser, SourceHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown catalog source %q", c.Catalog.Source))
	}
	if c.Catalog.URL == "" {
		errs = append(errs, errors.New("catalog URL is required"))
	}
	if c.Catalog.Source == SourceBrowser && !strings.Contains(c.Catalog.Selectors.CardButton, "%d") {
		errs = append(errs, errors.New("card button selector must contain %d for the entry index"))
	}

	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.QuiescenceWindow <= 0 {
		errs = append(errs, errors.New("quiescence window must be positive"))
	}
	if c.Download.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Download.QuiescenceWindow >= c.Download.Timeout {
		errs = append(errs, errors.New("quiescence window must be shorter than the download timeout"))
	}
	switch c.Download.Detector {
	case DetectorWatch, DetectorPoll:
	default:
		errs = append(errs, fmt.Errorf("unknown detector %q", c.Download.Detector))
	}
	if c.Download.Workers <= 0 {
		errs = append(errs, errors.New("download workers must be positive"))
	}

	if c.Traversal.ExpansionCadence <= 0 {
		errs = append(errs, errors.New("expansion cadence must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["url"].(string); ok && v != "" {
		c.Catalog.URL = v
	}
	if v, ok := flags["source"].(string); ok && v != "" {
		c.Catalog.Source = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Catalog.Headless = v
	}
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.Catalog.Cookie = v
	}
	if v, ok := flags["dir"].(string); ok && v != "" {
		c.Download.Directory = v
	}
	if v, ok := flags["detector"].(string); ok && v != "" {
		c.Download.Detector = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.Download.Timeout = v
	}
	if v, ok := flags["quiescence"].(time.Duration); ok && v > 0 {
		c.Download.QuiescenceWindow = v
	}
	if v, ok := flags["clear"].(bool); ok {
		c.Download.ClearOnStart = v
	}
	if v, ok := flags["cadence"].(int); ok && v > 0 {
		c.Traversal.ExpansionCadence = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".docharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
