package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration: a YAML file for the source list
// and pipeline tuning, with environment variables layered on top for
// deployment-specific values (data dir, credentials, log level).
type Config struct {
	DataDir     string           `yaml:"data_dir"`
	KnownCities []string         `yaml:"known_cities"`
	// PlaceholderLocations are values a source substitutes when it knows
	// nothing, e.g. a hardcoded town name in a feed template. They score as
	// unknown instead of low.
	PlaceholderLocations []string `yaml:"placeholder_locations"`
	Logging     LoggingConfig    `yaml:"logging"`
	Sources     []SourceConfig   `yaml:"sources"`
	Enrichment  EnrichmentConfig `yaml:"enrichment"`
	Dedup       DedupConfig      `yaml:"dedup"`
	Resolve     ResolveConfig    `yaml:"resolve"`
	Archive     ArchiveConfig    `yaml:"archive"`
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level `yaml:"-"`
	Format string     `yaml:"format"`

	// RawLevel is the textual level from the YAML file.
	RawLevel string `yaml:"level"`
}

// SourceType selects the adapter family for a configured source.
type SourceType string

const (
	SourceFeed    SourceType = "feed"
	SourceHTML    SourceType = "html"
	SourceJSONAPI SourceType = "jsonapi"
	SourceSocial  SourceType = "social"
)

// FilterOptions are the per-source filters shared by all adapter types.
type FilterOptions struct {
	IncludeKeywords []string `yaml:"include_keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
	MaxDaysAhead    int      `yaml:"max_days_ahead"`
}

// FeedOptions configures the RSS/Atom adapter.
type FeedOptions struct {
	// UserAgent overrides the default request user agent.
	UserAgent string `yaml:"user_agent"`
}

// HTMLOptions configures the HTML listing adapter. Items are located by CSS
// class names so a new listing page needs configuration, not code.
type HTMLOptions struct {
	ItemClass     string `yaml:"item_class"`
	TitleClass    string `yaml:"title_class"`
	DateClass     string `yaml:"date_class"`
	LocationClass string `yaml:"location_class"`
	DateFormat    string `yaml:"date_format"`
}

// JSONAPIOptions maps JSON payload fields onto candidate fields.
type JSONAPIOptions struct {
	ItemsField     string `yaml:"items_field"`
	TitleField     string `yaml:"title_field"`
	StartField     string `yaml:"start_field"`
	EndField       string `yaml:"end_field"`
	LocationField  string `yaml:"location_field"`
	OrganizerField string `yaml:"organizer_field"`
	TimeFormat     string `yaml:"time_format"`
}

// SocialOptions configures the social-post adapter.
type SocialOptions struct {
	Account    string `yaml:"account"`
	WithImages bool   `yaml:"with_images"`
	OCR        bool   `yaml:"ocr"`
	AIProvider string `yaml:"ai_provider"`
	Language   string `yaml:"language"`
}

// SourceConfig is one entry of the source list. Exactly the options struct
// matching Type may be present; the mismatch is caught at load time rather
// than by ad hoc key lookups at fetch time.
type SourceConfig struct {
	Name    string        `yaml:"name"`
	Type    SourceType    `yaml:"type"`
	URL     string        `yaml:"url"`
	Enabled bool          `yaml:"enabled"`
	Filter  FilterOptions `yaml:"filter"`

	Feed    *FeedOptions    `yaml:"feed,omitempty"`
	HTML    *HTMLOptions    `yaml:"html,omitempty"`
	JSONAPI *JSONAPIOptions `yaml:"jsonapi,omitempty"`
	Social  *SocialOptions  `yaml:"social,omitempty"`
}

// Validate checks that the source declares a known type, a URL, and only the
// options variant belonging to its type.
func (s SourceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source without a name")
	}
	if s.URL == "" {
		return fmt.Errorf("source %s: url must not be empty", s.Name)
	}

	variants := map[SourceType]bool{
		SourceFeed:    s.Feed != nil,
		SourceHTML:    s.HTML != nil,
		SourceJSONAPI: s.JSONAPI != nil,
		SourceSocial:  s.Social != nil,
	}

	if _, known := variants[s.Type]; !known {
		return fmt.Errorf("source %s: unknown type %q", s.Name, s.Type)
	}

	for typ, set := range variants {
		if set && typ != s.Type {
			return fmt.Errorf("source %s: %s options given but type is %s", s.Name, typ, s.Type)
		}
	}

	switch s.Type {
	case SourceHTML:
		if s.HTML == nil || s.HTML.ItemClass == "" {
			return fmt.Errorf("source %s: html sources need html.item_class", s.Name)
		}
	case SourceJSONAPI:
		if s.JSONAPI == nil || s.JSONAPI.TitleField == "" {
			return fmt.Errorf("source %s: jsonapi sources need jsonapi.title_field", s.Name)
		}
	}

	return nil
}

// EnrichmentConfig tunes the optional OCR and AI extraction passes.
type EnrichmentConfig struct {
	OCR      OCRConfig      `yaml:"ocr"`
	AI       AIConfig       `yaml:"ai"`
	Throttle ThrottleConfig `yaml:"throttle"`
}

// OCRConfig configures the OCR provider endpoint.
type OCRConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AIConfig configures the AI extraction provider.
type AIConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Provider       string  `yaml:"provider"` // "openai" or "mock"
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"-"` // from OPENAI_API_KEY only
	Temperature    float32 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// ThrottleConfig bounds the call rate against a single provider: a random
// delay in [MinDelay, MaxDelay] between consecutive calls and a session
// rotation after SessionMaxRequests requests.
type ThrottleConfig struct {
	MinDelayMillis     int `yaml:"min_delay_ms"`
	MaxDelayMillis     int `yaml:"max_delay_ms"`
	SessionMaxRequests int `yaml:"session_max_requests"`
}

// MinDelay returns the lower jitter bound.
func (t ThrottleConfig) MinDelay() time.Duration {
	return time.Duration(t.MinDelayMillis) * time.Millisecond
}

// MaxDelay returns the upper jitter bound.
func (t ThrottleConfig) MaxDelay() time.Duration {
	return time.Duration(t.MaxDelayMillis) * time.Millisecond
}

// DedupConfig tunes the duplicate matcher.
type DedupConfig struct {
	Threshold  float64 `yaml:"threshold"`
	ReviewBand float64 `yaml:"review_band"`
}

// ResolveConfig tunes registry entity resolution.
type ResolveConfig struct {
	HighThreshold float64 `yaml:"high_threshold"`
	LowThreshold  float64 `yaml:"low_threshold"`
}

// ArchiveConfig tunes the archiving scheduler.
type ArchiveConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	Schedule      string `yaml:"schedule"` // cron expression
}

// Default returns the configuration used when the YAML file leaves a section
// out entirely.
func Default() Config {
	return Config{
		DataDir: "data",
		Logging: LoggingConfig{Level: slog.LevelInfo, Format: "json"},
		Enrichment: EnrichmentConfig{
			OCR: OCRConfig{TimeoutSeconds: 30},
			AI:  AIConfig{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.2, TimeoutSeconds: 60},
			Throttle: ThrottleConfig{
				MinDelayMillis:     500,
				MaxDelayMillis:     2500,
				SessionMaxRequests: 40,
			},
		},
		Dedup:   DedupConfig{Threshold: 0.85, ReviewBand: 0.70},
		Resolve: ResolveConfig{HighThreshold: 0.85, LowThreshold: 0.50},
		Archive: ArchiveConfig{RetentionDays: 30, Schedule: "0 3 1 * *"},
	}
}

// Load reads the YAML file at path, fills defaults, applies environment
// overrides and validates every source entry. A missing or unparsable file
// is a configuration-level failure and aborts the run.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Logging.RawLevel != "" {
		level, err := parseLogLevel(cfg.Logging.RawLevel)
		if err != nil {
			return Config{}, fmt.Errorf("invalid logging.level: %w", err)
		}
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks cross-field invariants after defaults and env overrides.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}
	for _, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return err
		}
	}
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup.threshold must be in (0, 1]")
	}
	if c.Dedup.ReviewBand >= c.Dedup.Threshold {
		return fmt.Errorf("dedup.review_band must be below dedup.threshold")
	}
	if c.Resolve.LowThreshold >= c.Resolve.HighThreshold {
		return fmt.Errorf("resolve.low_threshold must be below resolve.high_threshold")
	}
	if c.Enrichment.Throttle.MinDelayMillis > c.Enrichment.Throttle.MaxDelayMillis {
		return fmt.Errorf("enrichment.throttle: min_delay_ms exceeds max_delay_ms")
	}
	if c.Archive.RetentionDays < 0 {
		return fmt.Errorf("archive.retention_days must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Enrichment.AI.APIKey = v
	}
	if v := os.Getenv("OCR_URL"); v != "" {
		cfg.Enrichment.OCR.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
		cfg.Logging.RawLevel = ""
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}
	if v := os.Getenv("ARCHIVE_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return fmt.Errorf("invalid ARCHIVE_RETENTION_DAYS: must be a non-negative integer")
		}
		cfg.Archive.RetentionDays = days
	}
	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
