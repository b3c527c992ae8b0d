// Package config provides configuration loading and defaults for the modwatch
// daemon.
//
// Configuration is loaded from a TOML file in the data directory, then
// selected values may be overridden from MODWATCH_* environment variables
// (see [ApplyEnv]). The package covers the webhook target, the upstream
// feeds, message display settings, polling behavior and logging.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve even without a system zoneinfo database

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"tools.zach/dev/modwatch/internal/atomicfile"
	"tools.zach/dev/modwatch/internal/migrate"
)

// DefaultPlayerURL is the public player-count endpoint.
const DefaultPlayerURL = "https://www.growtopiagame.com/detail"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration. A loaded Config
// is treated as immutable; a reload produces a new value.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Webhook holds the publish target settings.
	Webhook WebhookConfig `toml:"webhook"`
	// Sources holds the upstream feed settings.
	Sources SourcesConfig `toml:"sources"`
	// Display holds message rendering settings.
	Display DisplayConfig `toml:"display"`
	// Behavior holds polling settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Moderators holds moderator list filtering.
	Moderators ModeratorsConfig `toml:"moderators"`
	// Metrics holds the Prometheus endpoint settings.
	Metrics MetricsConfig `toml:"metrics"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// WebhookConfig holds the Discord webhook settings.
type WebhookConfig struct {
	// URL is the webhook execute URL.
	URL string `toml:"url"`
	// MessageID pins the message to edit. Empty means the id stored in the
	// data directory is used.
	MessageID string `toml:"message_id"`
	// OnMissingMessage is "create" or "fail".
	OnMissingMessage string `toml:"on_missing_message"`
	// TimeoutSeconds bounds one webhook request.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// Retries is the number of retries for a failed webhook request.
	Retries int `toml:"retries"`
}

// SourcesConfig holds the upstream feed settings.
type SourcesConfig struct {
	// ModeratorURL is the presence page listing online moderators.
	ModeratorURL string `toml:"moderator_url"`
	// PlayerURL is the JSON player-count endpoint.
	PlayerURL string `toml:"player_url"`
	// UserAgent is sent with every feed request.
	UserAgent string `toml:"user_agent"`
	// TimeoutSeconds bounds one feed request.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// Retries is the number of retries for a failed feed request.
	Retries int `toml:"retries"`
}

// DisplayConfig holds message rendering settings.
type DisplayConfig struct {
	// ServerName is the webhook username.
	ServerName string `toml:"server_name"`
	// Title is the embed title.
	Title string `toml:"title"`
	// Color is the embed color as a decimal RGB value.
	Color int `toml:"color"`
	// Timezone is the IANA zone for the daily reset and clock times.
	Timezone string `toml:"timezone"`
	// Order is "session" or "alphabetical".
	Order string `toml:"order"`
	// OnlineCountLabel prefixes the player count.
	OnlineCountLabel string `toml:"online_count_label"`
	// OnlineHeading titles the currently-online block.
	OnlineHeading string `toml:"online_heading"`
	// SeenHeading titles the seen-today block; the date is appended.
	SeenHeading string `toml:"seen_heading"`
	// FooterPrefix precedes the last update time.
	FooterPrefix string `toml:"footer_prefix"`
	// UndercoverLabel is appended to undercover moderators.
	UndercoverLabel string `toml:"undercover_label"`
	// OnlineMarker is appended in the seen-today block to moderators still online.
	OnlineMarker string `toml:"online_marker"`
	// EmptyOnline is shown when nobody is online.
	EmptyOnline string `toml:"empty_online"`
	// EmptySeen is shown when nobody was seen today.
	EmptySeen string `toml:"empty_seen"`
}

// BehaviorConfig holds daemon behavior settings.
type BehaviorConfig struct {
	// PollIntervalSeconds is the time between cycles.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// WatchConfig reloads config.toml when it changes.
	WatchConfig bool `toml:"watch_config"`
}

// ModeratorsConfig holds moderator list filtering.
type ModeratorsConfig struct {
	// Ignore lists glob patterns; matching canonical names are not tracked.
	Ignore []string `toml:"ignore"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	// Listen is the address for /metrics. Empty disables the endpoint.
	Listen string `toml:"listen"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
	// Console mirrors log output to stderr.
	Console bool `toml:"console"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with defaults. The webhook URL and
// moderator URL have no sensible default and must be set by the user.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Webhook: WebhookConfig{
			OnMissingMessage: "create",
			TimeoutSeconds:   15,
			Retries:          3,
		},
		Sources: SourcesConfig{
			PlayerURL:      DefaultPlayerURL,
			UserAgent:      "Mozilla/5.0 (compatible; modwatch)",
			TimeoutSeconds: 10,
			Retries:        2,
		},
		Display: DisplayConfig{
			ServerName:       "Growtopia",
			Title:            "Growtopia Status",
			Color:            5763719,
			Timezone:         "Asia/Jakarta",
			Order:            "session",
			OnlineCountLabel: "Online count",
			OnlineHeading:    "Moderator/Guardian Currently Online",
			SeenHeading:      "Mods Seen Today",
			FooterPrefix:     "Last Update",
			UndercoverLabel:  " (Undercover)",
			OnlineMarker:     " (online)",
			EmptyOnline:      "No moderators online.",
			EmptySeen:        "—",
		},
		Behavior: BehaviorConfig{
			PollIntervalSeconds: 60,
			WatchConfig:         true,
		},
		Moderators: ModeratorsConfig{
			Ignore: []string{},
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Example Configuration
// ///////////////////////////////////////////////

// ExampleConfig returns the Config written to config.default.toml. The
// required URLs hold placeholders that fail validation until replaced.
func ExampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.Webhook.URL = "https://discord.com/api/webhooks/<id>/<token>"
	cfg.Sources.ModeratorURL = "https://github.com/<owner>/<repo>/blob/main/online.txt"
	return cfg
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file at path, applies environment
// overrides and validates the result. A missing file yields [DefaultConfig]
// with overrides applied, which still has to pass validation.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// loadFile decodes path over the defaults, migrating older schemas first.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)
	if version > migrate.Config.CurrentVersion {
		return nil, fmt.Errorf("config version %d is newer than supported %d", version, migrate.Config.CurrentVersion)
	}

	// Apply migrations if needed
	migrated := migrate.Config.NeedsMigration(version)
	if migrated {
		// Write backup before migration
		if backupErr := os.WriteFile(path+".bak", data, 0o600); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key", "key", key.String())
	}
	cfg.Version = migrate.Config.CurrentVersion

	// Re-save after migration
	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}
	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write. The file
// holds the webhook URL, which is a credential, so it is private to the user.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o600)
}

// WriteDefault writes data to path unless a file already exists there.
// It reports whether the file was created.
func WriteDefault(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if err := atomicfile.Write(path, data, 0o600); err != nil {
		return false, fmt.Errorf("writing default config: %w", err)
	}
	return true, nil
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks that all configuration values are present and within
// acceptable ranges.
func (c *Config) Validate() error {
	if err := validateURL("webhook.url", c.Webhook.URL); err != nil {
		return err
	}
	if err := validateURL("sources.moderator_url", c.Sources.ModeratorURL); err != nil {
		return err
	}
	if err := validateURL("sources.player_url", c.Sources.PlayerURL); err != nil {
		return err
	}

	switch c.Webhook.OnMissingMessage {
	case "create", "fail":
	default:
		return fmt.Errorf("invalid webhook.on_missing_message %q: must be create or fail", c.Webhook.OnMissingMessage)
	}

	if id := strings.TrimSpace(c.Webhook.MessageID); id != "" && strings.ContainsAny(id, "/?# ") {
		return fmt.Errorf("invalid webhook.message_id %q: must be a bare message id", c.Webhook.MessageID)
	}

	switch c.Display.Order {
	case "session", "alphabetical":
	default:
		return fmt.Errorf("invalid display.order %q: must be session or alphabetical", c.Display.Order)
	}

	if _, err := time.LoadLocation(c.Display.Timezone); err != nil {
		return fmt.Errorf("invalid display.timezone %q: %w", c.Display.Timezone, err)
	}

	if c.Display.Color < 0 || c.Display.Color > 0xFFFFFF {
		return fmt.Errorf("display.color must be between 0 and 16777215, got %d", c.Display.Color)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}

	if c.Behavior.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0, got %d", c.Behavior.PollIntervalSeconds)
	}

	if c.Webhook.TimeoutSeconds <= 0 || c.Sources.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be > 0 (webhook %d, sources %d)", c.Webhook.TimeoutSeconds, c.Sources.TimeoutSeconds)
	}

	if c.Webhook.Retries < 0 || c.Sources.Retries < 0 {
		return fmt.Errorf("retries must be >= 0 (webhook %d, sources %d)", c.Webhook.Retries, c.Sources.Retries)
	}

	for _, pattern := range c.Moderators.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid moderators.ignore pattern %q", pattern)
		}
	}

	return nil
}

// validateURL requires raw to be an absolute http(s) URL.
func validateURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if strings.ContainsAny(raw, "<>") {
		return fmt.Errorf("%s still holds the example placeholder %q", field, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an absolute http(s) URL", field, raw)
	}
	return nil
}

// ///////////////////////////////////////////////
// Derived Values
// ///////////////////////////////////////////////

// Location returns the configured time zone. Validate has already checked
// that it loads; UTC is returned if it somehow does not.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PollInterval returns the time between cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Behavior.PollIntervalSeconds) * time.Second
}

// IsIgnored reports whether the canonical moderator name matches any of the
// configured ignore patterns. Matching is case-insensitive.
func (c *Config) IsIgnored(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range c.Moderators.Ignore {
		matched, err := doublestar.Match(strings.ToLower(pattern), lower)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
