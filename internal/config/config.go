// Package config loads service settings from defaults, an optional YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "INTAKE_CONFIG"

	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds settings shared by every entry point.
type Config struct {
	ParamPrefix string        `yaml:"paramPrefix"`
	State       StateConfig   `yaml:"state"`
	Notion      NotionConfig  `yaml:"notion"`
	Discord     DiscordConfig `yaml:"discord"`
	OCR         OCRConfig     `yaml:"ocr"`
	Fetch       FetchConfig   `yaml:"fetch"`
	HTTP        HTTPConfig    `yaml:"http"`
	Log         LogConfig     `yaml:"log"`
}

// StateConfig selects where conversation state and the ledger live.
type StateConfig struct {
	Backend string        `yaml:"backend"`
	Table   string        `yaml:"table"`
	TTL     time.Duration `yaml:"ttl"`
}

type NotionConfig struct {
	DatabaseID string `yaml:"databaseId"`
	BaseURL    string `yaml:"baseUrl"`
}

type DiscordConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	TicketsChannelID  string        `yaml:"ticketsChannelId"`
	ReminderChannelID string        `yaml:"reminderChannelId"`
	TeamRoleID        string        `yaml:"teamRoleId"`
	ReminderInterval  time.Duration `yaml:"reminderInterval"`
}

type OCRConfig struct {
	Binary   string `yaml:"binary"`
	Language string `yaml:"language"`
	PSM      int    `yaml:"psm"`
}

type FetchConfig struct {
	MaxBytes int64         `yaml:"maxBytes"`
	Timeout  time.Duration `yaml:"timeout"`
}

type HTTPConfig struct {
	Addr              string `yaml:"addr"`
	RateLimitRequests int    `yaml:"rateLimitRequests"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		State: StateConfig{Backend: BackendDynamoDB, TTL: 30 * 24 * time.Hour},
		Discord: DiscordConfig{
			ReminderInterval: 7 * 24 * time.Hour,
		},
		OCR:   OCRConfig{Binary: "tesseract", Language: "eng", PSM: 6},
		Fetch: FetchConfig{MaxBytes: 20 << 20, Timeout: 30 * time.Second},
		HTTP:  HTTPConfig{Addr: ":8080", RateLimitRequests: 120},
		Log:   LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path (or $INTAKE_CONFIG when path is empty),
// applies environment overrides and validates the result for intake.
func Load(path string) (Config, error) {
	cfg, err := load(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadReminder is Load for the reminder job, which needs no state or sink
// settings.
func LoadReminder(path string) (Config, error) {
	cfg, err := load(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ValidateReminder(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"PARAM_PREFIX":        &c.ParamPrefix,
		"STATE_BACKEND":       &c.State.Backend,
		"STATE_TABLE":         &c.State.Table,
		"NOTION_DATABASE_ID":  &c.Notion.DatabaseID,
		"NOTION_BASE_URL":     &c.Notion.BaseURL,
		"DISCORD_BASE_URL":    &c.Discord.BaseURL,
		"TICKETS_CHANNEL_ID":  &c.Discord.TicketsChannelID,
		"REMINDER_CHANNEL_ID": &c.Discord.ReminderChannelID,
		"TEAM_ROLE_ID":        &c.Discord.TeamRoleID,
		"TESSERACT_BIN":       &c.OCR.Binary,
		"TESSERACT_LANG":      &c.OCR.Language,
		"HTTP_ADDR":           &c.HTTP.Addr,
		"LOG_LEVEL":           &c.Log.Level,
		"LOG_FORMAT":          &c.Log.Format,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"STATE_TTL":         &c.State.TTL,
		"REMINDER_INTERVAL": &c.Discord.ReminderInterval,
		"FETCH_TIMEOUT":     &c.Fetch.Timeout,
	}
	for key, dst := range durations {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]func(int64){
		"TESSERACT_PSM":       func(n int64) { c.OCR.PSM = int(n) },
		"MAX_ARTIFACT_BYTES":  func(n int64) { c.Fetch.MaxBytes = n },
		"RATE_LIMIT_REQUESTS": func(n int64) { c.HTTP.RateLimitRequests = int(n) },
	}
	for key, set := range ints {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		set(n)
	}
	return nil
}

// Validate checks settings needed by the intake path.
func (c Config) Validate() error {
	var errs []error
	switch c.State.Backend {
	case BackendDynamoDB:
		if c.State.Table == "" {
			errs = append(errs, errors.New("state table is required for the dynamodb backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown state backend %q", c.State.Backend))
	}
	if c.State.Table == "" && c.Notion.DatabaseID == "" {
		errs = append(errs, errors.New("no submission sink: set a state table or a notion database id"))
	}
	if c.Notion.DatabaseID != "" && c.ParamPrefix == "" {
		errs = append(errs, errors.New("param prefix is required to resolve the notion token"))
	}
	if c.State.TTL <= 0 {
		errs = append(errs, errors.New("state ttl must be positive"))
	}
	if c.OCR.PSM < 0 || c.OCR.PSM > 13 {
		errs = append(errs, fmt.Errorf("tesseract psm %d out of range 0-13", c.OCR.PSM))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, errors.New("max artifact bytes must be positive"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.HTTP.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("rate limit requests must be positive"))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ValidateReminder checks settings needed to post the weekly reminder.
func (c Config) ValidateReminder() error {
	var errs []error
	if c.ParamPrefix == "" {
		errs = append(errs, errors.New("param prefix is required to resolve the discord token"))
	}
	if c.Discord.ReminderChannelID == "" {
		errs = append(errs, errors.New("reminder channel id is required"))
	}
	if c.Discord.TeamRoleID == "" {
		errs = append(errs, errors.New("team role id is required"))
	}
	if c.Discord.TicketsChannelID == "" {
		errs = append(errs, errors.New("tickets channel id is required"))
	}
	if c.Discord.ReminderInterval <= 0 {
		errs = append(errs, errors.New("reminder interval must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
