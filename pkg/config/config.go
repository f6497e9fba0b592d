// Package config loads the relay's process-wide configuration. Values are
// layered: built-in defaults, then an optional TOML file, then a .env file,
// then the process environment. Configuration is read once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/papercomputeco/chatlog/pkg/archive"
	"github.com/papercomputeco/chatlog/pkg/relay"
)

type Config struct {
	ListenAddr string `toml:"listen_addr" env:"LISTEN_ADDR"`
	Debug      bool   `toml:"debug" env:"DEBUG"`

	// Transient buffer. Empty RedisURL selects the in-process buffer.
	RedisURL string `toml:"redis_url" env:"REDIS_URL"`

	// AI endpoint
	ChatbaseURL        string `toml:"chatbase_url" env:"CHATBASE_URL"`
	ChatbaseAPIKey     string `toml:"chatbase_api_key" env:"CHATBASE_API_KEY"`
	DefaultAssistantID string `toml:"default_assistant_id" env:"GOALSETTER_ASSISTANT_ID"`

	// Durable store. Airtable is used when a base id is set, otherwise SQLite
	// when a path is set.
	AirtableURL       string `toml:"airtable_url" env:"AIRTABLE_URL"`
	AirtableAPIKey    string `toml:"airtable_api_key" env:"AIRTABLE_API_KEY"`
	AirtableBaseID    string `toml:"airtable_base_id" env:"AIRTABLE_BASE_ID"`
	AirtableTableName string `toml:"airtable_table_name" env:"AIRTABLE_TABLE_NAME"`
	SQLitePath        string `toml:"sqlite_path" env:"SQLITE_PATH"`

	// Hardening
	RequestTimeout  Duration `toml:"request_timeout" env:"REQUEST_TIMEOUT"`
	SessionLock     bool     `toml:"session_lock" env:"SESSION_LOCK"`
	LockTTL         Duration `toml:"lock_ttl" env:"LOCK_TTL"`
	ClearAfterWrite bool     `toml:"clear_after_write" env:"CLEAR_AFTER_WRITE"`
}

// Duration is a time.Duration that decodes from strings such as "30s" in
// both TOML and the environment.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:     ":8080",
		ChatbaseURL:    relay.DefaultChatbaseURL,
		AirtableURL:    archive.DefaultAirtableURL,
		RequestTimeout: Duration{30 * time.Second},
		SessionLock:    true,
		LockTTL:        Duration{10 * time.Second},
	}
}

// Load builds the configuration. tomlPath and envPath are optional; a
// missing .env file is not an error.
func Load(tomlPath, envPath string) (*Config, error) {
	cfg := Default()

	if tomlPath != "" {
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", tomlPath, err)
		}
	}

	if envPath == "" {
		envPath = ".env"
	}
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// Validate reports configuration that cannot serve requests.
func (c *Config) Validate() error {
	var errs []error
	if c.ChatbaseAPIKey == "" {
		errs = append(errs, errors.New("CHATBASE_API_KEY is not set"))
	}
	if c.AirtableBaseID != "" && (c.AirtableAPIKey == "" || c.AirtableTableName == "") {
		errs = append(errs, errors.New("AIRTABLE_API_KEY and AIRTABLE_TABLE_NAME are required with AIRTABLE_BASE_ID"))
	}
	if c.AirtableBaseID == "" && c.SQLitePath == "" {
		errs = append(errs, errors.New("no durable store: set AIRTABLE_BASE_ID or SQLITE_PATH"))
	}
	return errors.Join(errs...)
}
