package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendADO    = "ado"
)

// Config holds application configuration.
type Config struct {
	Store StoreConfig `mapstructure:"store"`
	ADO   ADOConfig   `mapstructure:"ado"`
	Fetch FetchConfig `mapstructure:"fetch"`
	Log   LogConfig   `mapstructure:"log"`
	UI    UIConfig    `mapstructure:"ui"`
}

// StoreConfig selects the backing store.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// ADOConfig holds Azure DevOps connection settings.
type ADOConfig struct {
	OrganizationURL   string  `mapstructure:"organization_url"`
	Project           string  `mapstructure:"project"`
	TokenEnv          string  `mapstructure:"token_env"`
	Token             string  `mapstructure:"token"`
	RetryMax          int     `mapstructure:"retry_max"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// FetchConfig tunes the dispatcher.
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	LinkQuery         bool          `mapstructure:"link_query"`
	DiscardSuperseded bool          `mapstructure:"discard_superseded"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	ProcessTemplate string `mapstructure:"process_template"`
	ShowAllReports  bool   `mapstructure:"show_all_reports"`
	Team            string `mapstructure:"team"`
}

// Path returns the config file location: $TASKCARDS_CONFIG or
// ~/.config/taskcards/config.toml.
func Path() string {
	if p := os.Getenv("TASKCARDS_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "taskcards", "config.toml")
}

// Default returns the configuration used when no file or env override exists.
func Default() Config {
	home := os.Getenv("HOME")
	return Config{
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(home, ".local", "share", "taskcards", "taskcards.db"),
		},
		ADO: ADOConfig{
			TokenEnv:          "AZURE_DEVOPS_EXT_PAT",
			RetryMax:          4,
			RequestsPerSecond: 5,
		},
		Fetch: FetchConfig{Timeout: 30 * time.Second},
		Log: LogConfig{
			File:  filepath.Join(home, ".local", "state", "taskcards", "taskcards.log"),
			Level: "info",
		},
		UI: UIConfig{ProcessTemplate: "Agile"},
	}
}

// Load reads configuration from file and env. Env var overrides use prefix TASKCARDS_.
func Load() (Config, error) {
	v := viper.New()
	def := Default()

	// default values
	v.SetDefault("store.backend", def.Store.Backend)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("ado.organization_url", "")
	v.SetDefault("ado.project", "")
	v.SetDefault("ado.token_env", def.ADO.TokenEnv)
	v.SetDefault("ado.token", "")
	v.SetDefault("ado.retry_max", def.ADO.RetryMax)
	v.SetDefault("ado.requests_per_second", def.ADO.RequestsPerSecond)
	v.SetDefault("fetch.timeout", def.Fetch.Timeout)
	v.SetDefault("fetch.link_query", false)
	v.SetDefault("fetch.discard_superseded", false)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("ui.process_template", def.UI.ProcessTemplate)
	v.SetDefault("ui.show_all_reports", false)
	v.SetDefault("ui.team", "")

	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix("TASKCARDS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the sqlite backend")
		}
	case BackendADO:
		if c.ADO.OrganizationURL == "" || c.ADO.Project == "" {
			return fmt.Errorf("config: ado.organization_url and ado.project are required for the ado backend")
		}
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("config: fetch.timeout must not be negative")
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// The ADO token is written in plain text when set; prefer the env var or `taskcards auth set-token`.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("store.backend", cfg.Store.Backend)
	v.Set("store.path", cfg.Store.Path)
	v.Set("ado.organization_url", cfg.ADO.OrganizationURL)
	v.Set("ado.project", cfg.ADO.Project)
	v.Set("ado.token_env", cfg.ADO.TokenEnv)
	v.Set("ado.token", cfg.ADO.Token)
	v.Set("ado.retry_max", cfg.ADO.RetryMax)
	v.Set("ado.requests_per_second", cfg.ADO.RequestsPerSecond)
	v.Set("fetch.timeout", cfg.Fetch.Timeout.String())
	v.Set("fetch.link_query", cfg.Fetch.LinkQuery)
	v.Set("fetch.discard_superseded", cfg.Fetch.DiscardSuperseded)
	v.Set("log.file", cfg.Log.File)
	v.Set("log.level", cfg.Log.Level)
	v.Set("ui.process_template", cfg.UI.ProcessTemplate)
	v.Set("ui.show_all_reports", cfg.UI.ShowAllReports)
	v.Set("ui.team", cfg.UI.Team)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
