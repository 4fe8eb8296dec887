package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Cache locations.
const (
	DefaultCacheDir = ".notion-cache"
	NetlifyCacheDir = "/opt/build/cache/notion-cache"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Notion NotionConfig      `yaml:"notion"`
	Cache  CacheConfig       `yaml:"cache"`
	Export ExportConfig      `yaml:"export"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration. Notion credentials are checked
// separately by the commands that contact Notion.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Export.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	LogFile  LogFile    `yaml:"log_file"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// LogFile configures the optional rotating log file. An empty Path logs to
// stdout only.
type LogFile struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotionConfig holds the Notion API credentials, database IDs and request
// pacing.
type NotionConfig struct {
	APIKey            string          `yaml:"api_key"`
	BaseURL           string          `yaml:"base_url"`
	Version           string          `yaml:"version"`
	Databases         NotionDatabases `yaml:"databases"`
	RequestsPerSecond float64         `yaml:"requests_per_second"`
	MaxRetries        int             `yaml:"max_retries"`
	PageSize          int             `yaml:"page_size"`
	Timeout           time.Duration   `yaml:"timeout"`
	BatchSize         int             `yaml:"batch_size"`
	Stagger           time.Duration   `yaml:"stagger"`
}

// Validate validates the Notion configuration.
func (c *NotionConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.APIKey, validation.Required.Error("NOTION_API_KEY is required")),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.PageSize, validation.Min(0), validation.Max(100)),
		validation.Field(&c.BatchSize, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("notion: %w", err)
	}
	return c.Databases.Validate()
}

// NotionDatabases holds the IDs of the five catalog databases.
type NotionDatabases struct {
	Resources    string `yaml:"resources"`
	Fields       string `yaml:"fields"`
	Capabilities string `yaml:"capabilities"`
	Bottlenecks  string `yaml:"bottlenecks"`
	Tags         string `yaml:"tags"`
}

// Validate requires every database ID.
func (c *NotionDatabases) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Resources, validation.Required.Error("NOTION_RESOURCES_DB is required")),
		validation.Field(&c.Fields, validation.Required.Error("NOTION_FIELDS_DB is required")),
		validation.Field(&c.Capabilities, validation.Required.Error("NOTION_CAPABILITIES_DB is required")),
		validation.Field(&c.Bottlenecks, validation.Required.Error("NOTION_BOTTLENECKS_DB is required")),
		validation.Field(&c.Tags, validation.Required.Error("NOTION_TAGS_DB is required")),
	); err != nil {
		return fmt.Errorf("notion databases: %w", err)
	}
	return nil
}

// CacheConfig holds the disk cache location.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// Validate fills an empty Dir with the environment default.
func (c *CacheConfig) Validate() error {
	if c.Dir == "" {
		c.Dir = DefaultCacheDirFor(os.Getenv("NETLIFY"))
	}
	return nil
}

// DefaultCacheDirFor returns the cache directory for the given value of the
// NETLIFY environment variable. Netlify persists /opt/build/cache between
// builds.
func DefaultCacheDirFor(netlify string) string {
	if netlify == "true" {
		return NetlifyCacheDir
	}
	return DefaultCacheDir
}

// ExportConfig holds the aggregated catalog output path.
type ExportConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogFile: LogFile{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 14,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notion: NotionConfig{
			RequestsPerSecond: 3,
			MaxRetries:        5,
			PageSize:          100,
			Timeout:           30 * time.Second,
			BatchSize:         10,
			Stagger:           100 * time.Millisecond,
		},
		Cache: CacheConfig{
			Dir: DefaultCacheDirFor(os.Getenv("NETLIFY")),
		},
		Export: ExportConfig{
			Path: "./data/catalog.json",
		},
		SQLite: SQLiteConfig{
			Path: "./gapmap.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
