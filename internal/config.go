package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Asset backends.
const (
	AssetBackendFS = "fs"
	AssetBackendS3 = "s3"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Import ImportConfig      `yaml:"import"`
	Assets AssetsConfig      `yaml:"assets"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Import.Validate(); err != nil {
		return err
	}
	return c.Assets.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
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

// ImportConfig tunes the import engine and its inbox.
type ImportConfig struct {
	// ProgressEvery reports progress on every Nth item; 0 reports every item.
	ProgressEvery int `yaml:"progress_every"`
	// Overwrite re-imports notes whose title already exists.
	Overwrite bool `yaml:"overwrite"`
	// SanitizeHTML strips unsafe markup from converted content.
	SanitizeHTML bool `yaml:"sanitize_html"`
	// InboxDir is watched for dropped archives. Empty disables the watcher.
	InboxDir string `yaml:"inbox_dir"`
	// MaxArchiveBytes limits uploaded and dropped archives.
	MaxArchiveBytes int64 `yaml:"max_archive_bytes"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ProgressEvery, validation.Min(0)),
		validation.Field(&c.MaxArchiveBytes, validation.Required, validation.Min(int64(1))),
	)
}

// AssetsConfig selects where imported binary assets are stored.
type AssetsConfig struct {
	Backend string   `yaml:"backend"`
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

// Validate validates the assets configuration.
func (c *AssetsConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = AssetBackendFS
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(AssetBackendFS, AssetBackendS3)),
		validation.Field(&c.Dir, validation.When(c.Backend == AssetBackendFS, validation.Required)),
	); err != nil {
		return err
	}
	if c.Backend == AssetBackendS3 {
		return c.S3.Validate()
	}
	return nil
}

// S3Config holds the connection settings of an S3-compatible bucket.
// Credentials fall back to the default AWS chain when AccessKey is empty.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// Validate validates the S3 configuration.
func (c *S3Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Bucket, validation.Required),
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.SecretKey, validation.When(c.AccessKey != "", validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./nexusdrive.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Import: ImportConfig{
			ProgressEvery:   10,
			SanitizeHTML:    true,
			MaxArchiveBytes: 512 << 20,
		},
		Assets: AssetsConfig{
			Backend: AssetBackendFS,
			Dir:     "./assets",
		},
	}
}
