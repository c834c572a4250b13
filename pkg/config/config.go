package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultListen is the default HTTP listen address.
	DefaultListen = ":8080"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultSQLitePath is the default embedded database location.
	DefaultSQLitePath = "./data/portfolio.db"

	// DefaultGitHubUsername is the account whose public activity is
	// aggregated when none is configured.
	DefaultGitHubUsername = "d0mkaaa"

	// DefaultRelayURL is the public presence relay queried for Discord
	// activity.
	DefaultRelayURL = "https://api.lanyard.rest"

	// EnvPrefix is the prefix for environment variable overrides,
	// e.g. PORTFOLIO_DATABASE_DRIVER.
	EnvPrefix = "PORTFOLIO"
)

// Config is the root configuration for the portfolio API server.
type Config struct {
	Server      ServerConfig   `yaml:"server" mapstructure:"server"`
	Database    DatabaseConfig `yaml:"database" mapstructure:"database"`
	Admin       AdminConfig    `yaml:"admin" mapstructure:"admin"`
	Spotify     SpotifyConfig  `yaml:"spotify,omitempty" mapstructure:"spotify"`
	Discord     DiscordConfig  `yaml:"discord,omitempty" mapstructure:"discord"`
	GitHub      GitHubConfig   `yaml:"github,omitempty" mapstructure:"github"`
	Development bool           `yaml:"development,omitempty" mapstructure:"development"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Public  RateLimitTier `yaml:"public,omitempty" mapstructure:"public"`
	Admin   RateLimitTier `yaml:"admin,omitempty" mapstructure:"admin"`
}

// RateLimitTier defines request limits for a specific tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// DatabaseConfig contains storage backend settings. Exactly one driver
// is active at a time; all drivers expose the same store contract.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
	Supabase SupabaseConfig `yaml:"supabase,omitempty" mapstructure:"supabase"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// SupabaseConfig contains settings for the hosted
// backend-as-a-service driver, which talks to a PostgREST endpoint.
type SupabaseConfig struct {
	URL            string `yaml:"url" mapstructure:"url"`
	ServiceRoleKey string `yaml:"service_role_key" mapstructure:"service_role_key"`
}

// AdminConfig gates the admin endpoints. APIKey is compared via bcrypt
// at request time; either a matching key or a verified Discord identity
// (see DiscordConfig.AuthorizedUserID) grants admin access.
type AdminConfig struct {
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// SpotifyConfig contains Spotify OAuth credentials. AccountsURL and
// APIURL override the provider endpoints, mainly for tests.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret,omitempty" mapstructure:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri,omitempty" mapstructure:"redirect_uri"`
	AccountsURL  string `yaml:"accounts_url,omitempty" mapstructure:"accounts_url"`
	APIURL       string `yaml:"api_url,omitempty" mapstructure:"api_url"`
}

// DiscordConfig contains Discord OAuth credentials, the single
// authorized admin identity, and the presence relay endpoint.
type DiscordConfig struct {
	ClientID         string `yaml:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret     string `yaml:"client_secret,omitempty" mapstructure:"client_secret"`
	AuthorizedUserID string `yaml:"authorized_user_id,omitempty" mapstructure:"authorized_user_id"`
	APIURL           string `yaml:"api_url,omitempty" mapstructure:"api_url"`
	RelayURL         string `yaml:"relay_url,omitempty" mapstructure:"relay_url"`
}

// GitHubConfig contains the aggregated GitHub account settings.
type GitHubConfig struct {
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	APIURL   string `yaml:"api_url,omitempty" mapstructure:"api_url"`
}

// Load reads and parses a configuration file from the given path.
// Environment variables prefixed with PORTFOLIO_ override file values,
// with section separators replaced by underscores
// (PORTFOLIO_SERVER_LISTEN, PORTFOLIO_DATABASE_DRIVER, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}

	if c.GitHub.Username == "" {
		c.GitHub.Username = DefaultGitHubUsername
	}

	if c.Discord.RelayURL == "" {
		c.Discord.RelayURL = DefaultRelayURL
	}
}

// validDrivers is the list of supported storage drivers.
var validDrivers = map[string]struct{}{
	"sqlite":   {},
	"postgres": {},
	"supabase": {},
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, ok := validDrivers[c.Database.Driver]; !ok {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("postgres driver requires database.postgres.host")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("postgres driver requires database.postgres.database")
		}
	case "supabase":
		if c.Database.Supabase.URL == "" {
			return fmt.Errorf("supabase driver requires database.supabase.url")
		}

		if c.Database.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("supabase driver requires database.supabase.service_role_key")
		}
	}

	if c.Admin.APIKey == "" && c.Discord.AuthorizedUserID == "" {
		return fmt.Errorf(
			"no admin credential configured: set admin.api_key or discord.authorized_user_id",
		)
	}

	if c.Spotify.ClientID != "" && c.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify.client_id is set but spotify.client_secret is empty")
	}

	return nil
}
