// Package config loads CLI settings from .dbkit.yaml, DBKIT_ variables and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/dbkit/query/dialect"
)

var AppFs = afero.NewOsFs()

// ErrNoDatabase is returned when neither a flag, config file nor
// DATABASE_URL names a database.
var ErrNoDatabase = errors.New("no database configured: set --url, url in .dbkit.yaml, DBKIT_URL or DATABASE_URL")

// Config holds the application configuration
type Config struct {
	Provider      string
	URL           string
	ServerVersion string
	SlowThreshold time.Duration
	CacheSize     int
	Debug         bool
}

// LoadConfig loads configuration from various sources
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Find home directory
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	// Set config file paths
	v.SetConfigName(".dbkit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "dbkit"))

	// Set environment variable prefix
	v.SetEnvPrefix("DBKIT")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("slow_threshold", 500*time.Millisecond)
	v.SetDefault("cache_size", 0)
	v.SetDefault("debug", false)

	// Try to read config file (ignore if not found)
	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	loadEnvFiles()

	cfg := &Config{
		Provider:      v.GetString("provider"),
		URL:           v.GetString("url"),
		ServerVersion: v.GetString("server_version"),
		SlowThreshold: v.GetDuration("slow_threshold"),
		CacheSize:     v.GetInt("cache_size"),
		Debug:         v.GetBool("debug"),
	}
	if cfg.URL == "" {
		cfg.URL = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

// loadEnvFiles loads .env and then .env.local, which wins.
func loadEnvFiles() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config) (string, error) {
	v := viper.New()
	v.SetFs(AppFs)
	v.Set("provider", cfg.Provider)
	v.Set("url", cfg.URL)
	v.Set("server_version", cfg.ServerVersion)
	v.Set("slow_threshold", cfg.SlowThreshold.String())
	v.Set("cache_size", cfg.CacheSize)
	v.Set("debug", cfg.Debug)

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(home, ".config", "dbkit")
	if err := AppFs.MkdirAll(configPath, 0755); err != nil {
		return "", err
	}

	configFile := filepath.Join(configPath, ".dbkit.yaml")
	return configFile, v.WriteConfigAs(configFile)
}

// Resolve returns the provider and driver DSN. An explicit provider wins;
// otherwise it is detected from the URL scheme.
func (c *Config) Resolve() (provider, dsn string, err error) {
	if c.URL == "" {
		return "", "", ErrNoDatabase
	}
	if c.Provider == "" {
		return Detect(c.URL)
	}
	provider = dialect.Normalize(c.Provider)
	if provider == dialect.MySQL {
		dsn, err = mysqlDSN(strings.TrimPrefix(c.URL, "mysql://"))
		return provider, dsn, err
	}
	return provider, c.URL, nil
}

// Detect derives the provider from a database URL and returns the DSN the
// driver expects.
//
//	postgres://… postgresql://…  -> postgres, unchanged
//	mysql://user:pw@tcp(host)/db -> mysql, scheme stripped and validated
//	sqlite:path file:path *.db   -> sqlite
//	sqlserver://…                -> sqlserver, unchanged
func Detect(url string) (provider, dsn string, err error) {
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return dialect.Postgres, url, nil
	case strings.HasPrefix(lower, "mysql://"):
		dsn, err := mysqlDSN(url[len("mysql://"):])
		return dialect.MySQL, dsn, err
	case strings.HasPrefix(lower, "sqlserver://"):
		return dialect.SQLServer, url, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return dialect.SQLite, url[len("sqlite://"):], nil
	case strings.HasPrefix(lower, "sqlite:"):
		return dialect.SQLite, url[len("sqlite:"):], nil
	case strings.HasPrefix(lower, "file:"), lower == ":memory:",
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return dialect.SQLite, url, nil
	}
	return "", "", fmt.Errorf("cannot detect provider from %q, set --provider", url)
}

func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	return cfg.FormatDSN(), nil
}
