package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Config holds environment-driven configuration.
type Config struct {
	Harvest struct {
		Subdomain string
		Username  string
		Password  string
		BaseURL   string // default: https://{subdomain}.harvestapp.com
	}
	Store struct {
		Backend string // file (default), sqlite or mysql
		Path    string // file or sqlite database path
		Key     string // key the configuration is stored under
		DSN     string // MySQL, e.g. user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
	}
	Split struct {
		Concurrency int
		Timezone    string // zone used to pick "today"
	}
	HTTP struct {
		Addr string
	}
	LogLevel string
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config

	v := viper.New()
	v.SetDefault("harvest.base_url", "")
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.key", "splitConfiguration")
	v.SetDefault("split.concurrency", 4)
	v.SetDefault("split.tz", "Local")
	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("log.level", "info")

	binds := map[string]string{
		"harvest.subdomain": "HARVEST_SUBDOMAIN",
		"harvest.username":  "HARVEST_USERNAME",
		"harvest.password":  "HARVEST_PASSWORD",
		"harvest.base_url":  "HARVEST_BASE_URL",
		"store.backend":     "STORE_BACKEND",
		"store.path":        "STORE_PATH",
		"store.key":         "STORE_KEY",
		"store.dsn":         "MYSQL_DSN",
		"split.concurrency": "SPLIT_CONCURRENCY",
		"split.tz":          "SPLIT_TZ",
		"http.addr":         "HTTP_ADDR",
		"log.level":         "LOG_LEVEL",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return cfg, err
		}
	}

	cfg.Harvest.Subdomain = v.GetString("harvest.subdomain")
	cfg.Harvest.Username = v.GetString("harvest.username")
	cfg.Harvest.Password = v.GetString("harvest.password")
	cfg.Harvest.BaseURL = strings.TrimRight(v.GetString("harvest.base_url"), "/")
	if cfg.Harvest.BaseURL == "" && cfg.Harvest.Subdomain != "" {
		cfg.Harvest.BaseURL = fmt.Sprintf("https://%s.harvestapp.com", cfg.Harvest.Subdomain)
	}

	cfg.Store.Backend = strings.ToLower(v.GetString("store.backend"))
	cfg.Store.Key = v.GetString("store.key")
	cfg.Store.DSN = v.GetString("store.dsn")
	cfg.Store.Path = v.GetString("store.path")
	switch cfg.Store.Backend {
	case BackendFile, BackendSQLite:
		if cfg.Store.Path == "" {
			p, err := defaultStorePath(cfg.Store.Backend)
			if err != nil {
				return cfg, err
			}
			cfg.Store.Path = p
		}
	case BackendMySQL:
		if cfg.Store.DSN == "" {
			return cfg, errors.New("MYSQL_DSN is required when STORE_BACKEND=mysql")
		}
	default:
		return cfg, fmt.Errorf("STORE_BACKEND must be one of file, sqlite, mysql; got %q", cfg.Store.Backend)
	}

	cfg.Split.Concurrency = v.GetInt("split.concurrency")
	if cfg.Split.Concurrency < 1 {
		return cfg, errors.New("SPLIT_CONCURRENCY must be a positive integer")
	}
	cfg.Split.Timezone = v.GetString("split.tz")

	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.LogLevel = strings.ToLower(v.GetString("log.level"))

	return cfg, nil
}

// ValidateHarvest reports the Harvest variables that are still missing.
// Commands that only edit split rules do not need them.
func (c Config) ValidateHarvest() error {
	var missing []string
	if c.Harvest.BaseURL == "" {
		missing = append(missing, "HARVEST_SUBDOMAIN")
	}
	if c.Harvest.Username == "" {
		missing = append(missing, "HARVEST_USERNAME")
	}
	if c.Harvest.Password == "" {
		missing = append(missing, "HARVEST_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

func defaultStorePath(backend string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	name := "splits.yaml"
	if backend == BackendSQLite {
		name = "splits.db"
	}
	return filepath.Join(dir, "timesplit", name), nil
}
