// Package config provides configuration management for travelprompt.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

const (
	// DefaultPort is the HTTP port the server listens on.
	DefaultPort = 37880
	// DefaultHost binds the server to loopback only.
	DefaultHost = "127.0.0.1"
	// DefaultSiteURL is the public origin used for absolute links.
	DefaultSiteURL = "http://localhost:37880"

	dataDirName  = ".travelprompt"
	dbFileName   = "travelprompt.db"
	settingsName = "settings.json"
)

// Setting keys, shared by settings.json and the environment.
const (
	KeyPort         = "TRAVELPROMPT_PORT"
	KeyHost         = "TRAVELPROMPT_HOST"
	KeyDBPath       = "TRAVELPROMPT_DB_PATH"
	KeyDBDriver     = "TRAVELPROMPT_DB_DRIVER"
	KeyTracking     = "TRAVELPROMPT_TRACKING"
	KeyMaxConns     = "TRAVELPROMPT_MAX_CONNS"
	KeySiteURL      = "TRAVELPROMPT_SITE_URL"
	KeyDestinations = "TRAVELPROMPT_DESTINATIONS"
)

// Config holds the runtime settings.
type Config struct {
	Port     int    `json:"TRAVELPROMPT_PORT"`
	Host     string `json:"TRAVELPROMPT_HOST"`
	DBPath   string `json:"TRAVELPROMPT_DB_PATH"`
	DBDriver string `json:"TRAVELPROMPT_DB_DRIVER"`
	Tracking bool   `json:"TRAVELPROMPT_TRACKING"`
	MaxConns int    `json:"TRAVELPROMPT_MAX_CONNS"`
	SiteURL  string `json:"TRAVELPROMPT_SITE_URL"`
	// Destinations limits the offered destinations by name. Empty means all.
	Destinations []string `json:"TRAVELPROMPT_DESTINATIONS"`
}

// settingsFile mirrors settings.json. Pointer fields tell "unset" apart
// from zero values.
type settingsFile struct {
	Port         *int    `json:"TRAVELPROMPT_PORT"`
	Host         *string `json:"TRAVELPROMPT_HOST"`
	DBPath       *string `json:"TRAVELPROMPT_DB_PATH"`
	DBDriver     *string `json:"TRAVELPROMPT_DB_DRIVER"`
	Tracking     *bool   `json:"TRAVELPROMPT_TRACKING"`
	MaxConns     *int    `json:"TRAVELPROMPT_MAX_CONNS"`
	SiteURL      *string `json:"TRAVELPROMPT_SITE_URL"`
	Destinations *string `json:"TRAVELPROMPT_DESTINATIONS"`
}

var (
	global   *Config
	globalMu sync.Mutex
)

// DataDir returns ~/.travelprompt.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the default database path inside the data dir.
func DBPath() string {
	return filepath.Join(DataDir(), dbFileName)
}

// SettingsPath returns the settings.json path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsName)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:         DefaultPort,
		Host:         DefaultHost,
		DBPath:       DBPath(),
		Tracking:     true,
		MaxConns:     4,
		SiteURL:      DefaultSiteURL,
		Destinations: []string{},
	}
}

// Load reads settings.json on top of the defaults and applies environment
// overrides. A missing or invalid settings file yields the defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		var file settingsFile
		if jsonErr := json.Unmarshal(data, &file); jsonErr == nil {
			file.apply(cfg)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// Get returns the cached configuration, loading it on first use.
func Get() *Config {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
			applyEnv(cfg)
		}
		global = cfg
	}
	return global
}

// Reload drops the cached configuration and loads it again.
func Reload() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	globalMu.Lock()
	global = cfg
	globalMu.Unlock()
	return cfg, nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// EnsureDataDir creates the data directory.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings writes a default settings.json if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	cfg := Default()
	data, err := json.MarshalIndent(map[string]any{
		KeyPort:     cfg.Port,
		KeyHost:     cfg.Host,
		KeyTracking: cfg.Tracking,
		KeyMaxConns: cfg.MaxConns,
		KeySiteURL:  cfg.SiteURL,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll creates the data directory and default settings.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

func (f *settingsFile) apply(cfg *Config) {
	if f.Port != nil && *f.Port > 0 {
		cfg.Port = *f.Port
	}
	if f.Host != nil && *f.Host != "" {
		cfg.Host = *f.Host
	}
	if f.DBPath != nil && *f.DBPath != "" {
		cfg.DBPath = *f.DBPath
	}
	if f.DBDriver != nil && *f.DBDriver != "" {
		cfg.DBDriver = *f.DBDriver
	}
	if f.Tracking != nil {
		cfg.Tracking = *f.Tracking
	}
	if f.MaxConns != nil && *f.MaxConns > 0 {
		cfg.MaxConns = *f.MaxConns
	}
	if f.SiteURL != nil && *f.SiteURL != "" {
		cfg.SiteURL = *f.SiteURL
	}
	if f.Destinations != nil {
		cfg.Destinations = splitTrim(*f.Destinations)
	}
}

func applyEnv(cfg *Config) {
	if v, ok := envInt(KeyPort); ok && v > 0 {
		cfg.Port = v
	}
	if v := os.Getenv(KeyHost); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(KeyDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(KeyDBDriver); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv(KeyTracking); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracking = b
		}
	}
	if v, ok := envInt(KeyMaxConns); ok && v > 0 {
		cfg.MaxConns = v
	}
	if v := os.Getenv(KeySiteURL); v != "" {
		cfg.SiteURL = v
	}
	if v, ok := os.LookupEnv(KeyDestinations); ok {
		cfg.Destinations = splitTrim(v)
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// splitTrim splits a comma-separated list, dropping blanks.
func splitTrim(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
