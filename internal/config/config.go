package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Upload   UploadConfig   `yaml:"upload"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// Disabled turns persistence off entirely; the catalog then shows
	// bundled entries only.
	Disabled bool `yaml:"disabled"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AssetsDir holds the bundled games and cover images. Empty serves
	// none.
	AssetsDir string `yaml:"assets_dir"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	host := s.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := s.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "text" or "json"
	File       string `yaml:"file"`   // empty = stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// CatalogConfig configures the library page.
type CatalogConfig struct {
	// Bundled replaces the built-in entries when non-nil.
	Bundled     []BundledEntry `yaml:"bundled"`
	SwitchDelay string         `yaml:"switch_delay"`
}

// ParseSwitchDelay returns the pause between a successful add and the
// return to the library page.
func (c CatalogConfig) ParseSwitchDelay() time.Duration {
	d, err := time.ParseDuration(c.SwitchDelay)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

// BundledEntry is a catalog entry shipped with the launcher.
type BundledEntry struct {
	Name  string `yaml:"name"`
	Cover string `yaml:"cover"`
	URL   string `yaml:"url"`
}

// UploadConfig limits what the add-entry form accepts.
type UploadConfig struct {
	MaxCoverBytes     int64    `yaml:"max_cover_bytes"`
	MaxContentBytes   int64    `yaml:"max_content_bytes"`
	ContentExtensions []string `yaml:"content_extensions"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./solus.db"},
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8080},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Catalog: CatalogConfig{SwitchDelay: "1s"},
		Upload: UploadConfig{
			MaxCoverBytes:     5 << 20,
			MaxContentBytes:   64 << 20,
			ContentExtensions: []string{".html", ".htm"},
		},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the rest of the program cannot run with.
func (c *Config) Validate() error {
	if !c.Database.Disabled && strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required unless database.disabled is set")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if len(c.Upload.ContentExtensions) == 0 {
		return fmt.Errorf("upload.content_extensions must not be empty")
	}
	for i, ext := range c.Upload.ContentExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Upload.ContentExtensions[i] = ext
	}
	for i, e := range c.Catalog.Bundled {
		if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.URL) == "" {
			return fmt.Errorf("catalog.bundled[%d]: name and url are required", i)
		}
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SOLUS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SOLUS_PERSISTENCE"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SOLUS_PERSISTENCE: %w", err)
		}
		cfg.Database.Disabled = !enabled
	}
	if v := os.Getenv("SOLUS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SOLUS_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SOLUS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SOLUS_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	return nil
}
