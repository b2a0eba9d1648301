// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Data      DataConfig
	Sources   SourcesConfig
	PageCache PageCacheConfig
	Scraper   ScraperConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 30s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// DataConfig holds persistent data paths. Everything lives under BasePath
// unless overridden individually.
type DataConfig struct {
	BasePath   string // Root data directory (default: ~/YomiHub/data)
	StorePath  string // Badger catalog store (default: {base}/catalog)
	SearchPath string // Bleve index directory (default: {base}/search)
	TagsPath   string // Badger tag index (default: {base}/tags)
	StatsPath  string // SQLite stats database file (default: {base}/stats.db)
	CoversPath string // Cover storage base (default: {base})
}

// SourcesConfig holds upstream source behavior.
type SourcesConfig struct {
	// DefaultInterval is the minimum delay between requests to one source
	// when the adapter does not declare its own (default: 1s).
	DefaultInterval time.Duration
	// GlobalTimeout caps a whole aggregated operation (default: 20s).
	GlobalTimeout time.Duration
	// IncludeAdultDefault widens unauthenticated requests to adult sources.
	IncludeAdultDefault bool
	// RoutesFile points at the category routing table JSON (optional).
	RoutesFile string
}

// PageCacheConfig holds the page image cache settings.
type PageCacheConfig struct {
	Dir      string // Cache directory (default: {base}/pages)
	MaxBytes int64  // Byte budget before eviction (default: 10GB)
}

// ScraperConfig holds the periodic rescan settings.
type ScraperConfig struct {
	Interval     time.Duration // 0 disables the ticker
	PageLimit    int           // Series per listing page
	Pages        int           // Listing pages per mode per source
	WithChapters bool          // Refresh chapter lists during the sweep
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	serverName := flag.String("server-name", "", "Name for the server")
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	dataPath := flag.String("data-path", "", "Base path for persistent data")
	routesFile := flag.String("routes-file", "", "Path to category routing table JSON")

	sourceInterval := flag.String("source-interval", "", "Default per-source request interval (default: 1s)")
	sourceTimeout := flag.String("source-timeout", "", "Aggregated operation timeout (default: 20s)")
	includeAdult := flag.String("include-adult", "", "Include adult sources by default (default: false)")

	cacheDir := flag.String("page-cache-dir", "", "Page image cache directory")
	cacheMax := flag.String("page-cache-max-bytes", "", "Page cache byte budget (default: 10737418240)")

	scrapeInterval := flag.String("scrape-interval", "", "Periodic rescan interval, 0 disables (default: 0)")
	scrapePageLimit := flag.String("scrape-page-limit", "", "Series per listing page during rescans (default: 50)")
	scrapePages := flag.String("scrape-pages", "", "Listing pages per mode during rescans (default: 2)")
	scrapeChapters := flag.String("scrape-chapters", "", "Refresh chapter lists during rescans (default: false)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "YomiHub Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Sources: SourcesConfig{
			IncludeAdultDefault: getBoolConfigValue(*includeAdult, "INCLUDE_ADULT", false),
			RoutesFile:          getConfigValue(*routesFile, "ROUTES_FILE", ""),
		},
		PageCache: PageCacheConfig{
			Dir:      getConfigValue(*cacheDir, "PAGE_CACHE_DIR", ""),
			MaxBytes: getInt64ConfigValue(*cacheMax, "PAGE_CACHE_MAX_BYTES", 10*1024*1024*1024),
		},
		Scraper: ScraperConfig{
			PageLimit:    getIntConfigValue(*scrapePageLimit, "SCRAPE_PAGE_LIMIT", 50),
			Pages:        getIntConfigValue(*scrapePages, "SCRAPE_PAGES", 2),
			WithChapters: getBoolConfigValue(*scrapeChapters, "SCRAPE_CHAPTERS", false),
		},
	}

	durations := []struct {
		dst        *time.Duration
		flagValue  string
		envKey     string
		defaultVal string
		name       string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s", "read timeout"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "30s", "write timeout"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", "idle timeout"},
		{&cfg.Sources.DefaultInterval, *sourceInterval, "SOURCE_INTERVAL", "1s", "source interval"},
		{&cfg.Sources.GlobalTimeout, *sourceTimeout, "SOURCE_TIMEOUT", "20s", "source timeout"},
		{&cfg.Scraper.Interval, *scrapeInterval, "SCRAPE_INTERVAL", "0s", "scrape interval"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.defaultVal)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}
	if c.PageCache.MaxBytes <= 0 {
		return fmt.Errorf("page cache byte budget must be positive, got %d", c.PageCache.MaxBytes)
	}
	if c.Sources.GlobalTimeout <= 0 {
		return errors.New("source timeout must be positive")
	}
	if c.Scraper.Interval < 0 {
		return errors.New("scrape interval cannot be negative")
	}

	return nil
}

// expandDataPaths resolves the base data path and derives every unset
// per-component path from it.
func (c *Config) expandDataPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultBase := filepath.Join(homeDir, "YomiHub", "data")

	base, err := expandPath(c.Data.BasePath, defaultBase)
	if err != nil {
		return err
	}
	c.Data.BasePath = base

	derive := func(dst *string, fallback string) error {
		expanded, err := expandPath(*dst, fallback)
		if err != nil {
			return err
		}
		*dst = expanded
		return nil
	}

	if err := derive(&c.Data.StorePath, filepath.Join(base, "catalog")); err != nil {
		return err
	}
	if err := derive(&c.Data.SearchPath, filepath.Join(base, "search")); err != nil {
		return err
	}
	if err := derive(&c.Data.TagsPath, filepath.Join(base, "tags")); err != nil {
		return err
	}
	if err := derive(&c.Data.StatsPath, filepath.Join(base, "stats.db")); err != nil {
		return err
	}
	if err := derive(&c.Data.CoversPath, base); err != nil {
		return err
	}
	return derive(&c.PageCache.Dir, filepath.Join(base, "pages"))
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getInt64ConfigValue returns an int64 from flag, env var, or default.
func getInt64ConfigValue(flagValue, envKey string, defaultValue int64) int64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int64
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
