package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Source   SourceConfig   `json:"source" mapstructure:"source"`
	Download DownloadConfig `json:"download" mapstructure:"download"`
	Lyrics   LyricsConfig   `json:"lyrics" mapstructure:"lyrics"`
	Network  NetworkConfig  `json:"network" mapstructure:"network"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	History  HistoryConfig  `json:"history" mapstructure:"history"`
}

// SourceConfig contains music source service settings
type SourceConfig struct {
	BaseURL           string `json:"base_url" mapstructure:"base_url"`
	DefaultSource     string `json:"default_source" mapstructure:"default_source"`
	RequestsPerSecond int    `json:"requests_per_second" mapstructure:"requests_per_second"`
	CacheSize         int    `json:"cache_size" mapstructure:"cache_size"`
	CacheTTLMinutes   int    `json:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// DownloadConfig contains download-related settings
type DownloadConfig struct {
	OutputDir     string `json:"output_dir" mapstructure:"output_dir"`
	QualitySuffix bool   `json:"quality_suffix" mapstructure:"quality_suffix"`
	EmbedArtwork  bool   `json:"embed_artwork" mapstructure:"embed_artwork"`
	ArtworkSize   int    `json:"artwork_size" mapstructure:"artwork_size"`
}

// LyricsConfig contains lyrics-related settings
type LyricsConfig struct {
	Enabled            bool   `json:"enabled" mapstructure:"enabled"`
	EmbedInFile        bool   `json:"embed_in_file" mapstructure:"embed_in_file"`
	SaveLRCFile        bool   `json:"save_lrc_file" mapstructure:"save_lrc_file"`
	IncludeTranslation bool   `json:"include_translation" mapstructure:"include_translation"`
	Language           string `json:"language" mapstructure:"language"`
}

// NetworkConfig contains network-related settings
type NetworkConfig struct {
	Timeout    int `json:"timeout" mapstructure:"timeout"`
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	Output     string `json:"output" mapstructure:"output"`
	FilePath   string `json:"file_path" mapstructure:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// HistoryConfig contains download history settings
type HistoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	DBPath  string `json:"db_path" mapstructure:"db_path"`
}

// Load loads configuration from file or creates default
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath == "" {
		configPath = GetConfigPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := ensureConfigDir(configPath); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			if err := v.WriteConfigAs(configPath); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// TRACKDL_DOWNLOAD_OUTPUT_DIR overrides download.output_dir
	v.SetEnvPrefix("TRACKDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source base URL cannot be empty")
	}
	if u, err := url.Parse(c.Source.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid source base URL: %s", c.Source.BaseURL)
	}

	if c.Source.RequestsPerSecond < 1 {
		return fmt.Errorf("source requests per second must be at least 1")
	}

	if c.Source.CacheSize < 0 {
		return fmt.Errorf("source cache size cannot be negative")
	}

	if c.Download.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}

	if c.Download.ArtworkSize < 0 || c.Download.ArtworkSize > 5000 {
		return fmt.Errorf("artwork size must be between 0 and 5000 pixels")
	}

	if c.Network.Timeout < 1 {
		return fmt.Errorf("network timeout must be at least 1 second")
	}

	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if c.Lyrics.Language == "" {
		c.Lyrics.Language = "eng"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logging.Format)
	}

	validOutputs := map[string]bool{"file": true, "console": true, "both": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output: %s (must be file, console, or both)", c.Logging.Output)
	}

	if c.Logging.Output != "console" && c.Logging.MaxSizeMB < 1 {
		return fmt.Errorf("log max size must be at least 1 MB")
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history database path cannot be empty when history is enabled")
	}

	return nil
}

// Save saves the configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.Set("source", c.Source)
	v.Set("download", c.Download)
	v.Set("lyrics", c.Lyrics)
	v.Set("network", c.Network)
	v.Set("logging", c.Logging)
	v.Set("history", c.History)

	if err := ensureConfigDir(path); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "http://127.0.0.1:9763")
	v.SetDefault("source.default_source", "kw")
	v.SetDefault("source.requests_per_second", 10)
	v.SetDefault("source.cache_size", 256)
	v.SetDefault("source.cache_ttl_minutes", 30)

	v.SetDefault("download.output_dir", GetDefaultMusicDir())
	v.SetDefault("download.quality_suffix", true)
	v.SetDefault("download.embed_artwork", true)
	v.SetDefault("download.artwork_size", 0)

	v.SetDefault("lyrics.enabled", true)
	v.SetDefault("lyrics.embed_in_file", true)
	v.SetDefault("lyrics.save_lrc_file", true)
	v.SetDefault("lyrics.include_translation", false)
	v.SetDefault("lyrics.language", "eng")

	v.SetDefault("network.timeout", 60)
	v.SetDefault("network.max_retries", 3)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "file")
	v.SetDefault("logging.file_path", filepath.Join(GetDataDir(), "logs", "trackdl.log"))
	v.SetDefault("logging.max_size_mb", 20)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db_path", filepath.Join(GetDataDir(), "data", "history.db"))
}

// ensureConfigDir ensures the configuration directory exists
func ensureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return "."
}

// GetDataDir returns the application data directory
func GetDataDir() string {
	return filepath.Join(homeDir(), ".trackdl")
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(GetDataDir(), "settings.json")
}

// GetDefaultMusicDir returns the fixed music directory downloads land in
func GetDefaultMusicDir() string {
	return filepath.Join(homeDir(), "Music")
}
