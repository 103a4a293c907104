package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level habitboard configuration.
type Config struct {
	Hub             Hub           `mapstructure:"hub"`
	Server          Server        `mapstructure:"server"`
	WeekStart       string        `mapstructure:"week_start"`
	CacheDuration   time.Duration `mapstructure:"cache_duration"`
	RefreshInterval int           `mapstructure:"refresh_interval"`
	DBPath          string        `mapstructure:"db_path"`
	ImagesDir       string        `mapstructure:"images_dir"`
	LogLevel        string        `mapstructure:"log_level"`
}

// Hub holds the Home Assistant connection settings.
type Hub struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the host:port string for the HTTP listener.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied. Every key can be
// overridden through the environment as HABITBOARD_<KEY> with dots
// replaced by underscores (e.g. HABITBOARD_HUB_TOKEN).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("hub.url", DefaultHubURL)
	v.SetDefault("hub.token", "")
	v.SetDefault("hub.timeout", DefaultHubTimeout)
	v.SetDefault("week_start", DefaultWeekStart)
	v.SetDefault("cache_duration", DefaultCacheDuration)
	v.SetDefault("refresh_interval", DefaultRefreshInterval)
	v.SetDefault("db_path", filepath.Join(DefaultConfigDir, DefaultDBName))
	v.SetDefault("images_dir", DefaultImagesDir)
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetEnvPrefix("habitboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		configDir := expandPath(DefaultConfigDir)
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	ws := strings.ToLower(cfg.WeekStart)
	if ws != "sunday" && ws != "monday" {
		return nil, fmt.Errorf("week_start must be sunday or monday, got %q", cfg.WeekStart)
	}
	cfg.WeekStart = ws

	cfg.DBPath = expandPath(cfg.DBPath)
	cfg.ImagesDir = expandPath(cfg.ImagesDir)

	return &cfg, nil
}

// SlogLevel maps the configured log level name to a slog.Level.
// Unknown names fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
