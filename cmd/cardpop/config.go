package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/cardpop/internal/httpserver"
	"github.com/tinytelemetry/cardpop/internal/model"
	"github.com/tinytelemetry/cardpop/internal/socketrpc"
)

const (
	defaultReadyTimeout   = model.DefaultReadyTimeout
	defaultInterval       = model.DefaultInterval
	defaultIntervalUnit   = model.DefaultIntervalUnit
	defaultAPIAddr        = httpserver.DefaultAddr
	defaultBackupInterval = time.Hour
	defaultBackupKeepLast = 24
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	DataDir         string        `mapstructure:"data-dir"`
	DecksFile       string        `mapstructure:"decks-file"`
	PreferencesFile string        `mapstructure:"preferences-file"`
	HistoryEnabled  bool          `mapstructure:"history-enabled"`
	HistoryFile     string        `mapstructure:"history-file"`
	SocketPath      string        `mapstructure:"socket-path"`
	APIEnabled      bool          `mapstructure:"api-enabled"`
	APIAddr         string        `mapstructure:"api-addr"`
	ReadyTimeout    time.Duration `mapstructure:"ready-timeout"`
	Interval        float64       `mapstructure:"interval"`
	IntervalUnit    string        `mapstructure:"interval-unit"`
	Shuffle         bool          `mapstructure:"shuffle"`
	Headless        bool          `mapstructure:"headless"`
	Theme           string        `mapstructure:"theme"`
	ThemesFile      string        `mapstructure:"themes-file"`
	BackupEnabled   bool          `mapstructure:"backup-enabled"`
	BackupInterval  time.Duration `mapstructure:"backup-interval"`
	BackupDir       string        `mapstructure:"backup-dir"`
	BackupKeepLast  int           `mapstructure:"backup-keep-last"`
	ConfigPath      string        `mapstructure:"-"` // not from config file
}

// runSettings builds the default run settings from config.
func (c appConfig) runSettings() (model.RunSettings, error) {
	unit, err := model.ParseIntervalUnit(c.IntervalUnit)
	if err != nil {
		return model.RunSettings{}, err
	}
	s := model.RunSettings{Interval: c.Interval, IntervalUnit: unit, Shuffle: c.Shuffle}
	return s, s.Validate()
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CARDPOP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("data-dir", filepath.Join(home, ".local", "share", "cardpop"))
	v.SetDefault("decks-file", "")
	v.SetDefault("preferences-file", "")
	v.SetDefault("history-enabled", true)
	v.SetDefault("history-file", "")
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("api-enabled", false)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("ready-timeout", defaultReadyTimeout)
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("interval-unit", string(defaultIntervalUnit))
	v.SetDefault("shuffle", false)
	v.SetDefault("headless", false)
	v.SetDefault("theme", "")
	v.SetDefault("themes-file", "")
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-dir", "")
	v.SetDefault("backup-keep-last", defaultBackupKeepLast)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "cardpop", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	cfg.DataDir = expandHome(home, cfg.DataDir)
	if cfg.DecksFile == "" {
		cfg.DecksFile = filepath.Join(cfg.DataDir, "decks.json")
	}
	if cfg.PreferencesFile == "" {
		cfg.PreferencesFile = filepath.Join(cfg.DataDir, "preferences.json")
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = filepath.Join(cfg.DataDir, "history.jsonl")
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(cfg.DataDir, "backups")
	}
	cfg.DecksFile = expandHome(home, cfg.DecksFile)
	cfg.PreferencesFile = expandHome(home, cfg.PreferencesFile)
	cfg.HistoryFile = expandHome(home, cfg.HistoryFile)
	cfg.BackupDir = expandHome(home, cfg.BackupDir)
	cfg.ThemesFile = expandHome(home, cfg.ThemesFile)
	cfg.SocketPath = expandHome(home, cfg.SocketPath)

	if cfg.ReadyTimeout <= 0 {
		return cfg, fmt.Errorf("invalid ready-timeout: %s", cfg.ReadyTimeout)
	}
	if cfg.BackupKeepLast < 0 {
		return cfg, fmt.Errorf("invalid backup-keep-last: %d", cfg.BackupKeepLast)
	}
	return cfg, nil
}

// expandHome expands a leading ~/ in path.
func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
