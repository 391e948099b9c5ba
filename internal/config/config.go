// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "FETCHARR__"

// Config holds the user-facing settings read from config.toml.
type Config struct {
	LogLevel      string
	LogPath       string
	LogMaxSize    int
	LogMaxBackups int

	// APIBase is the release-query endpoint root, GitHub-compatible.
	APIBase     string
	GitHubToken string

	// CheckForUpdates enables the periodic self-update check.
	CheckForUpdates bool

	// SelfUpdateURL serves the latest fetcharr executable bytes directly.
	SelfUpdateURL string

	// RelaunchArgs is an optional shell-quoted argument string appended when
	// fetcharr restarts itself after a self-update or relocation.
	RelaunchArgs string
}

// AppConfig couples the parsed Config with the viper instance that read it.
type AppConfig struct {
	Config *Config
	viper  *viper.Viper

	dataDir string
}

// New loads (or creates) config.toml inside dataDir.
func New(dataDir string) (*AppConfig, error) {
	c := &AppConfig{
		Config:  &Config{},
		viper:   viper.New(),
		dataDir: dataDir,
	}

	c.defaults()

	c.viper.SetConfigType("toml")
	configPath := filepath.Join(dataDir, "config.toml")
	c.viper.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	if err := c.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	c.loadFromEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("apiBase", "https://api.github.com")
	c.viper.SetDefault("githubToken", "")
	c.viper.SetDefault("checkForUpdates", true)
	c.viper.SetDefault("selfUpdateURL", "https://raw.githubusercontent.com/autobrr/fetcharr/releases/latest/fetcharr")
	c.viper.SetDefault("relaunchArgs", "")
}

// loadFromEnv maps FETCHARR__* environment variables onto config keys,
// overriding file values.
func (c *AppConfig) loadFromEnv() {
	mappings := map[string]string{
		"LOG_LEVEL":         "logLevel",
		"LOG_PATH":          "logPath",
		"LOG_MAX_SIZE":      "logMaxSize",
		"LOG_MAX_BACKUPS":   "logMaxBackups",
		"API_BASE":          "apiBase",
		"GITHUB_TOKEN":      "githubToken",
		"CHECK_FOR_UPDATES": "checkForUpdates",
		"SELF_UPDATE_URL":   "selfUpdateURL",
		"RELAUNCH_ARGS":     "relaunchArgs",
	}

	for env, key := range mappings {
		if value, ok := os.LookupEnv(envPrefix + env); ok {
			c.viper.Set(key, strings.TrimSpace(value))
		}
	}
}

// DataDir returns the directory this config was loaded from.
func (c *AppConfig) DataDir() string {
	return c.dataDir
}

// ConfigPath returns the config.toml location.
func (c *AppConfig) ConfigPath() string {
	return c.viper.ConfigFileUsed()
}

// ResolveLogPath resolves a possibly-relative log path against the data directory.
// An empty path stays empty (file logging disabled).
func (c *AppConfig) ResolveLogPath(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.dataDir, path)
}

const defaultConfigTemplate = `# config.toml - fetcharr

# Log level
# Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR"
logLevel = "INFO"

# Log file path, relative to the data directory. Leave empty to log to the
# console only.
#logPath = "fetcharr.log"

# Max log file size in MB before rotation
logMaxSize = 50

# Rotated log files to keep
logMaxBackups = 3

# Release-query API root (GitHub-compatible)
apiBase = "https://api.github.com"

# Optional token sent as a Bearer header on release queries
#githubToken = ""

# Periodically check for new fetcharr releases
checkForUpdates = true

# Raw-content URL serving the latest fetcharr executable
selfUpdateURL = "https://raw.githubusercontent.com/autobrr/fetcharr/releases/latest/fetcharr"

# Extra arguments (shell-quoted) passed to fetcharr when it restarts itself
#relaunchArgs = ""
`

// WriteDefaultConfig writes the commented default config.toml to path.
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigTemplate), 0o644)
}
