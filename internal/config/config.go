// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads the reconciler configuration from defaults, the
// aoserv-tomcat.yaml file, AOSERV_TOMCAT_* environment variables and command
// line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configName = "aoserv-tomcat"
	envPrefix  = "aoserv_tomcat"
)

// Database selects the journal and site store.
type Database struct {
	Type string `mapstructure:"type" yaml:"type"`
	Dsn  string `mapstructure:"dsn" yaml:"dsn"`
}

// Sites selects where site descriptors come from.
type Sites struct {
	Source string `mapstructure:"source" yaml:"source"` // "db" or "file"
	File   string `mapstructure:"file" yaml:"file"`
}

// Versions locates the shared release trees.
type Versions struct {
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Backup controls the names given to preserved files.
type Backup struct {
	Separator string `mapstructure:"separator" yaml:"separator"`
	Extension string `mapstructure:"extension" yaml:"extension"`
}

// Packages selects how OS package dependencies are checked.
type Packages struct {
	Checker   string   `mapstructure:"checker" yaml:"checker"` // "rpm" or "static"
	Installed []string `mapstructure:"installed" yaml:"installed"`
}

// Config is the complete reconciler configuration.
type Config struct {
	Database    Database `mapstructure:"database" yaml:"database"`
	Sites       Sites    `mapstructure:"sites" yaml:"sites"`
	Versions    Versions `mapstructure:"versions" yaml:"versions"`
	Backup      Backup   `mapstructure:"backup" yaml:"backup"`
	Packages    Packages `mapstructure:"packages" yaml:"packages"`
	LockDir     string   `mapstructure:"lock_dir" yaml:"lock_dir"`
	Parallel    int      `mapstructure:"parallel" yaml:"parallel"`
	MetricsFile string   `mapstructure:"metrics_file" yaml:"metrics_file"`
	Language    string   `mapstructure:"language" yaml:"language"`
	LogLevel    string   `mapstructure:"log_level" yaml:"log_level"`
}

// Defaults returns the built-in values for every key.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":      "sqlite",
		"database.dsn":       "/var/lib/aoserv-tomcat/journal.db",
		"sites.source":       "db",
		"sites.file":         "/etc/aoserv-tomcat/sites.yaml",
		"versions.base_dir":  "/opt",
		"backup.separator":   ".",
		"backup.extension":   ".old",
		"packages.checker":   "rpm",
		"packages.installed": []string{},
		"lock_dir":           "/run/aoserv-tomcat",
		"parallel":           4,
		"metrics_file":       "",
		"language":           "en",
		"log_level":          "info",
	}
}

// Validate rejects values the reconciler cannot run with.
func (c Config) Validate() error {
	switch c.Sites.Source {
	case "db", "file":
	default:
		return fmt.Errorf("sites.source must be \"db\" or \"file\", got %q", c.Sites.Source)
	}
	if c.Sites.Source == "file" && c.Sites.File == "" {
		return fmt.Errorf("sites.file is required when sites.source is \"file\"")
	}
	switch c.Packages.Checker {
	case "rpm", "static":
	default:
		return fmt.Errorf("packages.checker must be \"rpm\" or \"static\", got %q", c.Packages.Checker)
	}
	if !filepath.IsAbs(c.Versions.BaseDir) {
		return fmt.Errorf("versions.base_dir must be absolute, got %q", c.Versions.BaseDir)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	return nil
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "AOServ")
		default:
			configDir = "/etc/aoserv-tomcat"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, "aoserv-tomcat")
	}
	return filepath.Join(configDir, configName+".yaml"), nil
}

// LoadConfig merges defaults, the first config file found, the environment
// and the flags of cmd into a T. A missing config file is reported as
// viper.ConfigFileNotFoundError alongside the populated value.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitPath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if explicitPath != nil {
		v.SetConfigFile(*explicitPath)
	}
	if p, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(p))
	}
	if p, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(p))
	}
	v.AddConfigPath(".")

	var notFound error
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
		notFound = err
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, notFound
}

// WriteConfigFile stores c as YAML in the user or system config path.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := GetConfigPath(system)
	if err != nil {
		return err
	}
	return WriteConfigFileTo(c, path)
}

// WriteConfigFileTo stores c as YAML at path, creating parent directories.
func WriteConfigFileTo[T any](c *T, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", dir, err)
	}
	// The DSN may carry credentials.
	return os.WriteFile(path, data, 0o600)
}
