package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds the relational store settings.
type DatabaseConfig struct {
	// Path is the SQLite database file, or ":memory:".
	Path string `mapstructure:"path" yaml:"path"`
}

// BlobConfig holds the attachment storage settings.
type BlobConfig struct {
	// Dir is the root directory for stored attachment payloads.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SyncConfig holds the tunables of the synchronization pipeline.
type SyncConfig struct {
	// PageSize bounds how many messages are fetched per remote call.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// BodyLimitBytes caps a stored message body; larger bodies are
	// truncated with a marker, never rejected.
	BodyLimitBytes int `mapstructure:"body_limit_bytes" yaml:"body_limit_bytes"`

	// ConnectTimeoutSec bounds connection establishment.
	ConnectTimeoutSec int `mapstructure:"connect_timeout_sec" yaml:"connect_timeout_sec"`

	// OperationTimeoutSec bounds each network operation on an open session.
	OperationTimeoutSec int `mapstructure:"operation_timeout_sec" yaml:"operation_timeout_sec"`

	// PollIntervalSec is the background polling interval.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// ConnectTimeout returns the connect timeout as a duration.
func (c SyncConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

// OperationTimeout returns the per-operation timeout as a duration.
func (c SyncConfig) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutSec) * time.Second
}

// PollInterval returns the background polling interval as a duration.
func (c SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// VaultConfig holds credential vault settings.
type VaultConfig struct {
	// Service is the OS keyring service name holding the master key.
	Service string `mapstructure:"service" yaml:"service"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database    DatabaseConfig `mapstructure:"database" yaml:"database"`
	Attachments BlobConfig     `mapstructure:"attachments" yaml:"attachments"`
	Sync        SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Vault       VaultConfig    `mapstructure:"vault" yaml:"vault"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailsync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailsync", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Database:    DatabaseConfig{Path: "mailsync.sqlite3"},
		Attachments: BlobConfig{Dir: "attachments"},
		Sync: SyncConfig{
			PageSize:            200,
			BodyLimitBytes:      5 * 1024 * 1024,
			ConnectTimeoutSec:   15,
			OperationTimeoutSec: 30,
			PollIntervalSec:     300,
		},
		Vault: VaultConfig{Service: "mailsync"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("database.path", "mailsync.sqlite3")
	v.SetDefault("attachments.dir", "attachments")
	v.SetDefault("sync.page_size", 200)
	v.SetDefault("sync.body_limit_bytes", 5*1024*1024)
	v.SetDefault("sync.connect_timeout_sec", 15)
	v.SetDefault("sync.operation_timeout_sec", 30)
	v.SetDefault("sync.poll_interval_sec", 300)
	v.SetDefault("vault.service", "mailsync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
