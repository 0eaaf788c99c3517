/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package config loads go-filecrypt settings from an optional YAML file and
// FILECRYPT_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/gitrgoliveira/go-filecrypt"
	"github.com/gitrgoliveira/go-filecrypt/internal/logger"
)

const (
	// EnvPrefix prefixes every environment override, e.g.
	// FILECRYPT_STORAGE_DIR for storage.dir.
	EnvPrefix = "FILECRYPT"

	DefaultListen        = "0.0.0.0:5000"
	defaultMaxUploadSize = "50MiB"
)

// Config is the full process configuration.
type Config struct {
	Vault    filecrypt.Config
	Listen   string
	LogLevel log.Level
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewDefaultConfig creates a new Config with default settings and no
// passphrase.
func NewDefaultConfig() *Config {
	return &Config{
		Vault:    filecrypt.DefaultConfig(),
		Listen:   DefaultListen,
		LogLevel: log.InfoLevel,
	}
}

// NewConfig creates a new Config with default settings and applies the
// given configuration file, if any, followed by environment overrides.
func NewConfig(configFile string) (*Config, error) { // nolint: gocyclo
	v := newViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	config := NewDefaultConfig()

	if v.IsSet("passphrase") {
		config.Vault.Passphrase = v.GetString("passphrase")
	}

	if v.IsSet("storage.dir") {
		config.Vault.StorageDir = v.GetString("storage.dir")
	}

	maxSize := defaultMaxUploadSize
	if v.IsSet("upload.max.size") {
		maxSize = v.GetString("upload.max.size")
	}
	size, err := humanize.ParseBytes(maxSize)
	if err != nil {
		return nil, fmt.Errorf("invalid upload.max.size %q: %w", maxSize, err)
	}
	if size == 0 {
		return nil, fmt.Errorf("upload.max.size must be positive")
	}
	config.Vault.MaxUploadSize = int64(size)

	if v.IsSet("kdf.algorithm") {
		config.Vault.KDF = v.GetString("kdf.algorithm")
	}

	if v.IsSet("kdf.iterations") {
		config.Vault.KDFIterations = v.GetInt("kdf.iterations")
	}

	if v.IsSet("cipher") {
		config.Vault.Cipher = v.GetString("cipher")
	}

	if v.IsSet("naming.max.attempts") {
		config.Vault.MaxNameAttempts = v.GetInt("naming.max.attempts")
	}

	if v.IsSet("listen") {
		config.Listen = v.GetString("listen")
	}

	if v.IsSet("log.level") {
		level, err := logger.GetLogLevel(v.GetString("log.level"))
		if err != nil {
			return nil, err
		}
		config.LogLevel = level
	}

	return config, nil
}

// Validate reports settings that would make the vault refuse to start.
func (c *Config) Validate() error {
	if c.Vault.Passphrase == "" {
		return fmt.Errorf("%w: set passphrase in the config file or %s_PASSPHRASE",
			filecrypt.ErrEmptyPassphrase, EnvPrefix)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}
