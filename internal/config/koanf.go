// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/papermap/config.yaml",
	"/etc/papermap/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "PAPERMAP_CONFIG"

// envPrefix is the prefix for environment variable overrides, e.g.
// PAPERMAP_SERVER_PORT=9090 overrides server.port.
const envPrefix = "PAPERMAP_"

// Load builds the configuration from defaults, the config file (if
// any) and environment variables, then validates it.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path
// skips the file layer.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// PAPERMAP_SERVER_SHARED_SECRET -> server.shared_secret. Section
	// names contain no underscores, so only the first underscore is a
	// separator.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(s, "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the config file to use, or "" when none
// exists.
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
