/*
 * Copyright 2026 The Filecached Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config provides filecached's configuration: parsing the TOML
// configuration file over default values for everything the daemon
// needs before its cache set can start. It applies no command-line or
// environment overrides.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/webosose/filecache/pkg/cache/options"
)

// Config is the top-level configuration object loaded from a TOML file.
type Config struct {
	// Main is the primary daemon configuration section.
	Main *MainConfig `toml:"main"`
	// Logging configures the structured logger.
	Logging *LoggingConfig `toml:"logging"`
	// Metrics configures the Prometheus metrics listener.
	Metrics *MetricsConfig `toml:"metrics"`
	// Caches is a map of type name to its watermark/default parameters,
	// applied via DefineType at startup.
	Caches map[string]*options.Options `toml:"caches"`
	// Sandbox configures CopyCacheObject's destination permission checks.
	Sandbox *SandboxConfig `toml:"sandbox"`

	// LoaderWarnings accumulates non-fatal issues found while applying
	// defaults, surfaced to the caller after Load returns.
	LoaderWarnings []string `toml:"-"`
}

// SandboxConfig seeds the permission predicate CopyCacheObject consults.
type SandboxConfig struct {
	// DownloadDir is the default copy destination when a caller omits dest.
	DownloadDir string `toml:"download_dir"`
	// Grants authorizes principal to write under Prefix.
	Grants []SandboxGrant `toml:"grants"`
}

// SandboxGrant is one (principal, path-prefix) write authorization.
type SandboxGrant struct {
	Principal string `toml:"principal"`
	Prefix    string `toml:"prefix"`
}

// MainConfig is a collection of general daemon configuration values.
type MainConfig struct {
	// BaseDir is the root directory under which every cache type's
	// on-disk storage lives.
	BaseDir string `toml:"base_dir"`
	// ListenSocket is the path of the Unix domain socket filecached
	// listens on for its RPC surface.
	ListenSocket string `toml:"listen_socket"`
	// IdleShutdownAfter powers down the daemon after this much inactivity;
	// zero disables idle shutdown.
	IdleShutdownAfter time.Duration `toml:"idle_shutdown_after"`
	// EnforceReserve rejects type definitions that would push the sum of
	// loWatermarks above filesystem capacity.
	EnforceReserve bool `toml:"enforce_reserve"`
}

// LoggingConfig is a collection of logging configurations.
type LoggingConfig struct {
	// LogFile is the path to the log file. Empty logs to stdout.
	LogFile string `toml:"log_file"`
	// LogLevel is the most granular level (DEBUG, INFO, WARN, ERROR) to log.
	LogLevel string `toml:"log_level"`
}

// MetricsConfig is a collection of metrics collection configurations.
type MetricsConfig struct {
	// ListenAddress is the address the Prometheus /metrics endpoint binds.
	ListenAddress string `toml:"listen_address"`
	// ListenPort is the port the Prometheus /metrics endpoint binds.
	ListenPort int `toml:"listen_port"`
}

// NewConfig returns a Config initialized with default values.
func NewConfig() *Config {
	return &Config{
		Main: &MainConfig{
			BaseDir:           "/var/cache/filecached",
			ListenSocket:      "/tmp/filecached.sock",
			IdleShutdownAfter: 0,
			EnforceReserve:    true,
		},
		Logging: &LoggingConfig{
			LogFile:  "",
			LogLevel: "INFO",
		},
		Metrics: &MetricsConfig{
			ListenAddress: "0.0.0.0",
			ListenPort:    9090,
		},
		Caches:  make(map[string]*options.Options),
		Sandbox: &SandboxConfig{DownloadDir: "/var/cache/filecached/downloads"},
	}
}

// Load reads and parses the TOML file at path into a new Config,
// applying NewConfig defaults first so a partial file is still usable.
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, err
	}
	for _, k := range md.Undecoded() {
		c.LoaderWarnings = append(c.LoaderWarnings, "unknown config key: "+k.String())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the minimal invariants Load cannot express via defaults
// alone.
func (c *Config) Validate() error {
	if c.Main == nil || c.Main.BaseDir == "" {
		return errors.New("config: main.base_dir must be set")
	}
	for name, o := range c.Caches {
		if o.HiWatermark <= o.LoWatermark {
			return errors.New("config: caches." + name + ": hi_watermark must be greater than lo_watermark")
		}
	}
	return nil
}
