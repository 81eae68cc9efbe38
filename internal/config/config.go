// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config holds the fwu configuration file and its environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"
)

// Config holds all fwu configuration
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Probe      ProbeConfig      `yaml:"probe"`
	Applets    AppletConfig     `yaml:"applets"`
	Trace      TraceConfig      `yaml:"trace"`

	// SJTAGKey is only taken from the environment, never from the file
	SJTAGKey string `yaml:"-"`

	path string
}

type ConnectionConfig struct {
	Port        string `yaml:"port"` // serial device or host:port
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"` // ws:// or wss:// serial bridge
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

type ProbeConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Attempts int           `yaml:"attempts"`
}

// AppletConfig maps platform families to update applet images
type AppletConfig struct {
	Dir     string `yaml:"dir"`
	LAN966x string `yaml:"lan966x"`
	LAN969x string `yaml:"lan969x"`
}

type TraceConfig struct {
	File string `yaml:"file"` // CBOR frame trace, empty to disable
}

// DefaultConfig returns a config with defaults for a directly attached board
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Baud: 115200,
		},
		Probe: ProbeConfig{
			Timeout:  2 * time.Second,
			Attempts: 5,
		},
		Applets: AppletConfig{
			Dir: ".",
		},
	}
}

// DefaultPath returns the per-user config file location
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "fwu.yaml"
	}
	return filepath.Join(dir, "fwu", "config.yaml")
}

// Load reads config from a YAML file, then loads a .env file next to it and
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		glog.V(1).Infof("no config at %s, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		glog.V(1).Infof("config loaded from %s", path)
	}

	loadEnvFile(filepath.Join(filepath.Dir(path), ".env"))
	cfg.applyEnvOverrides()
	return cfg, nil
}

// loadEnvFile reads a KEY=VALUE .env file into the environment. Variables
// already set take precedence.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	glog.V(1).Infof("loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: FWU_PORT, FWU_BAUD, FWU_URL, FWU_APPLET_DIR, FWU_SJTAG_KEY
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FWU_PORT"); v != "" {
		c.Connection.Port = v
	}
	if v := os.Getenv("FWU_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Connection.Baud = n
		} else {
			glog.Warningf("ignoring FWU_BAUD=%q: %v", v, err)
		}
	}
	if v := os.Getenv("FWU_URL"); v != "" {
		c.Connection.URL = v
	}
	if v := os.Getenv("FWU_APPLET_DIR"); v != "" {
		c.Applets.Dir = v
	}
	if v := os.Getenv("FWU_SJTAG_KEY"); v != "" {
		c.SJTAGKey = v
	}
}

// AppletPath resolves the update applet image of a platform family. An
// empty configured path falls back to defaultName in the applet directory.
func (c *Config) AppletPath(family, defaultName string) string {
	var p string
	switch family {
	case "lan966x":
		p = c.Applets.LAN966x
	case "lan969x":
		p = c.Applets.LAN969x
	}
	if p == "" {
		p = defaultName
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Applets.Dir, p)
}

// Path returns the file the config was loaded from
func (c *Config) Path() string {
	return c.path
}

// Save writes the config to its YAML file
func (c *Config) Save() error {
	if c.path == "" {
		c.path = DefaultPath()
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}
