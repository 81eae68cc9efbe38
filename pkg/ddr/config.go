// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddr

import "maps"

// Config holds register values grouped as in a Template. The version string
// is kept apart from the numeric registers; mem_size_mb is in megabytes.
type Config struct {
	version string
	values  map[string]map[string]uint32
}

// NewConfig creates an empty configuration
func NewConfig() *Config {
	return &Config{values: make(map[string]map[string]uint32)}
}

// Version returns the configuration name string
func (c *Config) Version() string {
	return c.version
}

// SetVersion sets the configuration name string
func (c *Config) SetVersion(v string) {
	c.version = v
}

// Value returns a register value
func (c *Config) Value(group, reg string) (uint32, bool) {
	v, ok := c.values[group][reg]
	return v, ok
}

// Set stores a register value
func (c *Config) Set(group, reg string, v uint32) {
	g, ok := c.values[group]
	if !ok {
		g = make(map[string]uint32)
		c.values[group] = g
	}
	g[reg] = v
}

// Len returns the number of numeric registers held
func (c *Config) Len() int {
	n := 0
	for _, g := range c.values {
		n += len(g)
	}
	return n
}

// Clone returns a deep copy
func (c *Config) Clone() *Config {
	out := &Config{
		version: c.version,
		values:  make(map[string]map[string]uint32, len(c.values)),
	}
	for name, g := range c.values {
		out.values[name] = maps.Clone(g)
	}
	return out
}

// Equal reports whether both configurations hold the same values
func (c *Config) Equal(o *Config) bool {
	if c.version != o.version || c.Len() != o.Len() {
		return false
	}
	for name, g := range c.values {
		if !maps.Equal(g, o.values[name]) {
			return false
		}
	}
	return true
}
