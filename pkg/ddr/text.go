// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddr

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// decimalGroup holds registers written in decimal rather than hex
const decimalGroup = "info"

// MarshalText renders cfg as a YAML document, group -> register -> value,
// in template order
func MarshalText(t *Template, cfg *Config) ([]byte, error) {
	if err := Validate(t, cfg); err != nil {
		return nil, err
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, g := range t.Groups {
		group := &yaml.Node{Kind: yaml.MappingNode}
		for _, reg := range g.Registers {
			var value *yaml.Node
			switch {
			case reg == VersionRegister:
				value = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cfg.Version(), Style: yaml.DoubleQuotedStyle}
			case g.Name == decimalGroup:
				v, _ := cfg.Value(g.Name, reg)
				value = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(uint64(v), 10)}
			default:
				v, _ := cfg.Value(g.Name, reg)
				value = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("0x%08x", v)}
			}
			group.Content = append(group.Content, scalar(reg), value)
		}
		root.Content = append(root.Content, scalar(g.Name), group)
	}

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: fmt.Sprintf("DDR configuration, %s template", t.Name),
		Content:     []*yaml.Node{root},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode DDR config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode DDR config: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalText parses a YAML document written by MarshalText. Every group
// and register of t must be present exactly once; unknown keys are errors.
func UnmarshalText(t *Template, data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse DDR config: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse DDR config: document is not a mapping")
	}
	root := doc.Content[0]

	cfg := NewConfig()
	seenGroups := make(map[string]bool)
	for i := 0; i < len(root.Content); i += 2 {
		key, body := root.Content[i], root.Content[i+1]
		g, ok := t.Group(key.Value)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown group %q", key.Line, key.Value)
		}
		if seenGroups[g.Name] {
			return nil, fmt.Errorf("line %d: duplicate group %q", key.Line, key.Value)
		}
		seenGroups[g.Name] = true
		if err := parseGroup(cfg, t, g, body); err != nil {
			return nil, err
		}
	}

	for _, g := range t.Groups {
		if !seenGroups[g.Name] {
			return nil, fmt.Errorf("missing group %q", g.Name)
		}
	}
	return cfg, nil
}

func parseGroup(cfg *Config, t *Template, g Group, body *yaml.Node) error {
	if body.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: group %q is not a mapping", body.Line, g.Name)
	}

	seen := make(map[string]bool)
	for i := 0; i < len(body.Content); i += 2 {
		key, value := body.Content[i], body.Content[i+1]
		reg := key.Value
		if !t.HasRegister(g.Name, reg) {
			return fmt.Errorf("line %d: unknown register %s.%s", key.Line, g.Name, reg)
		}
		if seen[reg] {
			return fmt.Errorf("line %d: duplicate register %s.%s", key.Line, g.Name, reg)
		}
		seen[reg] = true
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: %s.%s is not a scalar", value.Line, g.Name, reg)
		}

		if reg == VersionRegister {
			cfg.SetVersion(value.Value)
			continue
		}
		v, err := strconv.ParseUint(value.Value, 0, 32)
		if err != nil {
			return fmt.Errorf("line %d: %s.%s: invalid value %q", value.Line, g.Name, reg, value.Value)
		}
		cfg.Set(g.Name, reg, uint32(v))
	}

	for _, reg := range g.Registers {
		if !seen[reg] {
			return fmt.Errorf("missing register %s.%s", g.Name, reg)
		}
	}
	return nil
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
