// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddr

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ToBinary serializes cfg in template order. Each register is a big-endian
// 32-bit word, except version (a NUL padded 128 byte string) and
// mem_size_mb (sent in bytes).
func ToBinary(t *Template, cfg *Config) ([]byte, error) {
	if err := Validate(t, cfg); err != nil {
		return nil, err
	}
	out := make([]byte, 0, t.Size())

	for _, g := range t.Groups {
		for _, reg := range g.Registers {
			if reg == VersionRegister {
				v := cfg.Version()
				if len(v) >= VersionLength {
					return nil, fmt.Errorf("%s.%s: %d characters, maximum is %d", g.Name, reg, len(v), VersionLength-1)
				}
				field := make([]byte, VersionLength)
				copy(field, v)
				out = append(out, field...)
				continue
			}

			v, _ := cfg.Value(g.Name, reg)
			if reg == MemSizeRegister {
				if uint64(v)*mebibyte > 0xFFFFFFFF {
					return nil, fmt.Errorf("%s.%s: %d MB does not fit in 32 bits", g.Name, reg, v)
				}
				v *= mebibyte
			}
			out = binary.BigEndian.AppendUint32(out, v)
		}
	}

	return out, nil
}

// FromBinary parses a configuration blob laid out by t
func FromBinary(t *Template, data []byte) (*Config, error) {
	if len(data) != t.Size() {
		return nil, fmt.Errorf("%s config is %d bytes, got %d", t.Name, t.Size(), len(data))
	}

	cfg := NewConfig()
	off := 0
	for _, g := range t.Groups {
		for _, reg := range g.Registers {
			if reg == VersionRegister {
				field := data[off : off+VersionLength]
				if i := bytes.IndexByte(field, 0); i >= 0 {
					field = field[:i]
				}
				cfg.SetVersion(string(field))
				off += VersionLength
				continue
			}

			v := binary.BigEndian.Uint32(data[off:])
			if reg == MemSizeRegister {
				v /= mebibyte
			}
			cfg.Set(g.Name, reg, v)
			off += wordLength
		}
	}

	return cfg, nil
}

// Validate checks that cfg holds exactly the registers of t
func Validate(t *Template, cfg *Config) error {
	for _, g := range t.Groups {
		for _, reg := range g.Registers {
			if reg == VersionRegister {
				continue
			}
			if _, ok := cfg.Value(g.Name, reg); !ok {
				return fmt.Errorf("%s.%s: missing register value", g.Name, reg)
			}
		}
	}
	for group, regs := range cfg.values {
		for reg := range regs {
			if !t.HasRegister(group, reg) || reg == VersionRegister {
				return fmt.Errorf("%s.%s: not a %s register", group, reg, t.Name)
			}
		}
	}
	return nil
}
