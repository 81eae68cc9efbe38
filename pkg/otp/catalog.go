// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package otp describes the device one-time-programmable memory layout and
// builds bounds-checked requests against it.
package otp

import (
	"fmt"
	"strings"
)

// DefaultCapacity is the OTP memory size of current devices, in bytes
const DefaultCapacity = 8192

// Flags describe what a field may be programmed with
type Flags uint8

const (
	Settable Flags = 1 << iota
	Randomizable
)

// String returns the flags as a short label
func (f Flags) String() string {
	var parts []string
	if f&Settable != 0 {
		parts = append(parts, "set")
	}
	if f&Randomizable != 0 {
		parts = append(parts, "random")
	}
	if len(parts) == 0 {
		return "read-only"
	}
	return strings.Join(parts, ",")
}

// Field is a named OTP region
type Field struct {
	Name   string
	Offset int
	Size   int
	Flags  Flags
}

// End returns the offset just past the field
func (f Field) End() int {
	return f.Offset + f.Size
}

// Catalog is an ordered, immutable table of OTP fields
type Catalog struct {
	capacity int
	fields   []Field
	byName   map[string]int
}

// NewCatalog builds a catalog. Field offsets must be monotonic and every
// field must fit within capacity.
func NewCatalog(capacity int, fields []Field) (*Catalog, error) {
	c := &Catalog{
		capacity: capacity,
		fields:   append([]Field(nil), fields...),
		byName:   make(map[string]int, len(fields)),
	}
	prev := 0
	for i, f := range c.fields {
		if f.Size <= 0 {
			return nil, fmt.Errorf("field %s: invalid size %d", f.Name, f.Size)
		}
		if f.Offset < prev {
			return nil, fmt.Errorf("field %s: offset %d overlaps previous field ending at %d", f.Name, f.Offset, prev)
		}
		if f.End() > capacity {
			return nil, fmt.Errorf("field %s: ends at %d, beyond capacity %d", f.Name, f.End(), capacity)
		}
		key := strings.ToUpper(f.Name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate field name %s", f.Name)
		}
		c.byName[key] = i
		prev = f.End()
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on an invalid table
func MustCatalog(capacity int, fields []Field) *Catalog {
	c, err := NewCatalog(capacity, fields)
	if err != nil {
		panic(fmt.Sprintf("otp: %v", err))
	}
	return c
}

// Capacity returns the OTP memory size in bytes
func (c *Catalog) Capacity() int {
	return c.capacity
}

// Len returns the number of fields
func (c *Catalog) Len() int {
	return len(c.fields)
}

// At returns the field at index i
func (c *Catalog) At(i int) (Field, bool) {
	if i < 0 || i >= len(c.fields) {
		return Field{}, false
	}
	return c.fields[i], true
}

// Lookup finds a field by name, ignoring case
func (c *Catalog) Lookup(name string) (Field, bool) {
	i, ok := c.byName[strings.ToUpper(name)]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Fields returns a copy of the field table
func (c *Catalog) Fields() []Field {
	return append([]Field(nil), c.fields...)
}

// Default is the OTP field table of the LAN966x/LAN969x family
var Default = MustCatalog(DefaultCapacity, []Field{
	{"OTP_PRG", 0, 4, Settable},
	{"FEAT_DIS", 4, 1, Settable},
	{"PARTID", 5, 2, 0},
	{"TST_TRK", 7, 1, 0},
	{"SERIAL_NUMBER", 8, 8, Settable},
	{"SECURE_JTAG", 16, 4, Settable},
	{"WAFER_TRK", 20, 7, 0},
	{"JTAG_UUID", 32, 10, 0},
	{"TRIM", 48, 8, 0},
	{"PROTECT_OTP_WRITE", 64, 4, Settable},
	{"PROTECT_REGION_ADDR", 68, 32, Settable},
	{"OTP_PCIE_FLAGS", 100, 4, Settable},
	{"OTP_PCIE_DEV", 104, 4, Settable},
	{"OTP_PCIE_ID", 108, 8, Settable},
	{"OTP_PCIE_BARS", 116, 40, Settable},
	{"OTP_TBBR_ROTPK", 256, 32, Settable},
	{"OTP_TBBR_HUK", 288, 32, Settable | Randomizable},
	{"OTP_TBBR_EK", 320, 32, Settable | Randomizable},
	{"OTP_TBBR_SSK", 352, 32, Settable | Randomizable},
	{"OTP_SJTAG_SSK", 384, 32, Settable | Randomizable},
	{"OTP_STRAP_DISABLE_MASK", 420, 2, Settable},
	{"OTP_TBBR_NTNVCT", 512, 32, Settable},
	{"OTP_TBBR_TNVCT", 544, 32, Settable},
})
