// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddr

import (
	"fmt"
	"slices"
)

// FieldDescriptor is a bit-field within a 32-bit register
type FieldDescriptor struct {
	Name    string
	Pos     uint
	Width   uint
	Default uint32
	Help    string
	Values  map[uint32]string // optional names for field values
}

// Mask returns the unshifted field mask
func (f FieldDescriptor) Mask() uint32 {
	if f.Width >= 32 {
		return 0xFFFFFFFF
	}
	return 1<<f.Width - 1
}

// Extract returns the field value from a register value
func (f FieldDescriptor) Extract(reg uint32) uint32 {
	return reg >> f.Pos & f.Mask()
}

// RegisterDescriptor lists the fields of a register
type RegisterDescriptor struct {
	Help   string
	Fields []FieldDescriptor
}

// FieldValue is a decomposed field of a register value
type FieldValue struct {
	Field FieldDescriptor
	Value uint32
	Label string // name of the value, if the field defines one
}

// Field finds a field by name
func (d *RegisterDescriptor) Field(name string) (FieldDescriptor, bool) {
	i := slices.IndexFunc(d.Fields, func(f FieldDescriptor) bool { return f.Name == name })
	if i < 0 {
		return FieldDescriptor{}, false
	}
	return d.Fields[i], true
}

// Decompose splits a register value into its named fields
func (d *RegisterDescriptor) Decompose(value uint32) []FieldValue {
	out := make([]FieldValue, 0, len(d.Fields))
	for _, f := range d.Fields {
		v := f.Extract(value)
		out = append(out, FieldValue{Field: f, Value: v, Label: f.Values[v]})
	}
	return out
}

// Compose packs field values into a register value. Fields not given take
// their default.
func (d *RegisterDescriptor) Compose(values map[string]uint32) (uint32, error) {
	for name := range values {
		if _, ok := d.Field(name); !ok {
			return 0, fmt.Errorf("unknown field %q", name)
		}
	}
	var reg uint32
	for _, f := range d.Fields {
		v, ok := values[f.Name]
		if !ok {
			v = f.Default
		}
		reg += (v & f.Mask()) << f.Pos
	}
	return reg, nil
}

// Update replaces one field in a register value
func (d *RegisterDescriptor) Update(reg uint32, name string, v uint32) (uint32, error) {
	f, ok := d.Field(name)
	if !ok {
		return 0, fmt.Errorf("unknown field %q", name)
	}
	if v > f.Mask() {
		return 0, fmt.Errorf("field %s: value %d does not fit in %d bits", name, v, f.Width)
	}
	return reg&^(f.Mask()<<f.Pos) | v<<f.Pos, nil
}

// DefaultValue returns the register value with every field at its default
func (d *RegisterDescriptor) DefaultValue() uint32 {
	v, _ := d.Compose(nil)
	return v
}

var eccModes = map[uint32]string{
	0: "ECC disabled",
	4: "ECC SEC/DED",
}

var dataBusWidths = map[uint32]string{
	0: "Full DQ width",
	1: "Half DQ width",
	2: "Quarter DQ width",
}

// umctl2Descriptors describe the controller registers shared by the
// LAN966x and LAN969x templates
var umctl2Descriptors = map[string]*RegisterDescriptor{
	"mstr": {
		Help: "Master register",
		Fields: []FieldDescriptor{
			{Name: "ddr3", Pos: 0, Width: 1, Default: 1, Help: "Select DDR3 SDRAM"},
			{Name: "burstchop", Pos: 2, Width: 1, Help: "Enable burst-chop (BC4)"},
			{Name: "ddr4", Pos: 4, Width: 1, Help: "Select DDR4 SDRAM"},
			{Name: "en_2t_timing_mode", Pos: 10, Width: 1, Help: "Use 2T timing"},
			{Name: "data_bus_width", Pos: 12, Width: 2, Help: "Width of the memory data bus", Values: dataBusWidths},
			{Name: "dll_off_mode", Pos: 15, Width: 1, Help: "Run the DRAM in DLL-off mode"},
			{Name: "burst_rdwr", Pos: 16, Width: 4, Default: 4, Help: "Burst length, 4 for BL8"},
			{Name: "active_ranks", Pos: 24, Width: 2, Default: 1, Help: "Populated ranks"},
			{Name: "device_config", Pos: 30, Width: 2, Help: "DRAM device width"},
		},
	},
	"ecccfg0": {
		Help: "ECC configuration register 0",
		Fields: []FieldDescriptor{
			{Name: "ecc_mode", Pos: 0, Width: 3, Help: "ECC mode", Values: eccModes},
			{Name: "test_mode", Pos: 3, Width: 1, Help: "Disable ECC correction on reads"},
			{Name: "dis_scrub", Pos: 4, Width: 1, Help: "Disable ECC scrubs"},
			{Name: "ecc_ap_en", Pos: 6, Width: 1, Default: 1, Help: "Enable ECC address protection"},
			{Name: "ecc_region_map", Pos: 8, Width: 7, Default: 0x7f, Help: "Protected regions"},
			{Name: "blk_channel_idle_time_x32", Pos: 16, Width: 6, Default: 0x3f, Help: "Idle cycles before channel close"},
		},
	},
	"pwrctl": {
		Help: "Low power control register",
		Fields: []FieldDescriptor{
			{Name: "selfref_en", Pos: 0, Width: 1, Help: "Enable automatic self refresh"},
			{Name: "powerdown_en", Pos: 1, Width: 1, Help: "Enable automatic power down"},
			{Name: "en_dfi_dram_clk_disable", Pos: 3, Width: 1, Help: "Stop the DRAM clock when idle"},
			{Name: "selfref_sw", Pos: 5, Width: 1, Help: "Software self refresh entry"},
		},
	},
	"rfshctl0": {
		Help: "Refresh control register 0",
		Fields: []FieldDescriptor{
			{Name: "refresh_burst", Pos: 4, Width: 6, Default: 1, Help: "Refreshes to burst, minus one"},
			{Name: "refresh_to_x1_x32", Pos: 12, Width: 5, Default: 0x10, Help: "Idle cycles before a speculative refresh"},
			{Name: "refresh_margin", Pos: 20, Width: 4, Default: 2, Help: "Refresh margin, in 32 cycle units"},
		},
	},
	"rfshtmg": {
		Help: "Refresh timing register",
		Fields: []FieldDescriptor{
			{Name: "t_rfc_min", Pos: 0, Width: 10, Help: "tRFC(min) in clock cycles"},
			{Name: "t_rfc_nom_x1_x32", Pos: 16, Width: 12, Help: "tREFI in 32 clock cycle units"},
		},
	},
}
