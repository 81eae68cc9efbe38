// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ddr implements the DDR controller configuration codec: a named
// group/register template, its fixed binary layout and a YAML text form.
package ddr

import (
	"fmt"
	"slices"
)

// Registers with a special binary representation
const (
	VersionRegister = "version"
	MemSizeRegister = "mem_size_mb"
	VersionLength   = 128
	wordLength      = 4
	mebibyte        = 1 << 20
)

// Group is a named, ordered list of registers
type Group struct {
	Name      string
	Registers []string
}

// Template describes the register layout of one DDR controller.
// Templates are immutable after construction.
type Template struct {
	Name        string
	Groups      []Group
	Descriptors map[string]*RegisterDescriptor

	defaults *Config
}

// newTemplate builds a template and checks that defaults cover every register
func newTemplate(name string, groups []Group, descriptors map[string]*RegisterDescriptor, version string, values map[string]map[string]uint32) *Template {
	t := &Template{
		Name:        name,
		Groups:      groups,
		Descriptors: descriptors,
	}
	cfg := NewConfig()
	cfg.SetVersion(version)
	for _, g := range groups {
		for _, reg := range g.Registers {
			if reg == VersionRegister {
				continue
			}
			v, ok := values[g.Name][reg]
			if !ok {
				panic(fmt.Sprintf("ddr: template %s: no default for %s.%s", name, g.Name, reg))
			}
			cfg.Set(g.Name, reg, v)
		}
	}
	t.defaults = cfg
	return t
}

// Size returns the length of the binary configuration blob
func (t *Template) Size() int {
	n := 0
	for _, g := range t.Groups {
		for _, reg := range g.Registers {
			if reg == VersionRegister {
				n += VersionLength
			} else {
				n += wordLength
			}
		}
	}
	return n
}

// Group returns the named group
func (t *Template) Group(name string) (Group, bool) {
	for _, g := range t.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// HasRegister reports whether group contains reg
func (t *Template) HasRegister(group, reg string) bool {
	g, ok := t.Group(group)
	return ok && slices.Contains(g.Registers, reg)
}

// Descriptor returns the field layout of a register, if one is known
func (t *Template) Descriptor(reg string) (*RegisterDescriptor, bool) {
	d, ok := t.Descriptors[reg]
	return d, ok
}

// Default returns a copy of the template's default configuration
func (t *Template) Default() *Config {
	return t.defaults.Clone()
}

var infoGroup = Group{Name: "info", Registers: []string{VersionRegister, "speed", MemSizeRegister, "bus_width"}}

// LAN966x is the DDR3 controller template of the LAN966x family
var LAN966x = newTemplate("lan966x",
	[]Group{
		infoGroup,
		{Name: "main", Registers: []string{
			"dfimisc", "dfitmg0", "dfitmg1", "dfiupd0", "dfiupd1", "ecccfg0",
			"init0", "init1", "init3", "init4", "init5", "mstr", "pccfg", "pwrctl",
			"rfshctl0", "rfshctl3",
		}},
		{Name: "timing", Registers: []string{
			"dramtmg0", "dramtmg1", "dramtmg2", "dramtmg3", "dramtmg4", "dramtmg5",
			"dramtmg8", "odtcfg", "rfshtmg",
		}},
		{Name: "mapping", Registers: []string{
			"addrmap0", "addrmap1", "addrmap2", "addrmap3", "addrmap4", "addrmap5", "addrmap6",
		}},
		{Name: "phy", Registers: []string{"dcr", "dsgcr", "dtcr", "dxccr", "pgcr2"}},
		{Name: "phy_timing", Registers: []string{
			"dtpr0", "dtpr1", "dtpr2", "mr0", "mr1", "mr2", "mr3",
			"ptr0", "ptr1", "ptr2", "ptr3", "ptr4",
		}},
	},
	umctl2Descriptors,
	"lan966x 2023-02-15-21:32:07 4cf830af9cce",
	map[string]map[string]uint32{
		"info": {"speed": 1200, "mem_size_mb": 1024, "bus_width": 16},
		"main": {
			"dfimisc": 0x00000000, "dfitmg0": 0x04030102, "dfitmg1": 0x00040201,
			"dfiupd0": 0x40400003, "dfiupd1": 0x004000ff, "ecccfg0": 0x003f7f40,
			"init0": 0x00020124, "init1": 0x00740000, "init3": 0x1b600000,
			"init4": 0x00100000, "init5": 0x00080000, "mstr": 0x01040001,
			"pccfg": 0x00000000, "pwrctl": 0x00000000, "rfshctl0": 0x00210010,
			"rfshctl3": 0x00000000,
		},
		"timing": {
			"dramtmg0": 0x0a0f160c, "dramtmg1": 0x00020211, "dramtmg2": 0x00000508,
			"dramtmg3": 0x0000400c, "dramtmg4": 0x05020306, "dramtmg5": 0x04040303,
			"dramtmg8": 0x00000803, "odtcfg": 0x0600060c, "rfshtmg": 0x00620057,
		},
		"mapping": {
			"addrmap0": 0x0000001f, "addrmap1": 0x00181818, "addrmap2": 0x00000000,
			"addrmap3": 0x00000000, "addrmap4": 0x00001f1f, "addrmap5": 0x04040404,
			"addrmap6": 0x04040404,
		},
		"phy": {
			"dcr": 0x0000040b, "dsgcr": 0xf000641f, "dtcr": 0x910035c7,
			"dxccr": 0x44181884, "pgcr2": 0x00f0b540,
		},
		"phy_timing": {
			"dtpr0": 0xc958ea85, "dtpr1": 0x228bb3c4, "dtpr2": 0x1002e8b4,
			"mr0": 0x00001b60, "mr1": 0x00000004, "mr2": 0x00000010, "mr3": 0x00000000,
			"ptr0": 0x25a12c90, "ptr1": 0x754f0a8f, "ptr2": 0x00083def,
			"ptr3": 0x0b449000, "ptr4": 0x06add000,
		},
	},
)

// LAN969x is the DDR4 controller template of the LAN969x family
var LAN969x = newTemplate("lan969x",
	[]Group{
		infoGroup,
		{Name: "main", Registers: []string{
			"crcparctl1", "dbictl", "dfimisc", "dfitmg0", "dfitmg1", "dfiupd0", "dfiupd1",
			"ecccfg0", "init0", "init1", "init3", "init4", "init5", "init6", "init7",
			"mstr", "pccfg", "pwrctl", "rfshctl0", "rfshctl3",
		}},
		{Name: "timing", Registers: []string{
			"dramtmg0", "dramtmg1", "dramtmg12", "dramtmg2", "dramtmg3", "dramtmg4",
			"dramtmg5", "dramtmg8", "dramtmg9", "odtcfg", "rfshtmg",
		}},
		{Name: "mapping", Registers: []string{
			"addrmap0", "addrmap1", "addrmap2", "addrmap3", "addrmap4", "addrmap5",
			"addrmap6", "addrmap7", "addrmap8",
		}},
		{Name: "phy", Registers: []string{
			"dcr", "dsgcr", "dtcr0", "dtcr1", "dxccr", "pgcr2", "schcr1",
			"zq0pr", "zq1pr", "zq2pr", "zqcr",
		}},
		{Name: "phy_timing", Registers: []string{
			"dtpr0", "dtpr1", "dtpr2", "dtpr3", "dtpr4", "dtpr5",
			"ptr0", "ptr1", "ptr2", "ptr3", "ptr4",
		}},
	},
	umctl2Descriptors,
	"lan969x 2023-06-23-12:52:17 8093bf2eaa60-dirty",
	map[string]map[string]uint32{
		"info": {"speed": 1600, "mem_size_mb": 896, "bus_width": 16},
		"main": {
			"crcparctl1": 0x00001091, "dbictl": 0x00000001, "dfimisc": 0x00000040,
			"dfitmg0": 0x038c820d, "dfitmg1": 0x00040201, "dfiupd0": 0x40400003,
			"dfiupd1": 0x004000ff, "ecccfg0": 0x003f7f44, "init0": 0x00020186,
			"init1": 0x009c0000, "init3": 0x06140501, "init4": 0x10100000,
			"init5": 0x00110000, "init6": 0x00000401, "init7": 0x00000419,
			"mstr": 0x81040010, "pccfg": 0x00000000, "pwrctl": 0x00000000,
			"rfshctl0": 0x00210020, "rfshctl3": 0x00000000,
		},
		"timing": {
			"dramtmg0": 0x120e0d0e, "dramtmg1": 0x00050314, "dramtmg12": 0x1a000010,
			"dramtmg2": 0x0808040f, "dramtmg3": 0x0000400c, "dramtmg4": 0x06030306,
			"dramtmg5": 0x04040303, "dramtmg8": 0x04030a05, "dramtmg9": 0x0003030d,
			"odtcfg": 0x07000604, "rfshtmg": 0x0030008c,
		},
		"mapping": {
			"addrmap0": 0x0000001f, "addrmap1": 0x003f0505, "addrmap2": 0x01010100,
			"addrmap3": 0x13131303, "addrmap4": 0x00001f1f, "addrmap5": 0x04040404,
			"addrmap6": 0x04040404, "addrmap7": 0x00000f0f, "addrmap8": 0x00003f01,
		},
		"phy": {
			"dcr": 0x0000040c, "dsgcr": 0x0064401b, "dtcr0": 0x8000b0cf,
			"dtcr1": 0x00010a37, "dxccr": 0x00c01884, "pgcr2": 0x00000aa0,
			"schcr1": 0x00000000, "zq0pr": 0x0007bb00, "zq1pr": 0x0007bb00,
			"zq2pr": 0x00000000, "zqcr": 0x00058e00,
		},
		"phy_timing": {
			"dtpr0": 0x061c0a06, "dtpr1": 0x281c0018, "dtpr2": 0x00040120,
			"dtpr3": 0x02550101, "dtpr4": 0x01180805, "dtpr5": 0x00280c06,
			"ptr0": 0x32019010, "ptr1": 0x4e200e10, "ptr2": 0x00083def,
			"ptr3": 0x12061800, "ptr4": 0x10027000,
		},
	},
)

// Templates returns the built-in templates
func Templates() []*Template {
	return []*Template{LAN966x, LAN969x}
}

// LookupTemplate finds a built-in template by name
func LookupTemplate(name string) (*Template, bool) {
	for _, t := range Templates() {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}
