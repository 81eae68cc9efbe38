// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
	"github.com/Thermoquad/fwu/pkg/ddr"
	"github.com/Thermoquad/fwu/pkg/otp"
)

// AppletPrefix marks a version string sent by the update applet
const AppletPrefix = "BL2:"

// Platform describes one device family. Platforms are immutable.
type Platform struct {
	Family       string
	Name         string
	BinaryUpload bool   // boot ROM accepts binary-encoded DATA
	AppletImage  string // default update applet file name
	DDR          *ddr.Template
	OTP          *otp.Catalog
	Codes        bootstrap.ResponseCodes

	parts   func(part uint16) bool
	version *regexp.Regexp // fallback for devices that report no chip id
}

func (p *Platform) String() string {
	return p.Name
}

var (
	// LAN966x covers the LAN9662 and LAN9668
	LAN966x = &Platform{
		Family:      "lan966x",
		Name:        "LAN966x",
		AppletImage: "lan966x-bl2u.fip",
		DDR:         ddr.LAN966x,
		OTP:         otp.Default,
		Codes:       bootstrap.DefaultResponseCodes,
		parts:       func(p uint16) bool { return p == 0x9662 || p == 0x9668 },
		version:     regexp.MustCompile(`(?i)\blan966x`),
	}

	// LAN969x covers the LAN9691 to LAN969F
	LAN969x = &Platform{
		Family:       "lan969x",
		Name:         "LAN969x",
		BinaryUpload: true,
		AppletImage:  "lan969x-bl2u.fip",
		DDR:          ddr.LAN969x,
		OTP:          otp.Default,
		Codes:        bootstrap.DefaultResponseCodes,
		parts:        func(p uint16) bool { return p&0xFFF0 == 0x9690 },
		version:      regexp.MustCompile(`(?i)\blan969x`),
	}

	// BootMonitor is the early LAN966x boot monitor, which reports a bare
	// "Version x.y" string and acknowledges with 'A'
	BootMonitor = &Platform{
		Family:      "lan966x",
		Name:        "LAN966x boot monitor",
		AppletImage: "lan966x-bl2u.fip",
		OTP:         otp.Default,
		Codes:       bootstrap.LegacyResponseCodes,
		version:     regexp.MustCompile(`^Version \d+\.\d+`),
	}
)

// Platforms returns the known platforms in match order
func Platforms() []*Platform {
	return []*Platform{LAN966x, LAN969x, BootMonitor}
}

// LookupPlatform finds a platform by family name
func LookupPlatform(family string) (*Platform, bool) {
	for _, p := range Platforms() {
		if p.Family == family {
			return p, true
		}
	}
	return nil, false
}

// PartNumber extracts the part number from a GCB chip id
func PartNumber(chipID uint32) uint16 {
	return uint16(chipID >> 12)
}

// MatchPlatform selects a platform from the chip id, falling back to the
// version string for devices that report a zero chip id
func MatchPlatform(chipID uint32, version string) (*Platform, bool) {
	version = strings.TrimPrefix(version, AppletPrefix)
	if chipID != 0 {
		part := PartNumber(chipID)
		for _, p := range Platforms() {
			if p.parts != nil && p.parts(part) {
				return p, true
			}
		}
		return nil, false
	}
	for _, p := range Platforms() {
		if p.version != nil && p.version.MatchString(version) {
			return p, true
		}
	}
	return nil, false
}

// PlatformInfo is the identity reported by a VERS exchange
type PlatformInfo struct {
	ChipID   uint32
	Version  string // without the applet prefix
	Applet   bool   // reported by the update applet
	Platform *Platform
}

// parseIdentity decodes a VERS response
func parseIdentity(resp *bootstrap.Frame) *PlatformInfo {
	v := string(resp.Payload())
	info := &PlatformInfo{
		ChipID:  resp.Arg(),
		Version: strings.TrimPrefix(v, AppletPrefix),
		Applet:  strings.HasPrefix(v, AppletPrefix),
	}
	info.Platform, _ = MatchPlatform(info.ChipID, v)
	return info
}

// Stage returns the boot stage implied by the identity
func (i *PlatformInfo) Stage() Stage {
	if i.Applet {
		return StageUpdateApplet
	}
	return StageBL1
}

func (i *PlatformInfo) String() string {
	name := "unknown"
	if i.Platform != nil {
		name = i.Platform.Name
	}
	if i.ChipID != 0 {
		return fmt.Sprintf("%s (chip 0x%08x, part %04x) %s: %s", name, i.ChipID, PartNumber(i.ChipID), i.Stage(), i.Version)
	}
	return fmt.Sprintf("%s %s: %s", name, i.Stage(), i.Version)
}
