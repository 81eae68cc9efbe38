// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// fwu - Firmware update host for the boot ROM bootstrap protocol
//
// A CLI tool for identifying LAN966x/LAN969x devices, loading the update
// applet and programming flash, OTP and DDR settings over a serial link.

package main

import (
	"os"

	"github.com/Thermoquad/fwu/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
