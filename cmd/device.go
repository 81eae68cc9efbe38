// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/pkg/session"
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify the connected device",
	Long: `Send a VERS request and report the chip id, platform and boot stage.

Devices answering with the legacy ACK code are retried with legacy response
codes automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			info := s.Info()
			p := s.Platform()
			fmt.Printf("Platform: %s\n", p.Name)
			if info.ChipID != 0 {
				fmt.Printf("Chip ID:  0x%08x (part %04x)\n", info.ChipID, session.PartNumber(info.ChipID))
			}
			fmt.Printf("Version:  %s\n", info.Version)
			fmt.Printf("Stage:    %s\n", s.Stage())
			fmt.Printf("Upload:   %s\n", s.UploadEncoding())
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return from the update applet to the boot ROM",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.Reset(ctx); err != nil {
				return err
			}
			fmt.Printf("Device back in %s\n", s.Stage())
			return nil
		})
	},
}

var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Let the boot ROM continue the normal boot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.ContinueBoot(ctx); err != nil {
				return err
			}
			fmt.Println("Device is booting")
			return nil
		})
	},
}

var strapCmd = &cobra.Command{
	Use:   "strap VALUE",
	Short: "Override the boot strapping for the next boot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseUint32(args[0])
		if err != nil {
			return err
		}
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.Strap(ctx, value); err != nil {
				return err
			}
			fmt.Printf("Strapping set to 0x%x\n", value)
			return nil
		})
	},
}

var traceLevelCmd = &cobra.Command{
	Use:   "trace-level LEVEL",
	Short: "Set the boot ROM trace level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseUint32(args[0])
		if err != nil {
			return err
		}
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.TraceLevel(ctx, level); err != nil {
				return err
			}
			fmt.Printf("Trace level set to %d\n", level)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(continueCmd)
	rootCmd.AddCommand(strapCmd)
	rootCmd.AddCommand(traceLevelCmd)
}

// parseUint32 accepts decimal, 0x hex and 0 octal numbers
func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint32(v), nil
}
