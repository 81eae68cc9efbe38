// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/pkg/otp"
	"github.com/Thermoquad/fwu/pkg/session"
)

var (
	otpYes      bool
	otpTUI      bool
	otpPlatform string
)

var otpCmd = &cobra.Command{
	Use:   "otp",
	Short: "Read and program one-time-programmable memory",
	Long: `Read and program named OTP fields.

Programming OTP is irreversible. set and random ask for confirmation by typing
the field name unless --yes is given.`,
}

var otpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the OTP fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := platformFlag(otpPlatform)
		if err != nil {
			return err
		}
		if otpTUI {
			_, err := tea.NewProgram(newOTPBrowserModel(p.Name, p.OTP), tea.WithAltScreen()).Run()
			return err
		}

		t := newTable("NAME", "OFFSET", "SIZE", "WRITES")
		for _, f := range p.OTP.Fields() {
			t.Row(f.Name, fmt.Sprintf("0x%04x", f.Offset), fmt.Sprintf("%d", f.Size), f.Flags.String())
		}
		fmt.Println(t)
		return nil
	},
}

var otpReadCmd = &cobra.Command{
	Use:   "read NAME",
	Short: "Read an OTP field (update applet)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			f, err := lookupField(s, args[0])
			if err != nil {
				return err
			}
			value, err := s.ReadOTP(ctx, f)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", f.Name, otp.FormatValue(value))
			return nil
		})
	},
}

var otpSetCmd = &cobra.Command{
	Use:   "set NAME HEX",
	Short: "Program an OTP field with a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			f, err := lookupField(s, args[0])
			if err != nil {
				return err
			}
			data, err := otp.ParseHexValue(f, args[1])
			if err != nil {
				return err
			}
			if err := s.ProgramOTP(ctx, f, data, otpConfirmer()); err != nil {
				return err
			}
			fmt.Printf("%s programmed\n", f.Name)
			return nil
		})
	},
}

var otpRandomCmd = &cobra.Command{
	Use:   "random NAME",
	Short: "Program an OTP field with device-generated random data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			f, err := lookupField(s, args[0])
			if err != nil {
				return err
			}
			if err := s.ProgramOTP(ctx, f, nil, otpConfirmer()); err != nil {
				return err
			}
			fmt.Printf("%s programmed with random data\n", f.Name)
			return nil
		})
	},
}

var otpCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit emulated OTP data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.CommitOTP(ctx); err != nil {
				return err
			}
			fmt.Println("OTP committed")
			return nil
		})
	},
}

var otpRegionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Program the OTP write protection regions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.OTPRegions(ctx); err != nil {
				return err
			}
			fmt.Println("OTP regions programmed")
			return nil
		})
	},
}

func init() {
	otpListCmd.Flags().BoolVar(&otpTUI, "tui", false, "Browse the fields interactively")
	otpListCmd.Flags().StringVar(&otpPlatform, "platform", "lan966x", "Platform family")
	otpSetCmd.Flags().BoolVarP(&otpYes, "yes", "y", false, "Do not ask for confirmation")
	otpRandomCmd.Flags().BoolVarP(&otpYes, "yes", "y", false, "Do not ask for confirmation")

	otpCmd.AddCommand(otpListCmd, otpReadCmd, otpSetCmd, otpRandomCmd, otpCommitCmd, otpRegionsCmd)
	rootCmd.AddCommand(otpCmd)
}

func otpConfirmer() session.Confirmer {
	if otpYes {
		return func(session.OTPWrite) bool { return true }
	}
	return confirmOTPWrite
}

func lookupField(s *session.Session, name string) (otp.Field, error) {
	f, ok := s.OTPCatalog().Lookup(name)
	if !ok {
		return otp.Field{}, fmt.Errorf("unknown OTP field %q (see 'fwu otp list')", name)
	}
	return f, nil
}

// platformFlag resolves a --platform value without a device
func platformFlag(family string) (*session.Platform, error) {
	p, ok := session.LookupPlatform(family)
	if !ok {
		return nil, fmt.Errorf("unknown platform %q (want lan966x or lan969x)", family)
	}
	return p, nil
}
