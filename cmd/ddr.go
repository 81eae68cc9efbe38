// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/pkg/ddr"
	"github.com/Thermoquad/fwu/pkg/session"
)

var (
	ddrOut      string
	ddrPlatform string
	ddrCached   bool
)

var ddrCmd = &cobra.Command{
	Use:   "ddr",
	Short: "Read, write and test the DDR configuration",
	Long: `Read, write and test the DDR controller configuration through the update
applet. Configurations are exchanged as YAML documents with one mapping per
register group, in the register order of the platform.`,
}

var ddrGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Read the active DDR configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			t, err := s.DDRTemplate()
			if err != nil {
				return err
			}
			c, err := s.DDRGetConfig(ctx)
			if err != nil {
				return err
			}
			return writeDDRText(t, c)
		})
	},
}

var ddrSetCmd = &cobra.Command{
	Use:   "set FILE",
	Short: "Send a DDR configuration and initialize DDR with it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			t, err := s.DDRTemplate()
			if err != nil {
				return err
			}
			c, err := ddr.UnmarshalText(t, text)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := s.DDRSetConfig(ctx, c); err != nil {
				return err
			}
			fmt.Printf("DDR configuration %q applied\n", c.Version())
			return nil
		})
	},
}

var ddrDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Print the default DDR configuration of a platform",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := ddrTemplateFlag()
		if err != nil {
			return err
		}
		return writeDDRText(t, t.Default())
	},
}

var ddrFieldsCmd = &cobra.Command{
	Use:   "fields GROUP REG [VALUE]",
	Short: "Decompose a register value into its bit fields",
	Long: `Decompose a register value into its bit fields. Without VALUE the
platform default is shown.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := ddrTemplateFlag()
		if err != nil {
			return err
		}
		group, reg := args[0], args[1]
		if !t.HasRegister(group, reg) {
			return fmt.Errorf("%s has no register %s.%s", t.Name, group, reg)
		}
		d, ok := t.Descriptor(reg)
		if !ok {
			return fmt.Errorf("%s.%s has no field description", group, reg)
		}

		value, _ := t.Default().Value(group, reg)
		if len(args) == 3 {
			if value, err = parseUint32(args[2]); err != nil {
				return err
			}
		}

		fmt.Printf("%s.%s = 0x%08x\n", group, reg, value)
		if d.Help != "" {
			fmt.Printf("%s\n", d.Help)
		}
		tbl := newTable("FIELD", "BITS", "VALUE", "DEFAULT", "MEANING")
		for _, fv := range d.Decompose(value) {
			f := fv.Field
			bits := fmt.Sprintf("%d", f.Pos)
			if f.Width > 1 {
				bits = fmt.Sprintf("%d:%d", f.Pos+f.Width-1, f.Pos)
			}
			tbl.Row(f.Name, bits, fmt.Sprintf("0x%x", fv.Value), fmt.Sprintf("0x%x", f.Default), fv.Label)
		}
		fmt.Println(tbl)
		return nil
	},
}

var ddrInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize DDR with the active configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.DDRInit(ctx); err != nil {
				return err
			}
			fmt.Println("DDR initialized")
			return nil
		})
	},
}

var ddrTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the DDR memory tests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			status, err := s.DDRTest(ctx, ddrCached)
			if err != nil {
				return err
			}
			fmt.Println(status)
			return nil
		})
	},
}

func init() {
	ddrGetCmd.Flags().StringVarP(&ddrOut, "out", "o", "", "Write the configuration to a file")
	ddrDefaultCmd.Flags().StringVarP(&ddrOut, "out", "o", "", "Write the configuration to a file")
	ddrDefaultCmd.Flags().StringVar(&ddrPlatform, "platform", "lan966x", "Platform family")
	ddrFieldsCmd.Flags().StringVar(&ddrPlatform, "platform", "lan966x", "Platform family")
	ddrTestCmd.Flags().BoolVar(&ddrCached, "cached", false, "Run the tests with the data cache enabled")

	ddrCmd.AddCommand(ddrGetCmd, ddrSetCmd, ddrDefaultCmd, ddrFieldsCmd, ddrInitCmd, ddrTestCmd)
	rootCmd.AddCommand(ddrCmd)
}

func ddrTemplateFlag() (*ddr.Template, error) {
	p, err := platformFlag(ddrPlatform)
	if err != nil {
		return nil, err
	}
	if p.DDR == nil {
		return nil, fmt.Errorf("%s: %w", p.Name, session.ErrNotSupported)
	}
	return p.DDR, nil
}

// writeDDRText writes c as YAML to --out, or stdout
func writeDDRText(t *ddr.Template, c *ddr.Config) error {
	text, err := ddr.MarshalText(t, c)
	if err != nil {
		return err
	}
	if ddrOut == "" {
		_, err = os.Stdout.Write(text)
		return err
	}
	if err := os.WriteFile(ddrOut, text, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", ddrOut)
	return nil
}
