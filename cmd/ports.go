// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		details, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return fmt.Errorf("GetDetailedPortsList: %w", err)
		}
		if len(details) == 0 {
			fmt.Fprintln(os.Stderr, "No serial ports found")
			return nil
		}

		t := newTable("PORT", "USB ID", "SERIAL", "PRODUCT")
		for _, p := range details {
			id := "-"
			if p.IsUSB {
				id = fmt.Sprintf("%s:%s", p.VID, p.PID)
			}
			t.Row(p.Name, id, p.SerialNumber, p.Product)
		}
		fmt.Println(t)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
