// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/pkg/session"
	"github.com/Thermoquad/fwu/pkg/sjtag"
)

var sjtagKeyFile string

var sjtagCmd = &cobra.Command{
	Use:   "sjtag",
	Short: "Secure JTAG challenge/response",
}

var sjtagChallengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Print the secure JTAG challenge",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			c, err := s.SJTAGChallenge(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%x\n", c)
			return nil
		})
	},
}

var sjtagUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock secure JTAG with the shared key",
	Long: `Read the secure JTAG challenge and answer it with SHA-256(challenge || key).

The 32-byte key is read as 64 hex digits from --key-file, the FWU_SJTAG_KEY
environment variable, or an interactive prompt, in that order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := getKey()
		if err != nil {
			return err
		}
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.SJTAGUnlock(ctx, key); err != nil {
				return err
			}
			fmt.Println("Secure JTAG unlocked")
			return nil
		})
	},
}

func init() {
	sjtagUnlockCmd.Flags().StringVar(&sjtagKeyFile, "key-file", "", "File holding the key as hex")

	sjtagCmd.AddCommand(sjtagChallengeCmd, sjtagUnlockCmd)
	rootCmd.AddCommand(sjtagCmd)
}

// getKey retrieves the SJTAG key from a file, the config/environment, or a
// prompt
func getKey() (sjtag.Key, error) {
	if sjtagKeyFile != "" {
		data, err := os.ReadFile(sjtagKeyFile)
		if err != nil {
			return sjtag.Key{}, err
		}
		return sjtag.ParseKey(string(data))
	}
	if cfg != nil && cfg.SJTAGKey != "" {
		return sjtag.ParseKey(cfg.SJTAGKey)
	}
	s, err := readSecret("SJTAG key: ")
	if err != nil {
		return sjtag.Key{}, err
	}
	return sjtag.ParseKey(s)
}
