// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
	"github.com/Thermoquad/fwu/pkg/session"
)

var probeTimeout time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection with a single VERS request",
	Long: `Send one VERS request and wait for any valid answer until timeout.

Exit codes:
  0 - Device answered before timeout
  1 - Timeout reached without a valid answer
  2 - Connection error

Useful in scripts waiting for a board to enter its boot ROM.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "Time to wait for an answer")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("FWU - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s\n\n", probeTimeout)

	engine := bootstrap.NewEngine(conn)
	s := session.New(engine, session.WithProbe(1, probeTimeout))

	info, err := s.Probe(cmd.Context())
	var rej *bootstrap.RemoteRejected
	var uc *bootstrap.UnexpectedCommand
	switch {
	case err == nil:
		fmt.Printf("SUCCESS: %s\n", info)
		if skipped := engine.Skipped(); skipped > 0 {
			fmt.Printf("  (skipped %d noise bytes)\n", skipped)
		}
		os.Exit(0)

	case errors.As(err, &rej), errors.As(err, &uc):
		// Something valid answered, if not as expected
		fmt.Printf("SUCCESS: device answered: %v\n", err)
		os.Exit(0)

	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid answer within %s\n", probeTimeout)
		os.Exit(1)

	default:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}

	return nil
}
