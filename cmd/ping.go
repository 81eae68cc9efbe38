// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
	"github.com/Thermoquad/fwu/pkg/session"
)

var (
	pingTimeout time.Duration
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure link round trips with repeated VERS requests",
	Long: `Send VERS requests and report the round-trip time of each answer.

A timed out request leaves the stream desynchronized; the next request
rescans for a frame start, so later pings still succeed if the device is
alive. This verifies:
  - the transport is open in both directions
  - the baud rate matches
  - the device is in a stage answering VERS

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 2*time.Second, "Timeout for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("FWU - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	engine := bootstrap.NewEngine(conn)
	s := session.New(engine, session.WithProbe(1, pingTimeout))

	successCount := 0
	var total time.Duration
	for i := 1; i <= pingCount && ctx.Err() == nil; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		start := time.Now()
		info, err := s.Probe(ctx)
		rtt := time.Since(start)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
		} else {
			fmt.Printf("%s, rtt=%v\n", info, rtt.Round(time.Millisecond))
			successCount++
			total += rtt
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	failCount := pingCount - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d answers received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)
	if successCount > 0 {
		fmt.Printf("average rtt %v, %d noise bytes skipped\n",
			(total / time.Duration(successCount)).Round(time.Millisecond), engine.Skipped())
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
