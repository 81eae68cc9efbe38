// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display bootstrap frames in human-readable format",
	Long: `Continuously resynchronize and display bootstrap frames as they arrive,
without sending anything.

Noise between frames is skipped and reported. With --trace, every frame is
also recorded to the trace file.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var rec *bootstrap.Recorder
	if traceFile != "" {
		f, err := os.Create(traceFile)
		if err != nil {
			return err
		}
		defer f.Close()
		rec = bootstrap.NewRecorder(f)
	}

	fmt.Printf("FWU - Frame Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return monitorStream(ctx, conn, os.Stdout, rec)
}

// Consecutive read failures tolerated before the monitor gives up, and the
// pause after each one
const maxReadErrors = 10

var readErrorBackoff = pollInterval

// monitorStream prints every frame read from r until EOF, cancellation or
// maxReadErrors consecutive read failures
func monitorStream(ctx context.Context, r io.Reader, w io.Writer, rec *bootstrap.Recorder) error {
	resync := bootstrap.NewResynchronizer()
	buf := make([]byte, 1024)
	failures := 0

	for ctx.Err() == nil {
		n, err := r.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Printf("Connection closed")
				return nil
			}
			failures++
			log.Printf("Read error (%d/%d): %v", failures, maxReadErrors, err)
			if failures >= maxReadErrors {
				return fmt.Errorf("monitor: %d consecutive read errors: %w", failures, err)
			}
			select {
			case <-ctx.Done():
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		failures = 0

		frames := resync.Transform(buf[:n])
		if d, ok := resync.TakeDesync(); ok {
			fmt.Fprintf(w, "[SYNC] %s\n", d)
		}
		for _, raw := range frames {
			if rec != nil {
				rec.TraceFrame(bootstrap.DirectionRx, raw)
			}
			frame, err := bootstrap.Decode(raw)
			if err != nil {
				fmt.Fprintf(w, "[ERROR] %v\n", err)
				continue
			}
			fmt.Fprintln(w, bootstrap.FormatFrame(frame))
		}
	}
	return nil
}
