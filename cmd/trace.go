// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect frame traces recorded with --trace",
}

var traceDumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print a recorded trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return dumpTrace(os.Stdout, f)
	},
}

func init() {
	traceCmd.AddCommand(traceDumpCmd)
	rootCmd.AddCommand(traceCmd)
}

// dumpTrace prints one line per recorded frame
func dumpTrace(w io.Writer, r io.Reader) error {
	count := 0
	err := bootstrap.ReadTrace(r, func(rec bootstrap.TraceRecord) error {
		count++
		frame, err := rec.Frame()
		if err != nil {
			ts := rec.Timestamp().Format("15:04:05.000")
			_, err = fmt.Fprintf(w, "%s [%s] [ERROR] %v (%q)\n", rec.Direction, ts, err, rec.Raw)
			return err
		}
		_, err = fmt.Fprintf(w, "%s %s\n", rec.Direction, bootstrap.FormatFrame(frame))
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d frames\n", count)
	return nil
}
