// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/internal/config"
)

var (
	// Serial or TCP connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
	traceFile  string
	showStats  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fwu",
	Short: "Boot ROM bootstrap protocol host",
	Long: `fwu - Firmware update host for the LAN966x/LAN969x boot ROM bootstrap protocol.

Identifies the device, uploads the update applet and images, programs OTP,
configures DDR and unlocks secure JTAG over a serial link.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  TCP:       --port host:port
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the FWU_PASSWORD
environment variable, or prompted interactively if not set. Settings not given
on the command line are read from the config file and FWU_* environment
variables.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		applyConfig(cmd)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		glog.Flush()
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device or host:port")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "Record all frames to a CBOR trace file")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "Print exchange statistics on exit")

	// glog flags (-v, -logtostderr, -log_dir, ...)
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	flag.Set("logtostderr", "true")
}

// applyConfig fills connection settings not given as flags from the config
func applyConfig(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("port") && cfg.Connection.Port != "" {
		portName = cfg.Connection.Port
	}
	if !flags.Changed("baud") && cfg.Connection.Baud != 0 {
		baudRate = cfg.Connection.Baud
	}
	if !flags.Changed("url") && cfg.Connection.URL != "" {
		wsURL = cfg.Connection.URL
	}
	if !flags.Changed("username") && cfg.Connection.Username != "" {
		wsUsername = cfg.Connection.Username
	}
	if !flags.Changed("no-ssl-verify") && cfg.Connection.NoSSLVerify {
		wsNoSSLVerify = true
	}
	if !flags.Changed("trace") && cfg.Trace.File != "" {
		traceFile = cfg.Trace.File
	}
}

// Execute runs the root command. Ctrl+C cancels the running operation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
