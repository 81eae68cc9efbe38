// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
	"github.com/Thermoquad/fwu/pkg/session"
)

// device bundles an identified session with the resources behind it
type device struct {
	conn    Connection
	engine  *bootstrap.Engine
	session *session.Session
	trace   *os.File
	rec     *bootstrap.Recorder
}

// openDevice connects, wires tracing and statistics into the engine and
// identifies the device
func openDevice(ctx context.Context) (*device, error) {
	conn, info, err := OpenConnection()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Connection: %s\n", info)

	d := &device{conn: conn}
	opts := []bootstrap.EngineOption{bootstrap.WithStatistics(bootstrap.NewStatistics())}
	if traceFile != "" {
		f, err := os.Create(traceFile)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create trace file: %w", err)
		}
		d.trace = f
		d.rec = bootstrap.NewRecorder(f)
		opts = append(opts, bootstrap.WithTracer(d.rec))
	}
	d.engine = bootstrap.NewEngine(conn, opts...)

	var sopts []session.Option
	if cfg != nil {
		sopts = append(sopts, session.WithProbe(cfg.Probe.Attempts, cfg.Probe.Timeout))
	}
	d.session = session.New(d.engine, sopts...)

	id, err := d.session.Identify(ctx)
	if err != nil {
		d.Close()
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Device: %s\n", id)
	return d, nil
}

// Close prints statistics if requested and releases the connection
func (d *device) Close() {
	if showStats {
		fmt.Fprintln(os.Stderr, d.engine.Statistics())
	}
	if d.rec != nil {
		if err := d.rec.Err(); err != nil {
			glog.Warningf("trace: %v", err)
		}
	}
	if d.trace != nil {
		d.trace.Close()
	}
	d.conn.Close()
}

// withDevice runs fn against a freshly identified device
func withDevice(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session) error) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, d.session)
}
