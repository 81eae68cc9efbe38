// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"fmt"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
	"github.com/Thermoquad/fwu/pkg/ddr"
)

// DDRTemplate returns the DDR template of the identified platform
func (s *Session) DDRTemplate() (*ddr.Template, error) {
	if s.platform == nil || s.platform.DDR == nil {
		return nil, fmt.Errorf("DDR configuration: %w", ErrNotSupported)
	}
	return s.platform.DDR, nil
}

// ddrOp checks the stage and template for a DDR operation
func (s *Session) ddrOp(op string) (*ddr.Template, error) {
	if err := s.require(op, StageUpdateApplet, StageDDRConfig); err != nil {
		return nil, err
	}
	return s.DDRTemplate()
}

// DDRGetConfig reads the active DDR configuration from the applet
func (s *Session) DDRGetConfig(ctx context.Context) (*ddr.Config, error) {
	t, err := s.ddrOp("get DDR config")
	if err != nil {
		return nil, err
	}
	resp, err := s.request(ctx, bootstrap.CmdDDRConfigGet, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("get DDR config: %w", err)
	}
	cfg, err := ddr.FromBinary(t, resp.Payload())
	if err != nil {
		return nil, fmt.Errorf("get DDR config: %w", err)
	}
	s.setStage(StageDDRConfig)
	return cfg, nil
}

// DDRSetConfig sends cfg to the applet, which initializes DDR with it
func (s *Session) DDRSetConfig(ctx context.Context, cfg *ddr.Config) error {
	t, err := s.ddrOp("set DDR config")
	if err != nil {
		return err
	}
	blob, err := ddr.ToBinary(t, cfg)
	if err != nil {
		return err
	}
	req := bootstrap.Request{
		Command:  bootstrap.CmdDDRConfigSet,
		Payload:  blob,
		Encoding: s.UploadEncoding(),
	}
	if _, err := s.engine.CompleteRequest(ctx, req); err != nil {
		return fmt.Errorf("set DDR config: %w", err)
	}
	s.setStage(StageDDRConfig)
	return nil
}

// DDRInit initializes DDR with the active configuration
func (s *Session) DDRInit(ctx context.Context) error {
	if _, err := s.ddrOp("DDR init"); err != nil {
		return err
	}
	if _, err := s.request(ctx, bootstrap.CmdDDRInit, 0, nil); err != nil {
		return fmt.Errorf("DDR init: %w", err)
	}
	s.setStage(StageDDRConfig)
	return nil
}

// DDRTest runs the applet memory tests, optionally with the data cache
// enabled. It returns the device status text.
func (s *Session) DDRTest(ctx context.Context, cached bool) (string, error) {
	if _, err := s.ddrOp("DDR test"); err != nil {
		return "", err
	}
	var arg uint32
	if cached {
		arg = 1
	}
	resp, err := s.request(ctx, bootstrap.CmdDDRTest, arg, nil)
	if err != nil {
		return "", fmt.Errorf("DDR test: %w", err)
	}
	s.setStage(StageDDRConfig)
	return string(resp.Payload()), nil
}

// LeaveDDR returns from DDR configuration to the update applet
func (s *Session) LeaveDDR() error {
	if err := s.require("leave DDR", StageDDRConfig); err != nil {
		return err
	}
	s.setStage(StageUpdateApplet)
	return nil
}
