// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session drives a device through its boot stages: identification,
// the boot ROM (BL1), the update applet and the final boot continuation.
//
// A Session owns one bootstrap.Engine and is not safe for concurrent use.
// Every operation checks the current stage before touching the wire and a
// failed operation leaves the stage unchanged.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang/glog"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
)

// Default probe policy
const (
	DefaultProbeAttempts = 5
	DefaultProbeTimeout  = 2 * time.Second
)

// Session tracks the boot stage of one connected device
type Session struct {
	engine   *bootstrap.Engine
	stage    Stage
	info     *PlatformInfo
	platform *Platform

	probeAttempts int
	probeTimeout  time.Duration
}

// Option configures a Session
type Option func(*Session)

// WithProbe sets the number of VERS probes sent while waiting for the
// update applet, and the time each probe waits for an answer
func WithProbe(attempts int, timeout time.Duration) Option {
	return func(s *Session) {
		if attempts > 0 {
			s.probeAttempts = attempts
		}
		if timeout > 0 {
			s.probeTimeout = timeout
		}
	}
}

// WithPlatform fixes the platform instead of matching it from the identity
func WithPlatform(p *Platform) Option {
	return func(s *Session) {
		s.platform = p
	}
}

// New creates a disconnected session on top of engine
func New(engine *bootstrap.Engine, opts ...Option) *Session {
	s := &Session{
		engine:        engine,
		stage:         StageDisconnected,
		probeAttempts: DefaultProbeAttempts,
		probeTimeout:  DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stage returns the last confirmed stage
func (s *Session) Stage() Stage {
	return s.stage
}

// Info returns the last identity read from the device, or nil
func (s *Session) Info() *PlatformInfo {
	return s.info
}

// Platform returns the matched platform, or nil before identification
func (s *Session) Platform() *Platform {
	return s.platform
}

// Engine returns the underlying request/response engine
func (s *Session) Engine() *bootstrap.Engine {
	return s.engine
}

func (s *Session) setStage(st Stage) {
	if st != s.stage {
		glog.V(1).Infof("stage %s -> %s", s.stage, st)
		s.stage = st
	}
}

// require returns a *WrongStageError unless the session is in one of want
func (s *Session) require(op string, want ...Stage) error {
	if slices.Contains(want, s.stage) {
		return nil
	}
	return &WrongStageError{Op: op, Stage: s.stage, Want: want}
}

func (s *Session) request(ctx context.Context, cmd byte, arg uint32, payload []byte) (*bootstrap.Frame, error) {
	return s.engine.CompleteRequest(ctx, bootstrap.Request{Command: cmd, Arg: arg, Payload: payload})
}

// Identify sends VERS and selects the platform from the answer. A device
// answering with the legacy ACK code switches the engine to legacy codes
// and is asked once more.
func (s *Session) Identify(ctx context.Context) (*PlatformInfo, error) {
	if s.stage.Terminal() {
		return nil, &WrongStageError{Op: "identify", Stage: s.stage,
			Want: []Stage{StageDisconnected, StageBL1, StageUpdateApplet, StageDDRConfig}}
	}

	prev := s.stage
	s.setStage(StageIdentifying)

	info, err := s.version(ctx)
	var uc *bootstrap.UnexpectedCommand
	if errors.As(err, &uc) && uc.Got == bootstrap.CmdLegacyAck && s.engine.ResponseCodes() != bootstrap.LegacyResponseCodes {
		glog.Warningf("device acknowledged with '%c', retrying with legacy response codes", uc.Got)
		codes := s.engine.ResponseCodes()
		s.engine.SetResponseCodes(bootstrap.LegacyResponseCodes)
		if info, err = s.version(ctx); err != nil {
			s.engine.SetResponseCodes(codes)
		}
	}
	if err != nil {
		s.setStage(prev)
		return nil, fmt.Errorf("identify: %w", err)
	}

	if s.platform != nil {
		info.Platform = s.platform
	}
	s.info = info
	if info.Platform == nil {
		s.setStage(StageUnsupported)
		return info, fmt.Errorf("%w: chip 0x%08x, version %q", ErrUnsupportedDevice, info.ChipID, info.Version)
	}

	s.platform = info.Platform
	if s.engine.ResponseCodes() != s.platform.Codes {
		s.engine.SetResponseCodes(s.platform.Codes)
	}
	glog.V(1).Infof("identified %s", info)
	s.setStage(info.Stage())
	return info, nil
}

// version performs one VERS exchange
func (s *Session) version(ctx context.Context) (*PlatformInfo, error) {
	resp, err := s.request(ctx, bootstrap.CmdVersion, 0, nil)
	if err != nil {
		return nil, err
	}
	return parseIdentity(resp), nil
}

// Probe sends a single VERS bounded by the probe timeout. It is used to
// resynchronize after a failure and does not change the stage.
func (s *Session) Probe(ctx context.Context) (*PlatformInfo, error) {
	pctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	info, err := s.version(pctx)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	return info, nil
}

// Reset asks the update applet to return to the boot ROM. If the request
// fails, a VERS probe decides whether the reset took effect anyway.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.require("reset", StageUpdateApplet, StageDDRConfig); err != nil {
		return err
	}

	_, err := s.request(ctx, bootstrap.CmdReset, 0, nil)
	if err == nil {
		s.info = nil
		s.setStage(StageBL1)
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}

	glog.Warningf("reset: %v, probing device", err)
	info, perr := s.Probe(ctx)
	if perr == nil && !info.Applet {
		glog.Infof("reset: device answered from boot ROM")
		s.info = info
		s.setStage(StageBL1)
		return nil
	}
	if perr == nil {
		perr = errors.New("device still in update applet")
	}
	return fmt.Errorf("%w: %w (probe: %w)", ErrResetFailed, err, perr)
}

// ContinueBoot lets the boot ROM continue the normal boot. Any answer ends
// the session; a NACK is reported as a failed continuation.
func (s *Session) ContinueBoot(ctx context.Context) error {
	if err := s.require("continue", StageBL1); err != nil {
		return err
	}

	_, err := s.request(ctx, bootstrap.CmdContinue, 0, nil)
	var rej *bootstrap.RemoteRejected
	switch {
	case err == nil:
		s.setStage(StageBooting)
		return nil
	case errors.As(err, &rej):
		s.setStage(StageBooting)
		return fmt.Errorf("%w: %w", ErrContinueFailed, err)
	default:
		return fmt.Errorf("continue: %w", err)
	}
}

// Strap overrides the hardware strapping for the next boot
func (s *Session) Strap(ctx context.Context, value uint32) error {
	if err := s.require("strap", StageBL1); err != nil {
		return err
	}
	if _, err := s.request(ctx, bootstrap.CmdStrap, value, nil); err != nil {
		return fmt.Errorf("strap: %w", err)
	}
	return nil
}

// TraceLevel sets the boot ROM trace level
func (s *Session) TraceLevel(ctx context.Context, level uint32) error {
	if err := s.require("trace level", StageBL1); err != nil {
		return err
	}
	if _, err := s.request(ctx, bootstrap.CmdTraceLevel, level, nil); err != nil {
		return fmt.Errorf("trace level: %w", err)
	}
	return nil
}
