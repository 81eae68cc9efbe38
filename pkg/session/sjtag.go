// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
	"github.com/Thermoquad/fwu/pkg/sjtag"
)

// SJTAGChallenge reads the secure JTAG challenge
func (s *Session) SJTAGChallenge(ctx context.Context) (sjtag.Challenge, error) {
	if err := s.require("SJTAG challenge", StageBL1); err != nil {
		return sjtag.Challenge{}, err
	}
	resp, err := s.request(ctx, bootstrap.CmdSJTAGChallenge, 0, nil)
	if err != nil {
		return sjtag.Challenge{}, fmt.Errorf("SJTAG challenge: %w", err)
	}
	c, err := sjtag.ChallengeFromPayload(resp.Payload())
	if err != nil {
		return c, &bootstrap.UnexpectedCommand{Request: bootstrap.CmdSJTAGChallenge, Got: resp.Command(), Detail: err.Error()}
	}
	return c, nil
}

// SJTAGUnlock reads a challenge and answers it with the response derived
// from key. A NACK means the device refused the unlock.
func (s *Session) SJTAGUnlock(ctx context.Context, key sjtag.Key) error {
	c, err := s.SJTAGChallenge(ctx)
	if err != nil {
		return err
	}
	glog.V(1).Infof("SJTAG challenge %x, %s", c, key)

	resp := sjtag.DeriveResponse(c, key)
	if _, err := s.request(ctx, bootstrap.CmdSJTAGResponse, 0, resp[:]); err != nil {
		return fmt.Errorf("SJTAG unlock: %w", err)
	}
	return nil
}
