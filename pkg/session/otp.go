// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
	"github.com/Thermoquad/fwu/pkg/otp"
)

// OTPWrite describes a pending OTP programming operation
type OTPWrite struct {
	Field  otp.Field
	Data   []byte // nil for a random fill
	Random bool
}

// Confirmer approves an irreversible OTP write. A nil Confirmer never
// approves.
type Confirmer func(OTPWrite) bool

// OTPCatalog returns the OTP field table of the identified platform
func (s *Session) OTPCatalog() *otp.Catalog {
	if s.platform != nil && s.platform.OTP != nil {
		return s.platform.OTP
	}
	return otp.Default
}

// ProgramOTP writes data to field, or device-generated random data when data
// is empty. The request is built and bounds-checked before confirm is asked.
func (s *Session) ProgramOTP(ctx context.Context, field otp.Field, data []byte, confirm Confirmer) error {
	if err := s.require("program OTP", StageBL1, StageUpdateApplet); err != nil {
		return err
	}

	cat := s.OTPCatalog()
	w := OTPWrite{Field: field, Data: data, Random: len(data) == 0}
	var req bootstrap.Request
	var err error
	if w.Random {
		req, err = cat.RandomFill(field)
	} else {
		req, err = cat.SetData(field, data)
	}
	if err != nil {
		return err
	}

	if confirm == nil || !confirm(w) {
		return fmt.Errorf("%s: %w", field.Name, ErrNotConfirmed)
	}

	if w.Random {
		glog.Infof("programming %s (%d bytes) with random data", field.Name, field.Size)
	} else {
		glog.Infof("programming %s (%d bytes)", field.Name, field.Size)
		glog.V(2).Infof("%s = %x", field.Name, data)
	}
	resp, err := s.engine.CompleteRequest(ctx, req)
	if err == nil {
		err = bootstrap.ExpectArg(req, resp, req.Arg)
	}
	if err != nil {
		return fmt.Errorf("program OTP %s: %w", field.Name, err)
	}
	return nil
}

// ReadOTP reads the raw bytes of field
func (s *Session) ReadOTP(ctx context.Context, field otp.Field) ([]byte, error) {
	if err := s.require("read OTP", StageUpdateApplet); err != nil {
		return nil, err
	}
	req, err := s.OTPCatalog().Read(field)
	if err != nil {
		return nil, err
	}
	resp, err := s.engine.CompleteRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("read OTP %s: %w", field.Name, err)
	}
	if len(resp.Payload()) != field.Size {
		return nil, &bootstrap.UnexpectedCommand{
			Request: req.Command,
			Got:     resp.Command(),
			Detail:  fmt.Sprintf("%d bytes for %s, expected %d", len(resp.Payload()), field.Name, field.Size),
		}
	}
	glog.V(2).Infof("%s = %x", field.Name, resp.Payload())
	return resp.Payload(), nil
}

// CommitOTP commits emulated OTP data
func (s *Session) CommitOTP(ctx context.Context) error {
	if err := s.require("commit OTP", StageBL1, StageUpdateApplet); err != nil {
		return err
	}
	if _, err := s.engine.CompleteRequest(ctx, otp.Commit()); err != nil {
		return fmt.Errorf("commit OTP: %w", err)
	}
	return nil
}

// OTPRegions programs the OTP write protection regions
func (s *Session) OTPRegions(ctx context.Context) error {
	if err := s.require("OTP regions", StageBL1, StageUpdateApplet); err != nil {
		return err
	}
	if _, err := s.engine.CompleteRequest(ctx, otp.Regions()); err != nil {
		return fmt.Errorf("OTP regions: %w", err)
	}
	return nil
}
