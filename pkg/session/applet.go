// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
)

// UploadEncoding returns the DATA encoding to use in the current stage. The
// update applet always accepts binary; the boot ROM only if the platform
// says so.
func (s *Session) UploadEncoding() bootstrap.Encoding {
	if s.stage.InApplet() || (s.platform != nil && s.platform.BinaryUpload) {
		return bootstrap.EncodingBinary
	}
	return bootstrap.EncodingHex
}

// Upload transfers data into the device download buffer
func (s *Session) Upload(ctx context.Context, data []byte, opts bootstrap.TransferOptions) (*bootstrap.Outcome, error) {
	if err := s.require("upload", StageBL1, StageUpdateApplet); err != nil {
		return nil, err
	}
	if (opts.VerifyHash || opts.Decompress) && !s.stage.InApplet() {
		// DATA_HASH and UNZIP are update applet commands
		return nil, &WrongStageError{Op: "upload verify/decompress", Stage: s.stage, Want: []Stage{StageUpdateApplet}}
	}
	if opts.Encoding == bootstrap.EncodingBinary && s.UploadEncoding() != bootstrap.EncodingBinary {
		return nil, ErrEncodingNotAllowed
	}
	return bootstrap.Download(ctx, s.engine, data, opts)
}

// LoadApplet uploads the update applet, authenticates it and waits for it to
// answer a VERS probe
func (s *Session) LoadApplet(ctx context.Context, image []byte, progress func(bootstrap.Progress)) (*PlatformInfo, error) {
	if err := s.require("load applet", StageBL1); err != nil {
		return nil, err
	}

	opts := bootstrap.TransferOptions{
		Encoding: s.UploadEncoding(),
		Progress: progress,
	}
	if _, err := bootstrap.Download(ctx, s.engine, image, opts); err != nil {
		return nil, fmt.Errorf("load applet: %w", err)
	}
	if _, err := s.request(ctx, bootstrap.CmdAuth, 0, nil); err != nil {
		return nil, fmt.Errorf("load applet: authenticate: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.probeAttempts; attempt++ {
		info, err := s.Probe(ctx)
		if err == nil {
			if info.Platform == nil {
				info.Platform = s.platform
			}
			s.info = info
			glog.V(1).Infof("applet announced itself after %d probe(s): %s", attempt, info)
			s.setStage(StageUpdateApplet)
			return info, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("load applet: %w", ctx.Err())
		}
		glog.Warningf("applet probe %d/%d: %v", attempt, s.probeAttempts, err)
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d probes: %w", ErrAppletNoResponse, s.probeAttempts, lastErr)
}

// DataHash returns the device SHA-256 of the download buffer and its length
func (s *Session) DataHash(ctx context.Context) ([]byte, uint32, error) {
	if err := s.require("data hash", StageUpdateApplet); err != nil {
		return nil, 0, err
	}
	resp, err := s.request(ctx, bootstrap.CmdDataHash, 0, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("data hash: %w", err)
	}
	return resp.Payload(), resp.Arg(), nil
}

// Decompress asks the applet to gunzip the download buffer. It returns the
// resulting length and the device status text.
func (s *Session) Decompress(ctx context.Context) (uint32, string, error) {
	if err := s.require("decompress", StageUpdateApplet); err != nil {
		return 0, "", err
	}
	resp, err := s.request(ctx, bootstrap.CmdUnzip, 0, nil)
	if err != nil {
		return 0, "", fmt.Errorf("decompress: %w", err)
	}
	return resp.Arg(), string(resp.Payload()), nil
}

// WriteFIP writes the download buffer as a FIP to dev, optionally reading
// it back for verification
func (s *Session) WriteFIP(ctx context.Context, dev uint32, verify bool) error {
	if err := s.require("write FIP", StageUpdateApplet); err != nil {
		return err
	}
	if _, err := s.request(ctx, bootstrap.CmdWriteFIP, deviceArg(dev, verify), nil); err != nil {
		return fmt.Errorf("write FIP: %w", err)
	}
	return nil
}

// WriteImage writes the download buffer as a raw flash image to dev
func (s *Session) WriteImage(ctx context.Context, dev uint32, verify bool) error {
	if err := s.require("write image", StageUpdateApplet); err != nil {
		return err
	}
	if _, err := s.request(ctx, bootstrap.CmdWriteImage, deviceArg(dev, verify), nil); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

// Bind re-encrypts the FIP in the download buffer with the device key
func (s *Session) Bind(ctx context.Context) error {
	if err := s.require("bind", StageUpdateApplet); err != nil {
		return err
	}
	if _, err := s.request(ctx, bootstrap.CmdBind, 0, nil); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	return nil
}

func deviceArg(dev uint32, verify bool) uint32 {
	arg := dev &^ bootstrap.WriteVerifyFlag
	if verify {
		arg |= bootstrap.WriteVerifyFlag
	}
	return arg
}

// ParseDevice maps a boot source name to its device number
func ParseDevice(name string) (uint32, error) {
	switch name {
	case "emmc":
		return bootstrap.DeviceEMMC, nil
	case "qspi", "nor":
		return bootstrap.DeviceQSPI, nil
	case "sd", "sdmmc":
		return bootstrap.DeviceSDMMC, nil
	default:
		return 0, fmt.Errorf("unknown boot device %q (want emmc, qspi or sdmmc)", name)
	}
}
