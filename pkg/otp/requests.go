// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otp

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
)

type constError string

func (err constError) Error() string {
	return string(err)
}

const (
	ErrNotSettable     = constError("OTP field cannot be set")
	ErrNotRandomizable = constError("OTP field cannot be randomized")
)

// MaxReadSize is the largest OTP read the update applet accepts
const MaxReadSize = 255

// DisplayLimit is the largest value shown in full by FormatValue
const DisplayLimit = 32

// checkBounds rejects a field that runs past the end of OTP memory
func (c *Catalog) checkBounds(f Field) error {
	if f.Offset < 0 || f.Size <= 0 || f.End() > c.capacity {
		return &bootstrap.CapacityExceeded{
			Field:    f.Name,
			Offset:   f.Offset,
			Size:     f.Size,
			Capacity: c.capacity,
		}
	}
	return nil
}

// RandomFill builds the request programming f with device-generated random
// data. Programming OTP is irreversible; callers must confirm first.
func (c *Catalog) RandomFill(f Field) (bootstrap.Request, error) {
	if err := c.checkBounds(f); err != nil {
		return bootstrap.Request{}, err
	}
	if f.Flags&Randomizable == 0 {
		return bootstrap.Request{}, fmt.Errorf("%s: %w", f.Name, ErrNotRandomizable)
	}
	return bootstrap.Request{
		Command: bootstrap.CmdOTPRandom,
		Arg:     uint32(f.Offset),
		Payload: binary.BigEndian.AppendUint32(nil, uint32(f.Size)),
	}, nil
}

// SetData builds the request programming f with data, which must be exactly
// f.Size bytes. Programming OTP is irreversible; callers must confirm first.
func (c *Catalog) SetData(f Field, data []byte) (bootstrap.Request, error) {
	if err := c.checkBounds(f); err != nil {
		return bootstrap.Request{}, err
	}
	if f.Flags&Settable == 0 {
		return bootstrap.Request{}, fmt.Errorf("%s: %w", f.Name, ErrNotSettable)
	}
	if len(data) != f.Size {
		return bootstrap.Request{}, fmt.Errorf("%s: value is %d bytes, field is %d bytes", f.Name, len(data), f.Size)
	}
	return bootstrap.Request{
		Command: bootstrap.CmdOTPData,
		Arg:     uint32(f.Offset),
		Payload: append([]byte(nil), data...),
	}, nil
}

// Read builds the request reading the raw bytes of f
func (c *Catalog) Read(f Field) (bootstrap.Request, error) {
	if err := c.checkBounds(f); err != nil {
		return bootstrap.Request{}, err
	}
	if f.Size > MaxReadSize {
		return bootstrap.Request{}, fmt.Errorf("%s: read of %d bytes exceeds %d", f.Name, f.Size, MaxReadSize)
	}
	return bootstrap.Request{
		Command: bootstrap.CmdOTPRead,
		Arg:     uint32(f.Offset),
		Payload: binary.BigEndian.AppendUint32(nil, uint32(f.Size)),
	}, nil
}

// Commit builds the request committing emulated OTP data to fuses
func Commit() bootstrap.Request {
	return bootstrap.Request{Command: bootstrap.CmdOTPCommit}
}

// Regions builds the request programming the OTP write protection regions
func Regions() bootstrap.Request {
	return bootstrap.Request{Command: bootstrap.CmdOTPRegions}
}

// ParseHexValue parses a hex value for f. Spaces, colons and a leading 0x
// are ignored.
func ParseHexValue(f Field, s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid hex value: %w", f.Name, err)
	}
	if len(data) != f.Size {
		return nil, fmt.Errorf("%s: value is %d bytes, field is %d bytes", f.Name, len(data), f.Size)
	}
	return data, nil
}

// FormatValue renders a field value for a bounded-width display. Values of
// DisplayLimit bytes or more are shortened; the full value stays in the
// protocol log and trace.
func FormatValue(value []byte) string {
	if len(value) >= DisplayLimit {
		return fmt.Sprintf("%s... (%d bytes)", hex.EncodeToString(value[:8]), len(value))
	}
	return hex.EncodeToString(value)
}
