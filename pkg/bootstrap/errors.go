// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"encoding/hex"
	"fmt"
)

type constError string

func (err constError) Error() string {
	return string(err)
}

// ErrTransportClosed is returned when the transport reaches EOF while a
// response is outstanding
const ErrTransportClosed = constError("transport closed while awaiting response")

// FrameDecodeError reports a malformed header, a payload length mismatch or a
// CRC mismatch. It is always fatal to the current exchange.
type FrameDecodeError struct {
	Reason string
	Frame  []byte
}

func (e *FrameDecodeError) Error() string {
	return "frame decode: " + e.Reason
}

// RemoteRejected is returned when the device answers with a NACK
type RemoteRejected struct {
	Command byte   // request command that was rejected
	Code    uint32 // NACK argument (device return code)
	Message string
}

func (e *RemoteRejected) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("device rejected '%c': %s (rc %d)", e.Command, e.Message, int32(e.Code))
	}
	return fmt.Sprintf("device rejected '%c': %s", e.Command, e.Message)
}

// UnexpectedCommand is returned when the response is neither ACK nor NACK,
// or an ACK carries the wrong field. The stream should be treated as
// desynchronized.
type UnexpectedCommand struct {
	Request byte
	Got     byte
	Detail  string
}

func (e *UnexpectedCommand) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unexpected response '%c' to '%c': %s", e.Got, e.Request, e.Detail)
	}
	return fmt.Sprintf("unexpected response '%c' to '%c'", e.Got, e.Request)
}

// CapacityExceeded is returned before any request is built when an OTP
// access would run past the end of OTP memory
type CapacityExceeded struct {
	Field    string
	Offset   int
	Size     int
	Capacity int
}

func (e *CapacityExceeded) Error() string {
	return fmt.Sprintf("OTP field %s at offset %d size %d exceeds capacity %d",
		e.Field, e.Offset, e.Size, e.Capacity)
}

// IntegrityMismatch is returned when the device digest of uploaded data does
// not match the host digest
type IntegrityMismatch struct {
	Host      []byte
	Device    []byte
	HostLen   int
	DeviceLen int
}

func (e *IntegrityMismatch) Error() string {
	if e.HostLen != e.DeviceLen {
		return fmt.Sprintf("integrity mismatch: device received %d bytes, host sent %d", e.DeviceLen, e.HostLen)
	}
	return fmt.Sprintf("integrity mismatch: device digest %s, host digest %s",
		hex.EncodeToString(e.Device), hex.EncodeToString(e.Host))
}

// DesyncRecovered is a diagnostic, not an error: the resynchronizer dropped
// leading noise before finding a frame
type DesyncRecovered struct {
	Skipped int
}

func (d DesyncRecovered) String() string {
	return fmt.Sprintf("skipped %d invalid bytes", d.Skipped)
}
