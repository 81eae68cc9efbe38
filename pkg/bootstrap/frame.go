// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"fmt"
	"time"
)

// Encoding selects how a frame payload is represented on the wire
type Encoding int

const (
	EncodingHex Encoding = iota
	EncodingBinary
)

// String implements fmt.Stringer and pflag.Value
func (e Encoding) String() string {
	switch e {
	case EncodingHex:
		return "hex"
	case EncodingBinary:
		return "binary"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Set implements pflag.Value
func (e *Encoding) Set(s string) error {
	switch s {
	case "hex", "ascii":
		*e = EncodingHex
	case "binary", "bin", "raw":
		*e = EncodingBinary
	default:
		return fmt.Errorf("invalid encoding %q (want hex or binary)", s)
	}
	return nil
}

// Type implements pflag.Value
func (e *Encoding) Type() string {
	return "encoding"
}

// delimiter returns the wire delimiter byte for the encoding
func (e Encoding) delimiter() byte {
	if e == EncodingBinary {
		return DelimBinary
	}
	return DelimHex
}

// wireLength returns the number of wire bytes used by n payload bytes
func (e Encoding) wireLength(n int) int {
	if e == EncodingBinary {
		return n
	}
	return 2 * n
}

// Request is an outgoing frame before encoding
type Request struct {
	Command  byte
	Arg      uint32
	Payload  []byte
	Encoding Encoding
}

// Frame represents a decoded bootstrap protocol frame
type Frame struct {
	command   byte
	arg       uint32
	length    uint32
	encoding  Encoding
	payload   []byte
	checksum  uint32
	timestamp time.Time
}

// NewFrame creates a frame from its fields, computing the checksum over the
// lowercase wire form
func NewFrame(command byte, arg uint32, payload []byte, enc Encoding) *Frame {
	wire := Encode(command, arg, payload, enc)
	return &Frame{
		command:   command,
		arg:       arg,
		length:    uint32(len(payload)),
		encoding:  enc,
		payload:   payload,
		checksum:  CalculateCRC(wire[1 : len(wire)-ChecksumLength]),
		timestamp: time.Now(),
	}
}

// Command returns the single-character command code
func (f *Frame) Command() byte {
	return f.command
}

// Arg returns the 32-bit command argument
func (f *Frame) Arg() uint32 {
	return f.arg
}

// Length returns the declared (decoded) payload length
func (f *Frame) Length() uint32 {
	return f.length
}

// Encoding returns the payload wire encoding
func (f *Frame) Encoding() Encoding {
	return f.encoding
}

// Payload returns the decoded payload bytes
func (f *Frame) Payload() []byte {
	return f.payload
}

// Checksum returns the frame CRC32C as received
func (f *Frame) Checksum() uint32 {
	return f.checksum
}

// Timestamp returns the frame's decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Request returns the frame fields as a Request
func (f *Frame) Request() Request {
	return Request{Command: f.command, Arg: f.arg, Payload: f.payload, Encoding: f.encoding}
}
