// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bootstrap implements the host side of the boot ROM bootstrap protocol.
//
// Frames are ASCII framed with a hex or raw binary payload and a CRC32C trailer.
// This package provides frame encoding/decoding, stream resynchronization, the
// single-outstanding request/response engine and chunked uploads.
package bootstrap

// Protocol framing bytes
const (
	StartByte   = '>'
	Separator   = ','
	DelimHex    = '#'
	DelimBinary = '%'
)

// Frame size limits
const (
	HeaderLength     = 21 // SOF + cmd + ',' + 8 arg + ',' + 8 len + delim
	ChecksumLength   = 8
	MaxPayloadLength = 64 * 1024
	DataChunkSize    = 256
)

// Header field offsets (from SOF)
const (
	offCommand = 1
	offSep1    = 2
	offArg     = 3
	offSep2    = 11
	offLength  = 12
	offDelim   = 20
)

// Request commands
const (
	CmdVersion        = 'V'
	CmdSend           = 'S'
	CmdData           = 'D'
	CmdAuth           = 'U'
	CmdStrap          = 'O'
	CmdOTPData        = 'P'
	CmdOTPRandom      = 'R'
	CmdOTPCommit      = 'M'
	CmdOTPRegions     = 'G'
	CmdContinue       = 'C' // BL1
	CmdSJTAGChallenge = 'Q'
	CmdSJTAGResponse  = 'A'
	CmdTraceLevel     = 'T' // BL1
	CmdUnzip          = 'Z'
	CmdWriteFIP       = 'W'
	CmdWriteImage     = 'I'
	CmdBind           = 'B'
	CmdOTPRead        = 'L'
	CmdReset          = 'e'
	CmdDataHash       = 'H'
	CmdDDRConfigSet   = 'C' // update applet
	CmdDDRConfigGet   = 'c'
	CmdDDRInit        = 'd'
	CmdDDRTest        = 'T' // update applet
)

// Response commands
const (
	CmdAck       = 'a'
	CmdNack      = 'n'
	CmdLegacyAck = 'A'
)

// WriteFIP verify flag, or'ed into the device argument
const WriteVerifyFlag = 0x80

// Boot source devices for WriteFIP/WriteImage
const (
	DeviceEMMC  = 0
	DeviceQSPI  = 1
	DeviceSDMMC = 2
)
