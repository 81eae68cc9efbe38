// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"encoding/hex"
	"fmt"
)

// Payloads longer than this are shortened in formatted output
const maxFormattedPayload = 32

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s ('%c') arg=0x%08X len=%d%s",
		timestamp, FormatCommand(f.Command()), f.Command(), f.Arg(), f.Length(), formatPayload(f.Payload()))
}

// FormatRequest formats an outgoing request
func FormatRequest(r Request) string {
	return fmt.Sprintf("%s ('%c') arg=0x%08X len=%d enc=%s%s",
		FormatCommand(r.Command), r.Command, r.Arg, len(r.Payload), r.Encoding, formatPayload(r.Payload))
}

// FormatCommand returns the human-readable name for a command code.
// Some codes mean different things to the boot ROM and the update applet;
// both names are given.
func FormatCommand(cmd byte) string {
	switch cmd {
	case CmdVersion:
		return "VERS"
	case CmdSend:
		return "SEND"
	case CmdData:
		return "DATA"
	case CmdAuth:
		return "AUTH"
	case CmdStrap:
		return "STRAP"
	case CmdOTPData:
		return "OTPD"
	case CmdOTPRandom:
		return "OTPR"
	case CmdOTPCommit:
		return "OTPC"
	case CmdOTPRegions:
		return "OTP_REGIONS"
	case CmdContinue:
		return "CONT/DDR_CFG_SET"
	case CmdSJTAGChallenge:
		return "SJTAG_RD"
	case CmdSJTAGResponse:
		return "SJTAG_WR"
	case CmdTraceLevel:
		return "TRACE/DDR_TEST"
	case CmdUnzip:
		return "UNZIP"
	case CmdWriteFIP:
		return "WRITE"
	case CmdWriteImage:
		return "IMAGE"
	case CmdBind:
		return "BIND"
	case CmdOTPRead:
		return "OTP_READ"
	case CmdReset:
		return "RESET"
	case CmdDataHash:
		return "DATA_HASH"
	case CmdDDRConfigGet:
		return "DDR_CFG_GET"
	case CmdDDRInit:
		return "DDR_INIT"
	case CmdAck:
		return "ACK"
	case CmdNack:
		return "NACK"
	default:
		return "UNKNOWN"
	}
}

// formatPayload renders a payload as quoted text when printable, hex otherwise
func formatPayload(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	if isPrintable(p) {
		return fmt.Sprintf(" %q", p)
	}
	if len(p) > maxFormattedPayload {
		return fmt.Sprintf(" %s... (%d bytes)", hex.EncodeToString(p[:maxFormattedPayload]), len(p))
	}
	return " " + hex.EncodeToString(p)
}

func isPrintable(p []byte) bool {
	for _, b := range p {
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}
