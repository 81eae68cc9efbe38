// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"
)

// header holds the parsed fixed-layout frame header
type header struct {
	command  byte
	arg      uint32
	length   uint32
	encoding Encoding
}

// frameLength returns the total wire length announced by the header
func (h header) frameLength() int {
	return FrameLength(int(h.length), h.encoding)
}

// parseHeader parses the fixed-layout header at the start of buf.
// buf must hold at least HeaderLength bytes.
func parseHeader(buf []byte) (header, error) {
	var h header

	if len(buf) < HeaderLength {
		return h, fmt.Errorf("short header: %d bytes", len(buf))
	}
	if buf[0] != StartByte {
		return h, fmt.Errorf("missing start byte, got 0x%02X", buf[0])
	}
	if buf[offSep1] != Separator || buf[offSep2] != Separator {
		return h, fmt.Errorf("malformed header separators")
	}

	arg, ok := parseHex32(buf[offArg:offSep2])
	if !ok {
		return h, fmt.Errorf("invalid argument field %q", buf[offArg:offSep2])
	}
	length, ok := parseHex32(buf[offLength:offDelim])
	if !ok {
		return h, fmt.Errorf("invalid length field %q", buf[offLength:offDelim])
	}

	switch buf[offDelim] {
	case DelimHex:
		h.encoding = EncodingHex
	case DelimBinary:
		h.encoding = EncodingBinary
	default:
		return h, fmt.Errorf("invalid payload delimiter 0x%02X", buf[offDelim])
	}

	if length > MaxPayloadLength {
		return h, fmt.Errorf("payload length %d exceeds maximum %d", length, MaxPayloadLength)
	}

	h.command = buf[offCommand]
	h.arg = arg
	h.length = length
	return h, nil
}

// parseHex32 parses exactly 8 hex digits of either case
func parseHex32(s []byte) (uint32, bool) {
	if len(s) != 8 {
		return 0, false
	}
	var v uint32
	for _, c := range s {
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			return 0, false
		}
		v = v<<4 | uint32(d)
	}
	return v, true
}

// Decode decodes one complete wire frame.
// The checksum is recomputed over the received bytes and compared
// case-insensitively; decode either fully succeeds or returns a
// *FrameDecodeError.
func Decode(data []byte) (*Frame, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, &FrameDecodeError{Reason: err.Error(), Frame: data}
	}

	want := h.frameLength()
	if len(data) != want {
		return nil, &FrameDecodeError{
			Reason: fmt.Sprintf("length mismatch: declared %d payload bytes, frame is %d bytes (want %d)", h.length, len(data), want),
			Frame:  data,
		}
	}

	body := data[HeaderLength : len(data)-ChecksumLength]
	var payload []byte
	if h.encoding == EncodingBinary {
		payload = bytes.Clone(body)
	} else {
		payload = make([]byte, h.length)
		if _, err := hex.Decode(payload, body); err != nil {
			return nil, &FrameDecodeError{Reason: fmt.Sprintf("invalid hex payload: %v", err), Frame: data}
		}
	}

	received, ok := parseHex32(data[len(data)-ChecksumLength:])
	if !ok {
		return nil, &FrameDecodeError{Reason: fmt.Sprintf("invalid checksum field %q", data[len(data)-ChecksumLength:]), Frame: data}
	}

	calculated := CalculateCRC(data[1 : len(data)-ChecksumLength])
	if received != calculated {
		return nil, &FrameDecodeError{
			Reason: fmt.Sprintf("CRC mismatch: expected 0x%08X, got 0x%08X", calculated, received),
			Frame:  data,
		}
	}

	return &Frame{
		command:   h.command,
		arg:       h.arg,
		length:    h.length,
		encoding:  h.encoding,
		payload:   payload,
		checksum:  received,
		timestamp: time.Now(),
	}, nil
}
