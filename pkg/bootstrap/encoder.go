// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"encoding/hex"
	"fmt"
)

// Encode creates a complete wire-formatted frame.
// Header fields, hex payloads and the checksum are emitted as lowercase hex.
func Encode(command byte, arg uint32, payload []byte, enc Encoding) []byte {
	size := HeaderLength + enc.wireLength(len(payload)) + ChecksumLength
	frame := make([]byte, 0, size)

	frame = fmt.Appendf(frame, "%c%c%c%08x%c%08x%c",
		StartByte, command, Separator, arg, Separator, len(payload), enc.delimiter())

	if enc == EncodingBinary {
		frame = append(frame, payload...)
	} else {
		frame = hex.AppendEncode(frame, payload)
	}

	// CRC covers everything after the start byte
	crc := CalculateCRC(frame[1:])
	frame = fmt.Appendf(frame, "%08x", crc)

	return frame
}

// EncodeRequest encodes a Request to wire format
func EncodeRequest(r Request) []byte {
	return Encode(r.Command, r.Arg, r.Payload, r.Encoding)
}

// FrameLength returns the total wire length of a frame with a payload of n
// bytes in the given encoding
func FrameLength(n int, enc Encoding) int {
	return HeaderLength + enc.wireLength(n) + ChecksumLength
}
