// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint32
	}{
		{
			name:     "empty",
			data:     []byte{},
			expected: 0x00000000,
		},
		{
			name:     "ASCII '123456789'",
			data:     []byte("123456789"),
			expected: 0xE3069283, // CRC-32C check value
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc := CalculateCRC(tt.data)
			if crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%08X, got 0x%08X", tt.expected, crc)
			}
		})
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncode_Layout(t *testing.T) {
	tests := []struct {
		name    string
		cmd     byte
		arg     uint32
		payload []byte
		enc     Encoding
		header  string
		body    string
	}{
		{"empty version", CmdVersion, 0, nil, EncodingHex, ">V,00000000,00000000#", ""},
		{"send size", CmdSend, 0x1234, nil, EncodingHex, ">S,00001234,00000000#", ""},
		{"hex data", CmdData, 0x100, []byte{0xDE, 0xAD, 0x0f}, EncodingHex, ">D,00000100,00000003#", "dead0f"},
		{"binary data", CmdData, 0, []byte{0x00, '>', 0xff}, EncodingBinary, ">D,00000000,00000003%", "\x00>\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.cmd, tt.arg, tt.payload, tt.enc)
			if want := FrameLength(len(tt.payload), tt.enc); len(got) != want {
				t.Fatalf("len = %d, want %d", len(got), want)
			}
			if !strings.HasPrefix(string(got), tt.header) {
				t.Errorf("header = %q, want %q", got[:HeaderLength], tt.header)
			}
			body := got[HeaderLength : len(got)-ChecksumLength]
			if string(body) != tt.body {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
			crc := fmt.Sprintf("%08x", CalculateCRC(got[1:len(got)-ChecksumLength]))
			if string(got[len(got)-ChecksumLength:]) != crc {
				t.Errorf("checksum = %q, want %q", got[len(got)-ChecksumLength:], crc)
			}
		})
	}
}

func TestEncode_Lowercase(t *testing.T) {
	got := Encode(CmdData, 0xABCDEF01, []byte{0xAB, 0xCD}, EncodingHex)
	if s := string(got[1:]); s[1:] != strings.ToLower(s[1:]) {
		t.Errorf("host frame should be lowercase hex, got %q", got)
	}
}

func TestEncoding_Set(t *testing.T) {
	var e Encoding
	if err := e.Set("binary"); err != nil || e != EncodingBinary {
		t.Errorf("Set(binary) = %v, encoding %s", err, e)
	}
	if err := e.Set("hex"); err != nil || e != EncodingHex {
		t.Errorf("Set(hex) = %v, encoding %s", err, e)
	}
	if err := e.Set("base64"); err == nil {
		t.Error("Set(base64) should fail")
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		cmd     byte
		arg     uint32
		payload []byte
		enc     Encoding
	}{
		{"no payload", CmdVersion, 0, nil, EncodingHex},
		{"version string", CmdAck, 0, []byte("Version 1.3 Manic Mantis"), EncodingHex},
		{"max arg", CmdSend, 0xFFFFFFFF, nil, EncodingHex},
		{"chunk hex", CmdData, 256, bytes.Repeat([]byte{0x5A}, DataChunkSize), EncodingHex},
		{"chunk binary", CmdData, 512, bytes.Repeat([]byte{StartByte, 0x00, '#'}, 85), EncodingBinary},
		{"nack", CmdNack, 0xFFFFFFEA, []byte("Data misordering"), EncodingHex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := Encode(tt.cmd, tt.arg, tt.payload, tt.enc)
			f, err := Decode(wire)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if f.Command() != tt.cmd {
				t.Errorf("Command() = %c, want %c", f.Command(), tt.cmd)
			}
			if f.Arg() != tt.arg {
				t.Errorf("Arg() = 0x%08X, want 0x%08X", f.Arg(), tt.arg)
			}
			if f.Length() != uint32(len(tt.payload)) {
				t.Errorf("Length() = %d, want %d", f.Length(), len(tt.payload))
			}
			if f.Encoding() != tt.enc {
				t.Errorf("Encoding() = %s, want %s", f.Encoding(), tt.enc)
			}
			if !bytes.Equal(f.Payload(), tt.payload) && len(tt.payload) > 0 {
				t.Errorf("Payload() = %x, want %x", f.Payload(), tt.payload)
			}
			if f.Checksum() != CalculateCRC(wire[1:len(wire)-ChecksumLength]) {
				t.Errorf("Checksum() = 0x%08X does not match wire", f.Checksum())
			}
		})
	}
}

func TestDecode_DeviceUppercase(t *testing.T) {
	wire := deviceEncode(CmdAck, 0xCAFE, []byte{0xab, 0xcd, 0xef}, EncodingHex)
	f, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if f.Arg() != 0xCAFE {
		t.Errorf("Arg() = 0x%X, want 0xCAFE", f.Arg())
	}
	if !bytes.Equal(f.Payload(), []byte{0xab, 0xcd, 0xef}) {
		t.Errorf("Payload() = %x", f.Payload())
	}
}

func TestDecode_ChecksumCaseInsensitive(t *testing.T) {
	wire := Encode(CmdAck, 0, []byte("ok"), EncodingHex)
	crc := wire[len(wire)-ChecksumLength:]
	copy(crc, strings.ToUpper(string(crc)))
	if _, err := Decode(wire); err != nil {
		t.Errorf("uppercase checksum should decode, got %v", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := Encode(CmdAck, 1, []byte{1, 2, 3}, EncodingHex)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:10]},
		{"missing start", append([]byte{'<'}, valid[1:]...)},
		{"bad separator", bytes.Replace(valid, []byte(","), []byte(";"), 1)},
		{"bad arg hex", append([]byte(">a,0000000g"), valid[11:]...)},
		{"bad delimiter", append(append([]byte{}, valid[:offDelim]...), append([]byte{'$'}, valid[offDelim+1:]...)...)},
		{"truncated", valid[:len(valid)-1]},
		{"trailing byte", append(append([]byte{}, valid...), '0')},
		{"header without delimiter", Encode(CmdAck, 0, nil, EncodingHex)[:HeaderLength-1]},
		{"bad payload hex", []byte(">a,00000000,00000001#zz00000000")},
		{"bad checksum hex", append(append([]byte{}, valid[:len(valid)-ChecksumLength]...), "xxxxxxxx"...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			var decodeErr *FrameDecodeError
			if !errors.As(err, &decodeErr) {
				t.Errorf("Decode() error = %v, want *FrameDecodeError", err)
			}
		})
	}
}

func TestDecode_OversizedLength(t *testing.T) {
	data := []byte(fmt.Sprintf(">a,00000000,%08x#", MaxPayloadLength+1))
	if _, err := Decode(data); err == nil {
		t.Error("expected error for payload length above maximum")
	}
}

// Any single bit flip must be detected. Flipping the case bit of a hex
// letter inside the checksum field denotes the same checksum and is the
// only exception.
func TestDecode_SingleBitFlip(t *testing.T) {
	frames := map[string][]byte{
		"hex":    Encode(CmdData, 0x200, []byte("flip me, 0123456789"), EncodingHex),
		"binary": Encode(CmdData, 0x200, []byte{0x00, 0xFF, 0x3E, 0x23, 0x25}, EncodingBinary),
		"device": deviceEncode(CmdAck, 0xABCDEF, []byte{0xFE, 0xED}, EncodingHex),
	}

	for name, wire := range frames {
		t.Run(name, func(t *testing.T) {
			crcStart := len(wire) - ChecksumLength
			for i := range wire {
				for bit := 0; bit < 8; bit++ {
					flipped := bytes.Clone(wire)
					flipped[i] ^= 1 << bit

					c := wire[i]
					isLetter := (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
					if i >= crcStart && isLetter && bit == 5 {
						continue
					}

					if _, err := Decode(flipped); err == nil {
						t.Fatalf("flip of bit %d in byte %d (%q) was not detected", bit, i, c)
					}
				}
			}
		})
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatFrame(t *testing.T) {
	f := NewFrame(CmdAck, 0x10, []byte("Plain data"), EncodingHex)
	s := FormatFrame(f)
	for _, want := range []string{"ACK", "arg=0x00000010", "len=10", `"Plain data"`} {
		if !strings.Contains(s, want) {
			t.Errorf("FormatFrame() = %q, missing %q", s, want)
		}
	}

	long := NewFrame(CmdAck, 0, bytes.Repeat([]byte{0x01}, 40), EncodingHex)
	if s := FormatFrame(long); !strings.Contains(s, "(40 bytes)") {
		t.Errorf("long payload should be shortened, got %q", s)
	}
}

func TestFormatCommand_Unknown(t *testing.T) {
	if got := FormatCommand('?'); got != "UNKNOWN" {
		t.Errorf("FormatCommand('?') = %q, want UNKNOWN", got)
	}
}
