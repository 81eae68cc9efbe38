// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// ============================================================
// Fake Device
// ============================================================

// deviceEncode builds a frame the way the boot ROM does: uppercase hex in
// the header, payload and checksum
func deviceEncode(cmd byte, arg uint32, payload []byte, enc Encoding) []byte {
	frame := fmt.Appendf(nil, "%c%c%c%08X%c%08X%c",
		StartByte, cmd, Separator, arg, Separator, len(payload), enc.delimiter())
	if enc == EncodingBinary {
		frame = append(frame, payload...)
	} else {
		frame = append(frame, strings.ToUpper(hex.EncodeToString(payload))...)
	}
	return fmt.Appendf(frame, "%08X", CalculateCRC(frame[1:]))
}

func ack(req *Frame, arg uint32, payload []byte) []byte {
	return deviceEncode(CmdAck, arg, payload, req.Encoding())
}

func nack(req *Frame, msg string) []byte {
	return deviceEncode(CmdNack, 0, []byte(msg), req.Encoding())
}

// fakeDevice decodes requests written to it and queues the handler's
// response bytes for reading
type fakeDevice struct {
	rx       *Resynchronizer
	out      bytes.Buffer
	handler  func(req *Frame) []byte
	requests []*Frame
	chunk    int  // max bytes returned per Read, 0 for unlimited
	idle     bool // return (0, nil) instead of io.EOF when drained
}

func newFakeDevice(handler func(req *Frame) []byte) *fakeDevice {
	return &fakeDevice{
		rx:      NewResynchronizer(),
		handler: handler,
	}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	for _, raw := range d.rx.Transform(p) {
		f, err := Decode(raw)
		if err != nil {
			d.out.Write(deviceEncode(CmdNack, 0, []byte("Garbled command"), EncodingHex))
			continue
		}
		d.requests = append(d.requests, f)
		d.out.Write(d.handler(f))
	}
	return len(p), nil
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	if d.out.Len() == 0 {
		if d.idle {
			return 0, nil
		}
		return 0, io.EOF
	}
	if d.chunk > 0 && len(p) > d.chunk {
		p = p[:d.chunk]
	}
	return d.out.Read(p)
}

// loaderDevice emulates the SEND/DATA/H/Z handling of the boot ROM
type loaderDevice struct {
	expected int
	received []byte
}

func (l *loaderDevice) handle(req *Frame) []byte {
	switch req.Command() {
	case CmdVersion:
		return ack(req, 0, []byte("Version 1.3 Manic Mantis"))
	case CmdSend:
		if req.Arg() == 0 {
			return nack(req, "Length Error")
		}
		l.expected = int(req.Arg())
		l.received = l.received[:0]
		return ack(req, 0, nil)
	case CmdData:
		if int(req.Arg()) != len(l.received) {
			return nack(req, "Data misordering")
		}
		l.received = append(l.received, req.Payload()...)
		return ack(req, req.Arg(), nil)
	case CmdDataHash:
		sum := sha256Sum(l.received)
		return ack(req, uint32(len(l.received)), sum)
	case CmdUnzip:
		return ack(req, uint32(len(l.received)), []byte("Plain data"))
	default:
		return nack(req, "Unknown command")
	}
}
