// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
	"github.com/Thermoquad/fwu/pkg/sjtag"
)

// ============================================================
// Emulated Device
// ============================================================

const (
	chipLAN9662 = 0x09662445
	chipLAN9698 = 0x19698445
)

// device emulates the boot ROM and update applet on an in-memory stream
type device struct {
	rx       *bootstrap.Resynchronizer
	out      bytes.Buffer
	codes    bootstrap.ResponseCodes
	requests []*bootstrap.Frame

	chip          uint32
	romVersion    string
	appletVersion string
	inApplet      bool

	drop   int  // leave the next n requests unanswered
	silent bool // never answer again

	received []byte
	otp      []byte
	ddr      []byte
	key      sjtag.Key

	// override answers a request before the default handler; returning
	// nil falls through
	override func(req *bootstrap.Frame) []byte
}

func newDevice(chip uint32) *device {
	return &device{
		rx:            bootstrap.NewResynchronizer(),
		codes:         bootstrap.DefaultResponseCodes,
		chip:          chip,
		romVersion:    "v2.8(release):lan966x-rom",
		appletVersion: "v2.8(release):bl2u",
		otp:           make([]byte, 8192),
	}
}

func (d *device) Write(p []byte) (int, error) {
	for _, raw := range d.rx.Transform(p) {
		req, err := bootstrap.Decode(raw)
		if err != nil {
			d.out.Write(d.nack("Garbled command"))
			continue
		}
		d.requests = append(d.requests, req)
		if d.silent {
			continue
		}
		if d.drop > 0 {
			d.drop--
			continue
		}
		if d.override != nil {
			if resp := d.override(req); resp != nil {
				d.out.Write(resp)
				continue
			}
		}
		d.out.Write(d.handle(req))
	}
	return len(p), nil
}

func (d *device) Read(p []byte) (int, error) {
	if d.out.Len() == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	return d.out.Read(p)
}

func (d *device) ack(arg uint32, payload []byte) []byte {
	return bootstrap.Encode(d.codes.Ack, arg, payload, bootstrap.EncodingHex)
}

func (d *device) nack(msg string) []byte {
	return bootstrap.Encode(d.codes.Nack, 0, []byte(msg), bootstrap.EncodingHex)
}

// commands returns the command letters received so far
func (d *device) commands() string {
	var b []byte
	for _, r := range d.requests {
		b = append(b, r.Command())
	}
	return string(b)
}

func (d *device) handle(req *bootstrap.Frame) []byte {
	arg := req.Arg()
	switch req.Command() {
	case bootstrap.CmdVersion:
		if d.inApplet {
			return d.ack(d.chip, []byte(AppletPrefix+d.appletVersion))
		}
		return d.ack(d.chip, []byte(d.romVersion))
	case bootstrap.CmdSend:
		d.received = d.received[:0]
		return d.ack(0, nil)
	case bootstrap.CmdData:
		if int(arg) != len(d.received) {
			return d.nack("Data misordering")
		}
		d.received = append(d.received, req.Payload()...)
		return d.ack(arg, nil)
	case bootstrap.CmdAuth:
		d.inApplet = true
		return d.ack(0, nil)
	case bootstrap.CmdReset:
		d.inApplet = false
		return d.ack(0, nil)
	case bootstrap.CmdDDRConfigSet: // also CONTINUE in the boot ROM
		if d.inApplet {
			d.ddr = append([]byte(nil), req.Payload()...)
		}
		return d.ack(arg, nil)
	case bootstrap.CmdDDRConfigGet:
		return d.ack(0, d.ddr)
	case bootstrap.CmdDDRTest: // also TRACE in the boot ROM
		if d.inApplet {
			return d.ack(0, []byte("Test succeeded"))
		}
		return d.ack(arg, nil)
	case bootstrap.CmdOTPData:
		copy(d.otp[arg:], req.Payload())
		return d.ack(arg, nil)
	case bootstrap.CmdOTPRandom:
		n := binary.BigEndian.Uint32(req.Payload())
		copy(d.otp[arg:], bytes.Repeat([]byte{0xAA}, int(n)))
		return d.ack(arg, nil)
	case bootstrap.CmdOTPRead:
		n := binary.BigEndian.Uint32(req.Payload())
		return d.ack(0, d.otp[arg:arg+n])
	case bootstrap.CmdSJTAGChallenge:
		c := sjtag.Challenge{1, 2, 3}
		return d.ack(0, c[:])
	case bootstrap.CmdSJTAGResponse:
		want := sjtag.DeriveResponse(sjtag.Challenge{1, 2, 3}, d.key)
		if !bytes.Equal(req.Payload(), want[:]) {
			return d.nack("SJTAG unlock failed")
		}
		return d.ack(0, nil)
	case bootstrap.CmdDataHash, bootstrap.CmdUnzip:
		if !d.inApplet {
			return d.nack("Unknown command")
		}
		if req.Command() == bootstrap.CmdUnzip {
			return d.ack(uint32(len(d.received)), []byte("Plain data"))
		}
		return d.ack(uint32(len(d.received)), bytes.Repeat([]byte{0x5A}, 32))
	case bootstrap.CmdStrap, bootstrap.CmdOTPCommit, bootstrap.CmdOTPRegions,
		bootstrap.CmdWriteFIP, bootstrap.CmdWriteImage, bootstrap.CmdBind, bootstrap.CmdDDRInit:
		return d.ack(arg, nil)
	default:
		return d.nack("Unknown command")
	}
}
