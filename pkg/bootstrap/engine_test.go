// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Engine Tests
// ============================================================

func TestEngine_Ack(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte {
		return ack(req, 0x12345678, []byte("Version 1.3 Manic Mantis"))
	})
	dev.chunk = 5
	e := NewEngine(dev)

	resp, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion})
	if err != nil {
		t.Fatalf("CompleteRequest() error = %v", err)
	}
	if resp.Arg() != 0x12345678 {
		t.Errorf("Arg() = 0x%08X, want 0x12345678", resp.Arg())
	}
	if string(resp.Payload()) != "Version 1.3 Manic Mantis" {
		t.Errorf("Payload() = %q", resp.Payload())
	}
	if len(dev.requests) != 1 || dev.requests[0].Command() != CmdVersion {
		t.Errorf("device saw %d requests, want one VERS", len(dev.requests))
	}
}

func TestEngine_Nack(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"with message", "Length Error", "Length Error"},
		{"empty message", "", "Request rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice(func(req *Frame) []byte {
				return nack(req, tt.payload)
			})
			e := NewEngine(dev)

			_, err := e.CompleteRequest(context.Background(), Request{Command: CmdSend})
			var rejected *RemoteRejected
			if !errors.As(err, &rejected) {
				t.Fatalf("error = %v, want *RemoteRejected", err)
			}
			if rejected.Message != tt.want {
				t.Errorf("Message = %q, want %q", rejected.Message, tt.want)
			}
			if rejected.Command != CmdSend {
				t.Errorf("Command = %c, want %c", rejected.Command, CmdSend)
			}
			if e.Statistics().Nacks != 1 {
				t.Errorf("Nacks = %d, want 1", e.Statistics().Nacks)
			}
		})
	}
}

func TestEngine_UnexpectedCommand(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte {
		return deviceEncode('V', 0, nil, EncodingHex)
	})
	e := NewEngine(dev)

	_, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion})
	var unexpected *UnexpectedCommand
	if !errors.As(err, &unexpected) {
		t.Fatalf("error = %v, want *UnexpectedCommand", err)
	}
	if unexpected.Got != 'V' {
		t.Errorf("Got = %c, want V", unexpected.Got)
	}
}

func TestEngine_LegacyResponseCodes(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte {
		return deviceEncode(CmdLegacyAck, 0, []byte("monitor"), EncodingHex)
	})

	e := NewEngine(dev)
	if _, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion}); err == nil {
		t.Fatal("legacy ACK should be unexpected with default codes")
	}

	e.SetResponseCodes(LegacyResponseCodes)
	if _, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion}); err != nil {
		t.Fatalf("legacy ACK rejected: %v", err)
	}
}

func TestEngine_CorruptResponse(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte {
		frame := ack(req, 0, []byte("data"))
		frame[len(frame)-1] ^= 0x01
		return frame
	})
	e := NewEngine(dev)

	_, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion})
	var decodeErr *FrameDecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %v, want *FrameDecodeError", err)
	}
	if e.Statistics().CRCErrors != 1 {
		t.Errorf("CRCErrors = %d, want 1", e.Statistics().CRCErrors)
	}
}

func TestEngine_NoiseBeforeResponse(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte {
		return append([]byte("NOTICE:  BL1: v2.8\r\n"), ack(req, 0, nil)...)
	})
	dev.chunk = 3
	e := NewEngine(dev)

	if _, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion}); err != nil {
		t.Fatalf("CompleteRequest() error = %v", err)
	}
	if got := e.Statistics().SkippedBytes; got != 20 {
		t.Errorf("SkippedBytes = %d, want 20", got)
	}
	if e.Skipped() != 20 {
		t.Errorf("Skipped() = %d, want 20", e.Skipped())
	}
}

func TestEngine_TransportClosed(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte { return nil })
	e := NewEngine(dev)

	_, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion})
	if !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("error = %v, want ErrTransportClosed", err)
	}
}

func TestEngine_CancelThenResync(t *testing.T) {
	silent := true
	dev := newFakeDevice(func(req *Frame) []byte {
		if silent {
			// Half a response, then nothing
			return ack(req, 0, []byte("stale"))[:12]
		}
		return ack(req, 1, nil)
	})
	dev.idle = true
	e := NewEngine(dev)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.CompleteRequest(ctx, Request{Command: CmdVersion})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if e.Statistics().AbandonedRequests != 1 {
		t.Errorf("AbandonedRequests = %d, want 1", e.Statistics().AbandonedRequests)
	}

	silent = false
	resp, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion})
	if err != nil {
		t.Fatalf("probe after cancel: %v", err)
	}
	if resp.Arg() != 1 {
		t.Errorf("probe got stale response arg %d", resp.Arg())
	}
}

func TestEngine_CancelledBeforeSend(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte { return ack(req, 0, nil) })
	e := NewEngine(dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.CompleteRequest(ctx, Request{Command: CmdVersion}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(dev.requests) != 0 {
		t.Errorf("request was written after cancellation")
	}
}

func TestEngine_ConcurrentRequestPanics(t *testing.T) {
	var e *Engine
	var recovered any
	dev := newFakeDevice(func(req *Frame) []byte {
		func() {
			defer func() { recovered = recover() }()
			e.CompleteRequest(context.Background(), Request{Command: CmdVersion})
		}()
		return ack(req, 0, nil)
	})
	e = NewEngine(dev)

	if _, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion}); err != nil {
		t.Fatalf("outer request failed: %v", err)
	}
	msg, ok := recovered.(string)
	if !ok || !strings.Contains(msg, "outstanding") {
		t.Errorf("nested CompleteRequest should panic, recovered %v", recovered)
	}
}

func TestEngine_Tracer(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte { return ack(req, 0, []byte("ok")) })
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	e := NewEngine(dev, WithTracer(rec))

	if _, err := e.CompleteRequest(context.Background(), Request{Command: CmdVersion}); err != nil {
		t.Fatalf("CompleteRequest() error = %v", err)
	}
	if err := rec.Err(); err != nil {
		t.Fatalf("recorder error = %v", err)
	}

	var dirs []Direction
	err := ReadTrace(&buf, func(r TraceRecord) error {
		dirs = append(dirs, r.Direction)
		if _, err := r.Frame(); err != nil {
			t.Errorf("recorded frame does not decode: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadTrace() error = %v", err)
	}
	if len(dirs) != 2 || dirs[0] != DirectionTx || dirs[1] != DirectionRx {
		t.Errorf("trace directions = %v, want [tx rx]", dirs)
	}
}

func TestExpectArg(t *testing.T) {
	req := Request{Command: CmdData, Arg: 256}
	if err := ExpectArg(req, NewFrame(CmdAck, 256, nil, EncodingHex), 256); err != nil {
		t.Errorf("ExpectArg() matching = %v", err)
	}
	var unexpected *UnexpectedCommand
	if err := ExpectArg(req, NewFrame(CmdAck, 0, nil, EncodingHex), 256); !errors.As(err, &unexpected) {
		t.Errorf("ExpectArg() mismatch = %v, want *UnexpectedCommand", err)
	}
}

func TestStatistics_String(t *testing.T) {
	s := NewStatistics()
	s.recordRequest(Request{Command: CmdData, Payload: make([]byte, 10)})
	s.recordResponse(NewFrame(CmdAck, 0, nil, EncodingHex), DefaultResponseCodes, nil)
	s.recordDesync(DesyncRecovered{Skipped: 3})

	out := s.String()
	for _, want := range []string{"Requests:", "ACK 1", "3 bytes skipped", "Uploaded:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.Requests != 0 || s.BytesTransferred != 0 {
		t.Error("Reset() should clear counters")
	}
}
