// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func testBlob(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

// ============================================================
// Chunked Transfer Tests
// ============================================================

func TestDownload_Chunking(t *testing.T) {
	sizes := []int{1, 16, 255, 256, 257, 512, 1000, 4096 + 3}

	for _, n := range sizes {
		for _, enc := range []Encoding{EncodingHex, EncodingBinary} {
			loader := &loaderDevice{}
			dev := newFakeDevice(loader.handle)
			data := testBlob(n)

			out, err := Download(context.Background(), NewEngine(dev), data, TransferOptions{Encoding: enc})
			if err != nil {
				t.Fatalf("n=%d %s: Download() error = %v", n, enc, err)
			}

			wantChunks := (n + DataChunkSize - 1) / DataChunkSize
			if out.Chunks != wantChunks {
				t.Errorf("n=%d: Chunks = %d, want %d", n, out.Chunks, wantChunks)
			}

			if dev.requests[0].Command() != CmdSend || dev.requests[0].Arg() != uint32(n) {
				t.Fatalf("n=%d: first request %c arg %d, want SEND %d", n, dev.requests[0].Command(), dev.requests[0].Arg(), n)
			}
			total := 0
			for i, req := range dev.requests[1:] {
				if req.Command() != CmdData {
					t.Fatalf("n=%d: request %d is %c, want DATA", n, i+1, req.Command())
				}
				if req.Arg() != uint32(i*DataChunkSize) {
					t.Errorf("n=%d: chunk %d offset = %d, want %d", n, i, req.Arg(), i*DataChunkSize)
				}
				if req.Encoding() != enc {
					t.Errorf("n=%d: chunk %d encoding = %s, want %s", n, i, req.Encoding(), enc)
				}
				total += len(req.Payload())
			}
			if total != n {
				t.Errorf("n=%d: payload bytes sum to %d", n, total)
			}
			if !bytes.Equal(loader.received, data) {
				t.Errorf("n=%d: device received different data", n)
			}
			if out.Status != StatusCompleted || out.BytesSent != n {
				t.Errorf("n=%d: outcome %s with %d bytes", n, out.Status, out.BytesSent)
			}
		}
	}
}

// VERS followed by SEND(16)/DATA(0,8)/DATA(8,8) against a 16 byte blob
func TestDownload_EndToEndScenario(t *testing.T) {
	loader := &loaderDevice{}
	dev := newFakeDevice(loader.handle)
	e := NewEngine(dev)
	ctx := context.Background()

	resp, err := e.CompleteRequest(ctx, Request{Command: CmdVersion})
	if err != nil {
		t.Fatalf("VERS: %v", err)
	}
	if got := string(resp.Payload()); got != "Version 1.3 Manic Mantis" {
		t.Fatalf("VERS payload = %q", got)
	}

	blob := testBlob(16)
	if _, err := e.CompleteRequest(ctx, Request{Command: CmdSend, Arg: 16}); err != nil {
		t.Fatalf("SEND: %v", err)
	}
	for _, off := range []int{0, 8} {
		req := Request{Command: CmdData, Arg: uint32(off), Payload: blob[off : off+8]}
		resp, err := e.CompleteRequest(ctx, req)
		if err != nil {
			t.Fatalf("DATA %d: %v", off, err)
		}
		if err := ExpectArg(req, resp, uint32(off)); err != nil {
			t.Fatalf("DATA %d: %v", off, err)
		}
	}

	if len(dev.requests) != 4 {
		t.Errorf("device saw %d requests, want 4", len(dev.requests))
	}
	if !bytes.Equal(loader.received, blob) {
		t.Errorf("device received %x, want %x", loader.received, blob)
	}
	if dev.out.Len() != 0 || dev.rx.Buffered() != 0 {
		t.Errorf("residual bytes: %d out, %d buffered", dev.out.Len(), dev.rx.Buffered())
	}
}

func TestDownload_VerifyHashAndDecompress(t *testing.T) {
	loader := &loaderDevice{}
	dev := newFakeDevice(loader.handle)
	data := testBlob(700)

	var phases []string
	opts := TransferOptions{
		VerifyHash: true,
		Decompress: true,
		Progress: func(p Progress) {
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
		},
	}

	out, err := Download(context.Background(), NewEngine(dev), data, opts)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !bytes.Equal(out.HostDigest, out.DeviceDigest) {
		t.Errorf("digests differ: host %x device %x", out.HostDigest, out.DeviceDigest)
	}
	if out.DecompressStatus != "Plain data" || out.Decompressed {
		t.Errorf("decompress status = %q, decompressed %v", out.DecompressStatus, out.Decompressed)
	}
	if out.DecompressedSize != 700 {
		t.Errorf("DecompressedSize = %d, want 700", out.DecompressedSize)
	}

	want := []string{PhaseSend, PhaseData, PhaseHash, PhaseDecompress, PhaseComplete}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phase %d = %s, want %s", i, phases[i], want[i])
		}
	}
}

func TestDownload_IntegrityMismatch(t *testing.T) {
	loader := &loaderDevice{}
	dev := newFakeDevice(func(req *Frame) []byte {
		if req.Command() == CmdDataHash {
			return ack(req, uint32(len(loader.received)), make([]byte, 32))
		}
		return loader.handle(req)
	})

	out, err := Download(context.Background(), NewEngine(dev), testBlob(300), TransferOptions{VerifyHash: true})
	var mismatch *IntegrityMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *IntegrityMismatch", err)
	}
	if out.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", out.Status)
	}
	if out.BytesSent != 300 {
		t.Errorf("BytesSent = %d, want 300", out.BytesSent)
	}
}

func TestDownload_NackAborts(t *testing.T) {
	loader := &loaderDevice{}
	dev := newFakeDevice(func(req *Frame) []byte {
		if req.Command() == CmdData && req.Arg() == 512 {
			return nack(req, "Data error")
		}
		return loader.handle(req)
	})

	out, err := Download(context.Background(), NewEngine(dev), testBlob(2000), TransferOptions{})
	var terr *TransferError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *TransferError", err)
	}
	if terr.Phase != PhaseData || terr.Offset != 512 {
		t.Errorf("aborted in %s at %d, want data at 512", terr.Phase, terr.Offset)
	}
	var rejected *RemoteRejected
	if !errors.As(err, &rejected) || rejected.Message != "Data error" {
		t.Errorf("cause = %v, want RemoteRejected(Data error)", err)
	}
	if out.Status != StatusAborted || out.BytesSent != 512 {
		t.Errorf("outcome %s with %d bytes, want aborted with 512", out.Status, out.BytesSent)
	}
	// SEND + three chunks, nothing after the failure
	if len(dev.requests) != 4 {
		t.Errorf("device saw %d requests, want 4", len(dev.requests))
	}
}

func TestDownload_WrongOffsetEcho(t *testing.T) {
	loader := &loaderDevice{}
	dev := newFakeDevice(func(req *Frame) []byte {
		if req.Command() == CmdData {
			loader.handle(req)
			return ack(req, 0, nil)
		}
		return loader.handle(req)
	})

	_, err := Download(context.Background(), NewEngine(dev), testBlob(600), TransferOptions{})
	var unexpected *UnexpectedCommand
	if !errors.As(err, &unexpected) {
		t.Fatalf("error = %v, want *UnexpectedCommand", err)
	}
}

func TestDownload_SendRejected(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte { return nack(req, "Length Error") })

	_, err := Download(context.Background(), NewEngine(dev), testBlob(10), TransferOptions{})
	var terr *TransferError
	if !errors.As(err, &terr) || terr.Phase != PhaseSend {
		t.Fatalf("error = %v, want send phase TransferError", err)
	}
	if len(dev.requests) != 1 {
		t.Errorf("device saw %d requests, want 1", len(dev.requests))
	}
}

func TestDownload_Empty(t *testing.T) {
	dev := newFakeDevice(func(req *Frame) []byte { return ack(req, 0, nil) })

	_, err := Download(context.Background(), NewEngine(dev), nil, TransferOptions{})
	if !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("error = %v, want ErrEmptyUpload", err)
	}
	if len(dev.requests) != 0 {
		t.Error("empty upload must not touch the wire")
	}
}
