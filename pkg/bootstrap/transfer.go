// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golang/glog"
)

// ErrEmptyUpload is returned when Download is called without data
const ErrEmptyUpload = constError("nothing to upload")

// Requester sends one request and returns its ACK response
type Requester interface {
	CompleteRequest(ctx context.Context, req Request) (*Frame, error)
}

// Transfer phases reported through Progress
const (
	PhaseSend       = "send"
	PhaseData       = "data"
	PhaseHash       = "hash"
	PhaseDecompress = "decompress"
	PhaseComplete   = "complete"
)

// Progress describes how far an upload has come
type Progress struct {
	Phase       string
	BytesSent   int
	TotalBytes  int
	Percentage  float64
	ElapsedTime time.Duration
}

// TransferOptions control the optional steps of an upload
type TransferOptions struct {
	Encoding   Encoding
	VerifyHash bool // compare device SHA-256 of the received data
	Decompress bool // ask the device to gunzip the received data
	Progress   func(Progress)
}

// TransferStatus is the final state of an upload
type TransferStatus int

const (
	StatusCompleted TransferStatus = iota
	StatusAborted
	StatusFailed // data sent but integrity check failed
)

func (s TransferStatus) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("TransferStatus(%d)", int(s))
	}
}

// Outcome reports the result of an upload
type Outcome struct {
	Status           TransferStatus
	BytesSent        int
	TotalBytes       int
	Chunks           int
	HostDigest       []byte
	DeviceDigest     []byte
	Decompressed     bool
	DecompressedSize uint32
	DecompressStatus string
	Elapsed          time.Duration
}

// TransferError wraps the error that stopped an upload
type TransferError struct {
	Phase  string
	Offset int
	Err    error
}

func (e *TransferError) Error() string {
	if e.Phase == PhaseData {
		return fmt.Sprintf("upload aborted in %s phase at offset %d: %v", e.Phase, e.Offset, e.Err)
	}
	return fmt.Sprintf("upload aborted in %s phase: %v", e.Phase, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Download uploads data to the device: a SEND announcing the total length,
// then DATA chunks of at most DataChunkSize bytes, each acknowledged before
// the next is sent. Any failure aborts the upload; nothing is retried.
func Download(ctx context.Context, r Requester, data []byte, opts TransferOptions) (*Outcome, error) {
	out := &Outcome{
		Status:     StatusAborted,
		TotalBytes: len(data),
	}
	if len(data) == 0 {
		return out, ErrEmptyUpload
	}

	start := time.Now()
	report := func(phase string) {
		out.Elapsed = time.Since(start)
		if opts.Progress == nil {
			return
		}
		opts.Progress(Progress{
			Phase:       phase,
			BytesSent:   out.BytesSent,
			TotalBytes:  out.TotalBytes,
			Percentage:  float64(out.BytesSent) * 100.0 / float64(out.TotalBytes),
			ElapsedTime: out.Elapsed,
		})
	}

	glog.V(1).Infof("upload %d bytes, %s encoding", len(data), opts.Encoding)

	report(PhaseSend)
	send := Request{Command: CmdSend, Arg: uint32(len(data))}
	if _, err := r.CompleteRequest(ctx, send); err != nil {
		return out, &TransferError{Phase: PhaseSend, Err: err}
	}

	for out.BytesSent < len(data) {
		end := min(out.BytesSent+DataChunkSize, len(data))
		req := Request{
			Command:  CmdData,
			Arg:      uint32(out.BytesSent),
			Payload:  data[out.BytesSent:end],
			Encoding: opts.Encoding,
		}
		resp, err := r.CompleteRequest(ctx, req)
		if err == nil {
			err = ExpectArg(req, resp, req.Arg)
		}
		if err != nil {
			return out, &TransferError{Phase: PhaseData, Offset: out.BytesSent, Err: err}
		}
		out.BytesSent = end
		out.Chunks++
		report(PhaseData)
	}

	if opts.VerifyHash {
		report(PhaseHash)
		if err := verifyDigest(ctx, r, data, out); err != nil {
			return out, err
		}
	}

	if opts.Decompress {
		report(PhaseDecompress)
		resp, err := r.CompleteRequest(ctx, Request{Command: CmdUnzip})
		if err != nil {
			return out, &TransferError{Phase: PhaseDecompress, Offset: out.BytesSent, Err: err}
		}
		out.DecompressedSize = resp.Arg()
		out.DecompressStatus = string(resp.Payload())
		out.Decompressed = out.DecompressStatus == "Decompressed data"
	}

	out.Status = StatusCompleted
	report(PhaseComplete)
	glog.V(1).Infof("upload complete: %d bytes in %d chunks, %s", out.BytesSent, out.Chunks, out.Elapsed)
	return out, nil
}

// verifyDigest compares the device digest of the received buffer with the
// host digest of data
func verifyDigest(ctx context.Context, r Requester, data []byte, out *Outcome) error {
	resp, err := r.CompleteRequest(ctx, Request{Command: CmdDataHash})
	if err != nil {
		return &TransferError{Phase: PhaseHash, Offset: out.BytesSent, Err: err}
	}

	host := sha256.Sum256(data)
	out.HostDigest = host[:]
	out.DeviceDigest = resp.Payload()

	glog.V(1).Infof("digest from host:   %x", out.HostDigest)
	glog.V(1).Infof("digest from device: %x", out.DeviceDigest)

	if int(resp.Arg()) != len(data) || !bytes.Equal(out.DeviceDigest, out.HostDigest) {
		out.Status = StatusFailed
		return &IntegrityMismatch{
			Host:      out.HostDigest,
			Device:    out.DeviceDigest,
			HostLen:   len(data),
			DeviceLen: int(resp.Arg()),
		}
	}
	return nil
}
