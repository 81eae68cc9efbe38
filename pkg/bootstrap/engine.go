// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang/glog"
)

// ResponseCodes is the ACK/NACK command pair a device generation answers with
type ResponseCodes struct {
	Ack  byte
	Nack byte
}

var (
	// DefaultResponseCodes are used by current boot ROMs and update applets
	DefaultResponseCodes = ResponseCodes{Ack: CmdAck, Nack: CmdNack}
	// LegacyResponseCodes are used by early boot monitors, which ACK with 'A'
	LegacyResponseCodes = ResponseCodes{Ack: CmdLegacyAck, Nack: CmdNack}
)

// Engine pairs each outgoing request with exactly one incoming frame.
// The transport is owned exclusively by the engine; only one request may be
// outstanding at a time.
type Engine struct {
	rw     io.ReadWriter
	resync *Resynchronizer
	queue  [][]byte
	codes  ResponseCodes
	tracer Tracer
	stats  *Statistics
	buf    []byte
	busy   atomic.Bool
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithResponseCodes sets the ACK/NACK pair expected from the device
func WithResponseCodes(codes ResponseCodes) EngineOption {
	return func(e *Engine) {
		e.codes = codes
	}
}

// WithTracer records every frame sent and received
func WithTracer(t Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithStatistics collects exchange counters into s
func WithStatistics(s *Statistics) EngineOption {
	return func(e *Engine) {
		e.stats = s
	}
}

// WithReadBufferSize sets the size of transport reads
func WithReadBufferSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.buf = make([]byte, n)
		}
	}
}

// NewEngine creates a request/response engine on top of a duplex byte stream.
// Reads may return partial data; a read returning (0, nil) is treated as an
// idle poll, at which point cancellation is checked.
func NewEngine(rw io.ReadWriter, opts ...EngineOption) *Engine {
	e := &Engine{
		rw:     rw,
		resync: NewResynchronizer(),
		codes:  DefaultResponseCodes,
		stats:  NewStatistics(),
		buf:    make([]byte, 1024),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetResponseCodes switches the ACK/NACK pair, typically after the device
// was identified
func (e *Engine) SetResponseCodes(codes ResponseCodes) {
	e.codes = codes
}

// ResponseCodes returns the ACK/NACK pair currently expected
func (e *Engine) ResponseCodes() ResponseCodes {
	return e.codes
}

// Statistics returns the engine's exchange counters
func (e *Engine) Statistics() *Statistics {
	return e.stats
}

// Skipped returns the total number of noise bytes discarded from the stream
func (e *Engine) Skipped() uint64 {
	return e.resync.Skipped()
}

// CompleteRequest sends req and waits for its response.
//
// An ACK returns the response frame. A NACK returns *RemoteRejected and any
// other command returns *UnexpectedCommand. There is no timeout: the caller
// bounds the wait through ctx. A cancelled request leaves the stream
// desynchronized; buffered input is dropped and the next call rescans for a
// start byte.
//
// Calling CompleteRequest while another call is in progress panics.
func (e *Engine) CompleteRequest(ctx context.Context, req Request) (*Frame, error) {
	if !e.busy.CompareAndSwap(false, true) {
		panic("bootstrap: CompleteRequest called while a request is outstanding")
	}
	defer e.busy.Store(false)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := EncodeRequest(req)
	glog.V(1).Infof("-> %s", FormatRequest(req))
	if glog.V(2) {
		glog.Infof("tx %d bytes\n%s", len(raw), hex.Dump(raw))
	}

	if _, err := e.rw.Write(raw); err != nil {
		return nil, fmt.Errorf("write '%c' request: %w", req.Command, err)
	}
	e.stats.recordRequest(req)
	if e.tracer != nil {
		e.tracer.TraceFrame(DirectionTx, raw)
	}

	rxRaw, err := e.awaitFrame(ctx)
	if err != nil {
		return nil, err
	}
	if e.tracer != nil {
		e.tracer.TraceFrame(DirectionRx, rxRaw)
	}
	if glog.V(2) {
		glog.Infof("rx %d bytes\n%s", len(rxRaw), hex.Dump(rxRaw))
	}

	resp, err := Decode(rxRaw)
	e.stats.recordResponse(resp, e.codes, err)
	if err != nil {
		glog.Warningf("'%c' response: %v", req.Command, err)
		return nil, err
	}
	glog.V(1).Infof("<- %s", FormatFrame(resp))

	switch resp.Command() {
	case e.codes.Ack:
		return resp, nil
	case e.codes.Nack:
		msg := string(resp.Payload())
		if msg == "" {
			msg = "Request rejected"
		}
		return nil, &RemoteRejected{Command: req.Command, Code: resp.Arg(), Message: msg}
	default:
		return nil, &UnexpectedCommand{Request: req.Command, Got: resp.Command()}
	}
}

// awaitFrame returns the next complete frame from the stream
func (e *Engine) awaitFrame(ctx context.Context) ([]byte, error) {
	for len(e.queue) == 0 {
		if err := ctx.Err(); err != nil {
			e.abandon()
			return nil, err
		}

		n, err := e.rw.Read(e.buf)
		if n > 0 {
			e.queue = append(e.queue, e.resync.Transform(e.buf[:n])...)
			if d, ok := e.resync.TakeDesync(); ok {
				glog.Warningf("resynchronized: %s", d)
				e.stats.recordDesync(d)
			}
		}
		if err != nil && len(e.queue) == 0 {
			if errors.Is(err, io.EOF) {
				e.resync.Flush()
				return nil, ErrTransportClosed
			}
			return nil, fmt.Errorf("read response: %w", err)
		}
	}

	raw := e.queue[0]
	e.queue = e.queue[1:]
	return raw, nil
}

// abandon drops all buffered input after a cancelled request
func (e *Engine) abandon() {
	e.queue = nil
	e.resync.Reset()
	e.stats.AbandonedRequests++
	glog.Warningf("request abandoned, stream treated as desynchronized")
}

// ExpectArg checks that an ACK echoed the expected argument
func ExpectArg(req Request, resp *Frame, want uint32) error {
	if resp.Arg() != want {
		return &UnexpectedCommand{
			Request: req.Command,
			Got:     resp.Command(),
			Detail:  fmt.Sprintf("ACK for argument 0x%08x, expected 0x%08x", resp.Arg(), want),
		}
	}
	return nil
}
