// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a traced frame
type Direction uint8

const (
	DirectionTx Direction = iota
	DirectionRx
)

func (d Direction) String() string {
	if d == DirectionRx {
		return "rx"
	}
	return "tx"
}

// Tracer receives every raw frame the engine sends or receives
type Tracer interface {
	TraceFrame(dir Direction, raw []byte)
}

// TraceRecord is one frame in a CBOR trace file
type TraceRecord struct {
	Time      int64     `cbor:"1,keyasint"` // unix nanoseconds
	Direction Direction `cbor:"2,keyasint"`
	Raw       []byte    `cbor:"3,keyasint"`
}

// Timestamp returns the record time
func (r *TraceRecord) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// Frame decodes the recorded wire bytes. The frame carries the record time.
func (r *TraceRecord) Frame() (*Frame, error) {
	f, err := Decode(r.Raw)
	if err != nil {
		return nil, err
	}
	f.timestamp = r.Timestamp()
	return f, nil
}

// Recorder writes frames as a CBOR sequence, one TraceRecord per frame
type Recorder struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	err error
	now func() time.Time
}

// NewRecorder creates a recorder writing to w
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		enc: cbor.NewEncoder(w),
		now: time.Now,
	}
}

// TraceFrame implements Tracer. The first write error is kept and later
// frames are dropped.
func (r *Recorder) TraceFrame(dir Direction, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	rec := TraceRecord{
		Time:      r.now().UnixNano(),
		Direction: dir,
		Raw:       raw,
	}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("write trace record: %w", err)
	}
}

// Err returns the first error encountered while recording
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ReadTrace decodes a CBOR trace and calls fn for each record in order
func ReadTrace(rd io.Reader, fn func(TraceRecord) error) error {
	dec := cbor.NewDecoder(rd)
	for {
		var rec TraceRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read trace record: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
