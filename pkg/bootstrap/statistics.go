// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Statistics tracks exchange statistics and error counts for a session
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Requests          uint64
	Responses         uint64
	Acks              uint64
	Nacks             uint64
	CRCErrors         uint64
	DecodeErrors      uint64
	UnexpectedFrames  uint64
	SkippedBytes      uint64
	Resyncs           uint64
	BytesTransferred  uint64 // payload bytes sent in DATA frames
	AbandonedRequests uint64

	// Rates (calculated)
	RequestRate float64 // requests/sec
	Throughput  float64 // payload bytes/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// recordRequest counts an outgoing request
func (s *Statistics) recordRequest(r Request) {
	s.Requests++
	if r.Command == CmdData {
		s.BytesTransferred += uint64(len(r.Payload))
	}
	s.LastUpdateTime = time.Now()
}

// recordResponse counts an incoming frame or the error that replaced it
func (s *Statistics) recordResponse(f *Frame, codes ResponseCodes, err error) {
	s.LastUpdateTime = time.Now()

	var decodeErr *FrameDecodeError
	if errors.As(err, &decodeErr) {
		if strings.HasPrefix(decodeErr.Reason, "CRC mismatch") {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}
	if f == nil {
		return
	}

	s.Responses++
	switch f.Command() {
	case codes.Ack:
		s.Acks++
	case codes.Nack:
		s.Nacks++
	default:
		s.UnexpectedFrames++
	}
}

// recordDesync counts noise dropped before a frame
func (s *Statistics) recordDesync(d DesyncRecovered) {
	s.Resyncs++
	s.SkippedBytes += uint64(d.Skipped)
}

// CalculateRates calculates request rate and upload throughput
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.RequestRate = float64(s.Requests) / elapsed
		s.Throughput = float64(s.BytesTransferred) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Requests:        %8d\n", s.Requests)
	result += fmt.Sprintf("Responses:       %8d (ACK %d, NACK %d)\n", s.Responses, s.Acks, s.Nacks)

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.UnexpectedFrames > 0 {
		result += fmt.Sprintf("Unexpected:      %8d\n", s.UnexpectedFrames)
	}
	if s.Resyncs > 0 {
		result += fmt.Sprintf("Resyncs:         %8d (%d bytes skipped)\n", s.Resyncs, s.SkippedBytes)
	}
	if s.AbandonedRequests > 0 {
		result += fmt.Sprintf("Abandoned:       %8d\n", s.AbandonedRequests)
	}
	if s.BytesTransferred > 0 {
		result += fmt.Sprintf("Uploaded:        %8d bytes (%.0f bytes/sec)\n", s.BytesTransferred, s.Throughput)
	}

	result += fmt.Sprintf("Request Rate:    %8.1f req/sec\n", s.RequestRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
