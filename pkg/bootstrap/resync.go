// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import "bytes"

// Resynchronizer splits an arbitrarily chunked byte stream into complete
// frames. Leading noise is discarded and counted; a start byte whose header
// cannot belong to a frame is treated as noise as well.
type Resynchronizer struct {
	buffer       []byte
	synchronized bool
	skipped      uint64 // total noise bytes discarded
	pending      int    // noise discarded since the last emitted frame
	desync       int    // noise discarded ahead of emitted frames, until taken
}

// NewResynchronizer creates a resynchronizer in the unsynchronized state
func NewResynchronizer() *Resynchronizer {
	return &Resynchronizer{
		buffer: make([]byte, 0, FrameLength(DataChunkSize, EncodingHex)),
	}
}

// Transform consumes a chunk and returns every frame it completed, in order.
// The returned slices are owned by the caller.
func (r *Resynchronizer) Transform(chunk []byte) [][]byte {
	r.buffer = append(r.buffer, chunk...)

	var frames [][]byte
	for {
		if !r.synchronized {
			idx := bytes.IndexByte(r.buffer, StartByte)
			if idx < 0 {
				r.discard(len(r.buffer))
				return frames
			}
			r.discard(idx)
			r.synchronized = true
		}

		if len(r.buffer) < HeaderLength {
			return frames
		}

		h, err := parseHeader(r.buffer)
		if err != nil {
			// Not a frame after all, drop the start byte and rescan
			r.discard(1)
			r.synchronized = false
			continue
		}

		total := h.frameLength()
		if len(r.buffer) < total {
			return frames
		}

		frames = append(frames, bytes.Clone(r.buffer[:total]))
		r.buffer = r.buffer[:copy(r.buffer, r.buffer[total:])]
		r.synchronized = false
		r.desync += r.pending
		r.pending = 0
	}
}

// Flush discards any incomplete remainder at end of stream
func (r *Resynchronizer) Flush() {
	r.skipped += uint64(len(r.buffer))
	r.buffer = r.buffer[:0]
	r.synchronized = false
	r.pending = 0
}

// Reset drops all buffered input. Used after a request was abandoned, when
// the stream position is unknown.
func (r *Resynchronizer) Reset() {
	r.Flush()
	r.desync = 0
}

// Buffered returns the number of bytes held waiting for a frame to complete
func (r *Resynchronizer) Buffered() int {
	return len(r.buffer)
}

// Skipped returns the total number of noise bytes discarded
func (r *Resynchronizer) Skipped() uint64 {
	return r.skipped
}

// TakeDesync returns the noise dropped ahead of the frames emitted since the
// last call, and clears it
func (r *Resynchronizer) TakeDesync() (DesyncRecovered, bool) {
	d := DesyncRecovered{Skipped: r.desync}
	r.desync = 0
	return d, d.Skipped > 0
}

func (r *Resynchronizer) discard(n int) {
	if n == 0 {
		return
	}
	r.skipped += uint64(n)
	r.pending += n
	r.buffer = r.buffer[:copy(r.buffer, r.buffer[n:])]
}
