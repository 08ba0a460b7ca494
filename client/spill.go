/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package client

import "sync"

// spillBuffer is the process-wide pre-connection spill region (spec.md §3
// Initial Buffer). It carries its own mutex, deliberately not shared with
// the id_cs lock guarding the id tables (spec.md §5's shared-resource
// table: "dedicated mutex; no overlap with id_cs").
type spillBuffer struct {
	mu     sync.Mutex
	buf    []byte
	cursor int
	done   bool
}

func newSpillBuffer(region []byte) *spillBuffer {
	return &spillBuffer{buf: region}
}

// TryAppend copies frame into the buffer if it still fits. latched reports
// whether this call is the one that flipped the buffer from active to Done
// (spec.md §7: "Initial buffer full: latch to Done, continue without
// spilling; embedder sees the diagnostic in the log stream once connected"),
// so the caller can log the transition exactly once.
func (s *spillBuffer) TryAppend(frame []byte) (ok, latched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return false, false
	}
	if s.cursor+len(frame) > len(s.buf) {
		s.done = true
		return false, true
	}
	copy(s.buf[s.cursor:], frame)
	s.cursor += len(frame)
	return true, false
}

// Bytes returns a snapshot of the frames recorded so far: a concatenation of
// whole length-prefixed frames, per spec.md §3's Initial Buffer invariant.
func (s *spillBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, s.cursor)
	copy(out, s.buf[:s.cursor])
	return out
}
