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

package discovery

import (
	"net"
	"time"

	libdur "github.com/blackbox-telemetry/blackbox/duration"
)

// ResponseTickInterval is the minimum interval Scheduler.Tick should be
// called at by the discovery server's main loop (spec.md §4.5).
const ResponseTickInterval = libdur.Duration(50 * time.Millisecond)

// DefaultRetransmits is the number of extra sends a response slot gets
// beyond its first ("a single retransmit", spec.md §4.3).
const DefaultRetransmits = 1

// slot is one pending outgoing response, scheduled for one or more sends.
type slot struct {
	addr       *net.UDPAddr
	resp       *Response
	nextSend   time.Time
	remaining  int
	retransmit time.Duration
}

// Scheduler holds the discovery server's response slot array. It is meant
// to be driven by a single goroutine (spec.md §5: "single-threaded, no
// lock"), so it carries no internal synchronization.
type Scheduler struct {
	slots []*slot
}

// NewScheduler returns an empty response scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Push enqueues a response to addr, sent immediately (plus delay) and once
// more after retransmitInterval. A stale slot already queued for addr is
// replaced, per spec.md §4.5 ("A repeat request from the same address
// removes any stale response slot for that address before enqueueing the
// new one").
func (s *Scheduler) Push(addr *net.UDPAddr, resp *Response, delay time.Duration) {
	s.removeFor(addr)
	s.slots = append(s.slots, &slot{
		addr:       addr,
		resp:       resp,
		nextSend:   time.Now().Add(delay),
		remaining:  1 + DefaultRetransmits,
		retransmit: RetransmitInterval.Time(),
	})
}

func (s *Scheduler) removeFor(addr *net.UDPAddr) {
	kept := s.slots[:0]
	for _, sl := range s.slots {
		if !sameUDPAddr(sl.addr, addr) {
			kept = append(kept, sl)
		}
	}
	s.slots = kept
}

// Tick walks due slots, invokes send for each, and retires slots whose
// retransmit budget is exhausted.
func (s *Scheduler) Tick(now time.Time, send func(addr *net.UDPAddr, resp *Response) error) {
	kept := s.slots[:0]
	for _, sl := range s.slots {
		if now.Before(sl.nextSend) {
			kept = append(kept, sl)
			continue
		}
		_ = send(sl.addr, sl.resp)
		sl.remaining--
		if sl.remaining > 0 {
			sl.nextSend = now.Add(sl.retransmit)
			kept = append(kept, sl)
		}
	}
	s.slots = kept
}

// Len reports the number of slots currently pending.
func (s *Scheduler) Len() int { return len(s.slots) }
