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

import (
	"encoding/binary"

	"github.com/blackbox-telemetry/blackbox/packet"
)

// replayInto re-emits the Handle's cached state onto sink, in the fixed
// order a fresh reader needs to reconstruct the stream so far: AppInfo
// first, then every interned FileId/CategoryId registration in the order
// they were first seen, then the current name of every still-live thread,
// and finally the raw bytes held in the pre-connect spill buffer (spec.md
// §4.4 "Replay on new sinks", testable property #6).
//
// It holds idMu for the whole replay and takes threadMu, nested inside it,
// only while snapshotting the thread tables, always in that order, matching the one lock-ordering rule the
// shared-resource table in spec.md §5 calls out between id_cs and the
// thread table.
func (h *Handle) replayInto(sink func(raw []byte) error) error {
	h.idMu.Lock()
	defer h.idMu.Unlock()

	if raw, err := packet.Encode(h.appInfo); err != nil {
		return err
	} else if err = sink(raw); err != nil {
		return err
	}

	for _, reg := range h.registrations {
		raw, err := packet.Encode(reg)
		if err != nil {
			return err
		}
		if err = sink(raw); err != nil {
			return err
		}
	}

	h.threadMu.Lock()
	order := make([]uint64, len(h.threadOrder))
	copy(order, h.threadOrder)
	starts := make(map[uint64]*packet.Packet, len(h.threadStart))
	for k, v := range h.threadStart {
		starts[k] = v
	}
	names := make(map[uint64]*packet.Packet, len(h.threadName))
	for k, v := range h.threadName {
		names[k] = v
	}
	h.threadMu.Unlock()

	for _, id := range order {
		start, ok := starts[id]
		if !ok {
			// Thread already ended; nothing left to replay for it.
			continue
		}
		raw, err := packet.Encode(start)
		if err != nil {
			return err
		}
		if err = sink(raw); err != nil {
			return err
		}

		if name, ok := names[id]; ok {
			raw, err = packet.Encode(name)
			if err != nil {
				return err
			}
			if err = sink(raw); err != nil {
				return err
			}
		}
	}

	if h.spill != nil {
		if spilled := h.spill.Bytes(); len(spilled) > 0 {
			if err := sinkFrames(spilled, sink); err != nil {
				return err
			}
		}
	}

	return nil
}

// sinkFrames walks a byte region holding zero or more whole length-prefixed
// frames (as produced by spillBuffer.Bytes) and hands them to sink one frame
// at a time, never a region larger than a single frame. The Initial Buffer
// can hold up to ~1 MiB (spec.md §3), far more than a transport.Conn's fixed
// send buffer, so replaying it as one oversized SendRaw call would overflow
// that buffer and fail outright; streaming frame-by-frame lets sink (backed
// by Conn.SendRaw) flush between frames exactly as it would for any other
// traffic (spec.md §4.4 "Replay on new sinks", testable property #6).
func sinkFrames(data []byte, sink func(raw []byte) error) error {
	for len(data) > 0 {
		if len(data) < 2 {
			return packet.ErrorTruncated.Error(nil)
		}
		length := int(binary.BigEndian.Uint16(data[0:2]))
		if length < 2 || length > len(data) {
			return packet.ErrorTruncated.Error(nil)
		}
		if err := sink(data[:length]); err != nil {
			return err
		}
		data = data[length:]
	}
	return nil
}
