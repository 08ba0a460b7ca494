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
	"sync"

	"github.com/blackbox-telemetry/blackbox/packet"
)

// Thread is the explicit stand-in for the reference implementation's
// thread-local scratch state (spec.md §4.4, §9: "thread-local storage;
// lifecycle tied to ThreadEnd"). Go goroutines are not OS threads and carry
// no equivalent storage, so callers hold the handle returned by ThreadStart
// for as long as the logical unit of work runs and call End when it's done,
// the same way a context.CancelFunc is threaded through by callers rather
// than discovered implicitly.
type Thread struct {
	h  *Handle
	id uint64

	mu      sync.Mutex
	ended   bool
	colorFG uint32
	colorBG uint32
}

// ThreadStart registers a new logical thread of execution and gives it name
// (spec.md §3 ThreadStart/ThreadName). The registration is cached under
// threadMu so it replays onto any sink opened after this call.
func (h *Handle) ThreadStart(name string) *Thread {
	h.threadMu.Lock()
	h.nextThreadID++
	id := h.nextThreadID
	h.threadMu.Unlock()

	t := &Thread{h: h, id: id, colorFG: packet.ColorDefault, colorBG: packet.ColorDefault}

	start := &packet.Packet{
		Type:   packet.TypeThreadStart,
		Header: h.header(id, 0, 0),
	}

	h.threadMu.Lock()
	h.threadOrder = append(h.threadOrder, id)
	h.threadStart[id] = start
	h.threadMu.Unlock()

	h.dispatch(start)
	if name != "" {
		t.SetName(name)
	}
	return t
}

// ID returns the interned thread id stamped into every Header this Thread
// produces.
func (t *Thread) ID() uint64 {
	return t.id
}

// SetName (re)labels the thread. The latest name per thread id is what gets
// replayed onto a new sink, not the full history of renames.
func (t *Thread) SetName(name string) {
	p := &packet.Packet{
		Type:   packet.TypeThreadName,
		Header: t.h.header(t.id, 0, 0),
		Text:   name,
	}

	t.h.threadMu.Lock()
	t.h.threadName[t.id] = p
	t.h.threadMu.Unlock()

	t.h.dispatch(p)
}

// End retires the thread: it emits ThreadEnd and drops the thread from the
// replay set, so a later reconnect never resurrects a thread that already
// finished (spec.md §4.4 "lifecycle tied to ThreadEnd").
func (t *Thread) End() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	t.mu.Unlock()

	t.h.threadMu.Lock()
	delete(t.h.threadStart, t.id)
	delete(t.h.threadName, t.id)
	for i, id := range t.h.threadOrder {
		if id == t.id {
			t.h.threadOrder = append(t.h.threadOrder[:i], t.h.threadOrder[i+1:]...)
			break
		}
	}
	t.h.threadMu.Unlock()

	t.h.dispatch(&packet.Packet{
		Type:   packet.TypeThreadEnd,
		Header: t.h.header(t.id, 0, 0),
	})
}

// Log records one log line on this thread at (file, line), fragmenting text
// longer than packet.MaxLogTextLen-1 into LogTextPartial chunks followed by
// a terminating LogText, the same splitting the reference implementation's
// wire format requires for any message that doesn't fit one frame
// (spec.md §3 LogTextPartial/LogText, testable property #4). A trailing
// newline is appended when text doesn't already end in one, matching
// bb_trace_end's normalization in the reference implementation. Every
// frame is stamped with this thread's current color pair, last set by
// SetColor (spec.md §4.4, §9 "current color pair").
func (t *Thread) Log(file string, line int, category string, level packet.Level, text string) {
	if len(text) == 0 || text[len(text)-1] != '\n' {
		text += "\n"
	}

	fileID := t.h.fileID(file)
	catID := t.h.categoryID(category)
	header := t.h.header(t.id, line, fileID)

	t.mu.Lock()
	fg, bg := t.colorFG, t.colorBG
	t.mu.Unlock()

	const chunkLimit = packet.MaxLogTextLen - 1

	if len(text) <= chunkLimit {
		t.h.dispatch(&packet.Packet{
			Type:       packet.TypeLogText,
			Header:     header,
			CategoryID: catID,
			Level:      level,
			ColorFG:    fg,
			ColorBG:    bg,
			Text:       text,
		})
		return
	}

	for len(text) > chunkLimit {
		t.h.dispatch(&packet.Packet{
			Type:       packet.TypeLogTextPartial,
			Header:     header,
			CategoryID: catID,
			Level:      level,
			ColorFG:    fg,
			ColorBG:    bg,
			Text:       text[:chunkLimit],
		})
		text = text[chunkLimit:]
	}
	t.h.dispatch(&packet.Packet{
		Type:       packet.TypeLogText,
		Header:     header,
		CategoryID: catID,
		Level:      level,
		ColorFG:    fg,
		ColorBG:    bg,
		Text:       text,
	})
}

// SetColor updates this thread's current color pair (spec.md §4.4, §9
// "current color pair"); it sends nothing. Every subsequent Log call stamps
// this pair into its LogText/LogTextPartial frames until the next SetColor,
// mirroring the reference implementation's bb_set_color: bb_trace_end only
// calls bb_resolve_and_set_colors to update s_bb_colors when the pseudo-level
// is kBBLogLevel_SetColor, and otherwise stamps s_bb_colors into the frame
// it sends — it never emits a frame for the color change itself.
func (t *Thread) SetColor(fg, bg uint32) {
	t.mu.Lock()
	t.colorFG = fg
	t.colorBG = bg
	t.mu.Unlock()
}
