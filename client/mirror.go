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
	"bufio"
	"os"

	loglvl "github.com/blackbox-telemetry/blackbox/logger/level"
)

// mirrorFile is the optional on-disk duplicate of every outgoing frame
// (spec.md §4.4 "file mirror"), written through a buffered writer and
// flushed by Handle.Tick every mirrorFlushInterval (500ms), by Handle.Flush,
// and on close.
type mirrorFile struct {
	f *os.File
	w *bufio.Writer
}

func openMirror(path string) (*mirrorFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ErrorMirrorOpen.Error(err)
	}
	return &mirrorFile{f: f, w: bufio.NewWriterSize(f, 32*1024)}, nil
}

// OpenMirror (re)opens the file mirror at path and immediately replays the
// current cached state onto it (spec.md §4.4 "Replay on new sinks" applies
// to a freshly opened mirror file exactly as it does to a freshly connected
// socket).
func (h *Handle) OpenMirror(path string) error {
	m, err := openMirror(path)
	if err != nil {
		return err
	}

	h.mirrorMu.Lock()
	if h.mirror != nil {
		_ = h.mirror.w.Flush()
		_ = h.mirror.f.Close()
	}
	h.mirror = m
	h.mirrorMu.Unlock()

	return h.replayInto(h.writeMirrorRaw)
}

func (h *Handle) writeMirror(raw []byte) {
	h.mirrorMu.Lock()
	defer h.mirrorMu.Unlock()
	if h.mirror == nil {
		return
	}
	if err := h.writeMirrorLocked(raw); err != nil {
		h.getLog().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "writing client mirror file", err)
	}
}

// writeMirrorRaw is writeMirror's error-returning twin, used by replayInto
// which already knows how to report a sink failure to its caller.
func (h *Handle) writeMirrorRaw(raw []byte) error {
	h.mirrorMu.Lock()
	defer h.mirrorMu.Unlock()
	if h.mirror == nil {
		return nil
	}
	return h.writeMirrorLocked(raw)
}

func (h *Handle) writeMirrorLocked(raw []byte) error {
	if _, err := h.mirror.w.Write(raw); err != nil {
		return ErrorMirrorWrite.Error(err)
	}
	return nil
}

func (h *Handle) flushMirror() {
	h.mirrorMu.Lock()
	defer h.mirrorMu.Unlock()
	if h.mirror == nil {
		return
	}
	if err := h.mirror.w.Flush(); err != nil {
		h.getLog().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "flushing client mirror file", err)
		return
	}
	_ = h.mirror.f.Sync()
}

func (h *Handle) closeMirror() {
	h.mirrorMu.Lock()
	defer h.mirrorMu.Unlock()
	if h.mirror == nil {
		return
	}
	_ = h.mirror.w.Flush()
	_ = h.mirror.f.Close()
	h.mirror = nil
}
