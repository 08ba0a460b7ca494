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

// Package client implements the Blackbox client-capture runtime (spec.md
// §4.4): thread-scoped log emission, id interning, pre-connect spill
// buffering and file mirroring, and replay of cached state onto any newly
// opened sink (a socket reaching Connected, or a mirror file opened after
// construction).
//
// The reference implementation models this as hidden process-wide global
// state (spec.md §9: "represent as an explicit context struct owned by a
// process-wide handle"). This package instead returns that context struct
// as an ordinary *Handle value, the same way the teacher's own singleton-ish
// subsystems (logger.New) are constructed rather than reached through a
// package-level global; an embedder that wants one Handle per process is
// free to keep a single instance, but nothing here enforces it.
package client

import (
	"net"
	"strconv"
	"sync"
	"time"

	libatm "github.com/blackbox-telemetry/blackbox/atomic"
	libctx "github.com/blackbox-telemetry/blackbox/context"
	loglvl "github.com/blackbox-telemetry/blackbox/logger/level"
	"github.com/blackbox-telemetry/blackbox/packet"
	"github.com/blackbox-telemetry/blackbox/transport"
)

// Handle is one capture session: one connection, one id table, one cached
// app-info snapshot, one incoming-packet handler (spec.md §9).
type Handle struct {
	cfg Config
	// ctx is the lifecycle root an embedder's own shutdown path can key
	// off of, the same role libctx.Config plays for the teacher's other
	// long-lived subsystems.
	ctx       libctx.Config[string]
	startTime time.Time

	conn *transport.Conn

	// idMu is id_cs (spec.md §5): guards the id tables, the cached
	// app-info/registration list, and is held across the whole replay.
	idMu           sync.Mutex
	fileIDs        map[string]uint32
	categoryIDs    map[string]uint32
	nextFileID     uint32
	nextCategoryID uint32
	registrations  []*packet.Packet
	appInfo        *packet.Packet

	// threadMu guards the replay-relevant thread start/name packets. It is
	// a separate lock from idMu; replay takes idMu first, then threadMu,
	// consistently in that order (see replayInto).
	threadMu     sync.Mutex
	nextThreadID uint64
	threadOrder  []uint64
	threadStart  map[uint64]*packet.Packet
	threadName   map[uint64]*packet.Packet

	spill *spillBuffer

	mirrorMu sync.Mutex
	mirror   *mirrorFile

	lastMirrorFlush time.Time

	disabled    libatm.Value[bool]
	initialized libatm.Value[bool]
}

// New builds a Handle and captures its app-info snapshot. The snapshot is
// sent exactly once per connection, first (spec.md §3 AppInfo), replayed
// verbatim to every later sink.
func New(cfg Config) (*Handle, error) {
	if cfg.ApplicationName == "" {
		return nil, ErrorMissingAppName.Error()
	}

	h := &Handle{
		cfg:           cfg,
		ctx:           libctx.New[string](nil),
		startTime:     time.Now(),
		fileIDs:     make(map[string]uint32),
		categoryIDs: make(map[string]uint32),
		threadStart: make(map[uint64]*packet.Packet),
		threadName:  make(map[uint64]*packet.Packet),
	}
	h.disabled = libatm.NewValueDefault[bool](false, false)
	h.initialized = libatm.NewValueDefault[bool](false, false)

	if len(cfg.InitialBuffer) > 0 {
		h.spill = newSpillBuffer(cfg.InitialBuffer)
	}

	h.appInfo = &packet.Packet{
		Type:             packet.TypeAppInfo,
		Header:           h.header(0, 0, 0),
		InitialTimestamp: uint64(h.startTime.UnixMicro()),
		MillisPerTick:    1.0,
		ApplicationName:  cfg.ApplicationName,
		ApplicationGroup: cfg.ApplicationGroup,
		InitFlags:        uint32(cfg.InitFlags),
		Platform:         cfg.platform(),
	}

	h.conn = transport.New(transport.Config{
		SendInterval:   cfg.sendInterval(),
		ConnectTimeout: cfg.connectTimeout(),
		TickTimeout:    0, // client Conn: §4.2 names a 0µs tick timeout
		OnError: func(errs ...error) {
			for _, e := range errs {
				h.getLog().CheckError(loglvl.WarnLevel, loglvl.NilLevel, "transport", e)
			}
		},
	})

	h.lastMirrorFlush = time.Now()
	h.initialized.Store(true)

	if cfg.MirrorPath != "" {
		if err := h.OpenMirror(cfg.MirrorPath); err != nil {
			h.getLog().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "opening client mirror file", err)
		}
	}

	return h, nil
}

func (h *Handle) header(threadID uint64, line int, fileID uint32) packet.Header {
	return packet.Header{
		Timestamp: h.ticks(),
		ThreadID:  threadID,
		FileID:    fileID,
		Line:      uint32(line),
	}
}

// ticks reports elapsed milliseconds since construction; AppInfo.MillisPerTick
// is fixed at 1.0, so a tick and a millisecond coincide.
func (h *Handle) ticks() uint64 {
	return uint64(time.Since(h.startTime) / time.Millisecond)
}

// Connect establishes a session to ip:port (spec.md §4.4 connect). It blocks
// up to Config.ConnectTimeout (plus a small grace margin), the same bound
// transport.Conn's own non-blocking state machine observes internally.
func (h *Handle) Connect(ip string, port int) error {
	return h.connectAddr(net.JoinHostPort(ip, strconv.Itoa(port)))
}

// ConnectStr is Connect with a pre-formatted host (spec.md §4.4 connect_str).
func (h *Handle) ConnectStr(host string, port int) error {
	return h.connectAddr(net.JoinHostPort(host, strconv.Itoa(port)))
}

// ConnectDirect connects to an already host:port formatted address (spec.md
// §4.4 connect_direct).
func (h *Handle) ConnectDirect(addr string) error {
	return h.connectAddr(addr)
}

func (h *Handle) connectAddr(addr string) error {
	if h.disabled.Load() || !h.initialized.Load() {
		return nil
	}

	h.conn.ConnectAsync(addr)

	deadline := time.Now().Add(h.cfg.connectTimeout().Time() + 100*time.Millisecond)
	for time.Now().Before(deadline) {
		_ = h.conn.Tick()
		switch h.conn.State() {
		case transport.Connected:
			return h.onConnected()
		case transport.NotConnected:
			return ErrorConnectFailed.Error()
		}
		time.Sleep(time.Millisecond)
	}
	return ErrorConnectFailed.Error()
}

// onConnected replays the cached app-info, every interned registration,
// every known thread name, then the spill buffer's contents onto the fresh
// connection, in that order (spec.md §4.4 "Replay on new sinks").
func (h *Handle) onConnected() error {
	return h.replayInto(func(raw []byte) error {
		return h.conn.SendRaw(raw)
	})
}

// Disconnect flushes and closes the connection; further logs go to the file
// mirror/callbacks only (spec.md §4.4 disconnect).
func (h *Handle) Disconnect() error {
	_ = h.conn.Flush()
	return h.conn.Close()
}

// IsConnected reports whether the underlying transport currently has a live
// socket.
func (h *Handle) IsConnected() bool {
	return h.conn.IsConnected()
}

// Tick drains incoming server->client packets to Config.OnIncoming and
// periodically flushes the file mirror (spec.md §4.4 tick).
func (h *Handle) Tick() {
	if h.disabled.Load() {
		return
	}

	if err := h.conn.Tick(); err != nil {
		h.getLog().CheckError(loglvl.DebugLevel, loglvl.NilLevel, "client tick", err)
	}

	for {
		p, err := h.conn.DecodePacket()
		if err != nil {
			h.getLog().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "malformed frame from server", err)
			break
		}
		if p == nil {
			break
		}
		if h.cfg.OnIncoming != nil {
			h.cfg.OnIncoming(p)
		}
	}

	if time.Since(h.lastMirrorFlush) >= mirrorFlushInterval.Time() {
		h.flushMirror()
		h.lastMirrorFlush = time.Now()
	}
}

// Flush synchronously flushes the socket and the file mirror (spec.md §4.4
// flush).
func (h *Handle) Flush() error {
	err := h.conn.Flush()
	h.flushMirror()
	return err
}

// Shutdown emits ThreadEnd for callsite (if non-nil), flushes and closes the
// connection and mirror file, then disables the Handle: every subsequent
// operation is a no-op (spec.md §4.4 shutdown, §7 "shutdown is always safe
// to call").
func (h *Handle) Shutdown(callsite *Thread) error {
	if h.disabled.Load() {
		return nil
	}
	if callsite != nil {
		callsite.End()
	}
	_ = h.Flush()
	_ = h.conn.Close()
	h.closeMirror()
	h.disabled.Store(true)
	return nil
}

// dispatch is the single exit path for every outgoing packet: the send
// callback, the wire encode, the write callback, the file mirror, and
// finally the socket or the pre-connect spill buffer (spec.md §4.4, §7
// "every call site funnels through one send path").
func (h *Handle) dispatch(p *packet.Packet) {
	if h.disabled.Load() {
		return
	}

	if h.cfg.OnSend != nil {
		h.cfg.OnSend(p)
	}

	raw, err := packet.Encode(p)
	if err != nil {
		h.getLog().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "encoding outgoing packet", err)
		return
	}

	if h.cfg.OnWrite != nil {
		h.cfg.OnWrite(raw)
	}

	h.writeMirror(raw)

	if !h.conn.IsConnected() {
		// Only log text needs to spill: FileId/CategoryId registrations and
		// thread name/start/end packets are already held in their own caches
		// and replayed from there (see replayInto). Spilling them too would
		// replay them twice onto the next sink.
		if h.spill != nil && (p.Type.IsLogText() || p.Type == packet.TypeLogTextPartial) {
			if _, latched := h.spill.TryAppend(raw); latched {
				h.getLog().CheckError(loglvl.NilLevel, loglvl.WarnLevel,
					"client initial buffer full; further pre-connect logs are dropped")
			}
		}
		return
	}

	if err = h.conn.SendRaw(raw); err != nil {
		h.getLog().CheckError(loglvl.WarnLevel, loglvl.NilLevel, "sending packet", err)
	}
}
