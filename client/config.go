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
	"context"
	"runtime"
	"time"

	libdur "github.com/blackbox-telemetry/blackbox/duration"
	"github.com/blackbox-telemetry/blackbox/logger"
	"github.com/blackbox-telemetry/blackbox/packet"
)

// InitFlag mirrors the embedder-supplied bit flags named in spec.md §6.
type InitFlag uint32

const (
	// NoOpenView asks the server-side UI collaborator not to open a viewer
	// for this recording automatically.
	NoOpenView InitFlag = 1 << iota
	// DebugInit enables extra diagnostics around the init/connect sequence.
	DebugInit
	// ConsoleCommands opts into receiving ConsoleCommand packets from the
	// server through Config.OnIncoming.
	ConsoleCommands
	// NoDiscovery restricts Connect to loopback/direct addressing; the
	// discovery client is never invoked.
	NoDiscovery
	// RecordingInfo requests a RecordingInfo packet from the server.
	RecordingInfo
	// ConsoleAutocomplete opts into the autocomplete request/response
	// packet family.
	ConsoleAutocomplete
)

const (
	defaultSendInterval   = libdur.Duration(500 * time.Millisecond)
	defaultConnectTimeout = libdur.Duration(10 * time.Second)

	// mirrorFlushInterval bounds how long dirty mirror-file bytes may sit
	// unflushed (spec.md §4.4: "periodically flushes the file mirror
	// (every 500 ms)").
	mirrorFlushInterval = libdur.Duration(500 * time.Millisecond)
)

// Config parameterizes a Handle. The spec's "set_initial_buffer must be
// called before init" ordering constraint (§4.4) is expressed here as a
// constructor field instead: InitialBuffer, if non-nil, is wired up before
// New returns, so no call ordering can violate it.
type Config struct {
	// ApplicationName identifies the producer; required.
	ApplicationName string
	// ApplicationGroup optionally buckets related applications together.
	ApplicationGroup string
	// SourceIP is kept on the Config only; nothing in this package reads
	// it, and it does not change which interface outbound sockets bind to.
	SourceIP string
	// Platform overrides the AppInfo platform code; zero means "derive
	// from runtime.GOOS".
	Platform uint32
	// InitFlags are the embedder's requested behavior flags.
	InitFlags InitFlag

	// InitialBuffer, if set, designates the pre-connection spill region
	// (spec.md §3 Initial Buffer / §4.4 set_initial_buffer).
	InitialBuffer []byte

	// MirrorPath, if set, opens a file mirror of every outgoing packet at
	// construction time (spec.md §4.4 "file mirror").
	MirrorPath string

	// SendInterval/ConnectTimeout override the framed connection's
	// defaults (spec.md §4.2/§5).
	SendInterval   libdur.Duration
	ConnectTimeout libdur.Duration

	// OnSend, if set, is invoked with every decoded outgoing packet
	// (spec.md §4.4 "send-callback").
	OnSend func(p *packet.Packet)
	// OnWrite, if set, is invoked with every outgoing packet's serialized
	// bytes (spec.md §4.4 "write-callback").
	OnWrite func(raw []byte)
	// OnIncoming receives server->client packets drained by Tick (console
	// commands, autocomplete responses).
	OnIncoming func(p *packet.Packet)

	// Log supplies the diagnostic logger; nil falls back to a fresh
	// logger.New(context.Background()) per call, matching the teacher's
	// FuncLog convention (see server/ingest, server/discoveryd).
	Log logger.FuncLog
}

func (c Config) sendInterval() libdur.Duration {
	if c.SendInterval <= 0 {
		return defaultSendInterval
	}
	return c.SendInterval
}

func (c Config) connectTimeout() libdur.Duration {
	if c.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return c.ConnectTimeout
}

func (c Config) platform() uint32 {
	if c.Platform != 0 {
		return c.Platform
	}
	switch runtime.GOOS {
	case "windows":
		return 1
	case "darwin":
		return 2
	case "linux":
		return 3
	default:
		return 0
	}
}

func (h *Handle) getLog() logger.Logger {
	if h.cfg.Log != nil {
		if l := h.cfg.Log(); l != nil {
			return l
		}
	}
	return logger.New(context.Background())
}
