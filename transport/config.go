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

package transport

import (
	"time"

	libdur "github.com/blackbox-telemetry/blackbox/duration"
)

// FlushDeadline is the wall-clock bound on a blocking Flush. Kept as a
// package constant rather than a Config field: varying it per connection
// would make the wire-level backpressure contract implementation-defined.
const FlushDeadline = libdur.Duration(2 * time.Second)

const (
	sendBufferSize = 8 * 1024
	recvBufferSize = 32 * 1024

	defaultSendInterval   = libdur.Duration(500 * time.Millisecond)
	defaultConnectTimeout = libdur.Duration(10 * time.Second)
)

// Config parameterizes a Conn. Zero-value fields fall back to the defaults
// named in spec.md §4.2/§5.
type Config struct {
	// SendInterval is the minimum interval between opportunistic,
	// non-retrying flushes issued after a successful Send. Default 500ms.
	SendInterval libdur.Duration

	// ConnectTimeout bounds a single Connecting attempt. Default 10s.
	ConnectTimeout libdur.Duration

	// TickTimeout bounds the readability poll performed by Tick. The spec
	// names 100µs for a server Conn and 0 for a client Conn; callers set it
	// explicitly rather than relying on a shared default.
	TickTimeout libdur.Duration

	// OnError receives diagnostics for conditions that do not themselves
	// return an error to the caller (e.g. a dropped oversized frame).
	OnError FuncError

	// OnInfo is notified on every connection-state transition.
	OnInfo FuncInfo
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

func (c Config) onError(errs ...error) {
	if c.OnError != nil {
		c.OnError(errs...)
	}
}

func (c Config) onInfo(local, remote fmtStringer, state ConnState) {
	if c.OnInfo != nil {
		c.OnInfo(local, remote, state)
	}
}

// fmtStringer mirrors net.Addr's single method so Conn need not import net
// into this file just to name the parameter type of FuncInfo callers.
type fmtStringer interface {
	String() string
}
