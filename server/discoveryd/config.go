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

// Package discoveryd implements the UDP discovery/reservation server
// (spec.md §4.5): it answers broadcast discovery probes, hands out TCP
// reservations to whitelisted applications, and queues the accepted
// listener for handoff to an ingestion worker.
package discoveryd

import (
	"time"

	"github.com/blackbox-telemetry/blackbox/discovery"
	libdur "github.com/blackbox-telemetry/blackbox/duration"
	"github.com/blackbox-telemetry/blackbox/logger"
	"github.com/blackbox-telemetry/blackbox/server/whitelist"
)

// PollTimeout bounds how long a single socket read blocks per Tick call
// (spec.md §4.5 step 2 names a 100ms select timeout; this implementation
// polls each socket in turn rather than selecting on both at once, see
// DESIGN.md).
const PollTimeout = libdur.Duration(100 * time.Millisecond)

// PendingQueueSize is the bound on the handoff queue between the discovery
// server and the main loop that spawns ingestion workers (spec.md §4.5).
const PendingQueueSize = 64

// Config configures a discovery Server.
type Config struct {
	// BindAddr is the local address to bind, e.g. "0.0.0.0". Empty binds
	// to all interfaces.
	BindAddr string

	// Port is the UDP discovery port. Zero selects discovery.DefaultPort;
	// a negative value binds an OS-assigned ephemeral port, for tests.
	Port int

	// EnableV6 also binds a udp6 socket on the same port.
	EnableV6 bool

	// Whitelist resolves whether an application may discover/reserve.
	Whitelist *whitelist.Resolver

	// DeviceCodeValid optionally authorizes a reservation by device code
	// even when the whitelist does not match (spec.md §6 device-code
	// table collaborator). May be nil.
	DeviceCodeValid func(code string) bool

	// Log supplies the logger used for dropped/malformed datagrams.
	Log logger.FuncLog
}

func (c Config) port() int {
	switch {
	case c.Port > 0:
		return c.Port
	case c.Port < 0:
		return 0
	default:
		return discovery.DefaultPort
	}
}
