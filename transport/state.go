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

// Package transport implements the Blackbox framed connection: a
// length-prefixed TCP stream with lock-protected send/receive ring buffers,
// a non-blocking connect state machine and bounded backpressure (spec §4.2).
package transport

import "fmt"

// State is the connection lifecycle state (§4.2's state machine).
type State uint8

const (
	NotConnected State = iota
	Listening
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case Listening:
		return "Listening"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ConnState identifies a point in a single connection's lifecycle, used for
// info-callback notifications (naming grounded on the pack's socket test
// fixtures' ConnState enum; see DESIGN.md).
type ConnState uint8

const (
	ConnectionDial ConnState = iota
	ConnectionNew
	ConnectionRead
	ConnectionHandler
	ConnectionWrite
	ConnectionClose
)

func (c ConnState) String() string {
	switch c {
	case ConnectionDial:
		return "Dial Connection"
	case ConnectionNew:
		return "New Connection"
	case ConnectionRead:
		return "Read Incoming Stream"
	case ConnectionHandler:
		return "Run HandlerFunc"
	case ConnectionWrite:
		return "Write Outgoing Steam"
	case ConnectionClose:
		return "Close Connection"
	default:
		return fmt.Sprintf("ConnState(%d)", uint8(c))
	}
}

// Role is a set of bit flags describing what a Conn is being used for.
type Role uint8

const (
	RoleClient Role = 1 << iota
	RoleServer
	RoleBlackbox
)

// FuncError receives errors observed by a Conn's background goroutines.
type FuncError func(errs ...error)

// FuncInfo is notified on every connection-state transition.
type FuncInfo func(local, remote interface{ String() string }, state ConnState)
