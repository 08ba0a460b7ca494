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
	liberr "github.com/blackbox-telemetry/blackbox/errors"
)

// Error codes for the transport package. Offset from liberr.MinAvailable so
// the range does not collide with packet's own reserved block.
const (
	ErrorNotConnected liberr.CodeError = iota + liberr.MinAvailable + 100

	// ErrorSendBufferFull indicates try_send found no room and declined to block.
	ErrorSendBufferFull

	// ErrorFlushTimeout indicates a blocking flush did not drain within
	// FlushDeadline.
	ErrorFlushTimeout

	// ErrorConnectTimeout indicates Connecting did not reach Connected within
	// Config.ConnectTimeout.
	ErrorConnectTimeout

	// ErrorPeerClosed indicates recv returned zero or an error, the socket's
	// peer-fatal condition (spec §7).
	ErrorPeerClosed

	// ErrorListen indicates init_server's listen/bind call failed.
	ErrorListen

	// ErrorAlreadyConnecting indicates ConnectAsync was called while a
	// connect attempt was already in flight.
	ErrorAlreadyConnecting
)
