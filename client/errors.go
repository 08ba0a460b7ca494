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
	liberr "github.com/blackbox-telemetry/blackbox/errors"
)

// Error codes for the client package, reserved at liberr.MinAvailable+300.
const (
	// ErrorMissingAppName indicates New was called with no ApplicationName.
	ErrorMissingAppName liberr.CodeError = iota + liberr.MinAvailable + 300

	// ErrorConnectFailed indicates Connect did not reach Connected within
	// its bounded attempt (spec.md §4.2 connect state machine, testable
	// property #7).
	ErrorConnectFailed

	// ErrorMirrorOpen indicates the file-mirror sink could not be opened.
	ErrorMirrorOpen

	// ErrorMirrorWrite indicates a write to the file-mirror sink failed.
	// Per spec.md §7 this is reported but does not close the socket.
	ErrorMirrorWrite
)
