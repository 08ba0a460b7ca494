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

package discovery

import (
	liberr "github.com/blackbox-telemetry/blackbox/errors"
)

// Error codes for the discovery package, reserved at liberr.MinAvailable+200.
const (
	ErrorBadMagic liberr.CodeError = iota + liberr.MinAvailable + 200

	// ErrorBadVersion indicates a protocolVersion mismatch. Per spec.md §4.3
	// this is a silent-drop condition at the caller; the code exists so
	// callers that want a diagnostic can still distinguish it from garbage.
	ErrorBadVersion

	// ErrorTruncated indicates a datagram shorter than its fixed prefix.
	ErrorTruncated

	// ErrorUnknownRequestType / ErrorUnknownResponseType indicate a type byte
	// with no known decoder.
	ErrorUnknownRequestType
	ErrorUnknownResponseType

	// ErrorNameTooLong indicates an ApplicationName/DeviceCode exceeding
	// MaxAppNameLen.
	ErrorNameTooLong

	// ErrorReservationRefused / ErrorReservationTimeout / ErrorDiscoveryTimeout
	// are the client state machine's failure outcomes (spec.md §4.3).
	ErrorReservationRefused
	ErrorReservationTimeout
	ErrorDiscoveryTimeout
)
