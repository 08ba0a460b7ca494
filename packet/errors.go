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

package packet

import (
	liberr "github.com/blackbox-telemetry/blackbox/errors"
)

// Error codes for the packet package. Reserved range starts at
// liberr.MinAvailable, the first code block not claimed by any teacher
// package (see errors/modules.go).
const (
	ErrorOutOfSpace liberr.CodeError = iota + liberr.MinAvailable

	// ErrorTruncated indicates the length prefix promised more bytes than
	// were actually available in the buffer being decoded.
	ErrorTruncated

	// ErrorUnknownType indicates a type byte with no known decoder, which is
	// always treated as a malformed frame (the stream cannot resync mid-body).
	ErrorUnknownType

	// ErrorFrameTooLarge indicates an encode would exceed MaxFrameLength.
	ErrorFrameTooLarge
)
