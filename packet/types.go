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

// Package packet implements the Blackbox wire codec: a length-prefixed,
// type-tagged binary record format shared by the client runtime, the
// recording ingestion worker and the recording file itself.
package packet

import "fmt"

// Type is the on-wire discriminant. Numeric codes are append-only: once
// shipped, a code must never be reused or reassigned to keep old recording
// files decodable.
type Type uint8

const (
	TypeUnknown Type = 0

	TypeAppInfo    Type = 1
	TypeFileID     Type = 2
	TypeCategoryID Type = 3

	TypeThreadStart Type = 4
	TypeThreadName  Type = 5
	TypeThreadEnd   Type = 6

	TypeLogText        Type = 7
	TypeLogTextPartial Type = 8

	TypeFrameNumber Type = 9
	TypeFrameEnd    Type = 10

	TypeConsoleCommand Type = 11
	TypeUserToServer   Type = 12
	TypeUserToClient   Type = 13

	TypeConsoleAutocompleteRequest        Type = 14
	TypeConsoleAutocompleteResponseHeader Type = 15
	TypeConsoleAutocompleteResponseEntry  Type = 16

	TypeRecordingInfo Type = 17
	TypeRestart       Type = 18

	// Legacy variants, retained for decode-only forward compatibility.
	// Encoders never emit these; see DecodeVariant.
	TypeAppInfoV1 Type = 19
	TypeAppInfoV2 Type = 20
	TypeAppInfoV3 Type = 21
	TypeAppInfoV4 Type = 22
	TypeAppInfoV5 Type = 23

	TypeLogTextV1 Type = 24
	TypeLogTextV2 Type = 25
)

func (t Type) String() string {
	switch t {
	case TypeAppInfo, TypeAppInfoV1, TypeAppInfoV2, TypeAppInfoV3, TypeAppInfoV4, TypeAppInfoV5:
		return "AppInfo"
	case TypeFileID:
		return "FileId"
	case TypeCategoryID:
		return "CategoryId"
	case TypeThreadStart:
		return "ThreadStart"
	case TypeThreadName:
		return "ThreadName"
	case TypeThreadEnd:
		return "ThreadEnd"
	case TypeLogText, TypeLogTextV1, TypeLogTextV2:
		return "LogText"
	case TypeLogTextPartial:
		return "LogTextPartial"
	case TypeFrameNumber:
		return "FrameNumber"
	case TypeFrameEnd:
		return "FrameEnd"
	case TypeConsoleCommand:
		return "ConsoleCommand"
	case TypeUserToServer:
		return "UserToServer"
	case TypeUserToClient:
		return "UserToClient"
	case TypeConsoleAutocompleteRequest:
		return "ConsoleAutocompleteRequest"
	case TypeConsoleAutocompleteResponseHeader:
		return "ConsoleAutocompleteResponseHeader"
	case TypeConsoleAutocompleteResponseEntry:
		return "ConsoleAutocompleteResponseEntry"
	case TypeRecordingInfo:
		return "RecordingInfo"
	case TypeRestart:
		return "Restart"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// IsLogText reports whether t decodes (after version promotion) to a
// canonical LogText packet.
func (t Type) IsLogText() bool {
	return t == TypeLogText || t == TypeLogTextV1 || t == TypeLogTextV2
}

// IsAppInfo reports whether t decodes (after version promotion) to a
// canonical AppInfo packet.
func (t Type) IsAppInfo() bool {
	switch t {
	case TypeAppInfo, TypeAppInfoV1, TypeAppInfoV2, TypeAppInfoV3, TypeAppInfoV4, TypeAppInfoV5:
		return true
	default:
		return false
	}
}

// Level mirrors the instrumented application's log severities.
type Level uint8

const (
	LevelLog Level = iota
	LevelWarning
	LevelError
	LevelVerbose
	LevelVeryVerbose
	// LevelSetColor is a pseudo-level: the text carries a binary-encoded
	// color pair instead of a message and never reaches the wire as text.
	LevelSetColor
)

// ColorDefault is the sentinel written when a legacy variant carries no
// explicit color pair (kBBColor_Default in the reference implementation).
const ColorDefault uint32 = 0xFFFFFFFF

// Header is the fixed 24-byte prefix shared by every packet body.
type Header struct {
	Timestamp uint64 // ticks since AppInfo.InitialTimestamp
	ThreadID  uint64
	FileID    uint32
	Line      uint32
}

const HeaderSize = 24

// Packet is a decoded wire record. Only the fields relevant to Type are
// meaningful; the others are left at their zero value. A single struct
// (rather than one type per variant) keeps the codec's encode/decode
// symmetric and keeps callers from type-switching on an interface for what
// is, on the wire, a flat tagged union.
type Packet struct {
	Type   Type
	Header Header

	// AppInfo
	InitialTimestamp     uint64
	MillisPerTick        float64
	ApplicationName      string
	ApplicationGroup     string
	InitFlags            uint32
	Platform             uint32
	MicrosecondsFromEpoch uint64

	// FileId / CategoryId
	ID   uint32
	Name string

	// ThreadStart / ThreadName / ThreadEnd / ConsoleCommand /
	// ConsoleAutocompleteRequest / RecordingInfo / LogText* / LogTextPartial
	Text string

	// LogText / LogTextPartial
	CategoryID  uint32
	Level       Level
	PieInstance int32
	ColorFG     uint32
	ColorBG     uint32

	// FrameNumber
	Number uint32

	// UserToServer / UserToClient / ConsoleAutocompleteResponseEntry opaque payloads
	Payload []byte
}

const (
	MaxAppNameLen  = 64
	MaxGroupLen    = 64
	MaxLogTextLen  = 2048
	MaxFrameLength = 4096
)
