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
	"bytes"
	"encoding/binary"
	"math"
)

// byteOrder is the single homogeneous byte order used for every numeric
// field except the outer length prefix, which is always big-endian on the
// wire (§4.1). The protocol targets one byte order across peers; mixed
// endian deployments are out of scope.
var byteOrder = binary.LittleEndian

// minFrameOverhead is length-prefix(2) + type(1) + header(24).
const minFrameOverhead = 2 + 1 + HeaderSize

// Encode serializes p into a single length-prefixed frame. Encoders only
// ever emit the canonical (newest) variant of a type; passing a legacy
// Type constant is a programming error and returns ErrorUnknownType.
func Encode(p *Packet) ([]byte, error) {
	body, err := encodeBody(p)
	if err != nil {
		return nil, err
	}

	total := minFrameOverhead + len(body)
	if total > MaxFrameLength {
		return nil, ErrorFrameTooLarge.Error(nil)
	}

	out := make([]byte, 2, total)
	binary.BigEndian.PutUint16(out[0:2], uint16(total))
	out = append(out, byte(p.Type))
	out = appendHeader(out, p.Header)
	out = append(out, body...)
	return out, nil
}

func appendHeader(dst []byte, h Header) []byte {
	var tmp [HeaderSize]byte
	byteOrder.PutUint64(tmp[0:8], h.Timestamp)
	byteOrder.PutUint64(tmp[8:16], h.ThreadID)
	byteOrder.PutUint32(tmp[16:20], h.FileID)
	byteOrder.PutUint32(tmp[20:24], h.Line)
	return append(dst, tmp[:]...)
}

func readHeader(b []byte) Header {
	return Header{
		Timestamp: byteOrder.Uint64(b[0:8]),
		ThreadID:  byteOrder.Uint64(b[8:16]),
		FileID:    byteOrder.Uint32(b[16:20]),
		Line:      byteOrder.Uint32(b[20:24]),
	}
}

func encodeBody(p *Packet) ([]byte, error) {
	buf := &bytes.Buffer{}

	switch p.Type {
	case TypeAppInfo:
		writeUint64(buf, p.InitialTimestamp)
		writeFloat64(buf, p.MillisPerTick)
		if err := writeLenString(buf, p.ApplicationName, MaxAppNameLen); err != nil {
			return nil, err
		}
		if err := writeLenString(buf, p.ApplicationGroup, MaxGroupLen); err != nil {
			return nil, err
		}
		writeUint32(buf, p.InitFlags)
		writeUint32(buf, p.Platform)
		writeUint64(buf, p.MicrosecondsFromEpoch)

	case TypeFileID, TypeCategoryID:
		writeUint32(buf, p.ID)
		writeTrailingText(buf, p.Name)

	case TypeThreadStart, TypeThreadName, TypeThreadEnd:
		writeTrailingText(buf, p.Text)

	case TypeLogText, TypeLogTextPartial:
		writeUint32(buf, p.CategoryID)
		buf.WriteByte(byte(p.Level))
		writeInt32(buf, p.PieInstance)
		writeUint32(buf, p.ColorFG)
		writeUint32(buf, p.ColorBG)
		writeTrailingText(buf, p.Text)

	case TypeFrameNumber:
		writeUint32(buf, p.Number)

	case TypeFrameEnd, TypeRestart:
		// no body

	case TypeConsoleCommand, TypeConsoleAutocompleteRequest, TypeRecordingInfo:
		writeTrailingText(buf, p.Text)

	case TypeConsoleAutocompleteResponseHeader:
		writeUint32(buf, p.Number)

	case TypeUserToServer, TypeUserToClient, TypeConsoleAutocompleteResponseEntry:
		buf.Write(p.Payload)

	default:
		return nil, ErrorUnknownType.Error(nil)
	}

	return buf.Bytes(), nil
}

// DecodeFrame inspects buf for one complete length-prefixed frame starting
// at offset 0. It returns (nil, 0, nil) when buf does not yet hold a
// complete frame (the caller should wait for more bytes). A non-nil error
// means the frame is malformed and the connection that produced it must be
// torn down: the length prefix is the sole resync signal, so recovery
// mid-stream is not attempted (§4.1, §7).
func DecodeFrame(buf []byte) (p *Packet, consumed int, err error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}

	length := int(binary.BigEndian.Uint16(buf[0:2]))
	if length < minFrameOverhead {
		return nil, 0, ErrorTruncated.Error(nil)
	}
	if length > MaxFrameLength {
		return nil, 0, ErrorTruncated.Error(nil)
	}
	if length > len(buf) {
		return nil, 0, nil
	}

	frame := buf[:length]
	t := Type(frame[2])
	hdr := readHeader(frame[3 : 3+HeaderSize])
	body := frame[3+HeaderSize : length]

	pkt, err := decodeBody(t, hdr, body)
	if err != nil {
		return nil, 0, err
	}
	return pkt, length, nil
}

func decodeBody(t Type, hdr Header, body []byte) (*Packet, error) {
	p := &Packet{Type: t, Header: hdr}

	switch t {
	case TypeAppInfo:
		return decodeAppInfo(p, body, 7)
	case TypeAppInfoV1:
		return decodeAppInfo(p, body, 1)
	case TypeAppInfoV2:
		return decodeAppInfo(p, body, 2)
	case TypeAppInfoV3:
		return decodeAppInfo(p, body, 3)
	case TypeAppInfoV4:
		return decodeAppInfo(p, body, 4)
	case TypeAppInfoV5:
		return decodeAppInfo(p, body, 5)

	case TypeFileID, TypeCategoryID:
		if len(body) < 4 {
			return nil, ErrorTruncated.Error(nil)
		}
		p.ID = byteOrder.Uint32(body[0:4])
		p.Name = readTrailingText(body[4:])
		return p, nil

	case TypeThreadStart, TypeThreadName, TypeThreadEnd:
		p.Text = readTrailingText(body)
		return p, nil

	case TypeLogText:
		return decodeLogText(p, body, 3)
	case TypeLogTextV1:
		return decodeLogText(p, body, 1)
	case TypeLogTextV2:
		return decodeLogText(p, body, 2)
	case TypeLogTextPartial:
		return decodeLogText(p, body, 3)

	case TypeFrameNumber, TypeConsoleAutocompleteResponseHeader:
		if len(body) < 4 {
			return nil, ErrorTruncated.Error(nil)
		}
		p.Number = byteOrder.Uint32(body[0:4])
		return p, nil

	case TypeFrameEnd, TypeRestart:
		return p, nil

	case TypeConsoleCommand, TypeConsoleAutocompleteRequest, TypeRecordingInfo:
		p.Text = readTrailingText(body)
		return p, nil

	case TypeUserToServer, TypeUserToClient, TypeConsoleAutocompleteResponseEntry:
		p.Payload = append([]byte(nil), body...)
		return p, nil

	default:
		return nil, ErrorUnknownType.Error(nil)
	}
}

// decodeAppInfo handles the current and legacy AppInfo layouts. Each
// version is a strict prefix of the next: level counts the logical fields
// present (InitialTimestamp+MillisPerTick=2, +ApplicationName=3,
// +ApplicationGroup=4, +InitFlags=5, +Platform=6, +MicrosecondsFromEpoch=7).
// Fields beyond the encoded level are left zeroed, per §4.1 forward
// compatibility (unspecified fields zero or kBBColor_Default).
func decodeAppInfo(p *Packet, body []byte, level int) (*Packet, error) {
	r := &reader{b: body}

	p.InitialTimestamp = r.uint64()
	p.MillisPerTick = r.float64()
	if level >= 3 {
		name, err := r.lenString()
		if err != nil {
			return nil, err
		}
		p.ApplicationName = name
	}
	if level >= 4 {
		grp, err := r.lenString()
		if err != nil {
			return nil, err
		}
		p.ApplicationGroup = grp
	}
	if level >= 5 {
		p.InitFlags = r.uint32()
	}
	if level >= 6 {
		p.Platform = r.uint32()
	}
	if level >= 7 {
		p.MicrosecondsFromEpoch = r.uint64()
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

// decodeLogText mirrors decodeAppInfo's prefix-versioning for the three
// LogText layouts (CategoryId+Level=1, +PieInstance=2, +Colors=3).
func decodeLogText(p *Packet, body []byte, level int) (*Packet, error) {
	r := &reader{b: body}

	p.CategoryID = r.uint32()
	p.Level = Level(r.uint8())
	p.PieInstance = 0
	p.ColorFG = ColorDefault
	p.ColorBG = ColorDefault

	if level >= 2 {
		p.PieInstance = r.int32()
	}
	if level >= 3 {
		p.ColorFG = r.uint32()
		p.ColorBG = r.uint32()
	}
	if r.err != nil {
		return nil, r.err
	}
	p.Text = readTrailingText(r.rest())
	return p, nil
}

// --- primitive write helpers ---

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	byteOrder.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	byteOrder.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeInt32(buf *bytes.Buffer, v int32) {
	writeUint32(buf, uint32(v))
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	writeUint64(buf, math.Float64bits(v))
}

// writeLenString writes [len:u16][bytes] and fails with OutOfSpace if the
// string does not fit in the field's declared capacity (§4.1).
func writeLenString(buf *bytes.Buffer, s string, capacity int) error {
	if len(s) >= capacity {
		return ErrorOutOfSpace.Error(nil)
	}
	var tmp [2]byte
	byteOrder.PutUint16(tmp[:], uint16(len(s)))
	buf.Write(tmp[:])
	buf.WriteString(s)
	return nil
}

// writeTrailingText writes the final variable-length text field of a body:
// raw bytes followed by a single implicit nul terminator, both counted in
// the frame's length prefix.
func writeTrailingText(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func readTrailingText(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// reader is a small cursor over a decode buffer shared by the
// version-layered AppInfo/LogText decoders.
type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.b) {
		r.err = ErrorTruncated.Error(nil)
		return false
	}
	return true
}

func (r *reader) uint8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.b[r.off]
	r.off++
	return v
}

func (r *reader) uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := byteOrder.Uint32(r.b[r.off : r.off+4])
	r.off += 4
	return v
}

func (r *reader) int32() int32 {
	return int32(r.uint32())
}

func (r *reader) uint64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := byteOrder.Uint64(r.b[r.off : r.off+8])
	r.off += 8
	return v
}

func (r *reader) float64() float64 {
	return math.Float64frombits(r.uint64())
}

func (r *reader) lenString() (string, error) {
	if !r.need(2) {
		return "", r.err
	}
	l := int(byteOrder.Uint16(r.b[r.off : r.off+2]))
	r.off += 2
	if !r.need(l) {
		return "", r.err
	}
	s := string(r.b[r.off : r.off+l])
	r.off += l
	return s, nil
}

func (r *reader) rest() []byte {
	if r.err != nil || r.off > len(r.b) {
		return nil
	}
	return r.b[r.off:]
}
