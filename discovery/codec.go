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
	"encoding/binary"
)

// datagram layout: [u8 type][4B magic][u32 BE protocolVersion][body...]
const prefixSize = 1 + 4 + 4

func appendPrefix(buf []byte, t byte) []byte {
	buf = append(buf, t)
	buf = append(buf, Magic...)
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], ProtocolVersion)
	return append(buf, v[:]...)
}

func checkPrefix(b []byte) (body []byte, typ byte, err error) {
	if len(b) < prefixSize {
		return nil, 0, ErrorTruncated.Error()
	}
	if string(b[1:5]) != Magic {
		return nil, 0, ErrorBadMagic.Error()
	}
	if binary.BigEndian.Uint32(b[5:9]) != ProtocolVersion {
		return nil, 0, ErrorBadVersion.Error()
	}
	return b[prefixSize:], b[0], nil
}

func appendLenString(buf []byte, s string) ([]byte, error) {
	if len(s) > MaxAppNameLen {
		return nil, ErrorNameTooLong.Error()
	}
	buf = append(buf, byte(len(s)))
	return append(buf, s...), nil
}

func readLenString(b []byte) (s string, rest []byte, err error) {
	if len(b) < 1 {
		return "", nil, ErrorTruncated.Error()
	}
	n := int(b[0])
	if len(b) < 1+n {
		return "", nil, ErrorTruncated.Error()
	}
	return string(b[1 : 1+n]), b[1+n:], nil
}

// EncodeRequest serializes r as a client->server datagram.
func EncodeRequest(r *Request) ([]byte, error) {
	buf := appendPrefix(make([]byte, 0, prefixSize+2*MaxAppNameLen), byte(r.Type))

	var err error
	buf, err = appendLenString(buf, r.ApplicationName)
	if err != nil {
		return nil, err
	}
	buf, err = appendLenString(buf, r.DeviceCode)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeRequest parses a client->server datagram. A magic/version mismatch
// is reported as an error; per spec.md §4.3 the discovery server treats this
// as a silent drop and never surfaces it to a peer.
func DecodeRequest(b []byte) (*Request, error) {
	body, typ, err := checkPrefix(b)
	if err != nil {
		return nil, err
	}

	t := RequestType(typ)
	switch t {
	case RequestDiscovery, RequestReservation, DeclineReservation:
	default:
		return nil, ErrorUnknownRequestType.Error()
	}

	appName, body, err := readLenString(body)
	if err != nil {
		return nil, err
	}
	devCode, _, err := readLenString(body)
	if err != nil {
		return nil, err
	}

	return &Request{Type: t, ApplicationName: appName, DeviceCode: devCode}, nil
}

// EncodeResponse serializes r as a server->client datagram.
func EncodeResponse(r *Response) ([]byte, error) {
	buf := appendPrefix(make([]byte, 0, prefixSize+2), byte(r.Type))
	if r.Type == ReservationAccept {
		var p [2]byte
		binary.BigEndian.PutUint16(p[:], r.Port)
		buf = append(buf, p[:]...)
	}
	return buf, nil
}

// DecodeResponse parses a server->client datagram.
func DecodeResponse(b []byte) (*Response, error) {
	body, typ, err := checkPrefix(b)
	if err != nil {
		return nil, err
	}

	t := ResponseType(typ)
	r := &Response{Type: t}
	switch t {
	case AnnouncePresence, ReservationRefuse:
	case ReservationAccept:
		if len(body) < 2 {
			return nil, ErrorTruncated.Error()
		}
		r.Port = binary.BigEndian.Uint16(body)
	default:
		return nil, ErrorUnknownResponseType.Error()
	}
	return r, nil
}
