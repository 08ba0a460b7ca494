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

// Package discovery implements the Blackbox UDP handshake: a client that
// broadcasts for a server and reserves a private TCP port, and the wire
// types a discovery server uses to answer it (spec.md §4.3).
package discovery

import "fmt"

// Magic is the 4-byte tag every discovery datagram must carry.
const Magic = "BBX2"

// ProtocolVersion is the fixed version every datagram must match exactly;
// mismatches are dropped silently (spec.md §4.3).
const ProtocolVersion uint32 = 0x00030000

// DefaultPort is the UDP port the discovery protocol listens on absent
// configuration.
const DefaultPort = 1492

// RequestType is the client->server datagram discriminant.
type RequestType uint8

const (
	RequestDiscovery RequestType = iota + 1
	RequestReservation
	DeclineReservation
)

func (t RequestType) String() string {
	switch t {
	case RequestDiscovery:
		return "RequestDiscovery"
	case RequestReservation:
		return "RequestReservation"
	case DeclineReservation:
		return "DeclineReservation"
	default:
		return fmt.Sprintf("RequestType(%d)", uint8(t))
	}
}

// ResponseType is the server->client datagram discriminant.
type ResponseType uint8

const (
	AnnouncePresence ResponseType = iota + 1
	ReservationAccept
	ReservationRefuse
)

func (t ResponseType) String() string {
	switch t {
	case AnnouncePresence:
		return "AnnouncePresence"
	case ReservationAccept:
		return "ReservationAccept"
	case ReservationRefuse:
		return "ReservationRefuse"
	default:
		return fmt.Sprintf("ResponseType(%d)", uint8(t))
	}
}

// MaxAppNameLen bounds Request.ApplicationName / Request.DeviceCode, mirroring
// packet.MaxAppNameLen so a discovery datagram never approaches the UDP MTU.
const MaxAppNameLen = 64

// Request is a decoded client->server datagram.
type Request struct {
	Type            RequestType
	ApplicationName string
	DeviceCode      string
}

// Response is a decoded server->client datagram.
type Response struct {
	Type ResponseType
	Port uint16
}
