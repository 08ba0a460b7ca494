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
	"net"
	"time"

	libdur "github.com/blackbox-telemetry/blackbox/duration"
)

const (
	// RetransmitInterval is how often an unanswered RequestDiscovery is resent.
	RetransmitInterval = libdur.Duration(100 * time.Millisecond)

	// DiscoveryCycle bounds one full client attempt.
	DiscoveryCycle = libdur.Duration(500 * time.Millisecond)

	// ReservationWait bounds the wait for ReservationAccept/ReservationRefuse
	// once a server has announced itself.
	ReservationWait = libdur.Duration(2 * time.Second)
)

// ClientConfig parameterizes Start.
type ClientConfig struct {
	Conn            *net.UDPConn
	Target          *net.UDPAddr // nil means broadcast to Broadcast
	Broadcast       *net.UDPAddr
	ApplicationName string
	DeviceCode      string

	OnError func(err error)
}

// Start runs the client discovery/reservation handshake (spec.md §4.3) and
// returns the server address and the reserved TCP port on success.
func Start(cfg ClientConfig) (server *net.UDPAddr, port uint16, err error) {
	dest := cfg.Target
	if dest == nil {
		dest = cfg.Broadcast
	}

	reqBuf, err := EncodeRequest(&Request{
		Type:            RequestDiscovery,
		ApplicationName: cfg.ApplicationName,
		DeviceCode:      cfg.DeviceCode,
	})
	if err != nil {
		return nil, 0, err
	}

	cycleEnd := time.Now().Add(DiscoveryCycle.Time())
	lastSend := time.Time{}
	buf := make([]byte, 1500)

	for time.Now().Before(cycleEnd) {
		if time.Since(lastSend) >= RetransmitInterval.Time() {
			if _, werr := cfg.Conn.WriteToUDP(reqBuf, dest); werr != nil {
				cfg.reportError(werr)
			}
			lastSend = time.Now()
		}

		_ = cfg.Conn.SetReadDeadline(time.Now().Add(RetransmitInterval.Time()))
		n, from, rerr := cfg.Conn.ReadFromUDP(buf)
		if rerr != nil {
			continue
		}

		resp, derr := DecodeResponse(buf[:n])
		if derr != nil {
			continue
		}
		if resp.Type != AnnouncePresence {
			continue
		}

		if p, perr := cfg.reserve(from); perr == nil {
			return from, p, nil
		}
		return nil, 0, ErrorReservationRefused.Error()
	}

	return nil, 0, ErrorDiscoveryTimeout.Error()
}

// reserve sends RequestReservation to from and waits up to ReservationWait
// for ReservationAccept, accepting only datagrams from that same address to
// avoid interleaving with a previous discovery run (spec.md §4.3).
func (cfg ClientConfig) reserve(from *net.UDPAddr) (uint16, error) {
	raw, err := EncodeRequest(&Request{
		Type:            RequestReservation,
		ApplicationName: cfg.ApplicationName,
		DeviceCode:      cfg.DeviceCode,
	})
	if err != nil {
		return 0, err
	}
	if _, err := cfg.Conn.WriteToUDP(raw, from); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(ReservationWait.Time())
	buf := make([]byte, 1500)
	for time.Now().Before(deadline) {
		_ = cfg.Conn.SetReadDeadline(deadline)
		n, peer, rerr := cfg.Conn.ReadFromUDP(buf)
		if rerr != nil {
			return 0, ErrorReservationTimeout.Error(rerr)
		}
		if !sameUDPAddr(peer, from) {
			continue
		}
		resp, derr := DecodeResponse(buf[:n])
		if derr != nil {
			continue
		}
		switch resp.Type {
		case ReservationAccept:
			return resp.Port, nil
		case ReservationRefuse:
			return 0, ErrorReservationRefused.Error()
		}
	}
	return 0, ErrorReservationTimeout.Error()
}

func sameUDPAddr(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

func (cfg ClientConfig) reportError(err error) {
	if cfg.OnError != nil {
		cfg.OnError(err)
	}
}
