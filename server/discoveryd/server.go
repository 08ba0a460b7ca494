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

package discoveryd

import (
	"context"
	"net"
	"time"

	"github.com/blackbox-telemetry/blackbox/discovery"
	"github.com/blackbox-telemetry/blackbox/logger"
	loglvl "github.com/blackbox-telemetry/blackbox/logger/level"
	"github.com/blackbox-telemetry/blackbox/transport"
)

// PendingConn is the handoff record spec.md §4.5 step 5 describes: a
// listening connection waiting to be accepted and handed to an ingestion
// worker, tagged with the application name learned from the reservation
// request.
type PendingConn struct {
	Conn            *transport.Conn
	LocalPort       int
	ApplicationName string
}

// Server answers UDP discovery/reservation traffic and queues accepted
// reservations for the main loop to hand off to ingestion workers.
type Server struct {
	cfg Config

	v4 net.PacketConn
	v6 net.PacketConn

	sched   *discovery.Scheduler
	pending chan PendingConn

	buf [2048]byte
}

// New binds the discovery socket(s) described by cfg and returns a Server
// ready to Tick.
func New(cfg Config) (*Server, error) {
	v4, err := listenReusable("udp4", net.JoinHostPort(cfg.BindAddr, itoaPort(cfg.port())))
	if err != nil {
		return nil, ErrorListenUDP.Error(err)
	}

	s := &Server{
		cfg:     cfg,
		v4:      v4,
		sched:   discovery.NewScheduler(),
		pending: make(chan PendingConn, PendingQueueSize),
	}

	if cfg.EnableV6 {
		v6, err := listenReusable("udp6", net.JoinHostPort("::", itoaPort(cfg.port())))
		if err != nil {
			s.getLog().CheckError(loglvl.WarnLevel, loglvl.NilLevel, "binding udp6 discovery socket", err)
		} else {
			s.v6 = v6
		}
	}

	return s, nil
}

// itoaPort renders a port number already resolved by Config.port (0 means
// OS-assigned, passed through as-is).
func itoaPort(p int) string {
	if p == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = byte('0' + p%10)
		p /= 10
	}
	return string(buf[i:])
}

// Pending returns the channel of accepted reservations awaiting handoff to
// an ingestion worker.
func (s *Server) Pending() <-chan PendingConn {
	return s.pending
}

// Addr returns the bound udp4 socket's local address, chiefly useful in
// tests that bind an OS-assigned port (Config.Port < 0).
func (s *Server) Addr() *net.UDPAddr {
	return s.v4.LocalAddr().(*net.UDPAddr)
}

// Close releases both UDP sockets.
func (s *Server) Close() error {
	var err error
	if s.v4 != nil {
		err = s.v4.Close()
	}
	if s.v6 != nil {
		if e := s.v6.Close(); err == nil {
			err = e
		}
	}
	return err
}

func (s *Server) getLog() logger.Logger {
	if s.cfg.Log != nil {
		if l := s.cfg.Log(); l != nil {
			return l
		}
	}
	return logger.New(context.Background())
}

// Tick runs one iteration of the discovery server's algorithm (spec.md
// §4.5): drain due response slots, poll both sockets for one datagram
// each, and act on the whitelist decision.
func (s *Server) Tick() error {
	s.sched.Tick(time.Now(), s.sendResponse)

	if err := s.pollSocket(s.v4); err != nil {
		return err
	}
	if s.v6 != nil {
		if err := s.pollSocket(s.v6); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) pollSocket(pc net.PacketConn) error {
	_ = pc.SetReadDeadline(time.Now().Add(PollTimeout.Time()))

	n, addr, err := pc.ReadFrom(s.buf[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		return err
	}

	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil
	}

	req, err := discovery.DecodeRequest(s.buf[:n])
	if err != nil {
		s.getLog().CheckError(loglvl.DebugLevel, loglvl.NilLevel, "malformed discovery datagram", err)
		return nil
	}

	s.handleRequest(udpAddr, req)
	return nil
}

func (s *Server) handleRequest(from *net.UDPAddr, req *discovery.Request) {
	allowed := s.authorize(from.IP, req)
	if !allowed {
		s.getLog().CheckError(loglvl.DebugLevel, loglvl.NilLevel, "discovery request refused by whitelist", nil)
		if req.Type == discovery.RequestReservation {
			s.sched.Push(from, &discovery.Response{Type: discovery.ReservationRefuse}, 0)
		}
		return
	}

	switch req.Type {
	case discovery.RequestDiscovery:
		s.sched.Push(from, &discovery.Response{Type: discovery.AnnouncePresence}, 0)

	case discovery.RequestReservation:
		s.acceptReservation(from, req)

	case discovery.DeclineReservation:
		// The client withdrew; nothing to schedule. A stale slot for this
		// address, if any, is still removed by the next Push.
	}
}

func (s *Server) authorize(ip net.IP, req *discovery.Request) bool {
	if s.cfg.Whitelist != nil && s.cfg.Whitelist.Allow(ip, req.ApplicationName) {
		return true
	}
	if s.cfg.DeviceCodeValid != nil && req.DeviceCode != "" && s.cfg.DeviceCodeValid(req.DeviceCode) {
		return true
	}
	return false
}

func (s *Server) acceptReservation(from *net.UDPAddr, req *discovery.Request) {
	conn := transport.New(transport.Config{})
	port, err := conn.InitServer(s.cfg.BindAddr, 0)
	if err != nil {
		s.getLog().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "allocating reservation listener", ErrorListenTCP.Error(err))
		s.sched.Push(from, &discovery.Response{Type: discovery.ReservationRefuse}, 0)
		return
	}

	select {
	case s.pending <- PendingConn{Conn: conn, LocalPort: port, ApplicationName: req.ApplicationName}:
		s.sched.Push(from, &discovery.Response{Type: discovery.ReservationAccept, Port: uint16(port)}, 0)
	default:
		s.getLog().CheckError(loglvl.WarnLevel, loglvl.NilLevel, "pending reservation queue full, refusing", nil)
		_ = conn.Close()
		s.sched.Push(from, &discovery.Response{Type: discovery.ReservationRefuse}, 0)
	}
}

func (s *Server) sendResponse(addr *net.UDPAddr, resp *discovery.Response) error {
	raw, err := discovery.EncodeResponse(resp)
	if err != nil {
		return err
	}

	pc := s.v4
	if addr.IP.To4() == nil && s.v6 != nil {
		pc = s.v6
	}

	_, err = pc.WriteTo(raw, addr)
	return err
}
