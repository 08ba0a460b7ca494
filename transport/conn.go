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
	"errors"
	"io"
	"net"
	"sync"
	"time"

	libatm "github.com/blackbox-telemetry/blackbox/atomic"
	liberr "github.com/blackbox-telemetry/blackbox/errors"
	"github.com/blackbox-telemetry/blackbox/packet"
)

// Conn is a single framed, ring-buffered TCP connection (spec.md §4.2). All
// mutable state is protected by one mutex; Send/TrySend/Tick/Flush/Close may
// be called from different goroutines concurrently.
type Conn struct {
	cfg Config

	mu   sync.Mutex
	sock net.Conn
	lstn net.Listener

	state libatm.Value[State]

	sendBuf    []byte
	sendCursor int

	recvBuf      []byte
	recvCursor   int
	decodeCursor int

	lastSend time.Time

	connectDeadline time.Time
	connCh          chan net.Conn
}

// New builds an idle Conn in state NotConnected. cfg's zero value is usable;
// missing fields fall back to spec.md's named defaults.
func New(cfg Config) *Conn {
	c := &Conn{
		cfg:     cfg,
		sendBuf: make([]byte, sendBufferSize),
		recvBuf: make([]byte, recvBufferSize),
	}
	c.state = libatm.NewValueDefault[State](NotConnected, NotConnected)
	return c
}

// State reports the current lifecycle state.
func (c *Conn) State() State { return c.state.Load() }

// IsConnected reports whether the Conn currently has a live socket.
func (c *Conn) IsConnected() bool { return c.State() == Connected }

func (c *Conn) setState(s State) {
	c.state.Store(s)
	if c.cfg.OnInfo != nil {
		var local, remote fmtStringer = noAddr{}, noAddr{}
		if c.sock != nil {
			local, remote = c.sock.LocalAddr(), c.sock.RemoteAddr()
		}
		c.cfg.onInfo(local, remote, stateToConnState(s))
	}
}

type noAddr struct{}

func (noAddr) String() string { return "" }

func stateToConnState(s State) ConnState {
	switch s {
	case Connecting:
		return ConnectionDial
	case Connected:
		return ConnectionNew
	default:
		return ConnectionClose
	}
}

// ConnectAsync starts a non-blocking connect attempt. Calling it while a
// connect is already in flight is a no-op that reports ErrorAlreadyConnecting
// through cfg.OnError (testable property #10): state is left unchanged and no
// second dial is started.
func (c *Conn) ConnectAsync(addr string) {
	c.mu.Lock()
	if c.State() == Connecting {
		c.mu.Unlock()
		c.cfg.onError(ErrorAlreadyConnecting.Error())
		return
	}
	c.connectDeadline = time.Now().Add(c.cfg.connectTimeout().Time())
	c.connCh = make(chan net.Conn, 1)
	c.setState(Connecting)
	c.mu.Unlock()

	ch := c.connCh
	timeout := c.cfg.connectTimeout().Time()
	go func() {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			close(ch)
			return
		}
		select {
		case ch <- conn:
		default:
			_ = conn.Close()
		}
	}()
}

// pollConnecting is called from Tick while State()==Connecting; it adopts the
// dialed socket as soon as it is available, or falls back to NotConnected
// once connectTimeout has elapsed (testable property #7).
func (c *Conn) pollConnecting() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != Connecting {
		return
	}

	select {
	case conn, ok := <-c.connCh:
		if !ok {
			c.setState(NotConnected)
			return
		}
		c.sock = conn
		c.setState(Connected)
		c.lastSend = time.Now()
	default:
		if time.Now().After(c.connectDeadline) {
			c.setState(NotConnected)
		}
	}
}

// InitServer binds a listener on an OS-assigned port (port==0) or the given
// port, and transitions to Listening. Returns the bound port.
func (c *Conn) InitServer(addr string, port int) (int, error) {
	l, err := net.Listen("tcp", addrWithPort(addr, port))
	if err != nil {
		return 0, ErrorListen.Error(err)
	}

	c.mu.Lock()
	c.lstn = l
	c.setState(Listening)
	c.mu.Unlock()

	return l.Addr().(*net.TCPAddr).Port, nil
}

func addrWithPort(addr string, port int) string {
	return net.JoinHostPort(addr, itoa(port))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// TickListening accepts at most one pending client, closes the listener, and
// adopts the accepted socket as Connected. No-op outside Listening.
func (c *Conn) TickListening() error {
	c.mu.Lock()
	l := c.lstn
	if c.State() != Listening || l == nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	_ = l.(interface{ SetDeadline(time.Time) error }).SetDeadline(time.Now().Add(time.Millisecond))
	conn, err := l.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		return err
	}

	c.mu.Lock()
	_ = c.lstn.Close()
	c.lstn = nil
	c.sock = conn
	c.lastSend = time.Now()
	c.setState(Connected)
	c.mu.Unlock()
	return nil
}

// Send serializes p and copies it into the send buffer under lock, blocking
// (via Flush) for up to FlushDeadline if the buffer lacks room. If the frame
// itself exceeds the buffer's total capacity it is rejected without ever
// touching the wire, preserving framing (spec.md §7).
func (c *Conn) Send(p *packet.Packet) error {
	raw, err := packet.Encode(p)
	if err != nil {
		c.cfg.onError(err)
		return err
	}
	return c.sendRaw(raw, true)
}

// TrySend is Send's non-blocking twin: it never flushes to make room, only
// returns ok==false when the frame cannot fit right now.
func (c *Conn) TrySend(p *packet.Packet) (ok bool, err error) {
	raw, err := packet.Encode(p)
	if err != nil {
		c.cfg.onError(err)
		return false, err
	}
	err = c.sendRaw(raw, false)
	if err != nil {
		if ce, ok := err.(liberr.Error); ok && ce.IsCode(ErrorSendBufferFull) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SendRaw queues an already-encoded frame (e.g. a spill-buffer replay or a
// re-framed recording byte range) directly onto the send ring, with the same
// blocking-with-deadline contract as Send.
func (c *Conn) SendRaw(frame []byte) error {
	return c.sendRaw(frame, true)
}

// TrySendRaw is SendRaw's non-blocking twin, mirroring TrySend.
func (c *Conn) TrySendRaw(frame []byte) (ok bool, err error) {
	err = c.sendRaw(frame, false)
	if err != nil {
		if ce, ok := err.(liberr.Error); ok && ce.IsCode(ErrorSendBufferFull) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Conn) sendRaw(raw []byte, blocking bool) error {
	if len(raw) > len(c.sendBuf) {
		return ErrorSendBufferFull.Error()
	}

	c.mu.Lock()
	if c.State() != Connected {
		c.mu.Unlock()
		return ErrorNotConnected.Error()
	}

	if c.sendCursor+len(raw) > len(c.sendBuf) {
		if !blocking {
			c.mu.Unlock()
			return ErrorSendBufferFull.Error()
		}
		if err := c.flushLocked(FlushDeadline.Time()); err != nil {
			c.mu.Unlock()
			return err
		}
		if c.sendCursor+len(raw) > len(c.sendBuf) {
			c.mu.Unlock()
			return ErrorSendBufferFull.Error()
		}
	}

	copy(c.sendBuf[c.sendCursor:], raw)
	c.sendCursor += len(raw)

	interval := c.cfg.sendInterval().Time()
	due := time.Since(c.lastSend) >= interval
	if due {
		c.lastSend = time.Now()
	}
	c.mu.Unlock()

	if due {
		c.TryFlush()
	}
	return nil
}

// Flush blocks (bounded by FlushDeadline) until the send buffer drains.
func (c *Conn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(FlushDeadline.Time())
}

// TryFlush performs a single non-blocking write attempt.
func (c *Conn) TryFlush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeOnceLocked()
}

func (c *Conn) flushLocked(deadline time.Duration) error {
	end := time.Now().Add(deadline)
	for c.sendCursor > 0 {
		if time.Now().After(end) {
			return ErrorFlushTimeout.Error()
		}
		if err := c.writeOnceLocked(); err != nil {
			return err
		}
		if c.sendCursor > 0 {
			time.Sleep(time.Millisecond)
		}
	}
	return nil
}

func (c *Conn) writeOnceLocked() error {
	if c.sendCursor == 0 || c.sock == nil {
		return nil
	}
	_ = c.sock.SetWriteDeadline(time.Now().Add(time.Millisecond))
	n, err := c.sock.Write(c.sendBuf[:c.sendCursor])
	if n > 0 {
		remain := c.sendCursor - n
		copy(c.sendBuf, c.sendBuf[n:c.sendCursor])
		c.sendCursor = remain
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		c.tearDownLocked()
		return ErrorPeerClosed.Error(err)
	}
	return nil
}

// Tick polls the socket for readability within cfg.TickTimeout and, on a
// live connection, reads into the receive buffer. While Connecting it
// advances the connect state machine instead; while Listening it accepts.
func (c *Conn) Tick() error {
	switch c.State() {
	case Connecting:
		c.pollConnecting()
		return nil
	case Listening:
		return c.TickListening()
	case Connected:
		return c.tickConnected()
	default:
		return nil
	}
}

func (c *Conn) tickConnected() error {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return nil
	}

	timeout := c.cfg.TickTimeout.Time()
	if timeout <= 0 {
		timeout = time.Microsecond
	}
	_ = sock.SetReadDeadline(time.Now().Add(timeout))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock != sock {
		return nil
	}

	c.compactLocked()
	if c.recvCursor >= len(c.recvBuf) {
		return nil
	}

	n, err := sock.Read(c.recvBuf[c.recvCursor:])
	if n > 0 {
		c.recvCursor += n
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		if errors.Is(err, io.EOF) || n == 0 {
			c.tearDownLocked()
			return ErrorPeerClosed.Error(err)
		}
		c.tearDownLocked()
		return ErrorPeerClosed.Error(err)
	}
	return nil
}

// compactLocked slides undecoded bytes to the front of recvBuf, preserving
// testable property #5 (decodeCursor <= recvCursor <= len(recvBuf), no
// undecoded byte lost).
func (c *Conn) compactLocked() {
	if c.decodeCursor == 0 {
		return
	}
	remain := c.recvCursor - c.decodeCursor
	if remain > 0 {
		copy(c.recvBuf, c.recvBuf[c.decodeCursor:c.recvCursor])
	}
	c.recvCursor = remain
	c.decodeCursor = 0
}

// DecodePacket extracts at most one complete frame from the receive buffer.
// Returns (nil, nil) if no complete frame is currently buffered.
func (c *Conn) DecodePacket() (*packet.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, consumed, err := packet.DecodeFrame(c.recvBuf[c.decodeCursor:c.recvCursor])
	if err != nil {
		c.tearDownLocked()
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	c.decodeCursor += consumed
	c.compactLocked()
	return p, nil
}

func (c *Conn) tearDownLocked() {
	if c.sock != nil {
		_ = c.sock.Close()
		c.sock = nil
	}
	c.sendCursor = 0
	c.recvCursor = 0
	c.decodeCursor = 0
	c.setState(NotConnected)
}

// Close tears down any live socket or listener. Safe to call repeatedly.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lstn != nil {
		_ = c.lstn.Close()
		c.lstn = nil
	}
	c.tearDownLocked()
	return nil
}

