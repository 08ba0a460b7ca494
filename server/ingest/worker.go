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

// Package ingest implements the per-connection recording ingestion worker
// (spec.md §4.6): it drains a transport.Conn onto disk and publishes
// lifecycle notifications to the UI message queue stand-in.
package ingest

import (
	"context"
	"os"
	"time"

	libatm "github.com/blackbox-telemetry/blackbox/atomic"
	libdur "github.com/blackbox-telemetry/blackbox/duration"
	"github.com/blackbox-telemetry/blackbox/logger"
	loglvl "github.com/blackbox-telemetry/blackbox/logger/level"
	"github.com/blackbox-telemetry/blackbox/packet"
	"github.com/blackbox-telemetry/blackbox/server/recording"
	"github.com/blackbox-telemetry/blackbox/transport"
)

// FsyncInterval bounds how long dirty, non-AppInfo writes may sit in the OS
// write buffer before an explicit fsync (spec.md §4.6).
const FsyncInterval = libdur.Duration(100 * time.Millisecond)

// Worker drains one accepted client connection to a recording file.
type Worker struct {
	conn  *transport.Conn
	file  *os.File
	queue *recording.Queue

	queueID         int
	applicationName string
	fileName        string
	path            string

	shutdown libatm.Value[bool]
	log      logger.FuncLog

	outgoing chan *packet.Packet

	firstAppInfoSeen bool
	dirty            bool
	lastFsync        time.Time
}

// New opens the recording file for applicationName (named from the
// discovery server's pending-connection handoff, spec.md §4.5 step 5) and
// returns a Worker ready to Run.
func New(conn *transport.Conn, baseDir, applicationName string, queueID int, queue *recording.Queue, shutdown libatm.Value[bool], log logger.FuncLog) (*Worker, error) {
	fileName, _ := recording.NewFileName(applicationName)
	path := recording.Path(baseDir, applicationName, fileName)

	f, err := recording.Create(path)
	if err != nil {
		return nil, ErrorOpenFile.Error(err)
	}

	return &Worker{
		conn:            conn,
		file:            f,
		queue:           queue,
		queueID:         queueID,
		applicationName: applicationName,
		fileName:        fileName,
		path:            path,
		shutdown:        shutdown,
		log:             log,
		outgoing:        make(chan *packet.Packet, 16),
		lastFsync:       time.Now(),
	}, nil
}

// Enqueue schedules an outgoing control packet (e.g. a ConsoleCommand) for
// best-effort, non-blocking delivery on the next loop iteration.
func (w *Worker) Enqueue(p *packet.Packet) {
	select {
	case w.outgoing <- p:
	default:
	}
}

func (w *Worker) getLog() logger.Logger {
	if w.log != nil {
		if l := w.log(); l != nil {
			return l
		}
	}
	return logger.New(context.Background())
}

// Run drives the worker's loop until shutdown is set or the connection is
// permanently gone, then closes the file and publishes RecordingStop
// (spec.md §4.6).
func (w *Worker) Run() error {
	defer w.finish()

	for !w.shutdown.Load() {
		switch w.conn.State() {
		case transport.Connected:
			if err := w.tickConnected(); err != nil {
				return err
			}
		case transport.Connecting, transport.Listening:
			_ = w.conn.Tick()
			time.Sleep(time.Millisecond)
		default:
			return nil
		}
	}
	return nil
}

func (w *Worker) tickConnected() error {
	select {
	case cmd := <-w.outgoing:
		if ok, err := w.conn.TrySend(cmd); err != nil {
			w.getLog().CheckError(loglvl.WarnLevel, loglvl.NilLevel, "sending queued control packet", err)
		} else if !ok {
			// Buffer briefly full; the packet is dropped rather than
			// blocking the ingestion loop (spec.md §4.2 try_send contract).
			w.getLog().CheckError(loglvl.DebugLevel, loglvl.NilLevel, "control packet dropped, send buffer full", nil)
		}
	default:
	}

	if err := w.conn.Tick(); err != nil {
		w.getLog().CheckError(loglvl.WarnLevel, loglvl.NilLevel, "ingestion tick", err)
		return nil
	}

	for {
		p, err := w.conn.DecodePacket()
		if err != nil {
			w.getLog().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "malformed frame, connection torn down", err)
			break
		}
		if p == nil {
			break
		}
		w.writePacket(p)
	}

	if w.dirty && time.Since(w.lastFsync) >= FsyncInterval.Time() {
		w.fsync()
	}
	return nil
}

func (w *Worker) writePacket(p *packet.Packet) {
	raw, err := packet.Encode(p)
	if err != nil {
		w.getLog().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "re-encoding packet for recording", err)
		return
	}

	if _, err := w.file.Write(raw); err != nil {
		w.getLog().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "writing recording file", ErrorWrite.Error(err))
		return
	}

	if p.Type.IsAppInfo() {
		w.fsync()
		if !w.firstAppInfoSeen {
			w.firstAppInfoSeen = true
			w.publishStart(p)
		}
		return
	}

	w.dirty = true
}

func (w *Worker) fsync() {
	_ = w.file.Sync()
	w.dirty = false
	w.lastFsync = time.Now()
}

func (w *Worker) publishStart(p *packet.Packet) {
	if w.queue == nil {
		return
	}
	w.queue.Publish(recording.Message{
		Kind:    recording.RecordingStart,
		QueueID: w.queueID,
		Start: &recording.StartInfo{
			ApplicationName: w.applicationName,
			FileName:        w.fileName,
			Path:            w.path,
			FileTime:        time.Now(),
			Platform:        p.Platform,
			RecordingType:   recording.Normal,
		},
	})
}

func (w *Worker) finish() {
	_ = w.file.Close()
	if w.queue != nil {
		w.queue.Publish(recording.Message{Kind: recording.RecordingStop, QueueID: w.queueID})
	}
	_ = w.conn.Close()
}
