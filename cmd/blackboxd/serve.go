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

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	libatm "github.com/blackbox-telemetry/blackbox/atomic"
	libctx "github.com/blackbox-telemetry/blackbox/context"
	"github.com/blackbox-telemetry/blackbox/logger"
	loglvl "github.com/blackbox-telemetry/blackbox/logger/level"
	"github.com/blackbox-telemetry/blackbox/server/discoveryd"
	"github.com/blackbox-telemetry/blackbox/server/ingest"
	"github.com/blackbox-telemetry/blackbox/server/recording"
	"github.com/blackbox-telemetry/blackbox/server/whitelist"
)

// uiQueueCapacity bounds the in-process stand-in for the external UI
// message queue collaborator (spec.md §6).
const uiQueueCapacity = 256

// serverTick is the pause the main loop takes after every
// discoveryd.Server.Tick call.
const serverTick = 2 * time.Millisecond

// runServer wires the whitelist resolver, discovery server, and ingestion
// worker pool into one process lifecycle (spec.md §2 data-flow diagram),
// running until ctx is cancelled or a termination signal arrives.
func runServer(parent context.Context, cfg ServerConfig) error {
	root := libctx.New[string](parent)

	log := logger.New(root)
	log.SetLevel(parseLogLevel(cfg.LogLevel))
	getLog := func() logger.Logger { return log }

	resolver := whitelist.New()
	if err := resolver.Configure(cfg.whitelistEntries()); err != nil {
		log.CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "resolving whitelist", err)
		return err
	}

	queue := recording.NewQueue(uiQueueCapacity)
	baseDir := recordingBaseDir(cfg.RecordingDir)

	srv, err := discoveryd.New(discoveryd.Config{
		BindAddr:  cfg.BindAddr,
		Port:      cfg.Port,
		EnableV6:  cfg.EnableV6,
		Whitelist: resolver,
		Log:       getLog,
	})
	if err != nil {
		log.CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "starting discovery server", err)
		return err
	}
	defer func() { _ = srv.Close() }()

	shutdown := libatm.NewValueDefault[bool](false, false)

	ctx, cancel := signalContext(root)
	defer cancel()

	var (
		wg      sync.WaitGroup
		queueID int
	)

	log.Info("blackboxd listening", nil, srv.Addr().String())

	go drainUIQueue(ctx, queue, getLog)

	for {
		select {
		case <-ctx.Done():
			shutdown.Store(true)
			wg.Wait()
			return nil
		case pc := <-srv.Pending():
			queueID++
			spawnIngestWorker(&wg, pc, baseDir, queueID, queue, shutdown, getLog)
		default:
		}

		if err := srv.Tick(); err != nil {
			log.CheckError(loglvl.WarnLevel, loglvl.NilLevel, "discovery tick", err)
		}

		time.Sleep(serverTick)
	}
}

// spawnIngestWorker hands one accepted reservation off to a dedicated
// ingestion worker goroutine (spec.md §4.5 step 5 / §4.6).
func spawnIngestWorker(wg *sync.WaitGroup, pc discoveryd.PendingConn, baseDir string, queueID int, queue *recording.Queue, shutdown libatm.Value[bool], log logger.FuncLog) {
	w, err := ingest.New(pc.Conn, baseDir, pc.ApplicationName, queueID, queue, shutdown, log)
	if err != nil {
		log().CheckError(loglvl.ErrorLevel, loglvl.NilLevel, "opening recording for "+pc.ApplicationName, err)
		_ = pc.Conn.Close()
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(); err != nil {
			log().CheckError(loglvl.WarnLevel, loglvl.NilLevel, "ingestion worker for "+pc.ApplicationName, err)
		}
	}()
}

// drainUIQueue stands in for the external UI process that would otherwise
// consume recording.Queue (spec.md §1 Non-goals: the viewer UI is an
// external collaborator). It only logs lifecycle transitions so the daemon
// stays observable when run standalone.
func drainUIQueue(ctx context.Context, queue *recording.Queue, log logger.FuncLog) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-queue.Messages():
			switch msg.Kind {
			case recording.RecordingStart:
				log().Info("recording started", nil, msg.Start.ApplicationName, msg.Start.Path)
			case recording.RecordingStop:
				log().Info("recording stopped", nil, msg.QueueID)
			}
		}
	}
}

// recordingBaseDir mirrors spec.md §3's "%LOCALAPPDATA%/bb/{applicationName}/"
// layout on platforms that define LOCALAPPDATA, falling back to a
// XDG-style user data directory elsewhere.
func recordingBaseDir(configured string) string {
	if configured != "" {
		return configured
	}
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		return filepath.Join(local, "bb")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "bb")
	}
	return filepath.Join(home, ".local", "share", "bb")
}

// signalContext derives a cancelable context from root that also cancels on
// SIGINT/SIGTERM, giving the ingestion workers a chance to close their
// recording files cleanly (spec.md §5 graceful close).
func signalContext(root libctx.Config[string]) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(root)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sig)
	}()

	return ctx, cancel
}
