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

package recording

import "time"

// MessageKind discriminates the opaque control messages the UI message
// queue collaborator accepts (spec.md §6).
type MessageKind uint8

const (
	RecordingStart MessageKind = iota
	RecordingStop
	DiscoveryStatus
	AddExistingFile
	AddInvalidExistingFile
)

// StartInfo is the payload published the first time an AppInfo packet is
// observed in a new recording (spec.md §4.6).
type StartInfo struct {
	ApplicationName string
	FileName        string
	Path            string
	FileTime        time.Time
	OpenView        bool
	QueueID         int
	Platform        uint32
	RecordingType   RecordingType
}

// Message is one opaque entry handed to the UI message queue. The queue
// itself (single-producer/single-consumer, fixed-slot, keyed by QueueID) is
// an external collaborator out of this module's scope; Queue below is a
// minimal in-process stand-in exercised by the ingestion worker's tests.
type Message struct {
	Kind    MessageKind
	QueueID int
	Start   *StartInfo // set when Kind == RecordingStart
}

// Queue is a bounded single-consumer mailbox standing in for the external UI
// message queue named in spec.md §6. Publish never blocks: a full queue
// drops the oldest pending message, since a UI lagging behind a live capture
// should see the most recent lifecycle state, not stall the ingestion worker.
type Queue struct {
	ch chan Message
}

// NewQueue returns a Queue with the given fixed slot capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Message, capacity)}
}

// Publish enqueues msg, dropping the oldest pending entry if the queue is full.
func (q *Queue) Publish(msg Message) {
	select {
	case q.ch <- msg:
	default:
		select {
		case <-q.ch:
		default:
		}
		select {
		case q.ch <- msg:
		default:
		}
	}
}

// Messages exposes the receive side for a consumer goroutine.
func (q *Queue) Messages() <-chan Message { return q.ch }
