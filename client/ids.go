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

package client

import "github.com/blackbox-telemetry/blackbox/packet"

// fileID interns name (a source file path) into a small integer, emitting a
// FileId registration packet the first time it is seen (spec.md §3 "string
// interning tables"). The registration is cached so it can be replayed onto
// any later sink.
func (h *Handle) fileID(name string) uint32 {
	h.idMu.Lock()
	defer h.idMu.Unlock()

	if id, ok := h.fileIDs[name]; ok {
		return id
	}

	h.nextFileID++
	id := h.nextFileID
	h.fileIDs[name] = id

	reg := &packet.Packet{
		Type:   packet.TypeFileID,
		Header: h.header(0, 0, 0),
		ID:     id,
		Name:   name,
	}
	h.registrations = append(h.registrations, reg)
	h.dispatch(reg)
	return id
}

// categoryID interns name (a log category) the same way fileID interns
// source paths.
func (h *Handle) categoryID(name string) uint32 {
	h.idMu.Lock()
	defer h.idMu.Unlock()

	if id, ok := h.categoryIDs[name]; ok {
		return id
	}

	h.nextCategoryID++
	id := h.nextCategoryID
	h.categoryIDs[name] = id

	reg := &packet.Packet{
		Type:   packet.TypeCategoryID,
		Header: h.header(0, 0, 0),
		ID:     id,
		Name:   name,
	}
	h.registrations = append(h.registrations, reg)
	h.dispatch(reg)
	return id
}
