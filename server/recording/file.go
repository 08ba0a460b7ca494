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

// Package recording names and opens Blackbox recording files and carries the
// lifecycle notifications a UI collaborator consumes (spec.md §3, §6).
package recording

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RecordingType distinguishes a live capture from one later reopened for
// inspection; only Normal is produced by the ingestion worker today.
type RecordingType uint8

const (
	Normal RecordingType = iota
	Imported
)

// sanitize strips characters that would be awkward or unsafe in a path
// segment, mirroring the conservative allow-list the teacher's file helpers
// apply to user-supplied names.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "app"
	}
	return b.String()
}

// NewFileName returns the {guid}{appName}.bbox file name for a fresh
// recording, and the RFC 4122 UUID (canonical form, braces included) used to
// build it.
func NewFileName(appName string) (fileName string, guid string) {
	id := "{" + uuid.NewString() + "}"
	return id + sanitize(appName) + ".bbox", id
}

// Path joins baseDir/sanitizedAppName/fileName, matching the ingestion
// worker's directory layout (spec.md §4.6: "<appdata>/<sanitizedAppName>/").
func Path(baseDir, appName, fileName string) string {
	return filepath.Join(baseDir, sanitize(appName), fileName)
}

// Create opens path for append, creating any missing parent directories.
func Create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
