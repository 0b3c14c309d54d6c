// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package status

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📊 FileStatus is the terminal state of one file after a patch run
type FileStatus int

const (
	StatusUnknown   FileStatus = iota
	StatusNoMatch              // Selector matched nothing in the file
	StatusUnchanged            // Blocks matched but the content is byte-identical
	StatusRewritten            // File was written back with new content
	StatusFailed               // Read/decode/write failure, file skipped
)

// String returns a string representation of FileStatus
func (s FileStatus) String() string {
	switch s {
	case StatusNoMatch:
		return "no-match"
	case StatusUnchanged:
		return "unchanged"
	case StatusRewritten:
		return "rewritten"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// 📄 FileInfo contains the outcome recorded for one file
type FileInfo struct {
	Path     string     // Path to the file
	Status   FileStatus // Terminal state
	Size     int64      // Size written, zero when untouched
	Checksum string     // Content hash of the written file
	Error    error      // Any error associated with this file
}

// 📈 Summary aggregates per-file outcomes for the end-of-run report
type Summary struct {
	Scanned   int // Files that went through the pipeline
	Matched   int // Files with at least one matched block
	Rewritten int // Files written back
	Failed    int // Files skipped on error
}

// 🔧 Manager tracks per-file outcomes and owns write-back
type Manager struct {
	logger *zerolog.Logger

	mu    sync.RWMutex
	files map[string]FileInfo
}

// 🏭 New creates a new status manager
func New(logger *zerolog.Logger) *Manager {
	return &Manager{
		logger: logger,
		files:  make(map[string]FileInfo),
	}
}

// 🔍 calculateChecksum generates a SHA-256 hash of the content
func calculateChecksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// 💾 WriteFileAtomic writes content via a temp file and rename so a
// failed write never leaves a half-patched file behind.
func (m *Manager) WriteFileAtomic(ctx context.Context, path string, content []byte) error {
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath) // Clean up temp file
		return errors.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// 📝 Track records the outcome for one file
func (m *Manager) Track(ctx context.Context, path string, info FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info.Path = path
	m.files[path] = info

	evt := m.logger.Debug()
	if info.Status == StatusFailed {
		evt = m.logger.Error().Err(info.Error)
	} else if info.Status == StatusRewritten {
		evt = m.logger.Info()
	}
	evt.Str("path", path).Str("status", info.Status.String()).Msg("file processed")
}

// 📝 TrackWrite hashes and records a successful write-back
func (m *Manager) TrackWrite(ctx context.Context, path string, content []byte) {
	m.Track(ctx, path, FileInfo{
		Status:   StatusRewritten,
		Size:     int64(len(content)),
		Checksum: calculateChecksum(content),
	})
}

// 🔍 Get returns the recorded outcome for one file
func (m *Manager) Get(ctx context.Context, path string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[path]
	if !ok {
		return FileInfo{}, errors.Errorf("file not tracked: %s", path)
	}
	return info, nil
}

// 📋 List returns all recorded outcomes ordered by path
func (m *Manager) List(ctx context.Context) []FileInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]FileInfo, 0, len(m.files))
	for _, info := range m.files {
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// 📈 Summarize aggregates the recorded outcomes
func (m *Manager) Summarize(ctx context.Context) Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Summary
	for _, info := range m.files {
		s.Scanned++
		switch info.Status {
		case StatusRewritten:
			s.Matched++
			s.Rewritten++
		case StatusUnchanged:
			s.Matched++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
