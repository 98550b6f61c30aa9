// Package clipstore manages the durable finalized clip files and enforces
// the count-based retention bound.
package clipstore

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ClipRecord describes one finalized clip. Records are enumerated fresh
// from the directory on every query; nothing is cached.
type ClipRecord struct {
	Name       string
	Path       string
	SizeBytes  int64
	ModifiedTS int64
}

// Store enforces the retained-clip bound over a single directory.
type Store struct {
	dir      string
	maxClips int
}

// New creates a store over dir retaining at most maxClips finalized clips.
func New(dir string, maxClips int) *Store {
	return &Store{dir: dir, maxClips: maxClips}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// List enumerates finalized clips, newest first by modification time.
// Never fails: a missing or empty directory yields an empty slice. Raw
// intermediates and foreign files are ignored.
func (s *Store) List() []ClipRecord {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	clips := make([]ClipRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		clips = append(clips, ClipRecord{
			Name:       entry.Name(),
			Path:       filepath.Join(s.dir, entry.Name()),
			SizeBytes:  info.Size(),
			ModifiedTS: info.ModTime().Unix(),
		})
	}

	sort.Slice(clips, func(i, j int) bool {
		return clips[i].ModifiedTS > clips[j].ModifiedTS
	})

	return clips
}

// Register records a newly finalized clip and prunes the oldest clips
// until the retained count is within the bound. Deletion failures are
// logged and swallowed; retention is best-effort, not transactional.
func (s *Store) Register(path string) {
	slog.Info("clipstore: clip registered", "path", path)

	clips := s.List()
	if len(clips) <= s.maxClips {
		return
	}

	for _, old := range clips[s.maxClips:] {
		if err := os.Remove(old.Path); err != nil {
			slog.Warn("clipstore: failed to prune clip", "path", old.Path, "error", err)
			continue
		}
		slog.Info("clipstore: pruned oldest clip", "name", old.Name)
	}
}
