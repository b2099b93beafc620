// Package snapshot persists full point-in-time images of the map and
// replaces them atomically.
//
// The main file is only ever installed by renaming a fully written and
// fsynced temporary file over it, so at every instant the path either holds
// the previous complete image or the new one, never a partial write.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/CypherGuy/kv-engine/internal/checksum"
	"github.com/CypherGuy/kv-engine/internal/compression"
	"github.com/CypherGuy/kv-engine/internal/logging"
	"github.com/CypherGuy/kv-engine/internal/record"
	"github.com/CypherGuy/kv-engine/internal/vfs"
)

const (
	// FileName is the snapshot file inside the store directory.
	FileName = "SNAPSHOT"

	// tempSuffix marks in-progress snapshot writes. Leftover temp files are
	// garbage from an interrupted Replace and are deleted at startup.
	tempSuffix = ".tmp"
)

// ErrNotFound is returned by Load when no snapshot file exists.
var ErrNotFound = errors.New("snapshot: no snapshot file")

// Store reads and atomically replaces the snapshot of one store directory.
type Store struct {
	fs     vfs.FS
	dir    string
	path   string
	ct     checksum.Type
	comp   compression.Type
	logger logging.Logger
}

// New creates a Store for the snapshot file in dir.
func New(fs vfs.FS, dir string, ct checksum.Type, comp compression.Type, logger logging.Logger) *Store {
	return &Store{
		fs:     fs,
		dir:    dir,
		path:   filepath.Join(dir, FileName),
		ct:     ct,
		comp:   comp,
		logger: logger,
	}
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and decodes the snapshot file.
//
// It returns ErrNotFound when the file does not exist. Any other failure,
// including a damaged file, is an error: the rename discipline means the
// main file is never legitimately partial, so damage here is real
// corruption rather than an interrupted write.
func (s *Store) Load() (map[string][]byte, uint64, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		if !s.fs.Exists(s.path) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("snapshot: open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot: read %s: %w", s.path, err)
	}

	snap, err := record.DecodeSnapshot(data)
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot: decode %s: %w", s.path, err)
	}
	return snap.Entries, snap.Seq, nil
}

// Replace durably installs a new snapshot image of entries at sequence seq.
//
// Write path: serialize into a temporary file in the same directory, fsync
// it, close it, rename it onto the main file, then fsync the directory so
// the rename itself survives a crash. On any failure the temporary file is
// removed and the previous snapshot remains intact.
func (s *Store) Replace(entries map[string][]byte, seq uint64) error {
	data, err := record.EncodeSnapshot(record.Snapshot{Seq: seq, Entries: entries}, s.ct, s.comp)
	if err != nil {
		return err
	}

	tmpPath := s.path + tempSuffix
	if err := s.writeTemp(tmpPath, data); err != nil {
		// Best effort: the startup sweep removes anything this misses.
		_ = s.fs.Remove(tmpPath)
		return err
	}

	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("snapshot: rename %s: %w", tmpPath, err)
	}
	if err := s.fs.SyncDir(s.dir); err != nil {
		return fmt.Errorf("snapshot: sync dir after rename: %w", err)
	}

	s.logger.Debugf("[snapshot] installed image: %d entries, seq %d, %d bytes",
		len(entries), seq, len(data))
	return nil
}

// writeTemp writes data to path and fsyncs it before closing.
func (s *Store) writeTemp(path string, data []byte) error {
	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: close %s: %w", path, err)
	}
	return nil
}

// RemoveStaleTemps deletes leftover temporary snapshot files in the store
// directory. A temp file that survived a restart belongs to a Replace that
// never committed; its content is untrusted regardless of how complete it
// looks.
func (s *Store) RemoveStaleTemps() error {
	names, err := s.fs.ListDir(s.dir)
	if err != nil {
		return fmt.Errorf("snapshot: list %s: %w", s.dir, err)
	}
	for _, name := range names {
		if !strings.HasSuffix(name, tempSuffix) {
			continue
		}
		path := filepath.Join(s.dir, name)
		if err := s.fs.Remove(path); err != nil {
			return fmt.Errorf("snapshot: remove stale temp %s: %w", path, err)
		}
		s.logger.Infof("[snapshot] removed stale temp file %s", name)
	}
	return nil
}
