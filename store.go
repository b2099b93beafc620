package kvengine

// store.go implements the public storage engine: the in-memory map, the
// durability sequence for mutations, and the single-mutex concurrency
// controller.

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/CypherGuy/kv-engine/internal/logging"
	"github.com/CypherGuy/kv-engine/internal/record"
	"github.com/CypherGuy/kv-engine/internal/snapshot"
	"github.com/CypherGuy/kv-engine/internal/wal"
)

// Names of the files inside a store directory.
const (
	walFileName  = "WAL"
	lockFileName = "LOCK"
)

// Store is an open key-value store.
//
// All methods are safe for concurrent use. A single mutex guards the whole
// operation surface; each operation holds it for its entire durability
// sequence, so every history of concurrent calls is linearizable.
type Store struct {
	opts   Options
	dir    string
	logger logging.Logger

	mu      sync.Mutex
	entries map[string][]byte
	seq     uint64 // Sequence of the last applied mutation
	wal     *wal.Log
	snap    *snapshot.Store
	flock   io.Closer
	closed  bool
}

// Open opens the store in dir, creating it if necessary.
//
// Open acquires the directory's LOCK file, removes stale snapshot temp
// files, loads the last committed snapshot, and replays the valid prefix of
// the write-ahead log. On return every previously acknowledged write is
// visible.
func Open(dir string, opts *Options) (*Store, error) {
	o, err := opts.sanitize()
	if err != nil {
		return nil, err
	}

	if err := o.FS.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("kvengine: create dir %s: %w", dir, err)
	}

	flock, err := o.FS.Lock(filepath.Join(dir, lockFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocked, err)
	}

	s := &Store{
		opts:   o,
		dir:    dir,
		logger: o.Logger,
		flock:  flock,
		snap:   snapshot.New(o.FS, dir, o.ChecksumType, o.Compression, o.Logger),
	}

	entries, seq, err := recoverState(o.FS, dir, s.snap, o.Logger)
	if err != nil {
		_ = flock.Close()
		return nil, err
	}
	s.entries = entries
	s.seq = seq

	s.wal, err = wal.Open(o.FS, filepath.Join(dir, walFileName), o.ChecksumType, o.Logger)
	if err != nil {
		_ = flock.Close()
		return nil, err
	}

	s.logger.Infof("[store] opened %s: %d entries, seq %d", dir, len(entries), seq)
	return s, nil
}

// Get returns the value stored under key.
//
// It returns ErrNotFound when the key is absent. The returned slice is a
// copy; the caller may modify it freely.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	value, ok := s.entries[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put durably stores value under key, overwriting any previous value.
//
// Put returns only after the mutation is fsynced to the write-ahead log; a
// nil return means the write survives any subsequent crash. An empty key is
// rejected with ErrEmptyKey and has no effect.
func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}

	rec := record.Record{Seq: s.seq + 1, Kind: record.KindPut, Key: key, Value: value}
	if err := s.wal.Append(rec); err != nil {
		return err
	}
	s.seq++

	v := make([]byte, len(value))
	copy(v, value)
	s.entries[string(key)] = v

	s.commitSnapshot()
	return nil
}

// Delete durably removes key.
//
// Deleting an absent key is not an error and runs the full durability
// sequence, so the operation is observably idempotent. An empty key is
// rejected with ErrEmptyKey.
func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}

	rec := record.Record{Seq: s.seq + 1, Kind: record.KindDelete, Key: key}
	if err := s.wal.Append(rec); err != nil {
		return err
	}
	s.seq++

	delete(s.entries, string(key))

	s.commitSnapshot()
	return nil
}

// Len returns the number of entries in the store.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	return len(s.entries), nil
}

// commitSnapshot installs a snapshot of the current map and, on success,
// resets the write-ahead log.
//
// Failure here never fails the operation: the mutation is already durable in
// the log, so recovery reconstructs it. Called with the mutex held.
func (s *Store) commitSnapshot() {
	if err := s.snap.Replace(s.entries, s.seq); err != nil {
		s.logger.Warnf("[store] snapshot replace failed, log retains the data: %v", err)
		return
	}
	if err := s.wal.Reset(); err != nil {
		// Harmless beyond wasted space: replay skips records whose sequence
		// the snapshot already covers.
		s.logger.Warnf("[store] log reset after snapshot failed: %v", err)
	}
}

// Close releases the store's resources and its LOCK file.
// Close is idempotent; operations after Close return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	walErr := s.wal.Close()
	lockErr := s.flock.Close()
	s.logger.Infof("[store] closed %s", s.dir)
	if walErr != nil {
		return fmt.Errorf("kvengine: close log: %w", walErr)
	}
	if lockErr != nil {
		return fmt.Errorf("kvengine: release lock: %w", lockErr)
	}
	return nil
}
