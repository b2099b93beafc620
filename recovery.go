package kvengine

// recovery.go reconstructs the in-memory state at Open: last committed
// snapshot plus the longest valid prefix of the write-ahead log.

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/CypherGuy/kv-engine/internal/logging"
	"github.com/CypherGuy/kv-engine/internal/record"
	"github.com/CypherGuy/kv-engine/internal/snapshot"
	"github.com/CypherGuy/kv-engine/internal/vfs"
	"github.com/CypherGuy/kv-engine/internal/wal"
)

// recoverState rebuilds the map and last sequence number from disk.
//
// A missing snapshot means a brand-new store: an empty snapshot is committed
// immediately so later recoveries always have a base image. A snapshot that
// exists but fails to decode is surfaced as an error; the rename discipline
// means a committed snapshot is never legitimately partial.
//
// Log replay applies only records whose sequence exceeds the snapshot's, in
// file order. A truncated or corrupted record ends replay silently: the
// damaged suffix was never acknowledged, so dropping it loses nothing that
// was promised.
func recoverState(fs vfs.FS, dir string, snap *snapshot.Store, logger logging.Logger) (map[string][]byte, uint64, error) {
	if err := snap.RemoveStaleTemps(); err != nil {
		return nil, 0, fmt.Errorf("kvengine: clean stale temps: %w", err)
	}

	entries, seq, err := snap.Load()
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		entries = make(map[string][]byte)
		seq = 0
		if err := snap.Replace(entries, 0); err != nil {
			return nil, 0, fmt.Errorf("kvengine: initial snapshot: %w", err)
		}
		logger.Infof("[recovery] initialized new store in %s", dir)
	case err != nil:
		return nil, 0, fmt.Errorf("kvengine: load snapshot: %w", err)
	}

	r, err := wal.NewReader(fs, filepath.Join(dir, walFileName))
	if err != nil {
		return nil, 0, fmt.Errorf("kvengine: open log for replay: %w", err)
	}

	replayed, skipped := 0, 0
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, record.ErrTruncated) || errors.Is(err, record.ErrCorrupted) {
			logger.Infof("[recovery] log damaged at offset %d, keeping the %d records before it",
				r.Offset(), replayed)
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("kvengine: replay log: %w", err)
		}

		if rec.Seq <= seq {
			// Already folded into the snapshot.
			skipped++
			continue
		}

		switch rec.Kind {
		case record.KindPut:
			v := make([]byte, len(rec.Value))
			copy(v, rec.Value)
			entries[string(rec.Key)] = v
		case record.KindDelete:
			delete(entries, string(rec.Key))
		}
		seq = rec.Seq
		replayed++
	}

	if replayed > 0 || skipped > 0 {
		logger.Infof("[recovery] replayed %d records (%d already in snapshot), seq %d",
			replayed, skipped, seq)
	}
	return entries, seq, nil
}
