// Package wal implements the write-ahead log: the append-only durable
// record of every mutation since the last snapshot commit.
//
// File Format:
//
//	header: magic "kvwal001" (8B) | version (1B) | checksum type (1B)
//	then encoded records back-to-back (see the record package)
//
// The header makes a log file decodable without external bookkeeping. The
// file length may exceed what is valid; only the maximal valid prefix of
// records is authoritative. A file shorter than the header is an empty log
// whose creation was interrupted.
package wal

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/CypherGuy/kv-engine/internal/checksum"
	"github.com/CypherGuy/kv-engine/internal/logging"
	"github.com/CypherGuy/kv-engine/internal/record"
	"github.com/CypherGuy/kv-engine/internal/vfs"
)

// Magic identifies a write-ahead log file.
const Magic = "kvwal001"

// Version is the current log format version.
const Version = 1

// headerSize is magic (8) + version (1) + checksum type (1).
const headerSize = 10

// Log is an open write-ahead log.
//
// A Log is single-writer; the engine serializes all access under its
// exclusive-access token.
type Log struct {
	fs     vfs.FS
	path   string
	file   vfs.WritableFile
	ct     checksum.Type
	logger logging.Logger

	size   int64  // Bytes known to form a valid prefix
	broken error  // Set when the tail could not be restored after a failed append
	buf    []byte // Reusable encode buffer
}

// Open opens the log at path for appending, creating it if necessary.
//
// An existing header's checksum type wins over ct so that a store survives
// an option change. Open establishes the maximal valid record prefix and
// truncates any damaged suffix left by an interrupted append, so that new
// appends are never hidden behind a torn tail. A file without a valid
// header holds no trusted records (the valid prefix is empty), so it is
// reinitialized in place.
func Open(fs vfs.FS, path string, ct checksum.Type, logger logging.Logger) (*Log, error) {
	l := &Log{fs: fs, path: path, ct: ct, logger: logger}

	// Scan for the valid prefix before opening for append.
	scan, err := NewReader(fs, path)
	if err != nil {
		return nil, err
	}
	hdrOK := scan.off > 0 && scan.err == nil
	for hdrOK {
		if _, err := scan.Next(); err != nil {
			break
		}
	}
	validSize := int64(scan.Offset())

	var fileSize int64
	if info, err := fs.Stat(path); err == nil {
		fileSize = info.Size()
	}

	file, err := fs.OpenAppend(path)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	l.file = file

	if !hdrOK {
		if fileSize > 0 {
			logger.Warnf("[wal] %s has no valid header, reinitializing", path)
		}
		if err := l.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
		if err := fs.SyncDir(filepath.Dir(path)); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("wal: sync dir: %w", err)
		}
		return l, nil
	}

	if scan.ct != ct {
		logger.Infof("[wal] keeping checksum type %s from existing log (options say %s)", scan.ct, ct)
	}
	l.ct = scan.ct
	l.size = validSize

	if fileSize > validSize {
		logger.Infof("[wal] dropping %d damaged trailing bytes from %s", fileSize-validSize, path)
		if err := file.Truncate(validSize); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("wal: drop damaged tail: %w", err)
		}
		if err := file.Sync(); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("wal: sync after tail drop: %w", err)
		}
	}
	return l, nil
}

// writeHeader truncates the file and writes a fresh header, fsyncing it.
func (l *Log) writeHeader() error {
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}

	var hdr [headerSize]byte
	copy(hdr[:], Magic)
	hdr[8] = Version
	hdr[9] = byte(l.ct)
	if _, err := l.file.Write(hdr[:]); err != nil {
		return fmt.Errorf("wal: write header: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync header: %w", err)
	}
	l.size = headerSize
	l.broken = nil
	return nil
}

// Append encodes rec, writes it to the end of the log, and fsyncs.
// It returns nil only after the bytes are confirmed durable; on any error
// the record is not committed and must not be applied by the caller.
func (l *Log) Append(rec record.Record) error {
	if l.broken != nil {
		return fmt.Errorf("wal: log needs reset after failed append: %w", l.broken)
	}

	l.buf = record.AppendRecord(l.buf[:0], rec, l.ct)

	_, werr := l.file.Write(l.buf)
	if werr == nil {
		if serr := l.file.Sync(); serr == nil {
			l.size += int64(len(l.buf))
			return nil
		} else {
			werr = serr
		}
	}

	// The file may now carry a torn tail. Restore the valid prefix so a
	// later successful append is not hidden behind it on replay.
	if terr := l.file.Truncate(l.size); terr != nil {
		l.broken = terr
		l.logger.Errorf("[wal] could not restore tail after failed append: %v", terr)
	}
	return fmt.Errorf("wal: append: %w", werr)
}

// Reset truncates the log to empty (header only) and fsyncs.
// Called only immediately after a snapshot is durably committed, never
// concurrently with an in-flight append.
func (l *Log) Reset() error {
	return l.writeHeader()
}

// Size returns the size in bytes of the valid prefix, including the header.
func (l *Log) Size() int64 {
	return l.size
}

// ChecksumType returns the checksum algorithm the log uses.
func (l *Log) ChecksumType() checksum.Type {
	return l.ct
}

// Close closes the underlying file.
func (l *Log) Close() error {
	return l.file.Close()
}

// NewReader re-opens the log from the start for replay.
// Safe to call while the log is open for appending; used only during
// recovery and by offline tooling.
func (l *Log) NewReader() (*Reader, error) {
	return NewReader(l.fs, l.path)
}

// Reader yields the records of a log file in order.
type Reader struct {
	ct  checksum.Type
	buf []byte
	off int
	err error // Sticky decode error, reported by every subsequent Next
}

// NewReader opens the log file at path for reading from the start.
// A missing file or one shorter than a header reads as an empty log.
func NewReader(fs vfs.FS, path string) (*Reader, error) {
	f, err := fs.Open(path)
	if err != nil {
		if !fs.Exists(path) {
			return &Reader{}, nil
		}
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("wal: read %s: %w", path, err)
	}

	r := &Reader{}
	switch {
	case len(data) < headerSize:
		// Interrupted creation; no records were ever appended.
	case string(data[:8]) != Magic || data[8] != Version ||
		!checksum.Type(data[9]).IsSupported():
		// A damaged header invalidates the whole file, like a damaged
		// first record.
		r.err = record.ErrCorrupted
	default:
		r.ct = checksum.Type(data[9])
		r.buf = data
		r.off = headerSize
	}
	return r, nil
}

// Next returns the next record in file order.
//
// It returns io.EOF at the clean end of the log, and record.ErrTruncated or
// record.ErrCorrupted at a damaged tail. Once an error is returned, every
// subsequent call returns the same error. The returned record's Key and
// Value remain valid for the lifetime of the Reader.
func (r *Reader) Next() (record.Record, error) {
	if r.err != nil {
		return record.Record{}, r.err
	}
	if r.off >= len(r.buf) {
		return record.Record{}, io.EOF
	}

	rec, n, err := record.DecodeRecord(r.buf[r.off:], r.ct)
	if err != nil {
		r.err = err
		return record.Record{}, err
	}
	r.off += n
	return rec, nil
}

// Offset returns the byte offset after the last successfully read record.
func (r *Reader) Offset() int {
	return r.off
}
