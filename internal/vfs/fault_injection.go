// fault_injection.go provides a filesystem wrapper for crash testing.
//
// FaultInjectionFS wraps a real filesystem and allows injecting errors and
// simulating crashes, so recovery code can be exercised in-process.
package vfs

import (
	"errors"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrInjectedReadError is returned when a read error is injected.
	ErrInjectedReadError = errors.New("vfs: injected read error")

	// ErrInjectedWriteError is returned when a write error is injected.
	ErrInjectedWriteError = errors.New("vfs: injected write error")

	// ErrInjectedSyncError is returned when a sync error is injected.
	ErrInjectedSyncError = errors.New("vfs: injected sync error")

	// ErrInjectedRenameError is returned when a rename error is injected.
	ErrInjectedRenameError = errors.New("vfs: injected rename error")
)

// FaultInjectionFS wraps an FS and allows injecting errors.
// It tracks unsynced data per file to simulate data loss on crash.
type FaultInjectionFS struct {
	base FS

	mu sync.RWMutex

	// Per-file sync state
	fileState map[string]*fileState

	// Error injection flags
	injectWriteError  bool
	injectSyncError   bool
	injectRenameError bool
	injectReadError   bool
	writeErrorPath    string
	readErrorPath     string

	// When false, every mutating call fails. Used to freeze the
	// filesystem at a crash point.
	filesystemActive bool
}

// fileState tracks the sync state of a file.
type fileState struct {
	pos       int64 // Current file size
	syncedPos int64 // Size up to which data is synced
}

// NewFaultInjectionFS creates a new fault-injecting filesystem wrapper.
func NewFaultInjectionFS(base FS) *FaultInjectionFS {
	return &FaultInjectionFS{
		base:             base,
		fileState:        make(map[string]*fileState),
		filesystemActive: true,
	}
}

// SetFilesystemActive enables or disables the filesystem.
// When disabled, all mutating operations fail. Used to simulate a crash.
func (fs *FaultInjectionFS) SetFilesystemActive(active bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.filesystemActive = active
}

// InjectWriteError makes writes and file creation fail for the given path.
// An empty path injects errors on every file.
func (fs *FaultInjectionFS) InjectWriteError(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectWriteError = true
	fs.writeErrorPath = absPath(path)
}

// InjectSyncError makes every Sync call fail.
func (fs *FaultInjectionFS) InjectSyncError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectSyncError = true
}

// InjectRenameError makes every Rename call fail.
func (fs *FaultInjectionFS) InjectRenameError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectRenameError = true
}

// InjectReadError makes opens-for-read fail for the given path.
// An empty path injects errors on every file.
func (fs *FaultInjectionFS) InjectReadError(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectReadError = true
	fs.readErrorPath = absPath(path)
}

// ClearErrors clears all error injection.
func (fs *FaultInjectionFS) ClearErrors() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectWriteError = false
	fs.injectSyncError = false
	fs.injectRenameError = false
	fs.injectReadError = false
	fs.writeErrorPath = ""
	fs.readErrorPath = ""
}

// DropUnsyncedData simulates a crash by dropping all unsynced data.
// Every tracked file is truncated back to its last synced size.
func (fs *FaultInjectionFS) DropUnsyncedData() error {
	fs.mu.Lock()
	states := make(map[string]*fileState)
	maps.Copy(states, fs.fileState)
	fs.mu.Unlock()

	for path, state := range states {
		if state.syncedPos >= state.pos {
			continue
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0644)
		if err != nil {
			continue // File may have been renamed or removed
		}
		_ = f.Truncate(state.syncedPos) // Best-effort truncation
		_ = f.Close()

		fs.mu.Lock()
		if s, ok := fs.fileState[path]; ok {
			s.pos = state.syncedPos
		}
		fs.mu.Unlock()
	}
	return nil
}

// GetFileState returns the tracked sync state for a file.
func (fs *FaultInjectionFS) GetFileState(path string) (syncedPos, currentPos int64, ok bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	state, exists := fs.fileState[absPath(path)]
	if !exists {
		return 0, 0, false
	}
	return state.syncedPos, state.pos, true
}

func absPath(name string) string {
	p, err := filepath.Abs(name)
	if err != nil {
		return name
	}
	return p
}

func (fs *FaultInjectionFS) writeBlocked(path string) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.filesystemActive {
		return ErrInjectedWriteError
	}
	if fs.injectWriteError && (fs.writeErrorPath == "" || fs.writeErrorPath == path) {
		return ErrInjectedWriteError
	}
	return nil
}

// Create creates a new writable file with fault injection.
func (fs *FaultInjectionFS) Create(name string) (WritableFile, error) {
	path := absPath(name)
	if err := fs.writeBlocked(path); err != nil {
		return nil, err
	}

	baseFile, err := fs.base.Create(name)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	fs.fileState[path] = &fileState{}
	fs.mu.Unlock()

	return &faultWritableFile{base: baseFile, fs: fs, path: path}, nil
}

// OpenAppend opens a file for appending with fault injection tracking.
func (fs *FaultInjectionFS) OpenAppend(name string) (WritableFile, error) {
	path := absPath(name)
	if err := fs.writeBlocked(path); err != nil {
		return nil, err
	}

	baseFile, err := fs.base.OpenAppend(name)
	if err != nil {
		return nil, err
	}
	size, _ := baseFile.Size()

	fs.mu.Lock()
	// Existing contents are assumed durable; only new writes are tracked.
	fs.fileState[path] = &fileState{pos: size, syncedPos: size}
	fs.mu.Unlock()

	return &faultWritableFile{base: baseFile, fs: fs, path: path}, nil
}

// Open opens an existing file for sequential reading.
func (fs *FaultInjectionFS) Open(name string) (SequentialFile, error) {
	fs.mu.RLock()
	if fs.injectReadError && (fs.readErrorPath == "" || fs.readErrorPath == absPath(name)) {
		fs.mu.RUnlock()
		return nil, ErrInjectedReadError
	}
	fs.mu.RUnlock()

	return fs.base.Open(name)
}

// Rename atomically renames a file.
func (fs *FaultInjectionFS) Rename(oldname, newname string) error {
	fs.mu.RLock()
	if !fs.filesystemActive || fs.injectRenameError {
		fs.mu.RUnlock()
		return ErrInjectedRenameError
	}
	fs.mu.RUnlock()

	if err := fs.base.Rename(oldname, newname); err != nil {
		return err
	}

	fs.mu.Lock()
	absOld, absNew := absPath(oldname), absPath(newname)
	if state, ok := fs.fileState[absOld]; ok {
		fs.fileState[absNew] = state
		delete(fs.fileState, absOld)
	}
	fs.mu.Unlock()

	return nil
}

// Remove deletes a file.
func (fs *FaultInjectionFS) Remove(name string) error {
	if err := fs.base.Remove(name); err != nil {
		return err
	}

	fs.mu.Lock()
	delete(fs.fileState, absPath(name))
	fs.mu.Unlock()

	return nil
}

// MkdirAll creates a directory and all parent directories.
func (fs *FaultInjectionFS) MkdirAll(path string, perm os.FileMode) error {
	fs.mu.RLock()
	if !fs.filesystemActive {
		fs.mu.RUnlock()
		return ErrInjectedWriteError
	}
	fs.mu.RUnlock()

	return fs.base.MkdirAll(path, perm)
}

// Stat returns file info.
func (fs *FaultInjectionFS) Stat(name string) (os.FileInfo, error) {
	return fs.base.Stat(name)
}

// Exists returns true if the file exists.
func (fs *FaultInjectionFS) Exists(name string) bool {
	return fs.base.Exists(name)
}

// ListDir lists files in a directory.
func (fs *FaultInjectionFS) ListDir(path string) ([]string, error) {
	return fs.base.ListDir(path)
}

// Lock acquires an exclusive lock on a file.
func (fs *FaultInjectionFS) Lock(name string) (io.Closer, error) {
	return fs.base.Lock(name)
}

// SyncDir syncs a directory.
func (fs *FaultInjectionFS) SyncDir(path string) error {
	fs.mu.RLock()
	if fs.injectSyncError {
		fs.mu.RUnlock()
		return ErrInjectedSyncError
	}
	fs.mu.RUnlock()

	return fs.base.SyncDir(path)
}

// faultWritableFile wraps a WritableFile with fault injection.
type faultWritableFile struct {
	base WritableFile
	fs   *FaultInjectionFS
	path string
}

func (f *faultWritableFile) Write(p []byte) (int, error) {
	if err := f.fs.writeBlocked(f.path); err != nil {
		return 0, err
	}

	n, err := f.base.Write(p)
	if err != nil {
		return n, err
	}

	f.fs.mu.Lock()
	if state, ok := f.fs.fileState[f.path]; ok {
		state.pos += int64(n)
	}
	f.fs.mu.Unlock()

	return n, nil
}

func (f *faultWritableFile) Close() error {
	return f.base.Close()
}

func (f *faultWritableFile) Sync() error {
	f.fs.mu.RLock()
	if f.fs.injectSyncError || !f.fs.filesystemActive {
		f.fs.mu.RUnlock()
		return ErrInjectedSyncError
	}
	f.fs.mu.RUnlock()

	if err := f.base.Sync(); err != nil {
		return err
	}

	f.fs.mu.Lock()
	if state, ok := f.fs.fileState[f.path]; ok {
		state.syncedPos = state.pos
	}
	f.fs.mu.Unlock()

	return nil
}

func (f *faultWritableFile) Truncate(size int64) error {
	if err := f.fs.writeBlocked(f.path); err != nil {
		return err
	}

	if err := f.base.Truncate(size); err != nil {
		return err
	}

	f.fs.mu.Lock()
	if state, ok := f.fs.fileState[f.path]; ok {
		if size < state.syncedPos {
			state.syncedPos = size
		}
		state.pos = size
	}
	f.fs.mu.Unlock()

	return nil
}

func (f *faultWritableFile) Size() (int64, error) {
	return f.base.Size()
}
