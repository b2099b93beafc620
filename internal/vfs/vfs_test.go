package vfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFSBasics(t *testing.T) {
	fs := Default()
	dir := t.TempDir()
	path := filepath.Join(dir, "file")

	f, err := fs.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
	if size, err := f.Size(); err != nil || size != 5 {
		t.Errorf("size = %d, %v", size, err)
	}
	f.Close()

	if !fs.Exists(path) {
		t.Error("created file does not exist")
	}

	r, err := fs.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil || string(data) != "hello" {
		t.Errorf("read %q, %v", data, err)
	}

	renamed := filepath.Join(dir, "renamed")
	if err := fs.Rename(path, renamed); err != nil {
		t.Fatal(err)
	}
	if fs.Exists(path) || !fs.Exists(renamed) {
		t.Error("rename did not move the file")
	}

	names, err := fs.ListDir(dir)
	if err != nil || len(names) != 1 || names[0] != "renamed" {
		t.Errorf("list = %v, %v", names, err)
	}

	if err := fs.SyncDir(dir); err != nil {
		t.Errorf("sync dir: %v", err)
	}
	if err := fs.Remove(renamed); err != nil {
		t.Fatal(err)
	}
	if fs.Exists(renamed) {
		t.Error("removed file still exists")
	}
}

func TestOpenAppendAppends(t *testing.T) {
	fs := Default()
	path := filepath.Join(t.TempDir(), "file")

	for _, chunk := range []string{"one", "two"} {
		f, err := fs.OpenAppend(path)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "onetwo" {
		t.Errorf("read %q, %v", data, err)
	}
}

func TestFaultInjectionWriteError(t *testing.T) {
	fs := NewFaultInjectionFS(Default())
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	other := filepath.Join(dir, "other")

	fs.InjectWriteError(target)
	if _, err := fs.Create(target); !errors.Is(err, ErrInjectedWriteError) {
		t.Errorf("create target: %v", err)
	}
	// Other paths are unaffected.
	f, err := fs.Create(other)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	fs.ClearErrors()
	f, err = fs.Create(target)
	if err != nil {
		t.Fatalf("create after clear: %v", err)
	}
	f.Close()
}

func TestFaultInjectionSyncError(t *testing.T) {
	fs := NewFaultInjectionFS(Default())
	path := filepath.Join(t.TempDir(), "file")

	f, err := fs.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	fs.InjectSyncError()
	if err := f.Sync(); !errors.Is(err, ErrInjectedSyncError) {
		t.Errorf("sync: %v", err)
	}
	fs.ClearErrors()
	if err := f.Sync(); err != nil {
		t.Errorf("sync after clear: %v", err)
	}
}

func TestDropUnsyncedData(t *testing.T) {
	fs := NewFaultInjectionFS(Default())
	path := filepath.Join(t.TempDir(), "file")

	f, err := fs.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("durable")); err != nil {
		t.Fatal(err)
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("-volatile")); err != nil {
		t.Fatal(err)
	}
	// No sync for the second write.

	if err := fs.DropUnsyncedData(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "durable" {
		t.Errorf("after drop: %q, %v", data, err)
	}

	synced, pos, ok := fs.GetFileState(path)
	if !ok || synced != 7 || pos != 7 {
		t.Errorf("file state = %d/%d, ok=%v", synced, pos, ok)
	}
}

func TestLockExcludesSecondHolder(t *testing.T) {
	fs := Default()
	path := filepath.Join(t.TempDir(), "LOCK")

	l1, err := fs.Lock(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Lock(path); err == nil {
		t.Error("second lock acquisition should fail")
	}

	if err := l1.Close(); err != nil {
		t.Fatal(err)
	}
	l2, err := fs.Lock(path)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	l2.Close()
}
