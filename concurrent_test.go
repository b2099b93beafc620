package kvengine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestConcurrentDistinctKeys(t *testing.T) {
	const goroutines = 8
	const opsPerGoroutine = 50

	dir := t.TempDir()
	s := openTestStore(t, dir)

	var wg sync.WaitGroup
	errCh := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < opsPerGoroutine; i++ {
				key := []byte(fmt.Sprintf("g%d-k%d", g, i%10))
				value := []byte(fmt.Sprintf("v%d", i))
				if err := s.Put(key, value); err != nil {
					errCh <- err
					return
				}
				// Read-your-write holds per key because no other
				// goroutine touches this key space.
				got, err := s.Get(key)
				if err != nil {
					errCh <- err
					return
				}
				if string(got) != string(value) {
					errCh <- fmt.Errorf("key %s: got %q, want %q", key, got, value)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}

	// Each goroutine's final values survive a restart.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s2 := openTestStore(t, dir)
	defer s2.Close()
	for g := 0; g < goroutines; g++ {
		for k := 0; k < 10; k++ {
			key := []byte(fmt.Sprintf("g%d-k%d", g, k))
			want := fmt.Sprintf("v%d", opsPerGoroutine-10+k)
			got, err := s2.Get(key)
			if err != nil || string(got) != want {
				t.Errorf("key %s after reopen: %q, %v, want %q", key, got, err, want)
			}
		}
	}
}

func TestConcurrentSharedKey(t *testing.T) {
	const goroutines = 8
	const opsPerGoroutine = 30

	dir := t.TempDir()
	s := openTestStore(t, dir)

	key := []byte("shared")
	var wg sync.WaitGroup
	errCh := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < opsPerGoroutine; i++ {
				switch i % 3 {
				case 0:
					if err := s.Put(key, []byte(fmt.Sprintf("g%d-i%d", g, i))); err != nil {
						errCh <- err
						return
					}
				case 1:
					// The key may or may not exist; both are valid
					// outcomes under interleaving.
					if _, err := s.Get(key); err != nil && !errors.Is(err, ErrNotFound) {
						errCh <- err
						return
					}
				case 2:
					if err := s.Delete(key); err != nil {
						errCh <- err
						return
					}
				}
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}

	// Whatever the final state is, it survives a restart verbatim.
	final, ferr := s.Get(key)
	if ferr != nil && !errors.Is(ferr, ErrNotFound) {
		t.Fatal(ferr)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2 := openTestStore(t, dir)
	defer s2.Close()
	got, err := s2.Get(key)
	if errors.Is(ferr, ErrNotFound) {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("absent key reappeared after reopen: %q, %v", got, err)
		}
	} else {
		if err != nil || string(got) != string(final) {
			t.Errorf("got %q, %v after reopen, want %q", got, err, final)
		}
	}
}
