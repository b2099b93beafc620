// Package kvengine is an embedded, crash-safe key-value storage engine.
//
// The engine keeps the full dataset in memory and makes every mutation
// durable before acknowledging it: the mutation is appended to a write-ahead
// log and fsynced, applied to the in-memory map, and then a full snapshot of
// the map is atomically installed on disk. Restart recovery loads the last
// committed snapshot and replays the longest valid prefix of the log, so an
// acknowledged write survives any crash, including one mid-write.
//
// All operations are serialized under a single exclusive-access mutex, which
// makes every history of concurrent calls linearizable.
//
// Basic usage:
//
//	store, err := kvengine.Open("/var/data/kv", kvengine.DefaultOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.Put([]byte("user:1"), []byte("alice")); err != nil {
//		log.Fatal(err)
//	}
//	value, err := store.Get([]byte("user:1"))
//	if errors.Is(err, kvengine.ErrNotFound) {
//		// key absent
//	}
//
// The store directory holds three files: SNAPSHOT (the last committed full
// image), WAL (mutations since that image), and LOCK (an advisory lock
// guarding against double-open). None of them require external bookkeeping;
// both data files carry self-describing headers.
package kvengine
