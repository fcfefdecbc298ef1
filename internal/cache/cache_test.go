package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "routes.db"), filepath.Join(tmp, "routes.lock"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGetRoundtrip(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put("relay/chains", []byte(`[{"chain_id":1}]`), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	value, age, ok, err := store.Get("relay/chains")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if string(value) != `[{"chain_id":1}]` {
		t.Fatalf("value = %s", value)
	}
	if age > 5*time.Second {
		t.Fatalf("fresh entry reported age %s", age)
	}
}

func TestGetMissIsNotAnError(t *testing.T) {
	store := openTestStore(t)
	_, _, ok, err := store.Get("never-stored")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("miss must not report a hit")
	}
}

func TestPruneDropsExpiredEntries(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put("short-lived", []byte(`{}`), time.Second); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)
	if err := store.Prune(); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if _, _, ok, _ := store.Get("short-lived"); ok {
		t.Fatal("expired entry must be pruned")
	}
}

func TestNilStoreIsInert(t *testing.T) {
	var store *Store
	if err := store.Put("k", []byte(`{}`), time.Minute); err != nil {
		t.Fatalf("nil Put: %v", err)
	}
	if _, _, ok, err := store.Get("k"); ok || err != nil {
		t.Fatalf("nil Get: ok=%t err=%v", ok, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestConcurrentOpenAndPut(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "routes.db")
	lockPath := filepath.Join(tmp, "routes.lock")

	const workers = 8
	const iterations = 25

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			store, err := Open(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			defer store.Close()

			for i := 0; i < iterations; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", workerID, i)
				if err := store.Put(key, []byte(`{"ok":true}`), time.Minute); err != nil {
					errCh <- fmt.Errorf("worker %d put iter %d: %w", workerID, i, err)
					return
				}
				if _, _, ok, err := store.Get(key); err != nil || !ok {
					errCh <- fmt.Errorf("worker %d get iter %d: ok=%t err=%v", workerID, i, ok, err)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}
