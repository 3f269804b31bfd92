package di

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/mapping"
)

// TestConcurrentSessions runs many auto-commit sessions against one blocking namespace cache.
func TestConcurrentSessions(t *testing.T) {
	settings := cachedSettings()
	settings.Caches = []cache.Spec{{ID: "authors", Blocking: true, BlockingTimeout: 5 * time.Second}}
	f := newFixture(t, settings)

	ctx := context.Background()
	const numGoroutines = 20
	const operationsPerGoroutine = 10

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*operationsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			s, err := f.container.OpenSession()
			if err != nil {
				errs <- err
				return
			}
			defer s.Close(ctx)

			for j := 0; j < operationsPerGoroutine; j++ {
				id := int64((workerID+j)%3 + 1)
				row, err := s.SelectOne(ctx, "authors.byID", id)
				if err != nil {
					errs <- fmt.Errorf("worker %d operation %d failed: %v", workerID, j, err)
					continue
				}
				if row.(Author).ID != id {
					errs <- fmt.Errorf("worker %d operation %d got %v", workerID, j, row)
				}
				// Commit after every read so a session never holds more than one key lock.
				if err := s.Commit(ctx, false); err != nil {
					errs <- fmt.Errorf("worker %d commit failed: %v", workerID, err)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	var errorCount int
	for err := range errs {
		t.Error(err)
		errorCount++
		if errorCount > 5 {
			t.Error("... and more errors")
			break
		}
	}

	if calls := f.mapper.Calls(); calls > numGoroutines*3 {
		t.Errorf("expected the namespace cache to absorb most reads, got %d database queries", calls)
	}
}

// TestConcurrentReadWrite interleaves readers with writers flushing the namespace cache.
func TestConcurrentReadWrite(t *testing.T) {
	f := newFixture(t, cachedSettings())

	ctx := context.Background()
	const numReaders = 8
	const numWriters = 2
	const operationsPerWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, (numReaders+numWriters)*operationsPerWorker)

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()
			s, err := f.container.OpenSession()
			if err != nil {
				errs <- err
				return
			}
			defer s.Close(ctx)

			for j := 0; j < operationsPerWorker; j++ {
				if _, err := s.SelectOne(ctx, "authors.byID", int64(1)); err != nil {
					errs <- fmt.Errorf("reader %d operation %d failed: %v", readerID, j, err)
				}
				if err := s.Commit(ctx, false); err != nil {
					errs <- fmt.Errorf("reader %d commit failed: %v", readerID, err)
				}
			}
		}(i)
	}

	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(writerID int) {
			defer wg.Done()
			s, err := f.container.OpenSession()
			if err != nil {
				errs <- err
				return
			}
			defer s.Close(ctx)

			for j := 0; j < operationsPerWorker; j++ {
				name := fmt.Sprintf("writer-%d-%d", writerID, j)
				if _, err := s.Update(ctx, "authors.rename", &Author{ID: 1, Name: name}); err != nil {
					errs <- fmt.Errorf("writer %d operation %d failed: %v", writerID, j, err)
				}
				if err := s.Commit(ctx, true); err != nil {
					errs <- fmt.Errorf("writer %d commit failed: %v", writerID, err)
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

// TestScheduledClearIntegration checks that a namespace cache with a clear interval drops
// published results once the interval passes.
func TestScheduledClearIntegration(t *testing.T) {
	settings := cachedSettings()
	settings.Caches = []cache.Spec{{ID: "authors", ClearInterval: 100 * time.Millisecond}}
	f := newFixture(t, settings)
	ctx := context.Background()

	read := func() {
		s, err := f.container.OpenSession()
		if err != nil {
			t.Fatalf("OpenSession() failed: %v", err)
		}
		defer s.Close(ctx)
		if _, err := s.SelectOne(ctx, "authors.byID", int64(2)); err != nil {
			t.Fatalf("SelectOne() failed: %v", err)
		}
	}

	read()
	read()
	if calls := f.mapper.Calls(); calls != 1 {
		t.Errorf("expected cached access to not increase calls, got %d", calls)
	}

	time.Sleep(150 * time.Millisecond)
	read()
	if calls := f.mapper.Calls(); calls != 2 {
		t.Errorf("expected 2 calls after the clear interval, got %d", calls)
	}
}

func BenchmarkLocalCacheHit(b *testing.B) {
	f := newBenchFixture(b, false)
	ctx := context.Background()
	s, err := f.container.OpenSession()
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close(ctx)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.SelectOne(ctx, "authors.byID", int64(1)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSecondLevelCacheHit(b *testing.B) {
	f := newBenchFixture(b, true)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, err := f.container.OpenSession()
		if err != nil {
			b.Fatal(err)
		}
		if _, err := s.SelectOne(ctx, "authors.byID", int64(1)); err != nil {
			b.Fatal(err)
		}
		if err := s.Close(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUncached(b *testing.B) {
	f := newBenchFixture(b, false)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, err := f.container.OpenSession()
		if err != nil {
			b.Fatal(err)
		}
		if _, err := s.SelectOne(ctx, "authors.byID", int64(1)); err != nil {
			b.Fatal(err)
		}
		if err := s.Close(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCacheKeyGeneration(b *testing.B) {
	params := map[string]any{"name": "ada", "tags": []string{"math", "computing"}, "since": 1843}
	bounds := mapping.DefaultRowBounds()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := cache.NewKey()
		if err := key.UpdateAll("authors.search", bounds.Offset, bounds.Limit,
			"SELECT * FROM authors WHERE name = ? AND since > ?", params["name"], params["tags"], params["since"]); err != nil {
			b.Fatal(err)
		}
		_ = key.Identity()
	}
}

func newBenchFixture(b *testing.B, cacheEnabled bool) fixture {
	b.Helper()

	settings := cachedSettings()
	settings.Executor.CacheEnabled = cacheEnabled
	return newFixture(b, settings)
}
