package downloader

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"docharvest/pkg/logger"
	"docharvest/pkg/storage"
)

// mockFetcher serves a fixed body for every URL
type mockFetcher struct {
	delay   time.Duration
	err     error
	counter int32
}

func (m *mockFetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	atomic.AddInt32(&m.counter, 1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(strings.NewReader("%PDF-1.7 " + url)), nil
}

func (m *mockFetcher) count() int {
	return int(atomic.LoadInt32(&m.counter))
}

func newPool(t *testing.T, workers int, f Fetcher) (*WorkerPool, *storage.Manager) {
	t.Helper()
	store := storage.NewManager(afero.NewMemMapFs(), "/downloads")
	if err := store.Prepare(false); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	pool := NewWorkerPool(workers, f, store, ".part", logger.NewNopLogger())
	pool.Start()
	return pool, store
}

func collect(pool *WorkerPool) (*[]Result, *sync.WaitGroup) {
	var results []Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()
	return &results, &wg
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	fetcher := &mockFetcher{delay: 10 * time.Millisecond}
	pool, store := newPool(t, 3, fetcher)
	results, wg := collect(pool)

	numJobs := 10
	for i := 0; i < numJobs; i++ {
		job := Job{
			Position: i,
			URL:      fmt.Sprintf("https://example.com/doc%d.pdf", i),
			Name:     fmt.Sprintf("doc%d.pdf", i),
		}
		if err := pool.Submit(context.Background(), job); err != nil {
			t.Errorf("Failed to submit job %d: %v", i, err)
		}
	}

	pool.Stop()
	wg.Wait()

	if len(*results) != numJobs {
		t.Fatalf("Expected %d results, got %d", numJobs, len(*results))
	}
	for _, result := range *results {
		if !result.Success {
			t.Errorf("Job %d failed: %v", result.Job.Position, result.Error)
		}
		if result.Size == 0 {
			t.Errorf("Job %d reported an empty body", result.Job.Position)
		}
	}
	if fetcher.count() != numJobs {
		t.Errorf("Expected %d fetches, got %d", numJobs, fetcher.count())
	}
	for i := 0; i < numJobs; i++ {
		name := fmt.Sprintf("doc%d.pdf", i)
		if !store.Exists(name) {
			t.Errorf("Expected %s to be saved", name)
		}
		if store.Exists(name + ".part") {
			t.Errorf("Temporary file for %s was left behind", name)
		}
	}
}

func TestWorkerPoolWithErrors(t *testing.T) {
	fetcher := &mockFetcher{err: fmt.Errorf("download error")}
	pool, store := newPool(t, 2, fetcher)
	results, wg := collect(pool)

	numJobs := 5
	for i := 0; i < numJobs; i++ {
		job := Job{Position: i, URL: fmt.Sprintf("https://example.com/doc%d.pdf", i), Name: fmt.Sprintf("doc%d.pdf", i)}
		if err := pool.Submit(context.Background(), job); err != nil {
			t.Errorf("Failed to submit job %d: %v", i, err)
		}
	}

	pool.Stop()
	wg.Wait()

	if len(*results) != numJobs {
		t.Errorf("Expected %d results, got %d", numJobs, len(*results))
	}
	for _, result := range *results {
		if result.Success {
			t.Error("Expected all downloads to fail")
		}
		if result.Error == nil {
			t.Error("Expected error in result")
		}
		if store.Exists(result.Job.Name) {
			t.Errorf("Failed job %d left a file behind", result.Job.Position)
		}
	}
}

func TestWorkerPoolConcurrency(t *testing.T) {
	fetcher := &mockFetcher{delay: 100 * time.Millisecond}
	pool, _ := newPool(t, 5, fetcher)
	results, wg := collect(pool)

	numJobs := 10
	startTime := time.Now()
	for i := 0; i < numJobs; i++ {
		job := Job{Position: i, URL: fmt.Sprintf("https://example.com/doc%d.pdf", i), Name: fmt.Sprintf("doc%d.pdf", i)}
		if err := pool.Submit(context.Background(), job); err != nil {
			t.Errorf("Failed to submit job %d: %v", i, err)
		}
	}

	pool.Stop()
	wg.Wait()
	elapsed := time.Since(startTime)

	// 5 workers, 10 jobs of 100ms each: two rounds plus overhead
	expectedTime := 400 * time.Millisecond
	if elapsed > expectedTime {
		t.Errorf("Downloads took too long: %v (expected < %v)", elapsed, expectedTime)
	}
	if len(*results) != numJobs {
		t.Errorf("Expected %d results, got %d", numJobs, len(*results))
	}
}

func TestWorkerPoolSubmitAfterStop(t *testing.T) {
	pool, _ := newPool(t, 1, &mockFetcher{})
	_, wg := collect(pool)

	pool.Stop()
	wg.Wait()

	err := pool.Submit(context.Background(), Job{Position: 0, URL: "https://example.com/a.pdf", Name: "a.pdf"})
	if err != ErrStopped {
		t.Errorf("Expected ErrStopped, got %v", err)
	}

	// Stop is idempotent
	pool.Stop()
}

func TestWorkerPoolCancelAbortsInFlight(t *testing.T) {
	fetcher := &mockFetcher{delay: 10 * time.Second}
	pool, store := newPool(t, 1, fetcher)
	results, wg := collect(pool)

	if err := pool.Submit(context.Background(), Job{Position: 0, URL: "https://example.com/slow.pdf", Name: "slow.pdf"}); err != nil {
		t.Fatalf("Failed to submit job: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	pool.Cancel()
	pool.Stop()
	wg.Wait()

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop after Cancel took %v", elapsed)
	}
	for _, result := range *results {
		if result.Success {
			t.Error("Cancelled job should not succeed")
		}
	}
	if store.Exists("slow.pdf") {
		t.Error("Cancelled job should not produce a file")
	}
}

func TestWorkerPoolSubmitHonoursContext(t *testing.T) {
	fetcher := &mockFetcher{delay: 10 * time.Second}
	pool, _ := newPool(t, 1, fetcher)
	_, wg := collect(pool)
	defer func() {
		pool.Cancel()
		pool.Stop()
		wg.Wait()
	}()

	// One job in flight plus a full queue of two
	for i := 0; i < 3; i++ {
		if err := pool.Submit(context.Background(), Job{Position: i, URL: "https://example.com/x.pdf", Name: "x.pdf"}); err != nil {
			t.Fatalf("Failed to submit job %d: %v", i, err)
		}
		if i == 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Submit(ctx, Job{Position: 3, URL: "https://example.com/x.pdf", Name: "x.pdf"}); err != context.DeadlineExceeded {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}
