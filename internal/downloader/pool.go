package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"docharvest/pkg/logger"
)

// ErrStopped is returned by Submit once the pool is shutting down
var ErrStopped = errors.New("worker pool is shutting down")

// Job is a single document to fetch into the download directory
type Job struct {
	Position int
	URL      string
	Name     string
}

// Result reports the outcome of a Job
type Result struct {
	Job      Job
	Success  bool
	Error    error
	Duration time.Duration
	Size     int64
}

// Fetcher opens a document body for streaming
type Fetcher interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Store persists a stream under name, writing through name+tempSuffix
type Store interface {
	Save(r io.Reader, name, tempSuffix string) (int64, error)
}

// WorkerPool fetches documents in the background so that submitting a job
// returns as soon as it is queued, the way a browser returns from a click.
type WorkerPool struct {
	numWorkers  int
	tempSuffix  string
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     Fetcher
	store       Store
	logger      logger.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new download worker pool
func NewWorkerPool(numWorkers int, fetcher Fetcher, store Store, tempSuffix string, log logger.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		tempSuffix:  tempSuffix,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		store:       store,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, lets the workers finish what was already submitted
// and closes Results
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.logger.Info("Stopping worker pool...")
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
	wp.logger.Info("Worker pool stopped")
}

// Cancel aborts in-flight fetches and makes workers drop queued jobs. Stop
// must still be called to release them.
func (wp *WorkerPool) Cancel() {
	wp.cancel()
}

// Submit queues a job. It blocks while the queue is full.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrStopped
	}

	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"position": job.Position,
			"name":     job.Name,
		})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return ErrStopped
	}
}

// Results returns the result channel. It is closed by Stop.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// QueueSize returns the number of jobs waiting for a worker
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			wp.logger.DebugWithFields("Worker dropping job - pool stopping", map[string]interface{}{
				"worker_id": id,
				"position":  job.Position,
			})
			continue
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
		}
	}
}

func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"position":  job.Position,
		"url":       job.URL,
	})

	body, err := wp.fetcher.Open(wp.ctx, job.URL)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		wp.logger.ErrorWithFields("Worker failed to download document", map[string]interface{}{
			"worker_id": workerID,
			"position":  job.Position,
			"error":     err.Error(),
		})
		return result
	}
	defer body.Close()

	n, err := wp.store.Save(body, job.Name, wp.tempSuffix)
	result.Size = n
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		wp.logger.ErrorWithFields("Worker failed to save document", map[string]interface{}{
			"worker_id": workerID,
			"position":  job.Position,
			"error":     err.Error(),
			"size":      n,
		})
		return result
	}

	result.Success = true
	wp.logger.DebugWithFields("Worker completed job successfully", map[string]interface{}{
		"worker_id": workerID,
		"position":  job.Position,
		"name":      job.Name,
		"size":      n,
		"duration":  result.Duration,
	})
	return result
}
