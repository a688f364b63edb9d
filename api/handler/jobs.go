package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/crawlkit/models"
)

// JobStore holds in-flight and finished asynchronous crawl jobs. Finished
// jobs older than the TTL are dropped by a background sweep.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.CrawlJob
	ttl  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobStore creates a JobStore and starts its sweep.
func NewJobStore(ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &JobStore{
		jobs:   make(map[string]*models.CrawlJob),
		ttl:    ttl,
		ctx:    ctx,
		cancel: cancel,
	}
	go s.cleanupLoop(5 * time.Minute)
	return s
}

// Create registers a new processing job.
func (s *JobStore) Create(maxPages int, webhookURL, webhookSecret string) models.CrawlJob {
	job := &models.CrawlJob{
		ID:            "crawl-" + uuid.NewString(),
		Status:        models.JobProcessing,
		MaxPages:      maxPages,
		CreatedAt:     time.Now().Unix(),
		WebhookURL:    webhookURL,
		WebhookSecret: webhookSecret,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

// Get returns a snapshot of the job.
func (s *JobStore) Get(id string) (models.CrawlJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.CrawlJob{}, false
	}
	return *job, true
}

// Progress records one more collected page.
func (s *JobStore) Progress(id string) {
	s.update(id, func(job *models.CrawlJob) { job.Completed++ })
}

// Finish stores the final result. A crawl whose status is "error" marks the
// job failed.
func (s *JobStore) Finish(id string, result *models.CrawlResult, uniqueCode string) {
	s.update(id, func(job *models.CrawlJob) {
		job.Result = result
		job.UniqueCode = uniqueCode
		job.Status = models.JobCompleted
		if result == nil || result.Status != models.StatusSuccess {
			job.Status = models.JobFailed
		}
		if result != nil {
			job.Completed = len(result.Pages)
		}
	})
}

// Stats counts running and finished jobs.
func (s *JobStore) Stats() models.JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats models.JobStats
	for _, job := range s.jobs {
		if job.Status == models.JobProcessing {
			stats.Running++
		} else {
			stats.Finished++
		}
	}
	return stats
}

// Go runs fn in the background with a context that is canceled by Close.
func (s *JobStore) Go(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// Close cancels running jobs and waits for them to return, or for ctx to
// expire.
func (s *JobStore) Close(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *JobStore) update(id string, fn func(*models.CrawlJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

func (s *JobStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep drops finished jobs created before now minus the TTL.
func (s *JobStore) sweep(now time.Time) {
	cutoff := now.Add(-s.ttl).Unix()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.Status != models.JobProcessing && job.CreatedAt < cutoff {
			delete(s.jobs, id)
		}
	}
}
