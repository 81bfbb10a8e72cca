package services

import (
	"sonata/types"
	"sonata/websocket"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStore is the single source of truth for job state. All access goes
// through its lock; readers receive copies, never the canonical record.
type JobStore interface {
	Create(url string, format types.JobFormat, title, artist string) types.Job
	Get(id string) (types.Job, bool)
	Update(id string, mutate func(*types.Job)) bool
	Delete(id string)
	List() []types.Job
}

type jobStore struct {
	jobs map[string]*types.Job
	hub  websocket.Hub
	mu   sync.RWMutex
}

// NewJobStore creates a job store. The hub may be nil (CLI mode); when set,
// every successful update is broadcast to subscribed clients.
func NewJobStore(hub websocket.Hub) JobStore {
	return &jobStore{
		jobs: make(map[string]*types.Job),
		hub:  hub,
	}
}

// Create registers a new job in status "starting" and returns a snapshot
func (s *jobStore) Create(url string, format types.JobFormat, title, artist string) types.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &types.Job{
		ID:        uuid.New().String(),
		URL:       url,
		Format:    format,
		Title:     title,
		Artist:    artist,
		Status:    types.JobStatusStarting,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job

	return *job
}

// Get returns a copy of the job, or false when the id is unknown
func (s *jobStore) Get(id string) (types.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return types.Job{}, false
	}
	return *job, true
}

// Update applies the mutator atomically under the store lock. Progress is
// clamped so it never decreases while the job stays in the downloading
// status; yt-dlp restarts fragment counters on retries and the client's
// progress bar must not jump backwards.
func (s *jobStore) Update(id string, mutate func(*types.Job)) bool {
	s.mu.Lock()
	job, exists := s.jobs[id]
	if !exists {
		s.mu.Unlock()
		return false
	}

	prevStatus := job.Status
	prevProgress := job.Progress

	mutate(job)

	if prevStatus == types.JobStatusDownloading &&
		job.Status == types.JobStatusDownloading &&
		job.Progress < prevProgress {
		job.Progress = prevProgress
	}

	if job.Status == types.JobStatusReady || job.Status == types.JobStatusComplete {
		job.Progress = 100
	}

	if job.Status.Terminal() && job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}

	snapshot := *job
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.BroadcastJob(snapshot)
	}
	return true
}

// Delete evicts a job. Only the orchestrator (post-cleanup) and the
// delivery endpoint (after its grace delay) call this.
func (s *jobStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// List returns copies of all jobs
func (s *jobStore) List() []types.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]types.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}
