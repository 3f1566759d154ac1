package job

import (
	"sort"
	"sync"

	"photark/internal/archive"
)

// Store is an in-memory job table safe for concurrent use. Per-job records
// are logically independent; one mutex over the map is enough because every
// operation is a short copy or field merge.
//
// Cancellation contract: Cancel only flips the flag. The running workflow
// polls IsCancelled at its checkpoints and transitions the job to cancelled
// itself; the store never interrupts execution.
type Store struct {
	clock archive.Clock

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewStore creates an empty job store.
func NewStore(clock archive.Clock) *Store {
	if clock == nil {
		clock = archive.RealClock{}
	}
	return &Store{
		clock: clock,
		jobs:  make(map[string]*Job),
	}
}

// Create registers a new job record.
func (s *Store) Create(j *Job) {
	now := s.clock.Now()
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *j
	s.jobs[j.ID] = &stored
}

// Get returns a copy of the job, or nil when unknown.
func (s *Store) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	copied := *j
	return &copied
}

// Update applies fn to the job under the store lock and stamps UpdatedAt.
// Unknown ids are a no-op.
func (s *Store) Update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	fn(j)
	j.UpdatedAt = s.clock.Now()
}

// Cancel sets the cooperative cancellation flag. It does not stop anything
// by itself.
func (s *Store) Cancel(id string) {
	s.Update(id, func(j *Job) {
		j.Cancelled = true
	})
}

// IsCancelled reports whether cancellation has been requested for the job.
func (s *Store) IsCancelled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return ok && j.Cancelled
}

// List returns copies of all jobs, newest first.
func (s *Store) List() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		copied := *j
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}
