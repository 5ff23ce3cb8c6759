package core

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry is the in-memory source of truth for job state. It is the only
// component allowed to mutate a PrintJob after submission. All reads hand
// out copies so callers cannot bypass it.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*PrintJob

	logger     zerolog.Logger
	onTerminal func(PrintJob)

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*PrintJob),
		logger: logger.With().Str("component", "registry").Logger(),
		stopCh: make(chan struct{}),
	}
}

// OnTerminal registers a hook invoked once per job when it enters a
// terminal state. The hook runs outside the registry lock. Must be set
// before the first Insert.
func (r *Registry) OnTerminal(fn func(PrintJob)) {
	r.onTerminal = fn
}

func (r *Registry) Insert(job *PrintJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return ErrDuplicateJob
	}

	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

// UpdateState applies a forward transition. A transition into an earlier
// or equal state indicates a bug in the caller; it is logged and ignored
// rather than corrupting the job record.
func (r *Registry) UpdateState(id string, state JobState, reason string) {
	r.mu.Lock()

	job, exists := r.jobs[id]
	if !exists {
		r.mu.Unlock()
		r.logger.Warn().Str("job_id", id).Msg("state update for unknown job")
		return
	}

	if stateRank[state] <= stateRank[job.State] {
		from, to := job.State, state
		r.mu.Unlock()
		r.logger.Warn().
			Str("job_id", id).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("ignoring out-of-order state transition")
		return
	}

	job.State = state
	job.Error = reason
	var snapshot PrintJob
	if state.Terminal() {
		now := time.Now()
		job.CompletedAt = &now
		snapshot = *job
	}
	r.mu.Unlock()

	if state.Terminal() && r.onTerminal != nil {
		r.onTerminal(snapshot)
	}
}

func (r *Registry) Get(id string) (PrintJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[id]
	if !exists {
		return PrintJob{}, false
	}
	return *job, true
}

// List returns a snapshot of all tracked jobs, newest first.
func (r *Registry) List() []PrintJob {
	r.mu.RLock()
	jobs := make([]PrintJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// ReapOlderThan evicts terminal jobs whose completion is older than the
// retention window and reports how many were removed. A reaped job is
// indistinguishable from one that never existed.
func (r *Registry) ReapOlderThan(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		if job.State.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// StartReaper runs periodic eviction of expired terminal jobs so the
// registry's memory stays bounded.
func (r *Registry) StartReaper(interval, retention time.Duration) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.reapLoop(interval, retention)
}

func (r *Registry) StopReaper() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()
}

func (r *Registry) reapLoop(interval, retention time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if n := r.ReapOlderThan(retention); n > 0 {
				r.logger.Debug().Int("reaped", n).Msg("evicted expired jobs")
			}
		}
	}
}
