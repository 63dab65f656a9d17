package memory

import (
	"auction-market/internal/domain"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type SchedulerRepository struct {
	mu   sync.Mutex
	jobs map[string]domain.ScheduledJob
}

func NewSchedulerRepository() *SchedulerRepository {
	return &SchedulerRepository{jobs: make(map[string]domain.ScheduledJob)}
}

func (r *SchedulerRepository) CreateJob(_ context.Context, job *domain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

// GetPendingJobs returns pending jobs due at or before the given time, oldest first.
func (r *SchedulerRepository) GetPendingJobs(_ context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.ScheduledJob
	for _, job := range r.jobs {
		if job.Status == domain.JobPending && !job.RunAt.After(before) {
			job := job
			out = append(out, &job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}

func (r *SchedulerRepository) UpdateJobStatus(_ context.Context, jobID string, status domain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return fmt.Errorf("update job %s: not found", jobID)
	}
	job.Status = status
	r.jobs[jobID] = job
	return nil
}

// CancelJobsForAuction cancels the auction's pending jobs of jobType. An empty
// jobType cancels all of them.
func (r *SchedulerRepository) CancelJobsForAuction(_ context.Context, auctionID string, jobType domain.JobType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, job := range r.jobs {
		if job.AuctionID != auctionID || job.Status != domain.JobPending {
			continue
		}
		if jobType != "" && job.JobType != jobType {
			continue
		}
		job.Status = domain.JobCancelled
		r.jobs[id] = job
	}
	return nil
}
