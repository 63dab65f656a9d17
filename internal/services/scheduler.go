package services

import (
	"auction-market/internal/domain"
	"auction-market/pkg/logger"
	"auction-market/pkg/metrics"
	"auction-market/pkg/utils"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type CronAuctionScheduler struct {
	cron       *cron.Cron
	repo       domain.SchedulerRepository
	auctionMgr *AuctionManager
	interval   time.Duration
	metrics    *metrics.BiddingMetrics
	now        func() time.Time
	log        logger.Logger
}

func NewCronAuctionScheduler(repo domain.SchedulerRepository, interval time.Duration,
	m *metrics.BiddingMetrics, log logger.Logger) *CronAuctionScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CronAuctionScheduler{
		cron:     cron.New(cron.WithSeconds()),
		repo:     repo,
		interval: interval,
		metrics:  m,
		now:      time.Now,
		log:      log,
	}
}

// SetAuctionManager completes the wiring; the manager and the scheduler
// refer to each other.
func (s *CronAuctionScheduler) SetAuctionManager(auctionMgr *AuctionManager) {
	s.auctionMgr = auctionMgr
}

func (s *CronAuctionScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler", "interval", s.interval.String())

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduler: register tick: %w", err)
	}

	s.cron.Start()
	return nil
}

func (s *CronAuctionScheduler) Stop() error {
	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *CronAuctionScheduler) ScheduleAuctionStart(ctx context.Context, auctionID string, startTime time.Time) error {
	return s.schedule(ctx, auctionID, domain.JobStartAuction, startTime)
}

func (s *CronAuctionScheduler) ScheduleAuctionEnd(ctx context.Context, auctionID string, endTime time.Time) error {
	return s.schedule(ctx, auctionID, domain.JobEndAuction, endTime)
}

func (s *CronAuctionScheduler) RescheduleAuctionEnd(ctx context.Context, auctionID string, newEndTime time.Time) error {
	if err := s.repo.CancelJobsForAuction(ctx, auctionID, domain.JobEndAuction); err != nil {
		return fmt.Errorf("scheduler: cancel end jobs: %w", err)
	}
	return s.ScheduleAuctionEnd(ctx, auctionID, newEndTime)
}

func (s *CronAuctionScheduler) CancelSchedule(ctx context.Context, auctionID string) error {
	return s.repo.CancelJobsForAuction(ctx, auctionID, "")
}

func (s *CronAuctionScheduler) schedule(ctx context.Context, auctionID string, jobType domain.JobType, runAt time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		AuctionID: auctionID,
		JobType:   jobType,
		RunAt:     runAt.UTC(),
		Status:    domain.JobPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("scheduler: create %s job: %w", jobType, err)
	}
	return nil
}

// Tick runs one scheduler pass on the leader: due jobs first, then the
// expiry sweep, then price reconciliation.
func (s *CronAuctionScheduler) Tick(ctx context.Context) {
	if s.auctionMgr == nil || !s.auctionMgr.IsLeader(ctx) {
		return
	}

	s.processPendingJobs(ctx)

	if closed, err := s.auctionMgr.CloseExpiredAuctions(ctx); err != nil {
		s.log.Error("Failed to close expired auctions", "error", err)
	} else if closed > 0 {
		s.log.Info("Closed expired auctions", "count", closed)
	}

	if err := s.auctionMgr.ReconcileActiveAuctions(ctx); err != nil {
		s.log.Error("Failed to reconcile auction prices", "error", err)
	}
}

func (s *CronAuctionScheduler) processPendingJobs(ctx context.Context) {
	jobs, err := s.repo.GetPendingJobs(ctx, s.now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "auction_id", job.AuctionID)

		var err error
		switch job.JobType {
		case domain.JobStartAuction:
			err = s.auctionMgr.StartAuction(ctx, job.AuctionID)
		case domain.JobEndAuction:
			err = s.auctionMgr.EndAuction(ctx, job.AuctionID)
		default:
			err = fmt.Errorf("unknown job type %q", job.JobType)
		}

		s.metrics.IncJob(string(job.JobType), err == nil)
		if err != nil {
			// left pending, retried on the next tick
			s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to mark job executed", "job_id", job.ID, "error", err)
		}
	}
}
