package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Stugi/resto-worker/internal/clock"
	obsmetrics "github.com/Stugi/resto-worker/internal/observability/metrics"
	reportdomain "github.com/Stugi/resto-worker/internal/report/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	GenID     *snowflake.Node
	ReportSvc reportdomain.Service
	Config    Config `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	genID     *snowflake.Node
	reportSvc reportdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.GenID == nil || p.ReportSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		genID:     p.GenID,
		reportSvc: p.ReportSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	run := &jobRun{
		job:       name,
		runID:     s.genID.Generate().String(),
		startedAt: time.Now(),
	}
	s.logJobStart(run)

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(context.WithValue(ctx, jobRunKey{}, run))
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(run)
	if err == nil {
		return nil
	}

	// a deadline is a soft failure, the next tick picks the work back up
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		schedMetrics.IncJobError(name, err)
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.String("run_id", run.runID),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	schedMetrics.IncJobError(name, err)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one pass of every enabled job. Exposed so the cron
// endpoint can trigger a pass on demand.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"reports", func(ctx context.Context) error {
			return s.runJob(ctx, "reports", s.cfg.ReportTimeout, s.ReportsJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list means every job runs (monolith mode)
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ReportsJob walks scheduled restaurants and generates due reports. All
// due-ness, dedup and billing decisions live in the report service; the
// scheduler only supplies cadence and the deadline.
func (s *Scheduler) ReportsJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)

	res, err := s.reportSvc.RunScheduled(ctx)
	if err != nil {
		s.logSchedulerError(run, "scheduler.reports.failed", err)
		return err
	}
	run.AddProcessed(res.Generated)
	if res.Failed > 0 {
		run.errorCount += res.Failed
	}
	return nil
}
