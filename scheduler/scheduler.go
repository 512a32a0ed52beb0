package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"wa_ingest/config"
	"wa_ingest/logging"
)

// ErrRunInProgress is returned by TriggerNow while another run is going.
var ErrRunInProgress = errors.New("run already in progress")

// Job is one scheduled batch run
type Job func(ctx context.Context) error

// Scheduler re-runs a Job on a cron spec or a fixed interval. Cron wins when
// both are configured. A tick that fires while the previous run is still
// going is skipped.
type Scheduler struct {
	cfg    config.SchedulerConfig
	job    Job
	log    *logging.Logger
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}

	running sync.Mutex
	stop    sync.Once
}

func New(cfg config.SchedulerConfig, job Job, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{
		cfg:    cfg,
		job:    job,
		log:    log,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// Enabled reports whether a schedule is configured.
func (s *Scheduler) Enabled() bool {
	return s.cfg.Cron != "" || s.cfg.Interval > 0
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		s.log.Info("starting scheduler", "cron", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.runOnce(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		s.log.Info("starting scheduler", "interval", s.cfg.Interval.String())
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runOnce(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		s.log.Info("no schedule configured")
	}
	return nil
}

// Stop halts the schedule and waits for a cron run in progress.
func (s *Scheduler) Stop() {
	s.stop.Do(func() {
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// TriggerNow runs the job immediately, unless a run is already in progress.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if !s.running.TryLock() {
		return ErrRunInProgress
	}
	defer s.running.Unlock()
	return s.job(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.TriggerNow(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.log.Warn("previous run still in progress, skipping")
			return
		}
		s.log.Error("scheduled run failed", "error", err)
	}
}
