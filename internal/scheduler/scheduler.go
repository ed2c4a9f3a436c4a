package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tacogroup/prodlive/internal/config"
	"github.com/tacogroup/prodlive/internal/service/erpsync"
	"github.com/tacogroup/prodlive/internal/service/fleet"
)

// Scheduler manages the periodic production tick and the ERP poll.
type Scheduler struct {
	cron     *cron.Cron
	fleetSvc *fleet.Service
	erpSvc   *erpsync.Service
	cfg      config.Config
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance. The ERP service may be nil
// when the feed is not configured.
func NewScheduler(cfg config.Config, fleetSvc *fleet.Service, erpSvc *erpsync.Service, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	// The default robfig/cron parser is minute-based; the production tick
	// needs sub-minute cadence, so enable the seconds field. A slow cycle
	// must not pile up behind itself, hence SkipIfStillRunning.
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:     c,
		fleetSvc: fleetSvc,
		erpSvc:   erpSvc,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler",
		zap.Duration("tick_interval", s.cfg.Fleet.TickInterval))

	_, err := s.cron.AddFunc(every(s.cfg.Fleet.TickInterval), s.runTick)
	if err != nil {
		s.logger.Error("failed to schedule production tick", zap.Error(err))
	}

	if s.erpSvc != nil {
		_, err := s.cron.AddFunc(every(s.cfg.ERP.SyncInterval), s.runERPSync)
		if err != nil {
			s.logger.Error("failed to schedule erp sync", zap.Error(err))
		}
	}

	s.cron.Start()
}

// Stop stops the scheduler and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.fleetSvc.Tick(ctx)
}

func (s *Scheduler) runERPSync() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.erpSvc.Sync(ctx)
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
