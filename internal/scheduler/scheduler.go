package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/config"
	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository"
	"github.com/mamadbah2/meattrace/internal/repository/sheets"
	"github.com/mamadbah2/meattrace/internal/service/notify"
	"github.com/mamadbah2/meattrace/internal/service/projection"
)

// Receipts stuck partially received for longer than this get a reminder.
const pendingReceiptAge = 24 * time.Hour

// Scheduler manages the background sweeps: repairing stale traces,
// reminding shops about half-finished receipts, and exporting audit rows.
type Scheduler struct {
	cron      *cron.Cron
	store     repository.Store
	projector *projection.Projector
	exporter  sheets.Exporter
	notifier  notify.Dispatcher
	cfg       config.Config
	logger    *zap.Logger

	mu         sync.Mutex
	lastExport time.Time
}

// NewScheduler creates a new scheduler instance. The exporter may be nil
// when the audit export is disabled.
func NewScheduler(cfg config.Config, store repository.Store, projector *projection.Projector, exporter sheets.Exporter, notifier notify.Dispatcher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NopDispatcher{}
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to UTC", zap.String("timezone", cfg.Scheduler.Timezone))
		loc = time.UTC
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		store:      store,
		projector:  projector,
		exporter:   exporter,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
		lastExport: time.Now().UTC(),
	}
}

// Start registers the sweeps and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.Scheduler.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Scheduler.CronSchedule, s.sweepStaleTraces); err != nil {
		s.logger.Error("failed to schedule stale trace sweep", zap.Error(err))
	}

	// Daily at 08:00: nudge shops that confirmed only part of a transfer.
	if _, err := s.cron.AddFunc("0 8 * * *", s.remindPendingReceipts); err != nil {
		s.logger.Error("failed to schedule receipt reminders", zap.Error(err))
	}

	if s.exporter != nil {
		// Nightly at 02:00: push new rejections and appeals to the audit
		// spreadsheet.
		if _, err := s.cron.AddFunc("0 2 * * *", s.exportAuditRows); err != nil {
			s.logger.Error("failed to schedule audit export", zap.Error(err))
		}
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) sweepStaleTraces() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repaired, err := s.projector.SweepStale(ctx)
	if err != nil {
		s.logger.Error("stale trace sweep failed", zap.Error(err))
		return
	}
	if repaired > 0 {
		s.logger.Info("stale traces repaired", zap.Int("count", repaired))
	}
}

func (s *Scheduler) remindPendingReceipts() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-pendingReceiptAge)
	products, err := s.store.ListProductsPendingReceipt(ctx, cutoff)
	if err != nil {
		s.logger.Error("pending receipt scan failed", zap.Error(err))
		return
	}

	for _, p := range products {
		s.logger.Warn("product receipt still incomplete",
			zap.String("product_id", p.ID),
			zap.Float64("received", p.QuantityReceived),
			zap.Float64("transferred", p.Quantity),
			zap.String("shop", p.Custody.TransferredTo))
		s.notifier.Dispatch(ctx, models.TransitionEvent{
			EntityKind: models.KindProduct,
			EntityID:   p.ID,
			OldState:   string(p.Status),
			NewState:   string(p.Status),
			Actor:      "scheduler",
			Detail:     "receipt incomplete",
			OccurredAt: time.Now().UTC(),
		})
	}
}

func (s *Scheduler) exportAuditRows() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s.mu.Lock()
	since := s.lastExport
	s.mu.Unlock()
	started := time.Now().UTC()

	rejections, err := s.store.ListRejectionsSince(ctx, since)
	if err != nil {
		s.logger.Error("audit export: listing rejections failed", zap.Error(err))
		return
	}
	appeals, err := s.store.ListAppealsSince(ctx, since)
	if err != nil {
		s.logger.Error("audit export: listing appeals failed", zap.Error(err))
		return
	}

	for _, r := range rejections {
		if err := s.exporter.AppendRejection(ctx, r); err != nil {
			s.logger.Error("audit export: rejection row failed",
				zap.Error(err), zap.String("rejection_id", r.ID))
			return
		}
	}
	for _, a := range appeals {
		if err := s.exporter.AppendAppeal(ctx, a); err != nil {
			s.logger.Error("audit export: appeal row failed",
				zap.Error(err), zap.String("appeal_id", a.ID))
			return
		}
	}

	s.mu.Lock()
	s.lastExport = started
	s.mu.Unlock()
	if len(rejections)+len(appeals) > 0 {
		s.logger.Info("audit rows exported",
			zap.Int("rejections", len(rejections)),
			zap.Int("appeals", len(appeals)))
	}
}
