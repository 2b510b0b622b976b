package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/config"
	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

const auditTimeout = 5 * time.Minute

// Auditor runs a full ledger audit.
type Auditor interface {
	RunLedgerAudit(ctx context.Context) (models.AuditReport, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron    *cron.Cron
	auditor Auditor
	cfg     config.AuditConfig
	logger  *zap.Logger
}

// NewScheduler creates a new scheduler instance running jobs in the
// configured timezone.
func NewScheduler(cfg config.AuditConfig, auditor Auditor, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		auditor: auditor,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Start registers the audit job and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runLedgerAudit); err != nil {
		return fmt.Errorf("schedule ledger audit %q: %w", s.cfg.CronSchedule, err)
	}

	s.logger.Info("starting scheduler", zap.String("audit_schedule", s.cfg.CronSchedule), zap.String("timezone", s.cfg.Timezone))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running audit to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runLedgerAudit() {
	s.logger.Info("running scheduled ledger audit")
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	report, err := s.auditor.RunLedgerAudit(ctx)
	if err != nil {
		s.logger.Error("scheduled ledger audit failed", zap.Error(err))
		return
	}

	s.logger.Info("scheduled ledger audit finished", zap.Int("violations", len(report.Violations)))
}
