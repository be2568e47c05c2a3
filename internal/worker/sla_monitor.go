package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/observability"
	"github.com/spec-kit/routing-engine/internal/repository"
	"github.com/spec-kit/routing-engine/internal/service"
)

// SLAMonitor periodically sweeps open tickets for SLA risk. One sweep
// runs at a time; ticks that fire while a sweep is in progress are
// absorbed by the ticker.
type SLAMonitor struct {
	tickets  repository.TicketRepository
	sla      *service.SLAService
	metrics  *observability.Metrics
	interval time.Duration
	logger   *zap.Logger
}

func NewSLAMonitor(tickets repository.TicketRepository, sla *service.SLAService, metrics *observability.Metrics, interval time.Duration, logger *zap.Logger) *SLAMonitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAMonitor{
		tickets:  tickets,
		sla:      sla,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (m *SLAMonitor) Run(ctx context.Context) {
	m.logger.Info("sla monitor started", zap.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopped")
			return
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.logger.Error("sla sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep checks every open ticket once. A failure on one ticket is
// logged and does not stop the rest of the sweep; only a failure to
// list open tickets aborts it.
func (m *SLAMonitor) Sweep(ctx context.Context) error {
	start := time.Now()
	tickets, err := m.tickets.ListOpen(ctx)
	if err != nil {
		return err
	}

	notified := 0
	checked := 0
	for i := range tickets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := m.sla.CheckTicket(ctx, &tickets[i])
		if err != nil {
			m.logger.Error("sla check failed for ticket",
				zap.String("ticket_id", tickets[i].ID),
				zap.Error(err))
			continue
		}
		checked++
		notified += n
	}

	if m.metrics != nil {
		m.metrics.RecordSweep(notified)
	}
	m.logger.Info("sla sweep completed",
		zap.Int("open_tickets", len(tickets)),
		zap.Int("checked", checked),
		zap.Int("notified", notified),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
