package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/repository"
	apperrors "github.com/spec-kit/routing-engine/pkg/util/errorutil"
)

// Global SLA defaults, used when a department carries no override.
const DefaultFirstResponseSLA = 4 * time.Hour

// Risk fires inside the trailing fraction of the budget: the last 25% of
// the first-response window obligation and the last 20% of the resolution window.
const (
	firstResponseRiskFraction = 0.25
	resolutionRiskFraction    = 0.20
)

func defaultResolutionSLA(priority domain.TicketPriority) time.Duration {
	switch priority {
	case domain.TicketPriorityLow:
		return 72 * time.Hour
	case domain.TicketPriorityMedium:
		return 48 * time.Hour
	default:
		// high; urgent is treated as high unless a department override
		// names it explicitly
		return 24 * time.Hour
	}
}

// SLAThresholds are the effective deadlines for one ticket.
type SLAThresholds struct {
	FirstResponse time.Duration
	Resolution    time.Duration
}

// departmentSLAConfig is the shape of the department override document.
// Values are hours; resolution_time is keyed by priority.
type departmentSLAConfig struct {
	FirstResponseTime *float64           `json:"first_response_time"`
	ResolutionTime    map[string]float64 `json:"resolution_time"`
}

// RiskSignal is one at-risk finding for a ticket.
type RiskSignal struct {
	SLAType   domain.SLAType
	Remaining time.Duration
}

// SLAService resolves effective deadlines and evaluates risk for open
// tickets. It never mutates tickets; its only writes are notification
// records, which keeps it safe to run concurrently with ticket mutation.
type SLAService struct {
	tickets     repository.TicketRepository
	departments repository.DepartmentRepository
	notifier    *NotificationService
	logger      *zap.Logger

	now func() time.Time
}

// SLADependencies bundles collaborators.
type SLADependencies struct {
	TicketRepo     repository.TicketRepository
	DepartmentRepo repository.DepartmentRepository
	Notifier       *NotificationService
	Logger         *zap.Logger
}

// NewSLAService creates the service.
func NewSLAService(deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAService{
		tickets:     deps.TicketRepo,
		departments: deps.DepartmentRepo,
		notifier:    deps.Notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// Resolve computes the effective first-response and resolution deadlines
// for a ticket. Department overrides replace the global defaults when the
// sla_config document parses; a malformed document (or a missing
// department) is logged and falls back silently.
func (s *SLAService) Resolve(ctx context.Context, ticket *domain.Ticket) SLAThresholds {
	thresholds := SLAThresholds{
		FirstResponse: DefaultFirstResponseSLA,
		Resolution:    defaultResolutionSLA(ticket.Priority),
	}

	if ticket.DepartmentID == "" {
		return thresholds
	}
	dept, err := s.departments.GetByID(ctx, ticket.DepartmentID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("department lookup failed, using default SLA",
				zap.String("department_id", ticket.DepartmentID), zap.Error(err))
		}
		return thresholds
	}
	if len(dept.SLAConfig) == 0 {
		return thresholds
	}

	var cfg departmentSLAConfig
	if err := json.Unmarshal(dept.SLAConfig, &cfg); err != nil {
		s.logger.Warn("malformed department sla_config, using defaults",
			zap.String("department_id", dept.ID), zap.Error(err))
		return thresholds
	}

	if cfg.FirstResponseTime != nil && *cfg.FirstResponseTime > 0 {
		thresholds.FirstResponse = hoursToDuration(*cfg.FirstResponseTime)
	}
	if hours, ok := cfg.ResolutionTime[string(ticket.Priority)]; ok && hours > 0 {
		thresholds.Resolution = hoursToDuration(hours)
	} else if ticket.Priority == domain.TicketPriorityUrgent {
		if hours, ok := cfg.ResolutionTime[string(domain.TicketPriorityHigh)]; ok && hours > 0 {
			thresholds.Resolution = hoursToDuration(hours)
		}
	}
	return thresholds
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// AssessRisk returns the risk signals active for a ticket at the given
// instant. Pure: no reads, no writes.
//
// First-response risk applies only while the ticket has no first response
// and fires inside the last quarter of the budget. Resolution risk applies
// while the ticket is open and fires inside the last fifth. Both can be
// active at once. Zero or negative remaining time emits nothing: a fully
// breached deadline is a separate trigger type, not handled here.
func AssessRisk(ticket *domain.Ticket, thresholds SLAThresholds, now time.Time) []RiskSignal {
	if !ticket.IsOpen() {
		return nil
	}

	age := ticket.Age(now)
	var signals []RiskSignal

	if ticket.FirstResponseAt == nil {
		remaining := thresholds.FirstResponse - age
		window := time.Duration(float64(thresholds.FirstResponse) * firstResponseRiskFraction)
		if remaining > 0 && remaining <= window {
			signals = append(signals, RiskSignal{SLAType: domain.SLATypeFirstResponse, Remaining: remaining})
		}
	}

	remaining := thresholds.Resolution - age
	window := time.Duration(float64(thresholds.Resolution) * resolutionRiskFraction)
	if remaining > 0 && remaining <= window {
		signals = append(signals, RiskSignal{SLAType: domain.SLATypeResolution, Remaining: remaining})
	}

	return signals
}

// CheckTicket evaluates one ticket and emits deduplicated risk
// notifications. Returns how many notifications were actually created.
func (s *SLAService) CheckTicket(ctx context.Context, ticket *domain.Ticket) (int, error) {
	thresholds := s.Resolve(ctx, ticket)
	signals := AssessRisk(ticket, thresholds, s.now())

	emitted := 0
	for _, signal := range signals {
		sent, err := s.notifier.NotifySLARisk(ctx, ticket, signal.SLAType, signal.Remaining)
		if err != nil {
			return emitted, err
		}
		if sent {
			emitted++
		}
	}
	return emitted, nil
}

// CheckTicketByID loads the ticket and runs a single-ticket risk check;
// this is the on-demand path used by lifecycle triggers.
func (s *SLAService) CheckTicketByID(ctx context.Context, ticketID string) (int, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return 0, apperrors.MapError(err)
	}
	return s.CheckTicket(ctx, ticket)
}

// RegisterHandlers subscribes the on-demand check to ticket assignment,
// so a freshly routed ticket that is already inside a risk window alerts
// immediately instead of waiting for the next sweep.
func (s *SLAService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketAssigned, func(ctx context.Context, event events.Event) error {
		if _, err := s.CheckTicketByID(ctx, event.TicketID); err != nil {
			s.logger.Warn("on-demand SLA check failed",
				zap.String("ticket_id", event.TicketID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
		return nil
	})
}

// PolicyView describes the effective SLA policy for one department, used
// by the admin API.
type PolicyView struct {
	DepartmentID      string
	DepartmentName    string
	FirstResponse     time.Duration
	ResolutionByLevel map[domain.TicketPriority]time.Duration
	Overridden        bool
}

// ListPolicies returns the global defaults plus each active department's
// effective policy.
func (s *SLAService) ListPolicies(ctx context.Context) ([]PolicyView, error) {
	departments, err := s.departments.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	priorities := []domain.TicketPriority{
		domain.TicketPriorityLow,
		domain.TicketPriorityMedium,
		domain.TicketPriorityHigh,
		domain.TicketPriorityUrgent,
	}

	views := make([]PolicyView, 0, len(departments))
	for i := range departments {
		dept := &departments[i]
		view := PolicyView{
			DepartmentID:      dept.ID,
			DepartmentName:    dept.Name,
			FirstResponse:     DefaultFirstResponseSLA,
			ResolutionByLevel: make(map[domain.TicketPriority]time.Duration, len(priorities)),
			Overridden:        len(dept.SLAConfig) > 0,
		}
		for _, priority := range priorities {
			probe := domain.Ticket{Priority: priority, DepartmentID: dept.ID}
			thresholds := s.Resolve(ctx, &probe)
			view.FirstResponse = thresholds.FirstResponse
			view.ResolutionByLevel[priority] = thresholds.Resolution
		}
		views = append(views, view)
	}
	return views, nil
}
