package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/routing-engine/internal/domain"
)

type fakeRuleRepo struct {
	rules   []domain.AssignmentRule
	listErr error
	nextID  int
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule *domain.AssignmentRule) error {
	f.nextID++
	rule.ID = fmt.Sprintf("rule-%02d", f.nextID)
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	f.rules = append(f.rules, *rule)
	return nil
}

func (f *fakeRuleRepo) Update(ctx context.Context, rule *domain.AssignmentRule) error {
	for i := range f.rules {
		if f.rules[i].ID == rule.ID {
			f.rules[i] = *rule
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeRuleRepo) GetByID(ctx context.Context, id string) (*domain.AssignmentRule, error) {
	for i := range f.rules {
		if f.rules[i].ID == id {
			rule := f.rules[i]
			return &rule, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeRuleRepo) List(ctx context.Context) ([]domain.AssignmentRule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.AssignmentRule(nil), f.rules...), nil
}

func (f *fakeRuleRepo) ListEnabled(ctx context.Context) ([]domain.AssignmentRule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var enabled []domain.AssignmentRule
	for _, rule := range f.rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	return enabled, nil
}

type assignmentWrite struct {
	TicketID     string
	AssigneeID   *string
	DepartmentID string
}

type fakeTicketRepo struct {
	tickets    map[string]*domain.Ticket
	openCounts map[string]int
	writes     []assignmentWrite
	countErr   error
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	var open []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.IsOpen() {
			open = append(open, *ticket)
		}
	}
	return open, nil
}

func (f *fakeTicketRepo) UpdateAssignment(ctx context.Context, ticketID string, assigneeID *string, departmentID string) error {
	f.writes = append(f.writes, assignmentWrite{TicketID: ticketID, AssigneeID: assigneeID, DepartmentID: departmentID})
	if ticket, ok := f.tickets[ticketID]; ok {
		ticket.AssigneeID = assigneeID
		ticket.DepartmentID = departmentID
	}
	return nil
}

func (f *fakeTicketRepo) CountOpenByAgent(ctx context.Context) (map[string]int, error) {
	if f.countErr != nil {
		return nil, f.countErr
	}
	counts := make(map[string]int, len(f.openCounts))
	for id, n := range f.openCounts {
		counts[id] = n
	}
	return counts, nil
}

type fakeAgentRepo struct {
	agents []domain.Agent
}

func (f *fakeAgentRepo) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	for i := range f.agents {
		if f.agents[i].ID == id {
			agent := f.agents[i]
			return &agent, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAgentRepo) ListActive(ctx context.Context) ([]domain.Agent, error) {
	var active []domain.Agent
	for _, agent := range f.agents {
		if agent.Active {
			active = append(active, agent)
		}
	}
	return active, nil
}

type fakeDepartmentRepo struct {
	departments []domain.Department
	getErr      error
}

func (f *fakeDepartmentRepo) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.departments {
		if f.departments[i].ID == id {
			dept := f.departments[i]
			return &dept, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDepartmentRepo) ListActive(ctx context.Context) ([]domain.Department, error) {
	return append([]domain.Department(nil), f.departments...), nil
}

// fakeCursorRepo mirrors the IS NOT DISTINCT FROM upsert semantics of the
// real repository, plus an optional forced-contention counter.
type fakeCursorRepo struct {
	cursors   map[string]*domain.RoundRobinCursor
	failSwaps int
	getErr    error
}

func newFakeCursorRepo() *fakeCursorRepo {
	return &fakeCursorRepo{cursors: make(map[string]*domain.RoundRobinCursor)}
}

func (f *fakeCursorRepo) Get(ctx context.Context, ruleID string) (*domain.RoundRobinCursor, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	cursor, ok := f.cursors[ruleID]
	if !ok {
		return nil, nil
	}
	copied := *cursor
	return &copied, nil
}

func (f *fakeCursorRepo) CompareAndSwap(ctx context.Context, ruleID string, expected *string, next string) (bool, error) {
	if f.failSwaps > 0 {
		f.failSwaps--
		return false, nil
	}
	current, ok := f.cursors[ruleID]
	var currentID *string
	if ok {
		currentID = current.LastAssignedAgentID
	}
	if !equalPtr(currentID, expected) {
		return false, nil
	}
	f.cursors[ruleID] = &domain.RoundRobinCursor{RuleID: ruleID, LastAssignedAgentID: &next, UpdatedAt: time.Now()}
	return true, nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type fakeNotificationRepo struct {
	notifications []domain.Notification
	createErrFor  string
	now           func() time.Time
}

func (f *fakeNotificationRepo) Create(ctx context.Context, notification *domain.Notification) error {
	if f.createErrFor != "" && notification.TicketID == f.createErrFor {
		return fmt.Errorf("notification insert failed for %s", notification.TicketID)
	}
	if f.now != nil {
		notification.CreatedAt = f.now()
	} else {
		notification.CreatedAt = time.Now()
	}
	f.notifications = append(f.notifications, *notification)
	return nil
}

func (f *fakeNotificationRepo) ExistsSince(ctx context.Context, ticketID string, slaType domain.SLAType, since time.Time) (bool, error) {
	for _, n := range f.notifications {
		if n.TicketID == ticketID && n.SLAType == slaType && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotificationRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range f.notifications {
		if n.TicketID == ticketID {
			out = append(out, n)
		}
	}
	return out, nil
}
