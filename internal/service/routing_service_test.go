package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spec-kit/routing-engine/internal/config"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/events"
)

type routingFixture struct {
	svc     *RoutingService
	rules   *fakeRuleRepo
	tickets *fakeTicketRepo
	cursors *fakeCursorRepo
}

func newRoutingFixture(t *testing.T) *routingFixture {
	t.Helper()
	snap := testSnapshot()
	ruleRepo := &fakeRuleRepo{}
	ticketRepo := &fakeTicketRepo{
		tickets:    map[string]*domain.Ticket{},
		openCounts: snap.OpenCounts,
	}
	agentRepo := &fakeAgentRepo{agents: snap.Agents}
	deptRepo := &fakeDepartmentRepo{departments: []domain.Department{
		{ID: "dept-1", Name: "Billing"},
		{ID: "dept-2", Name: "Hardware"},
	}}
	cursorRepo := newFakeCursorRepo()

	svc := NewRoutingService(RoutingDependencies{
		RuleRepo:       ruleRepo,
		TicketRepo:     ticketRepo,
		AgentRepo:      agentRepo,
		DepartmentRepo: deptRepo,
		CursorRepo:     cursorRepo,
	})
	return &routingFixture{svc: svc, rules: ruleRepo, tickets: ticketRepo, cursors: cursorRepo}
}

func (f *routingFixture) addRule(id string, ruleType domain.RuleType, priority int, config string) {
	f.rules.rules = append(f.rules.rules, domain.AssignmentRule{
		ID:        id,
		Name:      id,
		Type:      ruleType,
		Priority:  priority,
		Enabled:   true,
		RawConfig: []byte(config),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
}

func (f *routingFixture) addTicket(ticket *domain.Ticket) {
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	f.tickets.tickets[ticket.ID] = ticket
}

func TestAssignTicket_FirstMatchWins(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-direct", domain.RuleTypeDirectAssignment, 10, `{
		"conditions":[{"field":"category","operator":"equals","value":"hardware"}],
		"assign_to_type":"agent","assign_to":"agent-c"}`)
	f.addRule("rule-load", domain.RuleTypeLoadBased, 20, `{}`)
	f.addTicket(&domain.Ticket{ID: "t1", Category: "hardware", DepartmentID: "dept-2"})

	result, err := f.svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if !result.Assigned || result.RuleID == nil || *result.RuleID != "rule-direct" {
		t.Fatalf("expected rule-direct to win, got %+v", result)
	}
	if result.AgentID == nil || *result.AgentID != "agent-c" {
		t.Fatalf("expected agent-c, got %+v", result.AgentID)
	}
	if len(f.tickets.writes) != 1 || f.tickets.writes[0].TicketID != "t1" {
		t.Fatalf("expected one assignment write, got %+v", f.tickets.writes)
	}
	// Evaluation stops at the winner.
	if len(result.Outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(result.Outcomes))
	}
}

func TestAssignTicket_FallsThroughDecliningRules(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-direct", domain.RuleTypeDirectAssignment, 10, `{
		"conditions":[{"field":"category","operator":"equals","value":"billing"}],
		"assign_to_type":"agent","assign_to":"agent-a"}`)
	f.addRule("rule-load", domain.RuleTypeLoadBased, 20, `{}`)
	f.addTicket(&domain.Ticket{ID: "t1", Category: "hardware", DepartmentID: "dept-2"})

	result, err := f.svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if !result.Assigned || *result.RuleID != "rule-load" {
		t.Fatalf("expected rule-load to win after decline, got %+v", result)
	}
	if result.Outcomes[0].Matched || result.Outcomes[0].Reason != "conditions not met" {
		t.Fatalf("expected declined first outcome, got %+v", result.Outcomes[0])
	}
}

func TestAssignTicket_NoRuleMatchesIsNotAnError(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-direct", domain.RuleTypeDirectAssignment, 10, `{
		"conditions":[{"field":"category","operator":"equals","value":"billing"}],
		"assign_to_type":"agent","assign_to":"agent-a"}`)
	f.addTicket(&domain.Ticket{ID: "t1", Category: "hardware"})

	result, err := f.svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if result.Assigned {
		t.Fatalf("expected unassigned result, got %+v", result)
	}
	if len(f.tickets.writes) != 0 {
		t.Fatalf("no-match must not write, got %+v", f.tickets.writes)
	}
}

func TestAssignTicket_EqualPriorityBreaksTiesOnRuleID(t *testing.T) {
	f := newRoutingFixture(t)
	// Inserted out of id order on purpose; both are catch-all load rules.
	f.addRule("rule-b", domain.RuleTypeLoadBased, 10, `{}`)
	f.addRule("rule-a", domain.RuleTypeLoadBased, 10, `{}`)
	f.addTicket(&domain.Ticket{ID: "t1", Category: "hardware"})

	result, err := f.svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if *result.RuleID != "rule-a" {
		t.Fatalf("equal priority should evaluate lower rule id first, got %s", *result.RuleID)
	}
}

func TestAssignTicket_InvalidConfigRuleNeverMatches(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-bad", domain.RuleTypeDirectAssignment, 10, `{"assign_to_type":"agent"}`)
	f.addRule("rule-load", domain.RuleTypeLoadBased, 20, `{}`)
	f.addTicket(&domain.Ticket{ID: "t1", Category: "hardware"})

	result, err := f.svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if !result.Assigned || *result.RuleID != "rule-load" {
		t.Fatalf("invalid rule should be skipped, got %+v", result)
	}
	if result.Outcomes[0].Reason != "invalid config" {
		t.Fatalf("expected invalid config outcome, got %+v", result.Outcomes[0])
	}
}

func TestAssignTicket_ManualRuleStopsEvaluation(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-manual", domain.RuleTypeManual, 10, `{}`)
	f.addRule("rule-load", domain.RuleTypeLoadBased, 20, `{}`)
	f.addTicket(&domain.Ticket{ID: "t1", Category: "hardware"})

	result, err := f.svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if result.Assigned {
		t.Fatalf("manual rule must leave the ticket unassigned, got %+v", result)
	}
	if len(result.Outcomes) != 1 || !result.Outcomes[0].Matched || result.Outcomes[0].Reason != "manual queue" {
		t.Fatalf("expected terminal manual outcome, got %+v", result.Outcomes)
	}
	if len(f.tickets.writes) != 0 {
		t.Fatalf("manual stop must not write, got %+v", f.tickets.writes)
	}
}

func TestAssignTicket_RoundRobinAdvancesCursor(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-rr", domain.RuleTypeRoundRobin, 10, `{}`)
	f.addTicket(&domain.Ticket{ID: "t1"})
	f.addTicket(&domain.Ticket{ID: "t2"})
	f.addTicket(&domain.Ticket{ID: "t3"})
	f.addTicket(&domain.Ticket{ID: "t4"})

	var got []string
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		result, err := f.svc.AssignTicket(context.Background(), id)
		if err != nil {
			t.Fatalf("AssignTicket(%s): %v", id, err)
		}
		got = append(got, *result.AgentID)
	}

	want := []string{"agent-a", "agent-b", "agent-c", "agent-a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation order mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}

func TestPreview_DoesNotAdvanceCursorOrWrite(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-rr", domain.RuleTypeRoundRobin, 10, `{}`)
	ticket := &domain.Ticket{ID: "preview", Status: domain.TicketStatusOpen}

	for i := 0; i < 3; i++ {
		result, err := f.svc.Preview(context.Background(), ticket)
		if err != nil {
			t.Fatalf("Preview: %v", err)
		}
		if !result.Assigned || *result.AgentID != "agent-a" {
			t.Fatalf("repeated previews must keep showing the same next agent, got %+v", result)
		}
	}
	if len(f.cursors.cursors) != 0 {
		t.Fatalf("preview must not persist a cursor, got %+v", f.cursors.cursors)
	}
	if len(f.tickets.writes) != 0 {
		t.Fatalf("preview must not write assignments, got %+v", f.tickets.writes)
	}
}

func TestPreview_ReportsEveryRule(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-direct", domain.RuleTypeDirectAssignment, 10, `{
		"conditions":[{"field":"category","operator":"equals","value":"hardware"}],
		"assign_to_type":"agent","assign_to":"agent-c"}`)
	f.addRule("rule-load", domain.RuleTypeLoadBased, 20, `{}`)

	result, err := f.svc.Preview(context.Background(), &domain.Ticket{Category: "hardware", Status: domain.TicketStatusOpen})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("preview should report every rule, got %+v", result.Outcomes)
	}
	if result.Outcomes[1].Reason != "not reached" {
		t.Fatalf("rules after the winner should read not reached, got %+v", result.Outcomes[1])
	}
}

func TestPreview_ManualRuleAfterWinnerIsNotReached(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-direct", domain.RuleTypeDirectAssignment, 10, `{
		"conditions":[{"field":"category","operator":"equals","value":"hardware"}],
		"assign_to_type":"agent","assign_to":"agent-c"}`)
	f.addRule("rule-manual", domain.RuleTypeManual, 20, `{}`)
	f.addRule("rule-load", domain.RuleTypeLoadBased, 30, `{}`)

	result, err := f.svc.Preview(context.Background(), &domain.Ticket{Category: "hardware", Status: domain.TicketStatusOpen})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !result.Assigned || *result.RuleID != "rule-direct" {
		t.Fatalf("expected rule-direct to win, got %+v", result)
	}
	// A live run stops at the winner, so the manual rule after it can
	// never pull the ticket into the queue; the preview must say so.
	if len(result.Outcomes) != 3 {
		t.Fatalf("preview should report every rule, got %+v", result.Outcomes)
	}
	if result.Outcomes[1].Matched || result.Outcomes[1].Reason != "not reached" {
		t.Fatalf("manual rule after the winner should read not reached, got %+v", result.Outcomes[1])
	}
	if result.Outcomes[2].Reason != "not reached" {
		t.Fatalf("trailing rule should read not reached, got %+v", result.Outcomes[2])
	}
}

// Assignment is the one lifecycle transition this service performs itself,
// so a successful assignment immediately re-checks the ticket's SLA state
// through the dispatcher instead of waiting for the next sweep.
func TestAssignTicket_TriggersRiskCheckOnAssignment(t *testing.T) {
	snap := testSnapshot()
	dispatcher := events.NewInMemoryDispatcher()
	ticketRepo := &fakeTicketRepo{tickets: map[string]*domain.Ticket{}, openCounts: snap.OpenCounts}
	store := &fakeNotificationRepo{}
	notifier := NewNotificationService(store, dispatcher, nil, config.NotificationConfig{}, time.Hour)
	notifier.RegisterHandlers(dispatcher)
	sla := NewSLAService(SLADependencies{
		TicketRepo:     ticketRepo,
		DepartmentRepo: &fakeDepartmentRepo{},
		Notifier:       notifier,
	})
	sla.RegisterHandlers(dispatcher)

	ruleRepo := &fakeRuleRepo{}
	svc := NewRoutingService(RoutingDependencies{
		RuleRepo:       ruleRepo,
		TicketRepo:     ticketRepo,
		AgentRepo:      &fakeAgentRepo{agents: snap.Agents},
		DepartmentRepo: &fakeDepartmentRepo{departments: []domain.Department{{ID: "dept-1", Name: "Billing"}}},
		CursorRepo:     newFakeCursorRepo(),
		Dispatcher:     dispatcher,
	})
	ruleRepo.rules = append(ruleRepo.rules, domain.AssignmentRule{
		ID: "rule-direct", Name: "rule-direct", Type: domain.RuleTypeDirectAssignment,
		Priority: 10, Enabled: true,
		RawConfig: []byte(`{"assign_to_type":"agent","assign_to":"agent-a"}`),
	})
	// 30 minutes left of the 4h first-response default: inside the risk
	// window at the moment of assignment.
	ticketRepo.tickets["t1"] = &domain.Ticket{
		ID:        "t1",
		Subject:   "VPN down for the whole office",
		Priority:  domain.TicketPriorityHigh,
		Status:    domain.TicketStatusOpen,
		CreatedAt: time.Now().Add(-3*time.Hour - 30*time.Minute),
	}

	result, err := svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if !result.Assigned {
		t.Fatalf("expected assignment, got %+v", result)
	}
	if len(store.notifications) != 1 {
		t.Fatalf("assignment should have triggered one risk notification, got %+v", store.notifications)
	}
	got := store.notifications[0]
	if got.SLAType != domain.SLATypeFirstResponse {
		t.Fatalf("expected first-response risk, got %+v", got)
	}
	if got.RecipientAgentID == nil || *got.RecipientAgentID != "agent-a" {
		t.Fatalf("risk check should see the fresh assignee, got %+v", got.RecipientAgentID)
	}
}

func TestAssignTicket_RuleStoreDownFallsBackToManualQueue(t *testing.T) {
	f := newRoutingFixture(t)
	f.rules.listErr = context.DeadlineExceeded
	f.addTicket(&domain.Ticket{ID: "t1"})

	result, err := f.svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("rule store outage must not surface per-ticket errors: %v", err)
	}
	if result.Assigned || len(result.Outcomes) != 0 {
		t.Fatalf("expected bare unassigned result, got %+v", result)
	}
}

func TestAssignTicket_CursorContentionSurvivesRetries(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-rr", domain.RuleTypeRoundRobin, 10, `{}`)
	f.addTicket(&domain.Ticket{ID: "t1"})

	f.cursors.failSwaps = 2
	result, err := f.svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("two failed swaps should be retried away: %v", err)
	}
	if !result.Assigned {
		t.Fatalf("expected assignment after retries, got %+v", result)
	}
}

func TestAssignTicket_CursorContentionExhaustedFails(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-rr", domain.RuleTypeRoundRobin, 10, `{}`)
	f.addTicket(&domain.Ticket{ID: "t1"})

	f.cursors.failSwaps = 10
	if _, err := f.svc.AssignTicket(context.Background(), "t1"); err == nil {
		t.Fatal("exhausted CAS retries must fail the attempt loudly")
	}
	if len(f.tickets.writes) != 0 {
		t.Fatalf("failed attempt must not write, got %+v", f.tickets.writes)
	}
}

func TestAssignTicket_UnknownTicket(t *testing.T) {
	f := newRoutingFixture(t)
	if _, err := f.svc.AssignTicket(context.Background(), "missing"); err == nil {
		t.Fatal("expected not-found error for unknown ticket")
	}
}

// Refund tickets route straight to the billing specialist; everything else
// falls through to a catch-all rotation.
func TestAssignTicket_DirectThenRoundRobinFallthrough(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-refunds", domain.RuleTypeDirectAssignment, 10, `{
		"conditions":[{"field":"subject","operator":"contains","value":"refund"}],
		"assign_to_type":"agent","assign_to":"agent-a"}`)
	f.addRule("rule-rotation", domain.RuleTypeRoundRobin, 20, `{}`)
	f.addTicket(&domain.Ticket{ID: "t-refund", Subject: "Refund for order 1142"})
	f.addTicket(&domain.Ticket{ID: "t-other", Subject: "Printer offline"})

	result, err := f.svc.AssignTicket(context.Background(), "t-refund")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if *result.RuleID != "rule-refunds" || *result.AgentID != "agent-a" {
		t.Fatalf("refund ticket should hit the direct rule, got %+v", result)
	}

	result, err = f.svc.AssignTicket(context.Background(), "t-other")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if *result.RuleID != "rule-rotation" {
		t.Fatalf("non-refund ticket should fall through to rotation, got %+v", result)
	}
}

func TestCreateRule_Validation(t *testing.T) {
	f := newRoutingFixture(t)

	if _, err := f.svc.CreateRule(context.Background(), RuleCreateInput{Type: domain.RuleTypeManual}); err == nil {
		t.Fatal("missing name must be rejected")
	}
	if _, err := f.svc.CreateRule(context.Background(), RuleCreateInput{Name: "x", Type: "teleport"}); err == nil {
		t.Fatal("unknown rule type must be rejected")
	}
	if _, err := f.svc.CreateRule(context.Background(), RuleCreateInput{
		Name: "x", Type: domain.RuleTypeSkillMatch, Config: json.RawMessage(`{"required_skills":[]}`),
	}); err == nil {
		t.Fatal("empty required_skills must be rejected")
	}

	rule, err := f.svc.CreateRule(context.Background(), RuleCreateInput{
		Name: "billing direct", Type: domain.RuleTypeDirectAssignment, Priority: 5, Enabled: true,
		Config: json.RawMessage(`{"assign_to_type":"agent","assign_to":"agent-a"}`),
	})
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if rule.ID == "" || rule.Direct == nil {
		t.Fatalf("expected stored rule with decoded config, got %+v", rule)
	}
}

func TestUpdateRule_PriorityReorderTakesEffect(t *testing.T) {
	f := newRoutingFixture(t)
	f.addRule("rule-a", domain.RuleTypeLoadBased, 10, `{}`)
	f.addRule("rule-b", domain.RuleTypeSkillMatch, 20, `{"required_skills":["hardware"]}`)
	f.addTicket(&domain.Ticket{ID: "t1"})

	result, err := f.svc.AssignTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if *result.RuleID != "rule-a" {
		t.Fatalf("expected rule-a first, got %s", *result.RuleID)
	}

	newPriority := 5
	if _, err := f.svc.UpdateRule(context.Background(), "rule-b", RuleUpdateInput{Priority: &newPriority}); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}

	f.addTicket(&domain.Ticket{ID: "t2"})
	result, err = f.svc.AssignTicket(context.Background(), "t2")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if *result.RuleID != "rule-b" {
		t.Fatalf("priority change should reorder evaluation, got %s", *result.RuleID)
	}
}
