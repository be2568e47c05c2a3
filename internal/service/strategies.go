package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/persistence"
	"github.com/spec-kit/routing-engine/internal/repository"
)

// Selection is a concrete assignment target produced by a strategy.
// Exactly one of AgentID and DepartmentID is set.
type Selection struct {
	AgentID      *string
	DepartmentID *string
	Reason       string
}

// AgentSnapshot is the immutable view of the world a single engine
// invocation decides against. It is fetched once per invocation; no
// strategy performs its own external reads except the round-robin cursor.
type AgentSnapshot struct {
	Agents      []domain.Agent
	OpenCounts  map[string]int
	Departments map[string]*domain.Department
}

func (s *AgentSnapshot) agentByID(id string) *domain.Agent {
	for i := range s.Agents {
		if s.Agents[i].ID == id {
			return &s.Agents[i]
		}
	}
	return nil
}

// eligibleAgents returns active agents, optionally scoped to a department,
// sorted by id for a stable, deterministic order.
func (s *AgentSnapshot) eligibleAgents(departmentID *string) []domain.Agent {
	eligible := make([]domain.Agent, 0, len(s.Agents))
	for _, agent := range s.Agents {
		if departmentID != nil && (agent.DepartmentID == nil || *agent.DepartmentID != *departmentID) {
			continue
		}
		eligible = append(eligible, agent)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible
}

// directSelect returns the configured target when the rule's conditions
// match. A target that no longer exists (or is inactive) is a lookup
// failure and reads as no match, not an error.
func directSelect(ticket *domain.Ticket, cfg *domain.DirectAssignmentConfig, snap *AgentSnapshot) *Selection {
	if !EvaluateConditions(cfg.Conditions, ticket) {
		return nil
	}

	switch cfg.AssignToType {
	case domain.AssignTargetAgent:
		if snap.agentByID(cfg.AssignTo) == nil {
			return nil
		}
		agentID := cfg.AssignTo
		return &Selection{AgentID: &agentID, Reason: "direct assignment"}
	case domain.AssignTargetDepartment:
		if _, ok := snap.Departments[cfg.AssignTo]; !ok {
			return nil
		}
		deptID := cfg.AssignTo
		return &Selection{DepartmentID: &deptID, Reason: "direct assignment"}
	}
	return nil
}

// loadBasedSelect picks the active agent with the fewest open+pending
// tickets; ties break on agent id ascending for determinism.
func loadBasedSelect(cfg *domain.LoadBasedConfig, snap *AgentSnapshot) *Selection {
	eligible := snap.eligibleAgents(cfg.DepartmentID)
	return leastLoaded(eligible, snap.OpenCounts, "least loaded")
}

// skillMatchSelect keeps agents whose skill set covers every required
// skill, then folds to the least-loaded of them to avoid clustering.
func skillMatchSelect(cfg *domain.SkillMatchConfig, snap *AgentSnapshot) *Selection {
	eligible := snap.eligibleAgents(cfg.DepartmentID)
	qualified := eligible[:0:0]
	for _, agent := range eligible {
		if agent.HasSkills(cfg.RequiredSkills) {
			qualified = append(qualified, agent)
		}
	}
	return leastLoaded(qualified, snap.OpenCounts, "skill match")
}

func leastLoaded(agents []domain.Agent, counts map[string]int, reason string) *Selection {
	if len(agents) == 0 {
		return nil
	}
	best := agents[0]
	bestLoad := counts[best.ID]
	for _, agent := range agents[1:] {
		load := counts[agent.ID]
		if load < bestLoad || (load == bestLoad && agent.ID < best.ID) {
			best = agent
			bestLoad = load
		}
	}
	agentID := best.ID
	return &Selection{AgentID: &agentID, Reason: fmt.Sprintf("%s (load %d)", reason, bestLoad)}
}

// roundRobinStrategy rotates assignments through the eligible pool. The
// rotation pointer is a persisted per-rule cursor; advancing it is a CAS
// under a short-lived per-rule lock so concurrent tickets racing on the
// same rule serialize their read-modify-write.
type roundRobinStrategy struct {
	cursors repository.CursorRepository
	locker  persistence.Locker
	logger  *zap.Logger
}

const cursorCASRetries = 3

func (rr *roundRobinStrategy) selectNext(ctx context.Context, rule *domain.AssignmentRule, snap *AgentSnapshot, commit bool) (*Selection, error) {
	eligible := snap.eligibleAgents(rule.RoundRobin.DepartmentID)
	if len(eligible) == 0 {
		return nil, nil
	}

	if !commit {
		cursor, err := rr.cursors.Get(ctx, rule.ID)
		if err != nil {
			return nil, err
		}
		next := nextInRotation(eligible, cursor)
		return &Selection{AgentID: &next, Reason: "round robin (preview)"}, nil
	}

	var selection *Selection
	lockKey := "routing:cursor:" + rule.ID
	err := rr.withLock(ctx, lockKey, func(ctx context.Context) error {
		for attempt := 0; attempt < cursorCASRetries; attempt++ {
			cursor, err := rr.cursors.Get(ctx, rule.ID)
			if err != nil {
				return err
			}
			next := nextInRotation(eligible, cursor)

			var expected *string
			if cursor != nil {
				expected = cursor.LastAssignedAgentID
			}
			swapped, err := rr.cursors.CompareAndSwap(ctx, rule.ID, expected, next)
			if err != nil {
				return err
			}
			if swapped {
				selection = &Selection{AgentID: &next, Reason: "round robin"}
				return nil
			}
			rr.logger.Debug("round robin cursor contention, retrying",
				zap.String("rule_id", rule.ID), zap.Int("attempt", attempt+1))
		}
		return fmt.Errorf("round robin cursor for rule %s: swap contention exhausted", rule.ID)
	})
	if err != nil {
		return nil, err
	}
	return selection, nil
}

func (rr *roundRobinStrategy) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if rr.locker == nil {
		return fn(ctx)
	}
	return rr.locker.WithLock(ctx, key, fn)
}

// nextInRotation returns the agent after the cursor in a fixed cyclic
// order. An absent or stale cursor restarts the rotation at the first
// agent.
func nextInRotation(eligible []domain.Agent, cursor *domain.RoundRobinCursor) string {
	if cursor == nil || cursor.LastAssignedAgentID == nil {
		return eligible[0].ID
	}
	for i, agent := range eligible {
		if agent.ID == *cursor.LastAssignedAgentID {
			return eligible[(i+1)%len(eligible)].ID
		}
	}
	return eligible[0].ID
}
