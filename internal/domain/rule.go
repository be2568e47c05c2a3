package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleType enumerates assignment strategies a rule can invoke.
type RuleType string

const (
	RuleTypeDirectAssignment RuleType = "direct_assignment"
	RuleTypeRoundRobin       RuleType = "round_robin"
	RuleTypeLoadBased        RuleType = "load_based"
	RuleTypeSkillMatch       RuleType = "skill_match"
	RuleTypeManual           RuleType = "manual"
)

// ValidRuleType reports whether t names a known strategy.
func ValidRuleType(t RuleType) bool {
	switch t {
	case RuleTypeDirectAssignment, RuleTypeRoundRobin, RuleTypeLoadBased, RuleTypeSkillMatch, RuleTypeManual:
		return true
	}
	return false
}

// ConditionLogic joins a condition to the NEXT condition in the list.
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "AND"
	LogicOr  ConditionLogic = "OR"
)

// ConditionOperator enumerates supported string comparisons.
type ConditionOperator string

const (
	OperatorContains   ConditionOperator = "contains"
	OperatorEquals     ConditionOperator = "equals"
	OperatorStartsWith ConditionOperator = "startsWith"
	OperatorEndsWith   ConditionOperator = "endsWith"
)

// RuleCondition is one clause of a direct-assignment rule. Logic describes
// how this condition combines with the one that follows it; the trailing
// condition's Logic is ignored. Evaluation is a left-to-right fold, so
// [A(AND), B(OR), C] reads as (A AND B) OR C.
type RuleCondition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
	Logic    ConditionLogic    `json:"logic,omitempty"`
}

// AssignTargetType distinguishes agent targets from department targets.
type AssignTargetType string

const (
	AssignTargetAgent      AssignTargetType = "agent"
	AssignTargetDepartment AssignTargetType = "department"
)

// DirectAssignmentConfig routes matching tickets to a fixed target.
type DirectAssignmentConfig struct {
	Conditions   []RuleCondition  `json:"conditions"`
	AssignToType AssignTargetType `json:"assign_to_type"`
	AssignTo     string           `json:"assign_to"`
}

// RoundRobinConfig scopes the rotation pool. A nil DepartmentID means all
// active agents; Category, when set, gates which tickets the rule applies to.
type RoundRobinConfig struct {
	DepartmentID *string `json:"department_id,omitempty"`
	Category     *string `json:"category,omitempty"`
}

// LoadBasedConfig scopes the least-loaded selection pool.
type LoadBasedConfig struct {
	DepartmentID *string `json:"department_id,omitempty"`
	Category     *string `json:"category,omitempty"`
}

// SkillMatchConfig restricts eligibility to agents carrying every skill.
type SkillMatchConfig struct {
	RequiredSkills []string `json:"required_skills"`
	DepartmentID   *string  `json:"department_id,omitempty"`
	Category       *string  `json:"category,omitempty"`
}

// AssignmentRule is a configured, prioritized routing policy. The jsonb
// config blob is decoded exactly once, when the rule is loaded; a blob that
// fails to decode marks the rule invalid, which the engine treats as
// never-matching rather than an evaluation-time error.
type AssignmentRule struct {
	ID          string
	Name        string
	Type        RuleType
	Priority    int
	Enabled     bool
	RawConfig   []byte
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Direct     *DirectAssignmentConfig
	RoundRobin *RoundRobinConfig
	LoadBased  *LoadBasedConfig
	SkillMatch *SkillMatchConfig
	Invalid    bool
}

// DecodeConfig parses RawConfig into the per-type config struct. On failure
// the rule is flagged invalid and the error returned for logging; callers
// must not treat a decode failure as fatal.
func (r *AssignmentRule) DecodeConfig() error {
	r.Direct, r.RoundRobin, r.LoadBased, r.SkillMatch = nil, nil, nil, nil
	r.Invalid = false

	raw := r.RawConfig
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var err error
	switch r.Type {
	case RuleTypeDirectAssignment:
		cfg := &DirectAssignmentConfig{}
		if err = json.Unmarshal(raw, cfg); err == nil {
			if cfg.AssignTo == "" {
				err = fmt.Errorf("direct_assignment config missing assign_to")
			} else if cfg.AssignToType != AssignTargetAgent && cfg.AssignToType != AssignTargetDepartment {
				err = fmt.Errorf("direct_assignment config has unknown assign_to_type %q", cfg.AssignToType)
			}
		}
		if err == nil {
			r.Direct = cfg
		}
	case RuleTypeRoundRobin:
		cfg := &RoundRobinConfig{}
		if err = json.Unmarshal(raw, cfg); err == nil {
			r.RoundRobin = cfg
		}
	case RuleTypeLoadBased:
		cfg := &LoadBasedConfig{}
		if err = json.Unmarshal(raw, cfg); err == nil {
			r.LoadBased = cfg
		}
	case RuleTypeSkillMatch:
		cfg := &SkillMatchConfig{}
		if err = json.Unmarshal(raw, cfg); err == nil {
			if len(cfg.RequiredSkills) == 0 {
				err = fmt.Errorf("skill_match config missing required_skills")
			}
		}
		if err == nil {
			r.SkillMatch = cfg
		}
	case RuleTypeManual:
		// no config
	default:
		err = fmt.Errorf("unknown rule type %q", r.Type)
	}

	if err != nil {
		r.Invalid = true
		return fmt.Errorf("rule %s (%s): %w", r.ID, r.Name, err)
	}
	return nil
}

// RoundRobinCursor is the persisted rotation pointer for one round-robin
// rule. It is mutated only by the round-robin strategy, exactly once per
// successful assignment, through a compare-and-swap on the cursor row.
type RoundRobinCursor struct {
	RuleID              string
	LastAssignedAgentID *string
	UpdatedAt           time.Time
}
