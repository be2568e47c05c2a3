package service

import (
	"testing"

	"github.com/spec-kit/routing-engine/internal/domain"
)

func evalTicket() *domain.Ticket {
	return &domain.Ticket{
		Subject:       "Printer PX-400 jams on duplex",
		CustomerEmail: "ops@bigcorp.example.com",
		CustomerName:  "Dana Ortiz",
		Priority:      domain.TicketPriorityHigh,
		Category:      "hardware",
		DepartmentID:  "dept-support",
		ProductModel:  "PX-400",
	}
}

func cond(field string, op domain.ConditionOperator, value string, logic domain.ConditionLogic) domain.RuleCondition {
	return domain.RuleCondition{Field: field, Operator: op, Value: value, Logic: logic}
}

func TestEvaluateConditions_Operators(t *testing.T) {
	ticket := evalTicket()

	tests := []struct {
		name string
		cond domain.RuleCondition
		want bool
	}{
		{"contains match", cond("subject", domain.OperatorContains, "px-400", ""), true},
		{"contains miss", cond("subject", domain.OperatorContains, "toner", ""), false},
		{"equals case-insensitive", cond("category", domain.OperatorEquals, "HARDWARE", ""), true},
		{"equals miss", cond("category", domain.OperatorEquals, "software", ""), false},
		{"startsWith", cond("customerEmail", domain.OperatorStartsWith, "ops@", ""), true},
		{"endsWith", cond("customerEmail", domain.OperatorEndsWith, "bigcorp.example.com", ""), true},
		{"priority as string", cond("priority", domain.OperatorEquals, "high", ""), true},
		{"unknown field is false", cond("ticketColor", domain.OperatorEquals, "red", ""), false},
		{"unknown operator is false", cond("subject", "matches", "Printer", ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateConditions([]domain.RuleCondition{tt.cond}, ticket)
			if got != tt.want {
				t.Fatalf("EvaluateConditions(%+v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvaluateConditions_EmptyListMatchesEverything(t *testing.T) {
	if !EvaluateConditions(nil, evalTicket()) {
		t.Fatal("empty condition list should match any ticket")
	}
}

// The condition list folds left to right with no precedence:
// [A(AND), B(OR), C] means (A AND B) OR C, not A AND (B OR C).
func TestEvaluateConditions_LeftToRightFold(t *testing.T) {
	ticket := evalTicket()

	a := cond("category", domain.OperatorEquals, "hardware", domain.LogicAnd) // true
	bMiss := cond("priority", domain.OperatorEquals, "low", domain.LogicOr)  // false
	c := cond("productModel", domain.OperatorEquals, "PX-400", "")           // true

	// (true AND false) OR true = true
	if !EvaluateConditions([]domain.RuleCondition{a, bMiss, c}, ticket) {
		t.Fatal("expected (A AND B) OR C fold to yield true")
	}

	// Under precedence grouping A AND (B OR C) the same list with a false
	// trailing clause would flip; the fold keeps it false.
	cMiss := cond("productModel", domain.OperatorEquals, "ZX-9", "")
	if EvaluateConditions([]domain.RuleCondition{a, bMiss, cMiss}, ticket) {
		t.Fatal("expected (A AND B) OR C fold to yield false")
	}

	aMiss := cond("category", domain.OperatorEquals, "software", domain.LogicOr) // false
	b := cond("priority", domain.OperatorEquals, "high", domain.LogicAnd)        // true

	// (false OR true) AND true = true
	if !EvaluateConditions([]domain.RuleCondition{aMiss, b, c}, ticket) {
		t.Fatal("expected (A OR B) AND C fold to yield true")
	}
}

func TestEvaluateConditions_TrailingLogicIgnored(t *testing.T) {
	ticket := evalTicket()
	// The final condition's logic joins nothing; it must not change the result.
	list := []domain.RuleCondition{
		cond("category", domain.OperatorEquals, "hardware", domain.LogicAnd),
		cond("priority", domain.OperatorEquals, "high", domain.LogicOr),
	}
	if !EvaluateConditions(list, ticket) {
		t.Fatal("expected match regardless of trailing logic value")
	}
}

func TestEvaluateConditions_DefaultLogicIsAnd(t *testing.T) {
	ticket := evalTicket()
	list := []domain.RuleCondition{
		cond("category", domain.OperatorEquals, "hardware", ""),
		cond("priority", domain.OperatorEquals, "low", ""),
	}
	if EvaluateConditions(list, ticket) {
		t.Fatal("missing logic should join with AND")
	}
}
