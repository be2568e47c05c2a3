package service

import (
	"strings"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// EvaluateConditions applies a rule's condition list to a ticket snapshot.
//
// Each condition carries the logic joining it to the NEXT condition, and the
// list folds left to right: [A(AND), B(OR), C] evaluates as (A AND B) OR C.
// There is no operator precedence; existing configured rules depend on the
// fold, so it must not be "fixed" into precedence grouping.
//
// Unknown fields or operators make that condition false, never an error.
// An empty list matches everything, which is how catch-all rules work.
func EvaluateConditions(conditions []domain.RuleCondition, ticket *domain.Ticket) bool {
	if len(conditions) == 0 {
		return true
	}

	result := matchCondition(conditions[0], ticket)
	for i := 1; i < len(conditions); i++ {
		next := matchCondition(conditions[i], ticket)
		if conditions[i-1].Logic == domain.LogicOr {
			result = result || next
		} else {
			result = result && next
		}
	}
	return result
}

func matchCondition(cond domain.RuleCondition, ticket *domain.Ticket) bool {
	fieldValue, ok := ticketFieldValue(cond.Field, ticket)
	if !ok {
		return false
	}

	have := strings.ToLower(fieldValue)
	want := strings.ToLower(cond.Value)

	switch cond.Operator {
	case domain.OperatorContains:
		return strings.Contains(have, want)
	case domain.OperatorEquals:
		return have == want
	case domain.OperatorStartsWith:
		return strings.HasPrefix(have, want)
	case domain.OperatorEndsWith:
		return strings.HasSuffix(have, want)
	default:
		return false
	}
}

// ticketFieldValue resolves a condition field from the ticket snapshot.
// Enum fields are stringified so operators stay uniform.
func ticketFieldValue(field string, ticket *domain.Ticket) (string, bool) {
	switch field {
	case "subject":
		return ticket.Subject, true
	case "customerEmail":
		return ticket.CustomerEmail, true
	case "customerName":
		return ticket.CustomerName, true
	case "priority":
		return string(ticket.Priority), true
	case "category":
		return ticket.Category, true
	case "departmentId":
		return ticket.DepartmentID, true
	case "productModel":
		return ticket.ProductModel, true
	default:
		return "", false
	}
}
