package campaign

import (
	"strconv"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/models"
)

// Delivery condition operators accepted on campaign requests.
const (
	OperatorLessThan    = "LESS_THAN"
	OperatorGreaterThan = "GREATER_THAN"
	OperatorEqualTo     = "EQUAL_TO"
)

// EncodeCondition renders one delivery condition in the compact textual
// form downstream consumers parse. The exact shapes are load-bearing:
// "<v" for less-than, "v<" for greater-than, "v=" for equality.
func EncodeCondition(c models.DeliveryCondition) (string, error) {
	value := strconv.FormatFloat(c.Value, 'f', -1, 64)
	switch c.Operator {
	case OperatorLessThan:
		return "<" + value, nil
	case OperatorGreaterThan:
		return value + "<", nil
	case OperatorEqualTo:
		return value + "=", nil
	}
	return "", apperrors.Newf(apperrors.ValidationError, "unknown delivery condition operator %q", c.Operator)
}

// EncodeRules encodes every condition of every rule, keyed by
// "cycle.delivery" so consumers can address a single delivery.
func EncodeRules(rules []models.DeliveryRule) (map[string][]string, error) {
	encoded := make(map[string][]string, len(rules))
	for _, rule := range rules {
		key := strconv.Itoa(rule.CycleNumber) + "." + strconv.Itoa(rule.DeliveryNumber)
		for _, cond := range rule.Conditions {
			text, err := EncodeCondition(cond)
			if err != nil {
				return nil, err
			}
			encoded[key] = append(encoded[key], text)
		}
	}
	return encoded, nil
}
