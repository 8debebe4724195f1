package enums

import "fmt"

// PlanType selects which configured processor price a checkout uses.
type PlanType string

const (
	PlanTypeOneTime      PlanType = "one_time"
	PlanTypeSubscription PlanType = "subscription"
)

var validPlanTypes = []PlanType{
	PlanTypeOneTime,
	PlanTypeSubscription,
}

// String implements fmt.Stringer.
func (p PlanType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known plan type.
func (p PlanType) IsValid() bool {
	for _, candidate := range validPlanTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanType converts raw input into a PlanType.
func ParsePlanType(value string) (PlanType, error) {
	for _, candidate := range validPlanTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan type %q", value)
}
