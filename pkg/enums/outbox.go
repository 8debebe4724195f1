package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateLicense OutboxAggregateType = "license"
	AggregatePlugin  OutboxAggregateType = "plugin"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateLicense,
	AggregatePlugin,
}

// IsValid reports whether the aggregate type is known.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventLicenseCreated       OutboxEventType = "license.created"
	EventLicenseStatusChanged OutboxEventType = "license.status_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventLicenseCreated,
	EventLicenseStatusChanged,
}

// IsValid reports whether the event type is known.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
