package shared

import "time"

// DomainEvent represents an event that has occurred in the domain
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
	// Tenant returns the tenant whose state changed
	Tenant() string
}
