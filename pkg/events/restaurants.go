package events

import "time"

// EventRestaurantDecision carries both outcomes of the restaurant's review;
// the metadata type distinguishes OrderConfirmedByRestaurantEvent from
// OrderRejectedByRestaurantEvent.
type EventRestaurantDecision struct {
	Metadata   Metadata  `json:"mtdt"`
	EtaMinutes int64     `json:"eta_minutes,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Accepted   bool      `json:"accepted"`
	DecidedAt  time.Time `json:"decided_at"`
}

func (rd EventRestaurantDecision) GetMetadata() Metadata { return rd.Metadata }

// EventOrderPreparation marks the kitchen leg: preparation started, then the
// order becoming ready for pickup once the prep ticket expires.
type EventOrderPreparation struct {
	Metadata   Metadata  `json:"mtdt"`
	Ready      bool      `json:"ready"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (op EventOrderPreparation) GetMetadata() Metadata { return op.Metadata }
