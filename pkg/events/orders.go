package events

import "time"

type EventOrderCreated struct {
	Metadata     Metadata  `json:"mtdt"`
	CustomerId   string    `json:"customer_id"`
	RestaurantId string    `json:"restaurant_id"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
}

func (oc EventOrderCreated) GetMetadata() Metadata { return oc.Metadata }

// EventOrderStatusChanged is published on every accepted transition,
// including the cancellation branch.
type EventOrderStatusChanged struct {
	Metadata       Metadata  `json:"mtdt"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Reason         string    `json:"reason,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}

func (sc EventOrderStatusChanged) GetMetadata() Metadata { return sc.Metadata }

type EventOrderAcceptedByDriver struct {
	Metadata              Metadata  `json:"mtdt"`
	DriverId              string    `json:"driver_id"`
	EstimatedDeliveryTime time.Time `json:"estimated_delivery_time"`
	AcceptedAt            time.Time `json:"accepted_at"`
}

func (ad EventOrderAcceptedByDriver) GetMetadata() Metadata { return ad.Metadata }
