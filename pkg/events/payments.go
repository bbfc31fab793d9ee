package events

import "time"

// EventPaymentRequested marks the start of the payment leg on the wire. The
// gateway call itself is synchronous; this event is the audit record of it.
type EventPaymentRequested struct {
	Metadata    Metadata `json:"mtdt"`
	CustomerId  string   `json:"customer_id"`
	AmountCents int64    `json:"amount_cents"`
	Currency    string   `json:"currency"`
}

func (pr EventPaymentRequested) GetMetadata() Metadata { return pr.Metadata }

// EventPaymentProcessed carries both outcomes of a gateway call; the
// metadata type distinguishes PaymentSucceededEvent from PaymentFailedEvent.
type EventPaymentProcessed struct {
	Metadata         Metadata  `json:"mtdt"`
	PaymentRequestId string    `json:"payment_request_id"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	PaidAt           time.Time `json:"paid_at"`
	Reason           string    `json:"reason,omitempty"`
	Success          bool      `json:"success"`
}

func (pp EventPaymentProcessed) GetMetadata() Metadata { return pp.Metadata }
