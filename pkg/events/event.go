package events

import (
	"encoding/json"
	"time"
)

type EventType string

// Event type names are the wire contract between contexts. The routing key of
// every broker message is the producing context's topic plus this type.
const (
	EvtTypeCartOrdered                  EventType = "CartOrderedEvent"
	EvtTypeOrderCreated                 EventType = "OrderCreatedEvent"
	EvtTypeOrderStatusChanged           EventType = "OrderStatusChangedEvent"
	EvtTypeOrderAcceptedByDriver        EventType = "OrderAcceptedByDriverEvent"
	EvtTypePaymentRequested             EventType = "PaymentRequestedEvent"
	EvtTypePaymentSucceeded             EventType = "PaymentSucceededEvent"
	EvtTypePaymentFailed                EventType = "PaymentFailedEvent"
	EvtTypeOrderConfirmedByRestaurant   EventType = "OrderConfirmedByRestaurantEvent"
	EvtTypeOrderRejectedByRestaurant    EventType = "OrderRejectedByRestaurantEvent"
	EvtTypeOrderPreparationStarted      EventType = "OrderPreparationStartedEvent"
	EvtTypeOrderReadyForPickup          EventType = "OrderReadyForPickupEvent"
	EvtTypeDeadLetterQueue              EventType = "DeadLetterEvent"
)

const (
	ProducerCartSvc          = "cart-svc"
	ProducerOrderSvc         = "order-svc"
	ProducerRestaurantSvc    = "restaurant-svc"
	ProducerNotificationsSvc = "notifications-svc"
)

// Metadata is the envelope carried by every published event. Once published
// it is immutable; consumers never mutate it. OrderId keys the partition so
// one order's events stay in apply-order on the broker.
type Metadata struct {
	MessageId     string    `json:"message_id"`
	Type          EventType `json:"type"`
	OrderId       string    `json:"order_id"`
	CorrelationId string    `json:"correlation_id"`
	CausationId   string    `json:"causation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Producer      string    `json:"producer"`
}

type DomainEvent interface {
	GetMetadata() Metadata
}

// EventEnvelope is the minimal shape peeked at before typed dispatch.
type EventEnvelope struct {
	Metadata Metadata `json:"mtdt"`
}

type ErrorDetails struct {
	Message   string    `json:"message"`
	Service   string    `json:"service"`
	OccuredAt time.Time `json:"occured_at"`
}

// EventDLQ wraps a message that could not be processed after retries.
type EventDLQ struct {
	Metadata     Metadata        `json:"mtdt"`
	ErrorDetails ErrorDetails    `json:"error_details"`
	Payload      json.RawMessage `json:"payload"`
}

func (e EventDLQ) GetMetadata() Metadata { return e.Metadata }
