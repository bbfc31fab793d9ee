// Package domain owns the order aggregate and its status state machine.
// Other contexts never write an order; they react to the events it raises.
package domain

import (
	"fmt"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/models"

	"github.com/google/uuid"
)

// transitions is the single source of truth for legal status changes.
// Driver acceptance is a side-channel operation, not a bare status set,
// so it does not appear here.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.ORDER_STATUS_PENDING:           {models.ORDER_STATUS_PAYMENT_SUCCEEDED, models.ORDER_STATUS_CANCELLED},
	models.ORDER_STATUS_PAYMENT_SUCCEEDED: {models.ORDER_STATUS_CONFIRMED, models.ORDER_STATUS_CANCELLED},
	models.ORDER_STATUS_CONFIRMED:         {models.ORDER_STATUS_PREPARING, models.ORDER_STATUS_CANCELLED},
	models.ORDER_STATUS_PREPARING:         {models.ORDER_STATUS_READY_FOR_PICKUP, models.ORDER_STATUS_CANCELLED},
	models.ORDER_STATUS_READY_FOR_PICKUP:  {models.ORDER_STATUS_IN_TRANSIT, models.ORDER_STATUS_CANCELLED},
	models.ORDER_STATUS_IN_TRANSIT:        {models.ORDER_STATUS_DELIVERED},
	models.ORDER_STATUS_DELIVERED:         {},
	models.ORDER_STATUS_CANCELLED:         {},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Order wraps the persisted record with the state machine and the events
// pending publication since the last commit.
type Order struct {
	models.Order

	pending []events.DomainEvent
}

// NewOrder creates an order in pending under the given id; the command layer
// derives the id (deterministically for checkout-driven creation) or mints
// one. Item-list validity (non-empty, positive quantities) is the caller's
// trust boundary; it is checked once at the command layer, not re-checked
// here.
func NewOrder(orderId, customerId, restaurantId string, items []models.OrderItem, deliveryAddress string, amountCents, deliveryFeeCents int64, currency string) *Order {
	now := time.Now().UTC()
	o := &Order{
		Order: models.Order{
			OrderId:          orderId,
			CustomerId:       customerId,
			RestaurantId:     restaurantId,
			Items:            items,
			DeliveryAddress:  deliveryAddress,
			Status:           models.ORDER_STATUS_PENDING,
			AmountCents:      amountCents,
			DeliveryFeeCents: deliveryFeeCents,
			Currency:         currency,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}

	o.pending = append(o.pending, events.EventOrderCreated{
		Metadata:     o.metadata(events.EvtTypeOrderCreated),
		CustomerId:   customerId,
		RestaurantId: restaurantId,
		AmountCents:  amountCents,
		Currency:     currency,
		CreatedAt:    now,
	})
	return o
}

// Load rehydrates the aggregate from its persisted record.
func Load(record models.Order) *Order {
	return &Order{Order: record}
}

// AcceptByDriver assigns the driver. Legal only from ready_for_pickup, and
// the driver can be set exactly once. The status itself does not move; the
// in_transit transition later requires an assigned driver.
func (o *Order) AcceptByDriver(driverId string, estimatedDeliveryTime time.Time) error {
	if o.Status != models.ORDER_STATUS_READY_FOR_PICKUP {
		return svcerror.New(
			svcerror.ErrInvalidState,
			svcerror.WithOp("Order.AcceptByDriver"),
			svcerror.WithMsg(fmt.Sprintf("order %s is %s, drivers can only accept ready_for_pickup orders", o.OrderId, o.Status)),
		)
	}
	if o.DriverId != "" {
		return svcerror.New(
			svcerror.ErrInvalidState,
			svcerror.WithOp("Order.AcceptByDriver"),
			svcerror.WithMsg(fmt.Sprintf("order %s already has driver %s", o.OrderId, o.DriverId)),
		)
	}

	now := time.Now().UTC()
	o.DriverId = driverId
	o.EstimatedDeliveryTime = &estimatedDeliveryTime
	o.UpdatedAt = now

	o.pending = append(o.pending, events.EventOrderAcceptedByDriver{
		Metadata:              o.metadata(events.EvtTypeOrderAcceptedByDriver),
		DriverId:              driverId,
		EstimatedDeliveryTime: estimatedDeliveryTime,
		AcceptedAt:            now,
	})
	return nil
}

// UpdateStatus moves the order along the transition table and always raises
// OrderStatusChangedEvent. Entering delivered stamps the actual delivery time.
func (o *Order) UpdateStatus(newStatus models.OrderStatus) error {
	if !CanTransition(o.Status, newStatus) {
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp("Order.UpdateStatus"),
			svcerror.WithMsg(fmt.Sprintf("order %s cannot go from %s to %s", o.OrderId, o.Status, newStatus)),
		)
	}
	if newStatus == models.ORDER_STATUS_IN_TRANSIT && o.DriverId == "" {
		return svcerror.New(
			svcerror.ErrInvalidState,
			svcerror.WithOp("Order.UpdateStatus"),
			svcerror.WithMsg(fmt.Sprintf("order %s has no driver assigned", o.OrderId)),
		)
	}

	now := time.Now().UTC()
	previous := o.Status
	o.Status = newStatus
	o.UpdatedAt = now
	if newStatus == models.ORDER_STATUS_DELIVERED {
		o.ActualDeliveryTime = &now
	}

	o.pending = append(o.pending, events.EventOrderStatusChanged{
		Metadata:       o.metadata(events.EvtTypeOrderStatusChanged),
		PreviousStatus: string(previous),
		NewStatus:      string(newStatus),
		ChangedAt:      now,
	})
	return nil
}

// Cancel is the side branch of the state machine. Calling it on an order
// that already reached delivered or cancelled fails and changes nothing.
func (o *Order) Cancel(reason string) error {
	if !CanTransition(o.Status, models.ORDER_STATUS_CANCELLED) {
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp("Order.Cancel"),
			svcerror.WithMsg(fmt.Sprintf("order %s cannot be cancelled from %s", o.OrderId, o.Status)),
		)
	}

	now := time.Now().UTC()
	previous := o.Status
	o.Status = models.ORDER_STATUS_CANCELLED
	o.CancelledAt = &now
	o.CancellationReason = reason
	o.UpdatedAt = now

	o.pending = append(o.pending, events.EventOrderStatusChanged{
		Metadata:       o.metadata(events.EvtTypeOrderStatusChanged),
		PreviousStatus: string(previous),
		NewStatus:      string(models.ORDER_STATUS_CANCELLED),
		Reason:         reason,
		ChangedAt:      now,
	})
	return nil
}

// PendingEvents returns the events raised since load, in apply-order.
func (o *Order) PendingEvents() []events.DomainEvent {
	return o.pending
}

func (o *Order) ClearPending() {
	o.pending = nil
}

func (o *Order) metadata(et events.EventType) events.Metadata {
	return events.Metadata{
		MessageId:     uuid.NewString(),
		Type:          et,
		OrderId:       o.OrderId,
		CorrelationId: o.OrderId,
		Timestamp:     time.Now().UTC(),
		Producer:      events.ProducerOrderSvc,
	}
}
