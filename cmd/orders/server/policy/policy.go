// Package policy holds the choreography of the orders context: each handler
// reacts to exactly one mapped event with exactly one command against the
// order aggregate, then returns. Handlers keep no cross-invocation state.
//
// Failure contract: every failure is classified. Retriable failures (storage,
// gateway, version conflicts) leave the message unclaimed in the
// processed-event ledger and propagate so the broker redelivers; terminal
// failures (validation, mapping gaps, out-of-order transitions) are settled
// in the ledger and logged by the consumer. An InvalidTransition from a
// reordered or duplicated delivery is an expected outcome here, not a bug.
package policy

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/benko325/delivery-platform/cmd/orders/server/acl"
	"github.com/benko325/delivery-platform/cmd/orders/server/gateway"
	"github.com/benko325/delivery-platform/cmd/orders/server/service"
	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/models"

	"github.com/google/uuid"
)

const handlerTimeout = 10 * time.Second

// Ledger is the processed-event store making at-least-once delivery safe.
type Ledger interface {
	EventProcessed(ctx context.Context, group, messageId string) (bool, error)
	MarkEventProcessed(ctx context.Context, group, messageId string) (bool, error)
}

type Policies struct {
	Service          *service.Service
	Gateway          gateway.Gateway
	PaymentPublisher service.Publisher
	Ledger           Ledger
	Group            string
	PaymentTimeout   time.Duration
}

func Register(local *events.Dispatcher, p *Policies) {
	events.Register(local, acl.MappedTypeCartOrdered, p.OnCartOrdered)
	events.Register(local, events.EvtTypeOrderCreated, p.OnOrderCreated)
	events.Register(local, events.EvtTypePaymentSucceeded, p.OnPaymentSucceeded)
	events.Register(local, events.EvtTypePaymentFailed, p.OnPaymentFailed)
	events.Register(local, acl.MappedTypeRestaurantDecision, p.OnRestaurantDecision)
	events.Register(local, acl.MappedTypePreparationUpdate, p.OnPreparationUpdate)
}

// OnCartOrdered turns a checkout into CreateOrder. Customer, restaurant and
// items are required: a mapping gap there is terminal, the saga cannot start.
func (p *Policies) OnCartOrdered(evt acl.CartOrdered) error {
	ctx, done := context.WithTimeout(context.Background(), handlerTimeout)
	defer done()

	return p.once(ctx, evt.Metadata.MessageId, func(ctx context.Context) error {
		if evt.CustomerId == acl.Absent || evt.RestaurantId == acl.Absent || len(evt.Items) == 0 {
			return svcerror.New(
				svcerror.ErrMappingGap,
				svcerror.WithOp("Policy.OnCartOrdered"),
				svcerror.WithMsg(fmt.Sprintf("checkout of cart %s is missing required fields, cannot create order", evt.CartId)),
			)
		}

		// The order id is a function of the cart id, so a redelivered
		// checkout maps onto the order the first delivery created.
		orderId := uuid.NewSHA1(uuid.NameSpaceOID, []byte(evt.CartId)).String()

		order, err := p.Service.CreateOrder(ctx, service.CreateOrderCommand{
			OrderId:          orderId,
			CustomerId:       evt.CustomerId,
			RestaurantId:     evt.RestaurantId,
			Items:            evt.Items,
			DeliveryAddress:  evt.DeliveryAddress,
			AmountCents:      evt.AmountCents,
			DeliveryFeeCents: evt.DeliveryFeeCents,
			Currency:         evt.Currency,
		})
		if err != nil {
			return err
		}

		log.Printf("[POLICY] Order %s created from cart %s", order.OrderId, evt.CartId)
		return nil
	})
}

// OnOrderCreated requests payment through the synchronous gateway. Gateway
// errors and timeouts are retriable; a clean decline cancels the order.
func (p *Policies) OnOrderCreated(evt events.EventOrderCreated) error {
	ctx, done := context.WithTimeout(context.Background(), handlerTimeout)
	defer done()

	return p.once(ctx, evt.Metadata.MessageId, func(ctx context.Context) error {
		requested := events.EventPaymentRequested{
			Metadata: events.Metadata{
				MessageId:     uuid.NewString(),
				Type:          events.EvtTypePaymentRequested,
				OrderId:       evt.Metadata.OrderId,
				CorrelationId: evt.Metadata.CorrelationId,
				CausationId:   evt.Metadata.MessageId,
				Timestamp:     time.Now().UTC(),
				Producer:      events.ProducerOrderSvc,
			},
			CustomerId:  evt.CustomerId,
			AmountCents: evt.AmountCents,
			Currency:    evt.Currency,
		}
		if err := p.PaymentPublisher.PublishAll(ctx, []events.DomainEvent{requested}); err != nil {
			return svcerror.AddOp(err, "Policy.OnOrderCreated")
		}

		payCtx, cancel := context.WithTimeout(ctx, p.PaymentTimeout)
		defer cancel()

		details := models.PaymentDetails{
			OrderId:     evt.Metadata.OrderId,
			CustomerId:  evt.CustomerId,
			AmountCents: evt.AmountCents,
			Currency:    evt.Currency,
		}

		result, err := p.Gateway.RequestPayment(payCtx, details)
		if err != nil {
			return svcerror.AddOp(err, "Policy.OnOrderCreated")
		}

		outcome := events.EvtTypePaymentSucceeded
		if !result.Success {
			outcome = events.EvtTypePaymentFailed
		}

		processed := events.EventPaymentProcessed{
			Metadata: events.Metadata{
				MessageId:     uuid.NewString(),
				Type:          outcome,
				OrderId:       evt.Metadata.OrderId,
				CorrelationId: evt.Metadata.CorrelationId,
				CausationId:   evt.Metadata.MessageId,
				Timestamp:     time.Now().UTC(),
				Producer:      events.ProducerOrderSvc,
			},
			PaymentRequestId: result.PaymentRequestId,
			AmountCents:      result.AmountCents,
			Currency:         result.Currency,
			PaidAt:           time.Now().UTC(),
			Reason:           result.FailureReason,
			Success:          result.Success,
		}

		return p.PaymentPublisher.PublishAll(ctx, []events.DomainEvent{processed})
	})
}

func (p *Policies) OnPaymentSucceeded(evt events.EventPaymentProcessed) error {
	ctx, done := context.WithTimeout(context.Background(), handlerTimeout)
	defer done()

	return p.once(ctx, evt.Metadata.MessageId, func(ctx context.Context) error {
		_, err := p.Service.UpdateOrderStatus(ctx, evt.Metadata.OrderId, models.ORDER_STATUS_PAYMENT_SUCCEEDED)
		return err
	})
}

func (p *Policies) OnPaymentFailed(evt events.EventPaymentProcessed) error {
	ctx, done := context.WithTimeout(context.Background(), handlerTimeout)
	defer done()

	return p.once(ctx, evt.Metadata.MessageId, func(ctx context.Context) error {
		_, err := p.Service.CancelOrder(ctx, evt.Metadata.OrderId, fmt.Sprintf("Payment failed: %s", evt.Reason))
		return err
	})
}

func (p *Policies) OnRestaurantDecision(evt acl.RestaurantDecision) error {
	ctx, done := context.WithTimeout(context.Background(), handlerTimeout)
	defer done()

	return p.once(ctx, evt.Metadata.MessageId, func(ctx context.Context) error {
		if evt.OrderId == acl.Absent {
			return svcerror.New(
				svcerror.ErrMappingGap,
				svcerror.WithOp("Policy.OnRestaurantDecision"),
				svcerror.WithMsg("restaurant decision carries no order id"),
			)
		}

		if evt.Accepted {
			_, err := p.Service.UpdateOrderStatus(ctx, evt.OrderId, models.ORDER_STATUS_CONFIRMED)
			return err
		}

		_, err := p.Service.CancelOrder(ctx, evt.OrderId, fmt.Sprintf("Restaurant rejected: %s", evt.Reason))
		return err
	})
}

func (p *Policies) OnPreparationUpdate(evt acl.PreparationUpdate) error {
	ctx, done := context.WithTimeout(context.Background(), handlerTimeout)
	defer done()

	return p.once(ctx, evt.Metadata.MessageId, func(ctx context.Context) error {
		if evt.OrderId == acl.Absent {
			return svcerror.New(
				svcerror.ErrMappingGap,
				svcerror.WithOp("Policy.OnPreparationUpdate"),
				svcerror.WithMsg("preparation update carries no order id"),
			)
		}

		status := models.ORDER_STATUS_PREPARING
		if evt.Ready {
			status = models.ORDER_STATUS_READY_FOR_PICKUP
		}
		_, err := p.Service.UpdateOrderStatus(ctx, evt.OrderId, status)
		return err
	})
}

// once guards a handler with the processed-event ledger. The entry is written
// only after the handler settled the message: success or a terminal failure.
// A crash mid-handler leaves the message unclaimed, so redelivery runs the
// handler again; every handler is idempotent (deterministic order id on
// create, transition table and version check on updates) and absorbs the
// rerun. A retriable failure writes nothing and propagates for redelivery.
func (p *Policies) once(ctx context.Context, messageId string, fn func(ctx context.Context) error) error {
	done, err := p.Ledger.EventProcessed(ctx, p.Group, messageId)
	if err != nil {
		return svcerror.AddOp(err, "Policy.once")
	}
	if done {
		log.Printf("[POLICY] Skipping duplicate delivery of message %s", messageId)
		return nil
	}

	if err := fn(ctx); err != nil {
		if !svcerror.Retriable(err) {
			if _, markErr := p.Ledger.MarkEventProcessed(ctx, p.Group, messageId); markErr != nil {
				log.Printf("[POLICY] Failed to settle terminal message %s: %v", messageId, markErr)
			}
		}
		return err
	}

	if _, err := p.Ledger.MarkEventProcessed(ctx, p.Group, messageId); err != nil {
		log.Printf("[POLICY] Failed to settle message %s, a duplicate run may follow: %v", messageId, err)
	}
	return nil
}
