// Package service is the command layer of the orders context. Every command
// reloads the aggregate from storage, mutates it, then persists the record
// and the outbox rows of its raised events in one compare-and-swap
// transaction before announcing the events to in-process subscribers.
// There is no in-memory aggregate cache.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benko325/delivery-platform/cmd/orders/server/domain"
	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/outbox"

	"github.com/google/uuid"
)

// OrderStore persists the order and the outbox rows of the events it raised
// in one transaction.
type OrderStore interface {
	SaveOrder(ctx context.Context, order models.Order, outbox []models.Outbox) error
	GetOrder(ctx context.Context, orderId string) (models.Order, error)
	GetOrdersByCustomer(ctx context.Context, customerId string) ([]models.Order, error)
	UpdateOrder(ctx context.Context, order models.Order, outbox []models.Outbox) error
}

type Publisher interface {
	PublishAll(ctx context.Context, evts []events.DomainEvent) error
}

type Service struct {
	Store     OrderStore
	Publisher Publisher
}

func NewService(store OrderStore, publisher Publisher) *Service {
	return &Service{
		Store:     store,
		Publisher: publisher,
	}
}

type CreateOrderCommand struct {
	// OrderId may be pre-derived by the caller (the checkout policy derives
	// it from the cart id) so a redelivered command maps onto the same order.
	OrderId          string
	CustomerId       string
	RestaurantId     string
	Items            []models.OrderItem
	DeliveryAddress  string
	AmountCents      int64
	DeliveryFeeCents int64
	Currency         string
}

// CreateOrder is the trust boundary for item validity: the aggregate itself
// assumes a well-formed, non-empty item list. With a pre-derived order id the
// command is idempotent: a duplicate finds the existing order and returns it.
func (s *Service) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*models.Order, error) {
	if cmd.OrderId != "" {
		existing, err := s.Store.GetOrder(ctx, cmd.OrderId)
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, svcerror.ErrNotFound) {
			return nil, svcerror.AddOp(err, "Service.CreateOrder")
		}
	}

	if len(cmd.Items) == 0 {
		return nil, svcerror.New(
			svcerror.ErrValidationError,
			svcerror.WithOp("Service.CreateOrder"),
			svcerror.WithMsg("order must contain at least one item"),
		)
	}
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return nil, svcerror.New(
				svcerror.ErrValidationError,
				svcerror.WithOp("Service.CreateOrder"),
				svcerror.WithMsg(fmt.Sprintf("item %s has non-positive quantity", item.MenuItemId)),
			)
		}
	}

	orderId := cmd.OrderId
	if orderId == "" {
		orderId = uuid.NewString()
	}
	order := domain.NewOrder(orderId, cmd.CustomerId, cmd.RestaurantId, cmd.Items,
		cmd.DeliveryAddress, cmd.AmountCents, cmd.DeliveryFeeCents, cmd.Currency)

	rows, err := outbox.RowsFor(kafka.TopicOrder, order.PendingEvents())
	if err != nil {
		return nil, svcerror.AddOp(err, "Service.CreateOrder")
	}
	if err := s.Store.SaveOrder(ctx, order.Order, rows); err != nil {
		return nil, svcerror.AddOp(err, "Service.CreateOrder")
	}

	if err := s.Publisher.PublishAll(ctx, order.PendingEvents()); err != nil {
		return nil, svcerror.AddOp(err, "Service.CreateOrder")
	}
	order.ClearPending()

	return &order.Order, nil
}

func (s *Service) AcceptOrder(ctx context.Context, orderId, driverId string, estimatedDeliveryTime time.Time) (*models.Order, error) {
	return s.mutate(ctx, orderId, "Service.AcceptOrder", func(order *domain.Order) error {
		return order.AcceptByDriver(driverId, estimatedDeliveryTime)
	})
}

func (s *Service) UpdateOrderStatus(ctx context.Context, orderId string, newStatus models.OrderStatus) (*models.Order, error) {
	return s.mutate(ctx, orderId, "Service.UpdateOrderStatus", func(order *domain.Order) error {
		return order.UpdateStatus(newStatus)
	})
}

func (s *Service) CancelOrder(ctx context.Context, orderId, reason string) (*models.Order, error) {
	return s.mutate(ctx, orderId, "Service.CancelOrder", func(order *domain.Order) error {
		return order.Cancel(reason)
	})
}

func (s *Service) ListOrders(ctx context.Context, customerId string) ([]models.Order, error) {
	orders, err := s.Store.GetOrdersByCustomer(ctx, customerId)
	if err != nil {
		return nil, svcerror.AddOp(err, "Service.ListOrders")
	}
	return orders, nil
}

func (s *Service) GetOrder(ctx context.Context, orderId string) (*models.Order, error) {
	record, err := s.Store.GetOrder(ctx, orderId)
	if err != nil {
		return nil, svcerror.AddOp(err, "Service.GetOrder")
	}
	return &record, nil
}

// mutate is the load-mutate-persist-publish cycle shared by every command
// that works on an existing order. The raised events ride into the store as
// outbox rows inside the update transaction; the publisher only notifies
// in-process subscribers afterwards.
func (s *Service) mutate(ctx context.Context, orderId, op string, apply func(*domain.Order) error) (*models.Order, error) {
	record, err := s.Store.GetOrder(ctx, orderId)
	if err != nil {
		return nil, svcerror.AddOp(err, op)
	}

	order := domain.Load(record)
	if err := apply(order); err != nil {
		return nil, svcerror.AddOp(err, op)
	}

	rows, err := outbox.RowsFor(kafka.TopicOrder, order.PendingEvents())
	if err != nil {
		return nil, svcerror.AddOp(err, op)
	}
	if err := s.Store.UpdateOrder(ctx, order.Order, rows); err != nil {
		return nil, svcerror.AddOp(err, op)
	}

	if err := s.Publisher.PublishAll(ctx, order.PendingEvents()); err != nil {
		return nil, svcerror.AddOp(err, op)
	}
	order.ClearPending()

	return &order.Order, nil
}
