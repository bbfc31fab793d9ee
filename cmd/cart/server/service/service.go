// Package service implements cart operations. A cart is a scratchpad keyed by
// customer: items accumulate until checkout, at which point the cart's full
// snapshot is published as a checkout event and the cart is deleted.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/repository"

	"github.com/google/uuid"
)

type Publisher interface {
	PublishAll(ctx context.Context, evts []events.DomainEvent) error
}

type CartService struct {
	Carts       repository.Repository[models.Cart]
	Publisher   Publisher
	DeliveryFee int64
}

func NewCartService(carts repository.Repository[models.Cart], publisher Publisher, deliveryFee int64) *CartService {
	return &CartService{
		Carts:       carts,
		Publisher:   publisher,
		DeliveryFee: deliveryFee,
	}
}

func (s *CartService) GetCart(ctx context.Context, customerId string) (models.Cart, error) {
	cart, err := s.Carts.Load(ctx, customerId)
	if err != nil {
		return models.Cart{}, svcerror.AddOp(err, "CartService.GetCart")
	}
	return cart, nil
}

// AddItem appends an item, creating the cart lazily on first use. A cart
// holds items from exactly one restaurant; mixing restaurants is rejected so
// checkout always maps to a single order.
func (s *CartService) AddItem(ctx context.Context, customerId string, req models.AddItemRequest) (models.Cart, error) {
	cart, err := s.Carts.Load(ctx, customerId)
	if err != nil {
		if !errors.Is(err, svcerror.ErrNotFound) {
			return models.Cart{}, svcerror.AddOp(err, "CartService.AddItem")
		}
		cart = models.Cart{
			CartId:           uuid.NewString(),
			CustomerId:       customerId,
			RestaurantId:     req.RestaurantId,
			DeliveryFeeCents: s.DeliveryFee,
			Currency:         req.Currency,
		}
	}

	if cart.RestaurantId != req.RestaurantId {
		return models.Cart{}, svcerror.New(
			svcerror.ErrValidationError,
			svcerror.WithOp("CartService.AddItem"),
			svcerror.WithMsg(fmt.Sprintf("cart already holds items from restaurant %s", cart.RestaurantId)),
		)
	}

	merged := false
	for i, item := range cart.Items {
		if item.MenuItemId == req.MenuItemId {
			cart.Items[i].Quantity += req.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, models.OrderItem{
			MenuItemId: req.MenuItemId,
			Name:       req.Name,
			PriceCents: req.PriceCents,
			Currency:   req.Currency,
			Quantity:   req.Quantity,
		})
	}
	cart.UpdatedAt = time.Now().UTC()

	if err := s.Carts.Save(ctx, cart); err != nil {
		return models.Cart{}, svcerror.AddOp(err, "CartService.AddItem")
	}
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, customerId, menuItemId string) (models.Cart, error) {
	cart, err := s.Carts.Load(ctx, customerId)
	if err != nil {
		return models.Cart{}, svcerror.AddOp(err, "CartService.RemoveItem")
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.MenuItemId != menuItemId {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	cart.UpdatedAt = time.Now().UTC()

	if len(cart.Items) == 0 {
		if err := s.Carts.Delete(ctx, customerId); err != nil {
			return models.Cart{}, svcerror.AddOp(err, "CartService.RemoveItem")
		}
		return cart, nil
	}

	if err := s.Carts.Save(ctx, cart); err != nil {
		return models.Cart{}, svcerror.AddOp(err, "CartService.RemoveItem")
	}
	return cart, nil
}

// Checkout publishes the cart's snapshot and deletes the cart. The publish
// happens first: losing a cart that never became an order is worse than a
// customer re-checking-out an already deleted cart.
func (s *CartService) Checkout(ctx context.Context, customerId, deliveryAddress string) (events.EventCartOrdered, error) {
	cart, err := s.Carts.Load(ctx, customerId)
	if err != nil {
		return events.EventCartOrdered{}, svcerror.AddOp(err, "CartService.Checkout")
	}
	if len(cart.Items) == 0 {
		return events.EventCartOrdered{}, svcerror.New(
			svcerror.ErrValidationError,
			svcerror.WithOp("CartService.Checkout"),
			svcerror.WithMsg("cannot check out an empty cart"),
		)
	}
	if deliveryAddress == "" {
		deliveryAddress = cart.DeliveryAddress
	}
	if deliveryAddress == "" {
		return events.EventCartOrdered{}, svcerror.New(
			svcerror.ErrValidationError,
			svcerror.WithOp("CartService.Checkout"),
			svcerror.WithMsg("delivery address is required"),
		)
	}

	evt := events.EventCartOrdered{
		Metadata: events.Metadata{
			MessageId:     uuid.NewString(),
			Type:          events.EvtTypeCartOrdered,
			OrderId:       cart.CartId,
			CorrelationId: cart.CartId,
			Timestamp:     time.Now().UTC(),
			Producer:      events.ProducerCartSvc,
		},
		CartId:           cart.CartId,
		CustomerId:       cart.CustomerId,
		RestaurantId:     cart.RestaurantId,
		Items:            cart.Items,
		DeliveryAddress:  deliveryAddress,
		// the order total is the item total; the fee travels separately
		AmountCents:      cart.TotalCents(),
		DeliveryFeeCents: cart.DeliveryFeeCents,
		Currency:         cart.Currency,
	}

	if err := s.Publisher.PublishAll(ctx, []events.DomainEvent{evt}); err != nil {
		return events.EventCartOrdered{}, svcerror.AddOp(err, "CartService.Checkout")
	}

	if err := s.Carts.Delete(ctx, customerId); err != nil {
		log.Printf("[CART] Failed to delete cart %s after checkout: %v", cart.CartId, err)
	}

	return evt, nil
}
