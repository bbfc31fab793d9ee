package events

import (
	"github.com/benko325/delivery-platform/pkg/models"
)

// EventCartOrdered is the fact a cart was checked out. It carries the full
// item/address/amount snapshot; the cart itself is deleted right after, so
// this event is the only record the order context gets.
// Metadata.OrderId holds the cart id until the order aggregate mints its own.
type EventCartOrdered struct {
	Metadata         Metadata           `json:"mtdt"`
	CartId           string             `json:"cart_id"`
	CustomerId       string             `json:"customer_id"`
	RestaurantId     string             `json:"restaurant_id"`
	Items            []models.OrderItem `json:"items"`
	DeliveryAddress  string             `json:"delivery_address"`
	AmountCents      int64              `json:"amount_cents"`
	DeliveryFeeCents int64              `json:"delivery_fee_cents"`
	Currency         string             `json:"currency"`
}

func (co EventCartOrdered) GetMetadata() Metadata { return co.Metadata }
