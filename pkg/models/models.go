package models

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	ORDER_STATUS_PENDING           OrderStatus = "pending"
	ORDER_STATUS_PAYMENT_SUCCEEDED OrderStatus = "payment_succeeded"
	ORDER_STATUS_CONFIRMED         OrderStatus = "confirmed"
	ORDER_STATUS_PREPARING         OrderStatus = "preparing"
	ORDER_STATUS_READY_FOR_PICKUP  OrderStatus = "ready_for_pickup"
	ORDER_STATUS_IN_TRANSIT        OrderStatus = "in_transit"
	ORDER_STATUS_DELIVERED         OrderStatus = "delivered"
	ORDER_STATUS_CANCELLED         OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case ORDER_STATUS_PENDING, ORDER_STATUS_PAYMENT_SUCCEEDED, ORDER_STATUS_CONFIRMED,
		ORDER_STATUS_PREPARING, ORDER_STATUS_READY_FOR_PICKUP, ORDER_STATUS_IN_TRANSIT,
		ORDER_STATUS_DELIVERED, ORDER_STATUS_CANCELLED:
		return true
	default:
		return false
	}
}

// OrderItem is a value object frozen into the order at creation.
type OrderItem struct {
	MenuItemId string `json:"menu_item_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
	Quantity   int64  `json:"quantity"`
}

type Order struct {
	OrderId               string      `json:"order_id"`
	CustomerId            string      `json:"customer_id"`
	RestaurantId          string      `json:"restaurant_id"`
	DriverId              string      `json:"driver_id,omitempty"`
	Items                 []OrderItem `json:"items"`
	DeliveryAddress       string      `json:"delivery_address"`
	Status                OrderStatus `json:"status"`
	AmountCents           int64       `json:"amount_cents"`
	DeliveryFeeCents      int64       `json:"delivery_fee_cents"`
	Currency              string      `json:"currency"`
	EstimatedDeliveryTime *time.Time  `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    *time.Time  `json:"actual_delivery_time,omitempty"`
	CancelledAt           *time.Time  `json:"cancelled_at,omitempty"`
	CancellationReason    string      `json:"cancellation_reason,omitempty"`
	Version               int64       `json:"version"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// Cart holds a customer's pre-checkout selection. It is deleted on checkout;
// the order becomes the durable record.
type Cart struct {
	CartId           string      `json:"cart_id"`
	CustomerId       string      `json:"customer_id"`
	RestaurantId     string      `json:"restaurant_id"`
	Items            []OrderItem `json:"items"`
	DeliveryAddress  string      `json:"delivery_address"`
	DeliveryFeeCents int64       `json:"delivery_fee_cents"`
	Currency         string      `json:"currency"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (c Cart) TotalCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.PriceCents * item.Quantity
	}
	return total
}

func (c Cart) MarshalBinary() ([]byte, error) { return json.Marshal(c) }
func (c *Cart) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, c) }

type PaymentDetails struct {
	OrderId     string `json:"order_id"`
	CustomerId  string `json:"customer_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type PaymentResult struct {
	Success          bool   `json:"success"`
	OrderId          string `json:"order_id"`
	CustomerId       string `json:"customer_id"`
	PaymentRequestId string `json:"payment_request_id"`
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency"`
	FailureReason    string `json:"reason,omitempty"`
}

type Outbox struct {
	Id        string `json:"id"`
	Key       string `json:"key"`
	EventType string `json:"event_type"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
}

// PrepTicket tracks a confirmed order through the restaurant's kitchen.
type PrepTicket struct {
	OrderId   string        `json:"order_id"`
	PrepTime  time.Duration `json:"prep_time"`
	StartedAt time.Time     `json:"started_at"`
}

// SeenMessage is the notification context's duplicate-delivery marker.
type SeenMessage struct {
	MessageId string    `json:"message_id"`
	SeenAt    time.Time `json:"seen_at"`
}

func (m SeenMessage) MarshalBinary() ([]byte, error) { return json.Marshal(m) }
func (m *SeenMessage) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, m) }

// API shapes

type OrderResponse struct {
	OrderId       string `json:"order_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type CheckoutRequest struct {
	DeliveryAddress string `json:"delivery_address"`
}

type AddItemRequest struct {
	RestaurantId string `json:"restaurant_id" binding:"required"`
	MenuItemId   string `json:"menu_item_id" binding:"required"`
	Name         string `json:"name" binding:"required"`
	PriceCents   int64  `json:"price_cents" binding:"required,gt=0"`
	Currency     string `json:"currency" binding:"required"`
	Quantity     int64  `json:"quantity" binding:"required,gt=0"`
}

type AcceptOrderRequest struct {
	DriverId   string `json:"driver_id" binding:"required"`
	EtaMinutes int64  `json:"eta_minutes" binding:"required,gt=0"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type RejectOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}
