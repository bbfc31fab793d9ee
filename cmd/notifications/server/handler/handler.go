// Package handler fans mapped notices out to the notifier. Notifications are
// best-effort: a failed send is logged and absorbed, never retried through the
// broker, so a flaky provider cannot wedge the order stream.
package handler

import (
	"context"
	"log"
	"time"

	"github.com/benko325/delivery-platform/cmd/notifications/server/acl"
	"github.com/benko325/delivery-platform/cmd/notifications/server/notifier"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/repository"
)

const seenKeyPrefix = "seen:"

type Handler struct {
	Notifier   notifier.Notifier
	Seen       repository.RedisCache[models.SeenMessage]
	Dispatcher *events.Dispatcher
}

func NewHandler(n notifier.Notifier, seen repository.RedisCache[models.SeenMessage]) *Handler {
	dispatcher := events.NewDispatcher()

	h := &Handler{
		Notifier:   n,
		Seen:       seen,
		Dispatcher: dispatcher,
	}

	acl.NewMapper(dispatcher)
	events.Register(dispatcher, acl.MappedTypeStatusNotice, h.OnStatusNotice)
	events.Register(dispatcher, acl.MappedTypePaymentNotice, h.OnPaymentNotice)

	return h
}

func (h *Handler) HandleMessage(ctx context.Context, message kafka.KafkaMessage) error {
	return h.Dispatcher.Dispatch(message.Value)
}

func (h *Handler) OnStatusNotice(evt acl.StatusNotice) error {
	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	if evt.OrderId == acl.Absent || evt.NewStatus == acl.Absent {
		log.Printf("[HANDLER] Dropping status notice with missing fields (message=%s)", evt.Metadata.MessageId)
		return nil
	}
	if !h.firstDelivery(ctx, evt.Metadata.MessageId) {
		return nil
	}

	body := "Your order is now " + evt.NewStatus + "."
	if evt.NewStatus == string(models.ORDER_STATUS_CANCELLED) && evt.Reason != "" {
		body = "Your order was cancelled: " + evt.Reason
	}

	h.deliver(ctx, notifier.Notification{
		Recipient:   notifier.RecipientCustomer,
		RecipientId: evt.OrderId,
		OrderId:     evt.OrderId,
		Subject:     "Order update",
		Body:        body,
	})
	return nil
}

func (h *Handler) OnPaymentNotice(evt acl.PaymentNotice) error {
	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	if evt.OrderId == acl.Absent {
		log.Printf("[HANDLER] Dropping payment notice with missing order id (message=%s)", evt.Metadata.MessageId)
		return nil
	}
	if !h.firstDelivery(ctx, evt.Metadata.MessageId) {
		return nil
	}

	h.deliver(ctx, notifier.Notification{
		Recipient:   notifier.RecipientRestaurant,
		RecipientId: evt.OrderId,
		OrderId:     evt.OrderId,
		Subject:     "New paid order",
		Body:        "A paid order is waiting for your confirmation.",
	})
	return nil
}

// firstDelivery claims the message id in redis. On a ledger error the message
// is treated as fresh: a duplicate notification beats a missing one.
func (h *Handler) firstDelivery(ctx context.Context, messageId string) bool {
	fresh, err := h.Seen.SetNX(ctx, models.SeenMessage{
		MessageId: seenKeyPrefix + messageId,
		SeenAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[HANDLER] Dedup check failed for %s: %v", messageId, err)
		return true
	}
	if !fresh {
		log.Printf("[HANDLER] Skipping duplicate notification for message %s", messageId)
	}
	return fresh
}

func (h *Handler) deliver(ctx context.Context, n notifier.Notification) {
	if err := h.Notifier.Send(ctx, n); err != nil {
		log.Printf("[HANDLER] Failed to send notification for order %s: %v", n.OrderId, err)
	}
}
