package handler

import (
	"context"
	"testing"
	"time"

	"github.com/benko325/delivery-platform/cmd/notifications/server/notifier"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	sent []notifier.Notification
}

func (r *recordingNotifier) Send(ctx context.Context, n notifier.Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *recordingNotifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	seen, err := repository.NewRedisCache(context.Background(), repository.RedisConfig{Address: mr.Addr()},
		time.Hour, func(m models.SeenMessage) string { return m.MessageId })
	require.NoError(t, err)

	rec := &recordingNotifier{}
	return NewHandler(rec, seen), rec
}

func statusChangedPayload(messageId, orderId, newStatus, reason string) []byte {
	payload := `{
		"mtdt": {"message_id": "` + messageId + `", "type": "OrderStatusChangedEvent", "order_id": "` + orderId + `", "producer": "order-svc"},
		"previous_status": "pending",
		"new_status": "` + newStatus + `"`
	if reason != "" {
		payload += `, "reason": "` + reason + `"`
	}
	return []byte(payload + `}`)
}

func TestStatusChange_NotifiesCustomer(t *testing.T) {
	h, rec := newTestHandler(t)

	err := h.Dispatcher.Dispatch(statusChangedPayload("msg-1", "order-1", "confirmed", ""))

	require.NoError(t, err)
	require.Len(t, rec.sent, 1)
	assert.Equal(t, notifier.RecipientCustomer, rec.sent[0].Recipient)
	assert.Equal(t, "order-1", rec.sent[0].OrderId)
	assert.Contains(t, rec.sent[0].Body, "confirmed")
}

func TestCancellation_IncludesReason(t *testing.T) {
	h, rec := newTestHandler(t)

	err := h.Dispatcher.Dispatch(statusChangedPayload("msg-1", "order-1", "cancelled", "Payment failed: Card declined"))

	require.NoError(t, err)
	require.Len(t, rec.sent, 1)
	assert.Contains(t, rec.sent[0].Body, "Payment failed: Card declined")
}

func TestPaymentSucceeded_NotifiesRestaurant(t *testing.T) {
	h, rec := newTestHandler(t)

	payload := []byte(`{
		"mtdt": {"message_id": "msg-2", "type": "PaymentSucceededEvent", "order_id": "order-1", "producer": "order-svc"},
		"amount_cents": 1597,
		"currency": "USD",
		"success": true
	}`)

	require.NoError(t, h.Dispatcher.Dispatch(payload))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, notifier.RecipientRestaurant, rec.sent[0].Recipient)
}

func TestDuplicateDelivery_SendsOnce(t *testing.T) {
	h, rec := newTestHandler(t)
	payload := statusChangedPayload("msg-1", "order-1", "confirmed", "")

	require.NoError(t, h.Dispatcher.Dispatch(payload))
	require.NoError(t, h.Dispatcher.Dispatch(payload))

	assert.Len(t, rec.sent, 1, "redelivered messages must not double-notify")
}

func TestMissingFields_AreDroppedSilently(t *testing.T) {
	h, rec := newTestHandler(t)

	payload := []byte(`{"mtdt": {"message_id": "msg-3", "type": "OrderStatusChangedEvent"}}`)

	require.NoError(t, h.Dispatcher.Dispatch(payload))
	assert.Empty(t, rec.sent)
}
