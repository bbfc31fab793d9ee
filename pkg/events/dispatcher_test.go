package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusChanged(orderId string) EventOrderStatusChanged {
	return EventOrderStatusChanged{
		Metadata: Metadata{
			MessageId:     "msg-1",
			Type:          EvtTypeOrderStatusChanged,
			OrderId:       orderId,
			CorrelationId: orderId,
			Timestamp:     time.Now().UTC(),
			Producer:      ProducerOrderSvc,
		},
		PreviousStatus: "pending",
		NewStatus:      "payment_succeeded",
	}
}

func TestDispatcher_TypedRoundTrip(t *testing.T) {
	d := NewDispatcher()

	var got EventOrderStatusChanged
	Register(d, EvtTypeOrderStatusChanged, func(evt EventOrderStatusChanged) error {
		got = evt
		return nil
	})

	require.NoError(t, d.Publish(statusChanged("order-1")))

	assert.Equal(t, "order-1", got.Metadata.OrderId)
	assert.Equal(t, "payment_succeeded", got.NewStatus)
}

func TestDispatcher_SubscribersRunInRegistrationOrder(t *testing.T) {
	d := NewDispatcher()

	var order []string
	Register(d, EvtTypeOrderStatusChanged, func(EventOrderStatusChanged) error {
		order = append(order, "first")
		return nil
	})
	Register(d, EvtTypeOrderStatusChanged, func(EventOrderStatusChanged) error {
		order = append(order, "second")
		return nil
	})

	require.NoError(t, d.Publish(statusChanged("order-1")))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatcher_UnknownTypeIsNoOp(t *testing.T) {
	d := NewDispatcher()

	err := d.Publish(statusChanged("order-1"))

	require.NoError(t, err)
}

func TestDispatcher_AllSubscribersRunDespiteFailures(t *testing.T) {
	d := NewDispatcher()

	failing := assert.AnError
	var secondRan bool
	Register(d, EvtTypeOrderStatusChanged, func(EventOrderStatusChanged) error {
		return failing
	})
	Register(d, EvtTypeOrderStatusChanged, func(EventOrderStatusChanged) error {
		secondRan = true
		return nil
	})

	err := d.Publish(statusChanged("order-1"))

	require.Error(t, err)
	assert.ErrorIs(t, err, failing)
	assert.True(t, secondRan, "one failing subscriber must not starve the rest")
}

func TestDispatcher_RawHandlerSeesUndecodedPayload(t *testing.T) {
	d := NewDispatcher()

	var raw []byte
	d.RegisterRaw(EvtTypeCartOrdered, func(payload []byte) error {
		raw = payload
		return nil
	})

	payload := []byte(`{"mtdt": {"type": "CartOrderedEvent", "order_id": "cart-1"}, "weird_field": 42}`)
	require.NoError(t, d.Dispatch(payload))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, float64(42), doc["weird_field"])
}

func TestDispatcher_RejectsMalformedEnvelope(t *testing.T) {
	d := NewDispatcher()

	err := d.Dispatch([]byte(`{`))

	require.Error(t, err)
}
