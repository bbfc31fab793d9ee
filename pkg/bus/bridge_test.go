package bus

import (
	"context"
	"encoding/json"
	"testing"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingForwarder struct {
	keys     []string
	payloads [][]byte
	fail     error
}

func (f *recordingForwarder) Forward(ctx context.Context, key string, payload []byte) error {
	if f.fail != nil {
		return f.fail
	}
	f.keys = append(f.keys, key)
	f.payloads = append(f.payloads, payload)
	return nil
}

func created(orderId, messageId string) events.EventOrderCreated {
	return events.EventOrderCreated{
		Metadata: events.Metadata{
			MessageId:     messageId,
			Type:          events.EvtTypeOrderCreated,
			OrderId:       orderId,
			CorrelationId: orderId,
			Producer:      events.ProducerOrderSvc,
		},
	}
}

func TestBridge_LocalSubscribersSeeEventBeforeForwarding(t *testing.T) {
	local := events.NewDispatcher()
	fwd := &recordingForwarder{}
	bridge := NewBridge(local, fwd)

	var localSeen []string
	events.Register(local, events.EvtTypeOrderCreated, func(evt events.EventOrderCreated) error {
		localSeen = append(localSeen, evt.Metadata.MessageId)
		return nil
	})

	require.NoError(t, bridge.Publish(context.Background(), created("order-1", "msg-1")))

	assert.Equal(t, []string{"msg-1"}, localSeen)
	require.Len(t, fwd.keys, 1)
	assert.Equal(t, "order-1", fwd.keys[0], "broker messages must be keyed by order id")
}

func TestBridge_LocalHandlerFailureIsAbsorbed(t *testing.T) {
	local := events.NewDispatcher()
	fwd := &recordingForwarder{}
	bridge := NewBridge(local, fwd)

	events.Register(local, events.EvtTypeOrderCreated, func(events.EventOrderCreated) error {
		return svcerror.Newf(svcerror.ErrDatabaseError, "connection refused")
	})

	err := bridge.Publish(context.Background(), created("order-1", "msg-1"))

	require.NoError(t, err, "the broker redelivery path recovers local failures")
	assert.Len(t, fwd.keys, 1, "the event must still reach the broker")
}

func TestBridge_LocalBridgeDispatchesWithoutForwarding(t *testing.T) {
	local := events.NewDispatcher()
	bridge := NewLocalBridge(local)

	var localSeen []string
	events.Register(local, events.EvtTypeOrderCreated, func(evt events.EventOrderCreated) error {
		localSeen = append(localSeen, evt.Metadata.MessageId)
		return nil
	})

	require.NoError(t, bridge.Publish(context.Background(), created("order-1", "msg-1")))
	assert.Equal(t, []string{"msg-1"}, localSeen)
}

func TestBridge_ForwarderFailurePropagates(t *testing.T) {
	local := events.NewDispatcher()
	fwd := &recordingForwarder{fail: svcerror.Newf(svcerror.ErrPublishError, "broker down")}
	bridge := NewBridge(local, fwd)

	err := bridge.Publish(context.Background(), created("order-1", "msg-1"))

	require.Error(t, err)
	assert.ErrorIs(t, err, svcerror.ErrPublishError)
}

func TestBridge_PublishAllKeepsApplyOrder(t *testing.T) {
	local := events.NewDispatcher()
	fwd := &recordingForwarder{}
	bridge := NewBridge(local, fwd)

	evts := []events.DomainEvent{
		created("order-1", "msg-1"),
		created("order-1", "msg-2"),
		created("order-1", "msg-3"),
	}

	require.NoError(t, bridge.PublishAll(context.Background(), evts))

	require.Len(t, fwd.payloads, 3)
	for i, payload := range fwd.payloads {
		var env events.EventEnvelope
		require.NoError(t, json.Unmarshal(payload, &env))
		assert.Equal(t, evts[i].GetMetadata().MessageId, env.Metadata.MessageId)
	}
}

func TestBridge_RoundTripThroughWireFormat(t *testing.T) {
	producerSide := events.NewDispatcher()
	producerFwd := &recordingForwarder{}
	producerBridge := NewBridge(producerSide, producerFwd)

	require.NoError(t, producerBridge.Publish(context.Background(), created("order-1", "msg-1")))
	require.Len(t, producerFwd.payloads, 1)

	consumerSide := events.NewDispatcher()
	consumerBridge := NewBridge(consumerSide, &recordingForwarder{})

	var got events.EventOrderCreated
	events.Register(consumerSide, events.EvtTypeOrderCreated, func(evt events.EventOrderCreated) error {
		got = evt
		return nil
	})

	require.NoError(t, consumerBridge.Local.Dispatch(producerFwd.payloads[0]))
	assert.Equal(t, "msg-1", got.Metadata.MessageId)
	assert.Equal(t, "order-1", got.Metadata.OrderId)
}
