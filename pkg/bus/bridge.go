// Package bus bridges the in-process event dispatcher and the durable broker.
// A published event is seen twice: synchronously by local subscribers, in
// apply-order, and asynchronously by other contexts via Kafka. Inbound broker
// messages are injected back into the local dispatcher so mappers and policy
// handlers treat local and cross-context events identically.
package bus

import (
	"context"
	"encoding/json"
	"log"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/kafka"
)

// Forwarder moves a serialized event towards the broker. The direct
// implementation writes straight to Kafka; the orders payment leg forwards
// through the outbox so a crash between handler and publish loses nothing.
type Forwarder interface {
	Forward(ctx context.Context, key string, payload []byte) error
}

type DirectForwarder struct {
	Producer *kafka.Producer
	Topic    string
}

func (f *DirectForwarder) Forward(ctx context.Context, key string, payload []byte) error {
	return f.Producer.PublishEvent(ctx, kafka.EventMessage{
		Topic: f.Topic,
		Key:   key,
		Event: payload,
	})
}

type Bridge struct {
	Local     *events.Dispatcher
	Forwarder Forwarder
}

func NewBridge(local *events.Dispatcher, forwarder Forwarder) *Bridge {
	return &Bridge{Local: local, Forwarder: forwarder}
}

// NewLocalBridge dispatches to in-process subscribers only. The orders
// context uses it: its events are already durable as outbox rows written in
// the same transaction as the state change, so nothing is forwarded here.
func NewLocalBridge(local *events.Dispatcher) *Bridge {
	return &Bridge{Local: local}
}

// Publish dispatches the event to local subscribers first, then hands it to
// the forwarder. Local handler failures cannot roll back the caller's
// already-committed state: retriable ones are recovered by the broker
// redelivery path, so both kinds are logged here and absorbed.
func (b *Bridge) Publish(ctx context.Context, evt events.DomainEvent) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return svcerror.New(
			svcerror.ErrInternalError,
			svcerror.WithOp("Bridge.Publish"),
			svcerror.WithMsg("marshal event"),
			svcerror.WithCause(err),
		)
	}

	if err := b.Local.Dispatch(raw); err != nil {
		if svcerror.Retriable(err) {
			log.Printf("[BUS] Local handler failed (will retry via broker): %+v", err)
		} else {
			log.Printf("[BUS] Local handler failed (terminal): %+v", err)
		}
	}

	if b.Forwarder == nil {
		return nil
	}
	md := evt.GetMetadata()
	if err := b.Forwarder.Forward(ctx, md.OrderId, raw); err != nil {
		return svcerror.AddOp(err, "Bridge.Publish")
	}
	return nil
}

// PublishAll forwards a commit's pending events in apply-order.
func (b *Bridge) PublishAll(ctx context.Context, evts []events.DomainEvent) error {
	for _, evt := range evts {
		if err := b.Publish(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Inject re-enters an inbound broker message into the local dispatcher.
func (b *Bridge) Inject(ctx context.Context, message kafka.KafkaMessage) error {
	return b.Local.Dispatch(message.Value)
}
