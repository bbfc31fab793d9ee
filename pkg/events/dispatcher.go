package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

type TypedHandler func(raw []byte) error

// Dispatcher is the in-process half of the event bus. Subscribers run
// synchronously, in registration order, and see every event exactly as the
// broker would deliver it (a JSON payload with an envelope).
type Dispatcher struct {
	Handlers map[EventType][]TypedHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{Handlers: make(map[EventType][]TypedHandler)}
}

func Register[T DomainEvent](d *Dispatcher, et EventType, handler func(T) error) {
	d.Handlers[et] = append(d.Handlers[et], func(raw []byte) error {
		var evt T
		if err := json.Unmarshal(raw, &evt); err != nil {
			return fmt.Errorf("Failed to unmarshal %s: %w", et, err)
		}
		return handler(evt)
	})
	log.Printf("[DISPATCHER] Registered handler for %s", string(et))
}

// RegisterRaw subscribes a handler to the undecoded payload. Anti-corruption
// mappers use this: the raw shape belongs to the producing context and must
// not leak past the mapper.
func (d *Dispatcher) RegisterRaw(et EventType, handler TypedHandler) {
	d.Handlers[et] = append(d.Handlers[et], handler)
	log.Printf("[DISPATCHER] Registered raw handler for %s", string(et))
}

func (d *Dispatcher) Dispatch(raw []byte) error {
	var env EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("Failed to unmarshal value: %w", err)
	}

	log.Printf("[DISPATCHER] Handling order=%s type=%s producer=%s", env.Metadata.OrderId, env.Metadata.Type, env.Metadata.Producer)
	handlers, ok := d.Handlers[env.Metadata.Type]
	if !ok {
		log.Printf("[DISPATCHER] No handler found for %s", env.Metadata.Type)
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publish marshals a locally raised event and dispatches it to in-process
// subscribers only. Nothing is forwarded to the broker from here.
func (d *Dispatcher) Publish(evt DomainEvent) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("Failed to marshal %s: %w", evt.GetMetadata().Type, err)
	}
	return d.Dispatch(raw)
}
