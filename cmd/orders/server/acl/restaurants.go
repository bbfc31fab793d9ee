package acl

import (
	"github.com/benko325/delivery-platform/pkg/events"
)

// RestaurantDecision is the orders context's view of a confirm/reject.
type RestaurantDecision struct {
	Metadata events.Metadata `json:"mtdt"`
	OrderId  string          `json:"order_id"`
	Reason   string          `json:"reason"`
	Accepted bool            `json:"accepted"`
}

func (rd RestaurantDecision) GetMetadata() events.Metadata { return rd.Metadata }

// PreparationUpdate is the orders context's view of the kitchen leg:
// preparation started, or the order became ready for pickup.
type PreparationUpdate struct {
	Metadata events.Metadata `json:"mtdt"`
	OrderId  string          `json:"order_id"`
	Ready    bool            `json:"ready"`
}

func (pu PreparationUpdate) GetMetadata() events.Metadata { return pu.Metadata }

// RestaurantMapper translates the restaurant context's decision and
// preparation events.
type RestaurantMapper struct {
	Local *events.Dispatcher
}

func NewRestaurantMapper(local *events.Dispatcher) *RestaurantMapper {
	m := &RestaurantMapper{Local: local}
	local.RegisterRaw(events.EvtTypeOrderConfirmedByRestaurant, func(raw []byte) error { return m.MapDecision(raw, true) })
	local.RegisterRaw(events.EvtTypeOrderRejectedByRestaurant, func(raw []byte) error { return m.MapDecision(raw, false) })
	local.RegisterRaw(events.EvtTypeOrderPreparationStarted, func(raw []byte) error { return m.MapPreparation(raw, false) })
	local.RegisterRaw(events.EvtTypeOrderReadyForPickup, func(raw []byte) error { return m.MapPreparation(raw, true) })
	return m
}

func (m *RestaurantMapper) MapDecision(raw []byte, accepted bool) error {
	doc, origin, err := decode(raw)
	if err != nil {
		warnGap("RestaurantMapper", "payload", origin)
		return nil
	}

	mapped := RestaurantDecision{
		Metadata: mappedMetadata(origin, MappedTypeRestaurantDecision),
		OrderId:  Absent,
		Accepted: accepted,
	}

	if v, ok := stringAt(doc, "mtdt.order_id", "order_id", "orderId", "order.id"); ok {
		mapped.OrderId = v
		mapped.Metadata.OrderId = v
	} else {
		warnGap("RestaurantMapper", "order_id", origin)
	}
	if v, ok := stringAt(doc, "reason", "rejection_reason", "message"); ok {
		mapped.Reason = v
	}

	return m.Local.Publish(mapped)
}

func (m *RestaurantMapper) MapPreparation(raw []byte, ready bool) error {
	doc, origin, err := decode(raw)
	if err != nil {
		warnGap("RestaurantMapper", "payload", origin)
		return nil
	}

	mapped := PreparationUpdate{
		Metadata: mappedMetadata(origin, MappedTypePreparationUpdate),
		OrderId:  Absent,
		Ready:    ready,
	}

	if v, ok := stringAt(doc, "mtdt.order_id", "order_id", "orderId"); ok {
		mapped.OrderId = v
		mapped.Metadata.OrderId = v
	} else {
		warnGap("RestaurantMapper", "order_id", origin)
	}

	return m.Local.Publish(mapped)
}
