// Package acl is the restaurant context's anti-corruption layer. The kitchen
// only cares that an order moved to a new status; inbound order payloads are
// reduced to that locally-owned shape before any handler sees them.
package acl

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/benko325/delivery-platform/pkg/events"
)

const Absent = "unknown"

const MappedTypeKitchenOrder events.EventType = "restaurant.KitchenOrder"

// KitchenOrder is the kitchen's view of an order status change.
type KitchenOrder struct {
	Metadata  events.Metadata `json:"mtdt"`
	OrderId   string          `json:"order_id"`
	NewStatus string          `json:"new_status"`
}

func (ko KitchenOrder) GetMetadata() events.Metadata { return ko.Metadata }

type Mapper struct {
	Local *events.Dispatcher
}

func NewMapper(local *events.Dispatcher) *Mapper {
	m := &Mapper{Local: local}
	local.RegisterRaw(events.EvtTypeOrderStatusChanged, m.MapStatusChanged)
	return m
}

func (m *Mapper) MapStatusChanged(raw []byte) error {
	doc, origin, err := decode(raw)
	if err != nil {
		warnGap("Mapper", "payload", origin)
		return nil
	}

	mapped := KitchenOrder{
		Metadata:  mappedMetadata(origin, MappedTypeKitchenOrder),
		OrderId:   Absent,
		NewStatus: Absent,
	}

	if v, ok := stringAt(doc, "mtdt.order_id", "order_id", "orderId"); ok {
		mapped.OrderId = v
		mapped.Metadata.OrderId = v
	} else {
		warnGap("Mapper", "order_id", origin)
	}
	if v, ok := stringAt(doc, "new_status", "status", "newStatus"); ok {
		mapped.NewStatus = v
	} else {
		warnGap("Mapper", "new_status", origin)
	}

	return m.Local.Publish(mapped)
}

func decode(raw []byte) (map[string]any, events.Metadata, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, events.Metadata{}, err
	}
	var env events.EventEnvelope
	_ = json.Unmarshal(raw, &env)
	return doc, env.Metadata, nil
}

func stringAt(doc map[string]any, paths ...string) (string, bool) {
	for _, path := range paths {
		if v, ok := valueAt(doc, path); ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func valueAt(doc map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = doc
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func mappedMetadata(origin events.Metadata, mappedType events.EventType) events.Metadata {
	md := events.Metadata{
		MessageId:     origin.MessageId,
		Type:          mappedType,
		OrderId:       origin.OrderId,
		CorrelationId: origin.CorrelationId,
		CausationId:   origin.CausationId,
		Timestamp:     origin.Timestamp,
		Producer:      origin.Producer,
	}
	if md.Timestamp.IsZero() {
		md.Timestamp = time.Now().UTC()
	}
	return md
}

func warnGap(mapper, field string, origin events.Metadata) {
	log.Printf("[MAPPER] %s: could not extract %s (order=%s producer=%s), marking absent",
		mapper, field, origin.OrderId, origin.Producer)
}
