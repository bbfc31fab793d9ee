// Package acl is the notifications context's anti-corruption layer. Inbound
// order and payment payloads are reduced to two locally-owned notice shapes;
// the handlers never see the producers' raw schemas.
package acl

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/benko325/delivery-platform/pkg/events"
)

const Absent = "unknown"

const (
	MappedTypeStatusNotice  events.EventType = "notifications.StatusNotice"
	MappedTypePaymentNotice events.EventType = "notifications.PaymentNotice"
)

// StatusNotice is what the customer gets told about: the order moved.
type StatusNotice struct {
	Metadata  events.Metadata `json:"mtdt"`
	OrderId   string          `json:"order_id"`
	NewStatus string          `json:"new_status"`
	Reason    string          `json:"reason,omitempty"`
}

func (sn StatusNotice) GetMetadata() events.Metadata { return sn.Metadata }

// PaymentNotice is what the restaurant gets told about: a paid order is
// waiting for its decision.
type PaymentNotice struct {
	Metadata    events.Metadata `json:"mtdt"`
	OrderId     string          `json:"order_id"`
	AmountCents int64           `json:"amount_cents"`
	Currency    string          `json:"currency"`
}

func (pn PaymentNotice) GetMetadata() events.Metadata { return pn.Metadata }

type Mapper struct {
	Local *events.Dispatcher
}

func NewMapper(local *events.Dispatcher) *Mapper {
	m := &Mapper{Local: local}
	local.RegisterRaw(events.EvtTypeOrderStatusChanged, m.MapStatusChanged)
	local.RegisterRaw(events.EvtTypePaymentSucceeded, m.MapPaymentSucceeded)
	return m
}

func (m *Mapper) MapStatusChanged(raw []byte) error {
	doc, origin, err := decode(raw)
	if err != nil {
		warnGap("Mapper", "payload", origin)
		return nil
	}

	mapped := StatusNotice{
		Metadata:  mappedMetadata(origin, MappedTypeStatusNotice),
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
	if v, ok := stringAt(doc, "reason", "cancellation_reason"); ok {
		mapped.Reason = v
	}

	return m.Local.Publish(mapped)
}

func (m *Mapper) MapPaymentSucceeded(raw []byte) error {
	doc, origin, err := decode(raw)
	if err != nil {
		warnGap("Mapper", "payload", origin)
		return nil
	}

	mapped := PaymentNotice{
		Metadata: mappedMetadata(origin, MappedTypePaymentNotice),
		OrderId:  Absent,
	}

	if v, ok := stringAt(doc, "mtdt.order_id", "order_id", "orderId"); ok {
		mapped.OrderId = v
		mapped.Metadata.OrderId = v
	} else {
		warnGap("Mapper", "order_id", origin)
	}
	if v, ok := intAt(doc, "amount_cents", "amount"); ok {
		mapped.AmountCents = v
	}
	if v, ok := stringAt(doc, "currency"); ok {
		mapped.Currency = v
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

func intAt(doc map[string]any, paths ...string) (int64, bool) {
	for _, path := range paths {
		if v, ok := valueAt(doc, path); ok {
			if n, ok := v.(float64); ok {
				return int64(n), true
			}
		}
	}
	return 0, false
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
