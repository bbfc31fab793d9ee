// Package acl is the anti-corruption layer of the orders context. It is the
// only place the raw shape of another context's events is referenced: each
// mapper translates an inbound payload into a locally-owned mapped event and
// re-publishes it on the in-process dispatcher. Policy handlers depend on the
// mapped types alone, so schema drift in a producer stays contained here.
package acl

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/benko325/delivery-platform/pkg/events"
)

// Absent marks an optional field the mapper could not extract. Downstream
// policy handlers decide whether absence is fatal to their own operation.
const Absent = "unknown"

// Mapped event types live on the local dispatcher only; they are never
// forwarded to the broker.
const (
	MappedTypeCartOrdered        events.EventType = "orders.CartOrdered"
	MappedTypeRestaurantDecision events.EventType = "orders.RestaurantDecision"
	MappedTypePreparationUpdate  events.EventType = "orders.PreparationUpdate"
)

// decode parses a raw payload into a navigable document plus its envelope.
func decode(raw []byte) (map[string]any, events.Metadata, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, events.Metadata{}, err
	}
	var env events.EventEnvelope
	_ = json.Unmarshal(raw, &env)
	return doc, env.Metadata, nil
}

// stringAt tries each dotted path in order and returns the first string hit.
// Producers are deployed independently, so an identifier may sit top-level,
// nested, or under an aliased key depending on the producer's version.
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
			switch n := v.(type) {
			case float64:
				return int64(n), true
			case json.Number:
				if i, err := n.Int64(); err == nil {
					return i, true
				}
			}
		}
	}
	return 0, false
}

func listAt(doc map[string]any, paths ...string) ([]any, bool) {
	for _, path := range paths {
		if v, ok := valueAt(doc, path); ok {
			if l, ok := v.([]any); ok {
				return l, true
			}
		}
	}
	return nil, false
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

// mappedMetadata keeps the origin message id so the processed-event ledger
// dedups on the broker's delivery identity, not on a freshly minted one.
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
