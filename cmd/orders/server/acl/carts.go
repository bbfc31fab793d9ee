package acl

import (
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/models"
)

// CartOrdered is the orders context's own view of a cart checkout. Fields the
// mapper could not extract hold Absent (strings) or zero (amounts); the
// create-order policy decides which gaps are fatal.
type CartOrdered struct {
	Metadata         events.Metadata    `json:"mtdt"`
	CartId           string             `json:"cart_id"`
	CustomerId       string             `json:"customer_id"`
	RestaurantId     string             `json:"restaurant_id"`
	Items            []models.OrderItem `json:"items"`
	DeliveryAddress  string             `json:"delivery_address"`
	AmountCents      int64              `json:"amount_cents"`
	DeliveryFeeCents int64              `json:"delivery_fee_cents"`
	Currency         string             `json:"currency"`
}

func (co CartOrdered) GetMetadata() events.Metadata { return co.Metadata }

// CartMapper translates the cart context's checkout fact. It never fails on
// partially-shaped input: every gap is logged and surfaced as Absent.
type CartMapper struct {
	Local *events.Dispatcher
}

func NewCartMapper(local *events.Dispatcher) *CartMapper {
	m := &CartMapper{Local: local}
	local.RegisterRaw(events.EvtTypeCartOrdered, m.Map)
	return m
}

func (m *CartMapper) Map(raw []byte) error {
	doc, origin, err := decode(raw)
	if err != nil {
		// not even JSON; nothing downstream can use this
		warnGap("CartMapper", "payload", origin)
		return nil
	}

	mapped := CartOrdered{
		Metadata:         mappedMetadata(origin, MappedTypeCartOrdered),
		CartId:           Absent,
		CustomerId:       Absent,
		RestaurantId:     Absent,
		DeliveryAddress:  Absent,
		Currency:         Absent,
	}

	if v, ok := stringAt(doc, "cart_id", "cartId", "cart.id"); ok {
		mapped.CartId = v
	} else {
		warnGap("CartMapper", "cart_id", origin)
	}
	if v, ok := stringAt(doc, "customer_id", "customerId", "customer.id"); ok {
		mapped.CustomerId = v
	} else {
		warnGap("CartMapper", "customer_id", origin)
	}
	if v, ok := stringAt(doc, "restaurant_id", "restaurantId", "restaurant.id"); ok {
		mapped.RestaurantId = v
	} else {
		warnGap("CartMapper", "restaurant_id", origin)
	}
	if v, ok := stringAt(doc, "delivery_address", "deliveryAddress", "address", "delivery.address"); ok {
		mapped.DeliveryAddress = v
	} else {
		warnGap("CartMapper", "delivery_address", origin)
	}
	if v, ok := stringAt(doc, "currency"); ok {
		mapped.Currency = v
	} else {
		warnGap("CartMapper", "currency", origin)
	}
	if v, ok := intAt(doc, "amount_cents", "amountCents", "total_cents", "amount"); ok {
		mapped.AmountCents = v
	} else {
		warnGap("CartMapper", "amount_cents", origin)
	}
	if v, ok := intAt(doc, "delivery_fee_cents", "deliveryFeeCents", "fee_cents"); ok {
		mapped.DeliveryFeeCents = v
	}

	mapped.Items = m.mapItems(doc, origin)

	return m.Local.Publish(mapped)
}

func (m *CartMapper) mapItems(doc map[string]any, origin events.Metadata) []models.OrderItem {
	rawItems, ok := listAt(doc, "items", "cart_items", "lines")
	if !ok {
		warnGap("CartMapper", "items", origin)
		return nil
	}

	items := make([]models.OrderItem, 0, len(rawItems))
	for _, entry := range rawItems {
		itemDoc, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := models.OrderItem{MenuItemId: Absent, Name: Absent, Currency: Absent}
		if v, ok := stringAt(itemDoc, "menu_item_id", "menuItemId", "id", "sku"); ok {
			item.MenuItemId = v
		}
		if v, ok := stringAt(itemDoc, "name", "title"); ok {
			item.Name = v
		}
		if v, ok := stringAt(itemDoc, "currency"); ok {
			item.Currency = v
		}
		if v, ok := intAt(itemDoc, "price_cents", "priceCents", "price"); ok {
			item.PriceCents = v
		}
		if v, ok := intAt(itemDoc, "quantity", "qty"); ok {
			item.Quantity = v
		}
		items = append(items, item)
	}
	return items
}
