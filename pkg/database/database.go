package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Database struct {
	DB *pgxpool.Pool
}

// Init Database
func NewPGDatabase() *Database {
	dbConn, err := pgxpool.New(context.Background(), utils.GetEnv("PGSQL_URL", ""))
	if err != nil {
		panic(fmt.Errorf("Failed to connect to Postgres DB."))
	}

	return &Database{
		DB: dbConn,
	}
}

func (d *Database) Close() {
	d.DB.Close()
}

// ORDERS

// SaveOrder persists the order, its items and the outbox rows of the events
// it raised in one transaction: either the state change and its events both
// become durable or neither does.
func (d *Database) SaveOrder(ctx context.Context, order models.Order, outbox []models.Outbox) error {
	tx, err := d.DB.Begin(ctx)
	if err != nil {
		return d.wrap(err, "Database.SaveOrder")
	}
	defer tx.Rollback(ctx)

	orderQuery := `INSERT INTO orders(
					id, customer_id, restaurant_id, driver_id, delivery_address,
					status, amount_cents, delivery_fee_cents, currency,
					cancellation_reason, version, created_at, updated_at)
				   VALUES($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13);`
	if _, err := tx.Exec(ctx, orderQuery,
		order.OrderId, order.CustomerId, order.RestaurantId, order.DriverId,
		order.DeliveryAddress, string(order.Status), order.AmountCents,
		order.DeliveryFeeCents, order.Currency, order.CancellationReason,
		order.Version, order.CreatedAt, order.UpdatedAt); err != nil {
		return d.wrap(err, "Database.SaveOrder")
	}

	itemQuery := `INSERT INTO order_items(order_id, menu_item_id, name, price_cents, currency, quantity)
				  VALUES %s;`
	placeholders := []string{}
	values := []any{}

	for cnt, item := range order.Items {
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			1+cnt*6, 2+cnt*6, 3+cnt*6, 4+cnt*6, 5+cnt*6, 6+cnt*6))
		values = append(values, order.OrderId, item.MenuItemId, item.Name, item.PriceCents, item.Currency, item.Quantity)
	}
	itemQuery = fmt.Sprintf(itemQuery, strings.Join(placeholders, ","))

	if _, err := tx.Exec(ctx, itemQuery, values...); err != nil {
		return d.wrap(err, "Database.SaveOrder")
	}

	if err := d.saveOutboxTx(ctx, tx, outbox); err != nil {
		return svcerror.AddOp(err, "Database.SaveOrder")
	}

	return tx.Commit(ctx)
}

func (d *Database) GetOrder(ctx context.Context, orderId string) (models.Order, error) {
	query := `SELECT id, customer_id, restaurant_id, COALESCE(driver_id, ''), delivery_address,
					 status, amount_cents, delivery_fee_cents, currency,
					 estimated_delivery_time, actual_delivery_time,
					 cancelled_at, COALESCE(cancellation_reason, ''),
					 version, created_at, updated_at
			  FROM orders WHERE id = $1;`
	var order models.Order
	var status string
	row := d.DB.QueryRow(ctx, query, orderId)
	err := row.Scan(&order.OrderId, &order.CustomerId, &order.RestaurantId, &order.DriverId,
		&order.DeliveryAddress, &status, &order.AmountCents, &order.DeliveryFeeCents,
		&order.Currency, &order.EstimatedDeliveryTime, &order.ActualDeliveryTime,
		&order.CancelledAt, &order.CancellationReason,
		&order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order, svcerror.New(
				svcerror.ErrNotFound,
				svcerror.WithOp("Database.GetOrder"),
				svcerror.WithMsg(fmt.Sprintf("order %s not found", orderId)),
			)
		}
		return order, d.wrap(err, "Database.GetOrder")
	}
	order.Status = models.OrderStatus(status)

	itemQuery := `SELECT menu_item_id, name, price_cents, currency, quantity
				  FROM order_items WHERE order_id = $1;`
	rows, err := d.DB.Query(ctx, itemQuery, orderId)
	if err != nil {
		return order, d.wrap(err, "Database.GetOrder")
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.MenuItemId, &item.Name, &item.PriceCents, &item.Currency, &item.Quantity); err != nil {
			return order, d.wrap(err, "Database.GetOrder")
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

// GetOrdersByCustomer lists a customer's orders, newest first, without items.
func (d *Database) GetOrdersByCustomer(ctx context.Context, customerId string) ([]models.Order, error) {
	query := `SELECT id, customer_id, restaurant_id, COALESCE(driver_id, ''), delivery_address,
					 status, amount_cents, delivery_fee_cents, currency,
					 estimated_delivery_time, actual_delivery_time,
					 cancelled_at, COALESCE(cancellation_reason, ''),
					 version, created_at, updated_at
			  FROM orders WHERE customer_id = $1
			  ORDER BY created_at DESC;`
	rows, err := d.DB.Query(ctx, query, customerId)
	if err != nil {
		return nil, d.wrap(err, "Database.GetOrdersByCustomer")
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		var status string
		if err := rows.Scan(&order.OrderId, &order.CustomerId, &order.RestaurantId, &order.DriverId,
			&order.DeliveryAddress, &status, &order.AmountCents, &order.DeliveryFeeCents,
			&order.Currency, &order.EstimatedDeliveryTime, &order.ActualDeliveryTime,
			&order.CancelledAt, &order.CancellationReason,
			&order.Version, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, d.wrap(err, "Database.GetOrdersByCustomer")
		}
		order.Status = models.OrderStatus(status)
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateOrder persists a mutated order using compare-and-swap on the version
// counter, writing the raised events' outbox rows in the same transaction.
// A concurrent writer that got there first leaves this call with a retriable
// conflict instead of silently overwriting (no last-write-wins).
func (d *Database) UpdateOrder(ctx context.Context, order models.Order, outbox []models.Outbox) error {
	tx, err := d.DB.Begin(ctx)
	if err != nil {
		return d.wrap(err, "Database.UpdateOrder")
	}
	defer tx.Rollback(ctx)

	query := `UPDATE orders
			  SET status = $1, driver_id = NULLIF($2, ''),
				  estimated_delivery_time = $3, actual_delivery_time = $4,
				  cancelled_at = $5, cancellation_reason = NULLIF($6, ''),
				  version = version + 1, updated_at = $7
			  WHERE id = $8 AND version = $9;`
	tag, err := tx.Exec(ctx, query,
		string(order.Status), order.DriverId,
		order.EstimatedDeliveryTime, order.ActualDeliveryTime,
		order.CancelledAt, order.CancellationReason,
		time.Now().UTC(), order.OrderId, order.Version)
	if err != nil {
		return d.wrap(err, "Database.UpdateOrder")
	}

	if tag.RowsAffected() == 0 {
		if _, err := d.GetOrder(ctx, order.OrderId); err != nil {
			return svcerror.AddOp(err, "Database.UpdateOrder")
		}
		return svcerror.New(
			svcerror.ErrConflict,
			svcerror.WithOp("Database.UpdateOrder"),
			svcerror.WithMsg(fmt.Sprintf("order %s was updated concurrently (version %d is stale)", order.OrderId, order.Version)),
			svcerror.WithTime(time.Now().UTC()),
		)
	}

	if err := d.saveOutboxTx(ctx, tx, outbox); err != nil {
		return svcerror.AddOp(err, "Database.UpdateOrder")
	}

	return tx.Commit(ctx)
}

// OUTBOX

func (d *Database) saveOutboxTx(ctx context.Context, tx pgx.Tx, rows []models.Outbox) error {
	query := `INSERT INTO outbox(id, key, event_type, payload, topic)
			  VALUES ($1, $2, $3, $4, $5);`
	for _, row := range rows {
		if _, err := tx.Exec(ctx, query,
			row.Id, row.Key, row.EventType, row.Payload, row.Topic); err != nil {
			return d.wrap(err, "Database.saveOutboxTx")
		}
	}
	return nil
}

// SaveOutbox writes a single row outside any caller transaction; the payment
// leg uses it through the relay's Forward.
func (d *Database) SaveOutbox(ctx context.Context, outbox models.Outbox) error {
	query := `INSERT INTO outbox(id, key, event_type, payload, topic)
			  VALUES ($1, $2, $3, $4, $5);`
	_, err := d.DB.Exec(ctx, query,
		outbox.Id, outbox.Key, outbox.EventType, outbox.Payload, outbox.Topic,
	)
	if err != nil {
		return d.wrap(err, "Database.SaveOutbox")
	}
	return nil
}

func (d *Database) GetUnpublishedOutbox(ctx context.Context, limit int, topic string) ([]models.Outbox, error) {
	query := `SELECT id, key, event_type, payload
			  FROM outbox
			  WHERE published = FALSE AND topic = $1
			  ORDER BY created_at
			  LIMIT $2 FOR UPDATE SKIP LOCKED;`
	rows, err := d.DB.Query(ctx, query, topic, limit)
	if err != nil {
		return nil, d.wrap(err, "Database.GetUnpublishedOutbox")
	}
	defer rows.Close()

	var batch []models.Outbox
	for rows.Next() {
		var outbox models.Outbox
		if err := rows.Scan(&outbox.Id, &outbox.Key, &outbox.EventType, &outbox.Payload); err != nil {
			return nil, d.wrap(err, "Database.GetUnpublishedOutbox")
		}
		batch = append(batch, outbox)
	}

	return batch, nil
}

func (d *Database) UpdateOutboxPublished(ctx context.Context, ids []string) error {
	query := `UPDATE outbox SET published = TRUE WHERE id = ANY($1::text[]);`
	if _, err := d.DB.Exec(ctx, query, ids); err != nil {
		return d.wrap(err, "Database.UpdateOutboxPublished")
	}
	return nil
}

// PROCESSED-EVENT LEDGER
// At-least-once delivery means duplicates; the ledger makes every consumer
// idempotent by message id. Entries are written only after the side effect
// settled, so a crash mid-handler leaves the message unclaimed and
// redelivery runs it again.

// EventProcessed reports whether the message id is already settled for a
// consumer group.
func (d *Database) EventProcessed(ctx context.Context, group, messageId string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM processed_events
			  WHERE consumer_group = $1 AND message_id = $2);`
	var seen bool
	if err := d.DB.QueryRow(ctx, query, group, messageId).Scan(&seen); err != nil {
		return false, d.wrap(err, "Database.EventProcessed")
	}
	return seen, nil
}

// MarkEventProcessed records the message id for a consumer group. The first
// caller gets true; redeliveries of the same message get false.
func (d *Database) MarkEventProcessed(ctx context.Context, group, messageId string) (bool, error) {
	query := `INSERT INTO processed_events(consumer_group, message_id, processed_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (consumer_group, message_id) DO NOTHING;`
	tag, err := d.DB.Exec(ctx, query, group, messageId, time.Now().UTC())
	if err != nil {
		return false, d.wrap(err, "Database.MarkEventProcessed")
	}
	return tag.RowsAffected() > 0, nil
}

func (d *Database) wrap(err error, op string) error {
	return svcerror.New(
		svcerror.ErrDatabaseError,
		svcerror.WithOp(op),
		svcerror.WithCause(err),
		svcerror.WithTime(time.Now().UTC()),
	)
}
