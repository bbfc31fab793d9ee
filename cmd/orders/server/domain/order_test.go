package domain

import (
	"testing"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []models.OrderItem {
	return []models.OrderItem{
		{MenuItemId: "burger", Name: "Burger", PriceCents: 899, Currency: "USD", Quantity: 1},
		{MenuItemId: "fries", Name: "Fries", PriceCents: 349, Currency: "USD", Quantity: 2},
	}
}

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o := NewOrder(uuid.NewString(), "cust-1", "resto-1", testItems(), "Main street 1", 1597, 299, "USD")
	o.ClearPending()
	return o
}

func advanceTo(t *testing.T, o *Order, statuses ...models.OrderStatus) {
	t.Helper()
	for _, st := range statuses {
		require.NoError(t, o.UpdateStatus(st))
	}
	o.ClearPending()
}

func TestNewOrder(t *testing.T) {
	o := NewOrder(uuid.NewString(), "cust-1", "resto-1", testItems(), "Main street 1", 1597, 299, "USD")

	assert.NotEmpty(t, o.OrderId)
	assert.Equal(t, models.ORDER_STATUS_PENDING, o.Status)
	assert.Empty(t, o.DriverId)

	pending := o.PendingEvents()
	require.Len(t, pending, 1)
	created, ok := pending[0].(events.EventOrderCreated)
	require.True(t, ok)
	assert.Equal(t, events.EvtTypeOrderCreated, created.Metadata.Type)
	assert.Equal(t, o.OrderId, created.Metadata.OrderId)
	assert.Equal(t, o.OrderId, created.Metadata.CorrelationId)
	assert.Equal(t, int64(1597), created.AmountCents)
}

func TestTransitionTable(t *testing.T) {
	all := []models.OrderStatus{
		models.ORDER_STATUS_PENDING, models.ORDER_STATUS_PAYMENT_SUCCEEDED,
		models.ORDER_STATUS_CONFIRMED, models.ORDER_STATUS_PREPARING,
		models.ORDER_STATUS_READY_FOR_PICKUP, models.ORDER_STATUS_IN_TRANSIT,
		models.ORDER_STATUS_DELIVERED, models.ORDER_STATUS_CANCELLED,
	}

	allowed := map[models.OrderStatus][]models.OrderStatus{
		models.ORDER_STATUS_PENDING:           {models.ORDER_STATUS_PAYMENT_SUCCEEDED, models.ORDER_STATUS_CANCELLED},
		models.ORDER_STATUS_PAYMENT_SUCCEEDED: {models.ORDER_STATUS_CONFIRMED, models.ORDER_STATUS_CANCELLED},
		models.ORDER_STATUS_CONFIRMED:         {models.ORDER_STATUS_PREPARING, models.ORDER_STATUS_CANCELLED},
		models.ORDER_STATUS_PREPARING:         {models.ORDER_STATUS_READY_FOR_PICKUP, models.ORDER_STATUS_CANCELLED},
		models.ORDER_STATUS_READY_FOR_PICKUP:  {models.ORDER_STATUS_IN_TRANSIT, models.ORDER_STATUS_CANCELLED},
		models.ORDER_STATUS_IN_TRANSIT:        {models.ORDER_STATUS_DELIVERED},
		models.ORDER_STATUS_DELIVERED:         {},
		models.ORDER_STATUS_CANCELLED:         {},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestUpdateStatus_RaisesEventOnEveryTransition(t *testing.T) {
	o := newTestOrder(t)

	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_PAYMENT_SUCCEEDED))

	pending := o.PendingEvents()
	require.Len(t, pending, 1)
	changed, ok := pending[0].(events.EventOrderStatusChanged)
	require.True(t, ok)
	assert.Equal(t, string(models.ORDER_STATUS_PENDING), changed.PreviousStatus)
	assert.Equal(t, string(models.ORDER_STATUS_PAYMENT_SUCCEEDED), changed.NewStatus)
}

func TestUpdateStatus_RejectsIllegalJump(t *testing.T) {
	o := newTestOrder(t)

	err := o.UpdateStatus(models.ORDER_STATUS_DELIVERED)

	require.Error(t, err)
	assert.ErrorIs(t, err, svcerror.ErrInvalidTransition)
	assert.Equal(t, models.ORDER_STATUS_PENDING, o.Status)
	assert.Empty(t, o.PendingEvents())
}

func TestUpdateStatus_InTransitRequiresDriver(t *testing.T) {
	o := newTestOrder(t)
	advanceTo(t, o,
		models.ORDER_STATUS_PAYMENT_SUCCEEDED,
		models.ORDER_STATUS_CONFIRMED,
		models.ORDER_STATUS_PREPARING,
		models.ORDER_STATUS_READY_FOR_PICKUP,
	)

	err := o.UpdateStatus(models.ORDER_STATUS_IN_TRANSIT)
	require.Error(t, err)
	assert.ErrorIs(t, err, svcerror.ErrInvalidState)
	assert.Equal(t, models.ORDER_STATUS_READY_FOR_PICKUP, o.Status)

	require.NoError(t, o.AcceptByDriver("drv-1", time.Now().Add(30*time.Minute)))
	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_IN_TRANSIT))
	assert.Equal(t, models.ORDER_STATUS_IN_TRANSIT, o.Status)
}

func TestAcceptByDriver(t *testing.T) {
	t.Run("only from ready_for_pickup", func(t *testing.T) {
		o := newTestOrder(t)

		err := o.AcceptByDriver("drv-1", time.Now().Add(30*time.Minute))

		require.Error(t, err)
		assert.ErrorIs(t, err, svcerror.ErrInvalidState)
		assert.Empty(t, o.DriverId)
	})

	t.Run("does not move the status", func(t *testing.T) {
		o := newTestOrder(t)
		advanceTo(t, o,
			models.ORDER_STATUS_PAYMENT_SUCCEEDED,
			models.ORDER_STATUS_CONFIRMED,
			models.ORDER_STATUS_PREPARING,
			models.ORDER_STATUS_READY_FOR_PICKUP,
		)

		eta := time.Now().Add(30 * time.Minute)
		require.NoError(t, o.AcceptByDriver("drv-1", eta))

		assert.Equal(t, models.ORDER_STATUS_READY_FOR_PICKUP, o.Status)
		assert.Equal(t, "drv-1", o.DriverId)
		require.NotNil(t, o.EstimatedDeliveryTime)

		pending := o.PendingEvents()
		require.Len(t, pending, 1)
		accepted, ok := pending[0].(events.EventOrderAcceptedByDriver)
		require.True(t, ok)
		assert.Equal(t, "drv-1", accepted.DriverId)
	})

	t.Run("driver is set exactly once", func(t *testing.T) {
		o := newTestOrder(t)
		advanceTo(t, o,
			models.ORDER_STATUS_PAYMENT_SUCCEEDED,
			models.ORDER_STATUS_CONFIRMED,
			models.ORDER_STATUS_PREPARING,
			models.ORDER_STATUS_READY_FOR_PICKUP,
		)

		require.NoError(t, o.AcceptByDriver("drv-1", time.Now().Add(30*time.Minute)))
		err := o.AcceptByDriver("drv-2", time.Now().Add(40*time.Minute))

		require.Error(t, err)
		assert.Equal(t, "drv-1", o.DriverId)
	})
}

func TestDelivered_StampsActualDeliveryTime(t *testing.T) {
	o := newTestOrder(t)
	advanceTo(t, o,
		models.ORDER_STATUS_PAYMENT_SUCCEEDED,
		models.ORDER_STATUS_CONFIRMED,
		models.ORDER_STATUS_PREPARING,
		models.ORDER_STATUS_READY_FOR_PICKUP,
	)
	require.NoError(t, o.AcceptByDriver("drv-1", time.Now().Add(30*time.Minute)))
	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_IN_TRANSIT))

	require.Nil(t, o.ActualDeliveryTime)
	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_DELIVERED))
	require.NotNil(t, o.ActualDeliveryTime)
}

func TestCancel(t *testing.T) {
	t.Run("records reason and time", func(t *testing.T) {
		o := newTestOrder(t)

		require.NoError(t, o.Cancel("Payment failed: Card declined"))

		assert.Equal(t, models.ORDER_STATUS_CANCELLED, o.Status)
		assert.Equal(t, "Payment failed: Card declined", o.CancellationReason)
		require.NotNil(t, o.CancelledAt)

		pending := o.PendingEvents()
		require.Len(t, pending, 1)
		changed := pending[0].(events.EventOrderStatusChanged)
		assert.Equal(t, string(models.ORDER_STATUS_CANCELLED), changed.NewStatus)
		assert.Equal(t, "Payment failed: Card declined", changed.Reason)
	})

	t.Run("cancel is not re-entrant", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.Cancel("first"))
		o.ClearPending()

		err := o.Cancel("second")

		require.Error(t, err)
		assert.Equal(t, "first", o.CancellationReason)
		assert.Empty(t, o.PendingEvents())
	})

	t.Run("in_transit cannot cancel", func(t *testing.T) {
		o := newTestOrder(t)
		advanceTo(t, o,
			models.ORDER_STATUS_PAYMENT_SUCCEEDED,
			models.ORDER_STATUS_CONFIRMED,
			models.ORDER_STATUS_PREPARING,
			models.ORDER_STATUS_READY_FOR_PICKUP,
		)
		require.NoError(t, o.AcceptByDriver("drv-1", time.Now().Add(30*time.Minute)))
		require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_IN_TRANSIT))

		err := o.Cancel("too late")

		require.Error(t, err)
		assert.Equal(t, models.ORDER_STATUS_IN_TRANSIT, o.Status)
	})

	t.Run("delivered cannot cancel", func(t *testing.T) {
		o := newTestOrder(t)
		advanceTo(t, o,
			models.ORDER_STATUS_PAYMENT_SUCCEEDED,
			models.ORDER_STATUS_CONFIRMED,
			models.ORDER_STATUS_PREPARING,
			models.ORDER_STATUS_READY_FOR_PICKUP,
		)
		require.NoError(t, o.AcceptByDriver("drv-1", time.Now().Add(30*time.Minute)))
		require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_IN_TRANSIT))
		require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_DELIVERED))

		require.Error(t, o.Cancel("too late"))
		assert.Equal(t, models.ORDER_STATUS_DELIVERED, o.Status)
	})
}

func TestFullDeliveryRun_EventsInApplyOrder(t *testing.T) {
	o := NewOrder(uuid.NewString(), "cust-1", "resto-1", testItems(), "Main street 1", 1597, 299, "USD")

	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_PAYMENT_SUCCEEDED))
	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_CONFIRMED))
	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_PREPARING))
	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_READY_FOR_PICKUP))
	require.NoError(t, o.AcceptByDriver("drv-1", time.Now().Add(30*time.Minute)))
	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_IN_TRANSIT))
	require.NoError(t, o.UpdateStatus(models.ORDER_STATUS_DELIVERED))

	pending := o.PendingEvents()
	require.Len(t, pending, 8)
	assert.Equal(t, events.EvtTypeOrderCreated, pending[0].GetMetadata().Type)
	assert.Equal(t, events.EvtTypeOrderAcceptedByDriver, pending[5].GetMetadata().Type)
	for _, evt := range pending {
		assert.Equal(t, o.OrderId, evt.GetMetadata().OrderId)
		assert.Equal(t, o.OrderId, evt.GetMetadata().CorrelationId)
	}
}
