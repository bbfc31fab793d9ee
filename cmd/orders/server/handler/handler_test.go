package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benko325/delivery-platform/cmd/orders/server/domain"
	"github.com/benko325/delivery-platform/cmd/orders/server/service"
	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	orders map[string]models.Order
}

func (s *fakeStore) SaveOrder(ctx context.Context, order models.Order, outbox []models.Outbox) error {
	s.orders[order.OrderId] = order
	return nil
}

func (s *fakeStore) GetOrder(ctx context.Context, orderId string) (models.Order, error) {
	order, ok := s.orders[orderId]
	if !ok {
		return models.Order{}, svcerror.Newf(svcerror.ErrNotFound, "order %s not found", orderId)
	}
	return order, nil
}

func (s *fakeStore) GetOrdersByCustomer(ctx context.Context, customerId string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range s.orders {
		if o.CustomerId == customerId {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateOrder(ctx context.Context, order models.Order, outbox []models.Outbox) error {
	if _, ok := s.orders[order.OrderId]; !ok {
		return svcerror.Newf(svcerror.ErrNotFound, "order %s not found", order.OrderId)
	}
	order.Version++
	s.orders[order.OrderId] = order
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishAll(ctx context.Context, evts []events.DomainEvent) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *fakeStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &fakeStore{orders: make(map[string]models.Order)}
	svc := service.NewService(store, noopPublisher{})

	router := gin.New()
	NewOrderHandler(svc).RegisterRoutes(router)
	return router, store
}

func seedOrder(t *testing.T, store *fakeStore, status models.OrderStatus, driverId string) models.Order {
	t.Helper()
	o := domain.NewOrder(uuid.NewString(), "cust-1", "resto-1",
		[]models.OrderItem{{MenuItemId: "burger", Name: "Burger", PriceCents: 899, Currency: "USD", Quantity: 1}},
		"Main street 1", 899, 299, "USD")
	o.Status = status
	o.DriverId = driverId
	require.NoError(t, store.SaveOrder(context.Background(), o.Order, nil))
	return o.Order
}

func doJSON(t *testing.T, router *gin.Engine, method, url string, body any) (*httptest.ResponseRecorder, utils.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp utils.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestGetOrder(t *testing.T) {
	router, store := newTestRouter(t)
	order := seedOrder(t, store, models.ORDER_STATUS_PENDING, "")

	rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/orders/"+order.OrderId, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestGetOrder_BadId(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/orders/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestGetOrder_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/orders/0b26f355-3c75-4c67-8a3b-9d5f6a1a3c55", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcceptOrder(t *testing.T) {
	router, store := newTestRouter(t)
	order := seedOrder(t, store, models.ORDER_STATUS_READY_FOR_PICKUP, "")

	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderId+"/accept",
		models.AcceptOrderRequest{DriverId: "drv-1", EtaMinutes: 25})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	got := store.orders[order.OrderId]
	assert.Equal(t, "drv-1", got.DriverId)
	assert.Equal(t, models.ORDER_STATUS_READY_FOR_PICKUP, got.Status, "acceptance must not move the status")
}

func TestAcceptOrder_WrongState(t *testing.T) {
	router, store := newTestRouter(t)
	order := seedOrder(t, store, models.ORDER_STATUS_PENDING, "")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderId+"/accept",
		models.AcceptOrderRequest{DriverId: "drv-1", EtaMinutes: 25})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	router, store := newTestRouter(t)
	order := seedOrder(t, store, models.ORDER_STATUS_READY_FOR_PICKUP, "drv-1")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderId+"/status",
		models.UpdateStatusRequest{Status: "in_transit"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ORDER_STATUS_IN_TRANSIT, store.orders[order.OrderId].Status)
}

func TestUpdateStatus_UnknownEnum(t *testing.T) {
	router, store := newTestRouter(t)
	order := seedOrder(t, store, models.ORDER_STATUS_PENDING, "")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderId+"/status",
		models.UpdateStatusRequest{Status: "driver_assigned"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.ORDER_STATUS_PENDING, store.orders[order.OrderId].Status)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	router, store := newTestRouter(t)
	order := seedOrder(t, store, models.ORDER_STATUS_PENDING, "")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderId+"/status",
		models.UpdateStatusRequest{Status: "delivered"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, models.ORDER_STATUS_PENDING, store.orders[order.OrderId].Status)
}

func TestCancelOrder(t *testing.T) {
	router, store := newTestRouter(t)
	order := seedOrder(t, store, models.ORDER_STATUS_PENDING, "")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderId+"/cancel",
		models.CancelOrderRequest{Reason: "Changed my mind"})

	assert.Equal(t, http.StatusOK, rec.Code)
	got := store.orders[order.OrderId]
	assert.Equal(t, models.ORDER_STATUS_CANCELLED, got.Status)
	assert.Equal(t, "Changed my mind", got.CancellationReason)
}

func TestCancelOrder_InTransit(t *testing.T) {
	router, store := newTestRouter(t)
	order := seedOrder(t, store, models.ORDER_STATUS_IN_TRANSIT, "drv-1")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderId+"/cancel",
		models.CancelOrderRequest{Reason: "Too slow"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, models.ORDER_STATUS_IN_TRANSIT, store.orders[order.OrderId].Status)
}

func TestListOrders(t *testing.T) {
	router, store := newTestRouter(t)
	seedOrder(t, store, models.ORDER_STATUS_PENDING, "")

	rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/orders?customer_id=cust-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/orders", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
