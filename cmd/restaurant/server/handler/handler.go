// Package handler implements the restaurant context. Staff confirm or reject
// a paid order over HTTP; a confirmation starts a kitchen prep ticket that
// rides a delay queue until the order becomes ready for pickup.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/benko325/delivery-platform/cmd/restaurant/server/acl"
	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/repository"
	"github.com/benko325/delivery-platform/pkg/scheduler"
	"github.com/benko325/delivery-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventWriter is the outbound edge of the context.
type EventWriter interface {
	PublishEvent(ctx context.Context, message kafka.EventMessage) error
}

type Handler struct {
	Producer        EventWriter
	TicketRepo      repository.Repository[models.PrepTicket]
	TicketScheduler *scheduler.DelayQueue[models.PrepTicket]
	Dispatcher      *events.Dispatcher
	PrepPerItem     time.Duration
}

func NewHandler(producer EventWriter) *Handler {
	dispatcher := events.NewDispatcher()
	ticketRepo, _ := repository.NewRepository(context.Background(), repository.RepositoryMemory, func(t models.PrepTicket) string {
		return t.OrderId
	})
	sched := scheduler.NewQueue[models.PrepTicket](0)

	perItem, err := time.ParseDuration(utils.GetEnv("PREP_TIME_PER_ITEM", "20s"))
	if err != nil {
		perItem = 20 * time.Second
	}

	h := &Handler{
		Producer:        producer,
		TicketRepo:      ticketRepo,
		TicketScheduler: sched,
		Dispatcher:      dispatcher,
		PrepPerItem:     perItem,
	}

	acl.NewMapper(h.Dispatcher)
	events.Register(h.Dispatcher, acl.MappedTypeKitchenOrder, h.OnKitchenOrder)

	return h
}

func (h *Handler) HandleMessage(ctx context.Context, message kafka.KafkaMessage) error {
	return h.Dispatcher.Dispatch(message.Value)
}

// OnKitchenOrder watches the mapped order stream for confirmations. The
// confirmation is the kitchen's cue: preparation starts immediately and a
// prep ticket is scheduled for the ready signal.
func (h *Handler) OnKitchenOrder(evt acl.KitchenOrder) error {
	if evt.NewStatus != string(models.ORDER_STATUS_CONFIRMED) {
		return nil
	}
	if evt.OrderId == acl.Absent {
		log.Printf("[HANDLER] Confirmed order carries no order id, nothing to prepare")
		return nil
	}

	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	if _, err := h.TicketRepo.Load(ctx, evt.OrderId); err == nil {
		log.Printf("[HANDLER] Prep ticket for order %s already exists, skipping", evt.OrderId)
		return nil
	} else if !errors.Is(err, svcerror.ErrNotFound) {
		return svcerror.AddOp(err, "Handler.OnKitchenOrder")
	}

	ticket := models.PrepTicket{
		OrderId:   evt.OrderId,
		PrepTime:  h.PrepPerItem,
		StartedAt: time.Now().UTC(),
	}

	if err := h.TicketRepo.Save(ctx, ticket); err != nil {
		return svcerror.AddOp(err, "Handler.OnKitchenOrder")
	}

	if err := h.TicketScheduler.Push(scheduler.Entry[models.PrepTicket]{
		ID:      ticket.OrderId,
		Value:   ticket,
		ReadyAt: ticket.StartedAt.Add(ticket.PrepTime),
	}); err != nil {
		return svcerror.AddOp(err, "Handler.OnKitchenOrder")
	}

	log.Printf("[HANDLER] Prep ticket scheduled: order_id=%s ready_at=%s",
		ticket.OrderId, ticket.StartedAt.Add(ticket.PrepTime).Format(time.RFC3339))

	return h.PublishPreparation(ctx, evt.Metadata, false)
}

// CheckForReadyTickets drains the delay queue: each expired ticket becomes a
// ready-for-pickup event.
func (h *Handler) CheckForReadyTickets(ctx context.Context) error {
	for item := range h.TicketScheduler.Out {
		ticket := item.Value

		if err := h.TicketRepo.Delete(ctx, ticket.OrderId); err != nil {
			log.Printf("[HANDLER] Failed to delete prep ticket %s: %v", ticket.OrderId, err)
		}

		log.Printf("[HANDLER] Prep ticket ready: order_id=%s", ticket.OrderId)
		md := events.Metadata{OrderId: ticket.OrderId, CorrelationId: ticket.OrderId}
		if err := h.PublishPreparation(ctx, md, true); err != nil {
			log.Printf("[HANDLER] Failed to publish ready event for %s: %v", ticket.OrderId, err)
		}
	}
	return nil
}

// HTTP surface: restaurant staff confirm or reject paid orders.

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/restaurant/orders/:id")
	{
		api.POST("/confirm", h.ConfirmOrder)
		api.POST("/reject", h.RejectOrder)
	}
	r.GET("/health", h.Health)
}

func (h *Handler) ConfirmOrder(c *gin.Context) {
	orderId := c.Param("id")
	if _, err := uuid.Parse(orderId); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid Order Id", "order id must be a uuid")
		return
	}

	eta, err := strconv.ParseInt(utils.GetEnv("RESTAURANT_DEFAULT_ETA_MINUTES", "30"), 10, 64)
	if err != nil {
		eta = 30
	}

	if err := h.PublishDecision(c.Request.Context(), orderId, true, "", eta); err != nil {
		utils.SendInternalError(c, "Failed to publish confirmation")
		return
	}

	utils.SendSuccess(c, http.StatusAccepted, "Order confirmed", gin.H{"order_id": orderId})
}

func (h *Handler) RejectOrder(c *gin.Context) {
	orderId := c.Param("id")
	if _, err := uuid.Parse(orderId); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid Order Id", "order id must be a uuid")
		return
	}

	var req models.RejectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	if err := h.PublishDecision(c.Request.Context(), orderId, false, req.Reason, 0); err != nil {
		utils.SendInternalError(c, "Failed to publish rejection")
		return
	}

	utils.SendSuccess(c, http.StatusAccepted, "Order rejected", gin.H{"order_id": orderId})
}

func (h *Handler) Health(c *gin.Context) {
	utils.SendSuccess(c, http.StatusOK, "healthy", gin.H{"service": "restaurant-svc"})
}

func (h *Handler) PublishDecision(ctx context.Context, orderId string, accepted bool, reason string, etaMinutes int64) error {
	evtType := events.EvtTypeOrderConfirmedByRestaurant
	if !accepted {
		evtType = events.EvtTypeOrderRejectedByRestaurant
	}

	decision := events.EventRestaurantDecision{
		Metadata: events.Metadata{
			MessageId:     uuid.NewString(),
			Type:          evtType,
			OrderId:       orderId,
			CorrelationId: orderId,
			Timestamp:     time.Now().UTC(),
			Producer:      events.ProducerRestaurantSvc,
		},
		EtaMinutes: etaMinutes,
		Reason:     reason,
		Accepted:   accepted,
		DecidedAt:  time.Now().UTC(),
	}

	return h.Producer.PublishEvent(ctx, kafka.EventMessage{
		Key:   orderId,
		Topic: kafka.TopicRestaurant,
		Event: decision,
	})
}

func (h *Handler) PublishPreparation(ctx context.Context, origin events.Metadata, ready bool) error {
	evtType := events.EvtTypeOrderPreparationStarted
	if ready {
		evtType = events.EvtTypeOrderReadyForPickup
	}

	prep := events.EventOrderPreparation{
		Metadata: events.Metadata{
			MessageId:     uuid.NewString(),
			Type:          evtType,
			OrderId:       origin.OrderId,
			CorrelationId: origin.CorrelationId,
			CausationId:   origin.MessageId,
			Timestamp:     time.Now().UTC(),
			Producer:      events.ProducerRestaurantSvc,
		},
		Ready:      ready,
		OccurredAt: time.Now().UTC(),
	}

	return h.Producer.PublishEvent(ctx, kafka.EventMessage{
		Key:   origin.OrderId,
		Topic: kafka.TopicRestaurant,
		Event: prep,
	})
}
