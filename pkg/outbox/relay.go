package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/benko325/delivery-platform/pkg/database"
	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/utils"

	"github.com/google/uuid"
)

// Relay drains the outbox table to Kafka. Order-context commits write their
// outbox rows in the same transaction as the state change (RowsFor builds
// them), so a crash between commit and publish only delays the publish; the
// relay moves already-committed rows to the broker.
type Relay struct {
	Producer *kafka.Producer
	Database *database.Database
	Every    time.Duration
	Batch    int
	Topic    string
}

func NewRelay(producer *kafka.Producer, database *database.Database, topic string) *Relay {
	durStr := utils.GetEnv("OUTBOX_INTERVAL", "500ms")
	dur, err := time.ParseDuration(durStr)
	if err != nil {
		dur = 500 * time.Millisecond
	}

	batchStr := utils.GetEnv("OUTBOX_BATCH", "200")
	batch, err := strconv.Atoi(batchStr)
	if err != nil {
		batch = 200
	}

	return &Relay{
		Producer: producer,
		Database: database,
		Every:    dur,
		Batch:    batch,
		Topic:    topic,
	}
}

// RowsFor serializes raised events into outbox rows for a topic, ready to be
// inserted in the same transaction as the state change that raised them.
func RowsFor(topic string, evts []events.DomainEvent) ([]models.Outbox, error) {
	rows := make([]models.Outbox, 0, len(evts))
	for _, evt := range evts {
		payload, err := json.Marshal(evt)
		if err != nil {
			return nil, svcerror.New(
				svcerror.ErrInternalError,
				svcerror.WithOp("Outbox.RowsFor"),
				svcerror.WithMsg("failed to marshal event"),
				svcerror.WithCause(err),
			)
		}
		md := evt.GetMetadata()
		rows = append(rows, models.Outbox{
			Id:        uuid.NewString(),
			Key:       md.OrderId,
			EventType: string(md.Type),
			Topic:     topic,
			Payload:   payload,
		})
	}
	return rows, nil
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.FlushMessages(ctx); err != nil {
				switch {
				case errors.Is(err, svcerror.ErrDatabaseError) || errors.Is(err, svcerror.ErrPublishError):
					if ed := new(svcerror.ErrorDetails); errors.As(err, &ed) {
						log.Printf("[ERROR] msg=%s trace=%s cause=%v at=%s",
							ed.Msg, ed.TraceString(), ed.Cause, ed.OccuredAt)
					}
				default:
					return svcerror.AddOp(err, "Outbox.Run")
				}
			}
		}
	}
}

func (r *Relay) FlushMessages(ctx context.Context) error {
	batch, err := r.Database.GetUnpublishedOutbox(ctx, r.Batch, r.Topic)
	if err != nil {
		return svcerror.AddOp(err, "Outbox.FlushMessages")
	}

	if len(batch) == 0 {
		return nil
	}

	if err := r.PublishMessages(ctx, batch); err != nil {
		return svcerror.AddOp(err, "Outbox.FlushMessages")
	}

	ids := make([]string, 0, len(batch))
	for _, outbox := range batch {
		ids = append(ids, outbox.Id)
	}

	if err := r.Database.UpdateOutboxPublished(ctx, ids); err != nil {
		return svcerror.AddOp(err, "Outbox.FlushMessages")
	}
	return nil
}

func (r *Relay) PublishMessages(ctx context.Context, batch []models.Outbox) error {
	msgs := make([]kafka.EventMessage, 0, len(batch))
	for _, outbox := range batch {
		msgs = append(msgs, kafka.EventMessage{
			Topic: r.Topic,
			Key:   outbox.Key,
			Event: outbox.Payload,
		})
	}
	if err := r.Producer.PublishMultipleEvents(ctx, msgs); err != nil {
		return svcerror.New(
			svcerror.ErrPublishError,
			svcerror.WithOp("Outbox.PublishMessages"),
			svcerror.WithMsg("failed to publish multiple events"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}
	return nil
}

func (r *Relay) PublishToDLQ(ctx context.Context, event events.EventDLQ) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return svcerror.New(
			svcerror.ErrInternalError,
			svcerror.WithOp("Outbox.PublishToDLQ"),
			svcerror.WithMsg("failed to marshal dlq event"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}
	if err := r.Producer.PublishEvent(ctx, kafka.EventMessage{
		Topic: kafka.TopicDeadLetterQueue,
		Key:   event.Metadata.OrderId,
		Event: payload,
	}); err != nil {
		return svcerror.New(
			svcerror.ErrPublishError,
			svcerror.WithOp("Outbox.PublishToDLQ"),
			svcerror.WithMsg("failed to publish dlq event"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}
	return nil
}

// Forward satisfies the bus Forwarder for events that accompany no state
// change of their own (the payment leg). The row is written on its own; if
// the process dies first, the triggering message is still unclaimed in the
// processed-event ledger and redelivery rebuilds the event.
func (r *Relay) Forward(ctx context.Context, key string, payload []byte) error {
	var env events.EventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return svcerror.New(
			svcerror.ErrInternalError,
			svcerror.WithOp("Outbox.Forward"),
			svcerror.WithMsg("unmarshal payload"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}

	outbox := models.Outbox{
		Id:        uuid.NewString(),
		Key:       key,
		EventType: string(env.Metadata.Type),
		Topic:     r.Topic,
		Payload:   payload,
	}

	if err := r.Database.SaveOutbox(ctx, outbox); err != nil {
		return svcerror.AddOp(err, "Outbox.Forward")
	}

	return nil
}
