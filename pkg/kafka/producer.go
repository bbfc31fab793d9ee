package kafka

import (
	"context"
	"encoding/json"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafka.Writer
}

type ProducerConfig struct {
	Brokers []string
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, event events.EventDLQ) error
}

func NewProducer(conf ProducerConfig) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(conf.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  false,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}

	return &Producer{
		Writer: writer,
	}
}

// EventMessage pairs an event with its destination. Event may be a struct
// from pkg/events or an already-serialized payload (outbox rows).
type EventMessage struct {
	Topic string
	Key   string
	Event any
}

func (em EventMessage) encode() ([]byte, error) {
	switch v := em.Event.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(em.Event)
	}
}

func (p *Producer) PublishEvent(ctx context.Context, evtMessage EventMessage) error {
	value, err := evtMessage.encode()
	if err != nil {
		return svcerror.New(
			svcerror.ErrInternalError,
			svcerror.WithOp("Producer.PublishEvent"),
			svcerror.WithMsg("marshal event"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}

	msg := kafka.Message{
		Topic: evtMessage.Topic,
		Key:   []byte(evtMessage.Key),
		Value: value,
		Time:  time.Now(),
	}

	err = p.Writer.WriteMessages(ctx, msg)
	if err != nil {
		return svcerror.New(
			svcerror.ErrPublishError,
			svcerror.WithOp("Producer.PublishEvent"),
			svcerror.WithMsg("failed to publish event"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}

	return nil
}

func (p *Producer) PublishMultipleEvents(ctx context.Context, evts []EventMessage) error {
	messages := make([]kafka.Message, len(evts))

	for i, event := range evts {
		value, err := event.encode()
		if err != nil {
			return svcerror.New(
				svcerror.ErrInternalError,
				svcerror.WithOp("Producer.PublishMultipleEvents"),
				svcerror.WithMsg("marshal event"),
				svcerror.WithCause(err),
				svcerror.WithTime(time.Now().UTC()),
			)
		}
		messages[i] = kafka.Message{
			Topic: event.Topic,
			Key:   []byte(event.Key),
			Value: value,
			Time:  time.Now(),
		}
	}

	err := p.Writer.WriteMessages(ctx, messages...)
	if err != nil {
		return svcerror.New(
			svcerror.ErrPublishError,
			svcerror.WithOp("Producer.PublishMultipleEvents"),
			svcerror.WithMsg("failed to publish events"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}

	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// DirectDLQ dead-letters messages straight through the producer. Services
// without an outbox use this as their consumer's DLQ path.
type DirectDLQ struct {
	Producer *Producer
}

func (d *DirectDLQ) PublishToDLQ(ctx context.Context, event events.EventDLQ) error {
	return d.Producer.PublishEvent(ctx, EventMessage{
		Topic: TopicDeadLetterQueue,
		Key:   event.Metadata.OrderId,
		Event: event,
	})
}
