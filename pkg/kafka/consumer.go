package kafka

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/events"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	relay  DLQPublisher
	group  string
}

type ConsumerConfig struct {
	Brokers []string
	Topics  []string
	GroupId string
}

func NewConsumer(conf ConsumerConfig, relay DLQPublisher) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        conf.Brokers,
		GroupTopics:    conf.Topics,
		GroupID:        conf.GroupId,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024, //	10MB
		StartOffset:    kafka.LastOffset,
		CommitInterval: 0,
	})

	return &Consumer{
		reader: reader,
		relay:  relay,
		group:  conf.GroupId,
	}
}

type KafkaMessage kafka.Message
type MessageHandler func(ctx context.Context, message KafkaMessage) error

// ConsumeMessages fans fetched messages out to one worker per partition so
// per-order ordering survives while partitions progress independently.
func (c *Consumer) ConsumeMessages(ctx context.Context, handler MessageHandler) error {
	partChannels := make(map[int]chan kafka.Message)
	var mu sync.Mutex
	var wg sync.WaitGroup

	defer func() {
		mu.Lock()
		for _, ch := range partChannels {
			close(ch)
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("Failed to fetch message: %v", err)
				continue
			}

			partition := msg.Partition

			mu.Lock()
			ch, ok := partChannels[partition]
			if !ok {
				ch = make(chan kafka.Message, 1024)
				partChannels[partition] = ch
				wg.Add(1)
				go c.RunWorker(ctx, handler, ch, &wg)
			}
			mu.Unlock()

			select {
			case ch <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (c *Consumer) RunWorker(ctx context.Context, handler MessageHandler, messageChannel <-chan kafka.Message, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChannel:
			if !ok {
				return
			}

			if err := handler(ctx, KafkaMessage(msg)); err != nil {
				c.handleMessageError(ctx, err, msg)
				// terminal or dead-lettered; the offset is still committed
				// so the saga does not wedge on one poisoned message
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				log.Printf("Failed to commit message: %v", err)
			}
		}
	}
}

func (c *Consumer) handleMessageError(ctx context.Context, err error, msg kafka.Message) {
	if !svcerror.Retriable(err) {
		// settled outcome: out-of-order transitions, validation rejections
		log.Printf("Dropping message after terminal failure: %+v", err)
		return
	}

	if c.relay == nil {
		log.Printf("No DLQ configured, dropping message after failure: %+v", err)
		return
	}

	var env events.EventEnvelope
	_ = json.Unmarshal(msg.Value, &env)

	dlqError := events.EventDLQ{
		ErrorDetails: events.ErrorDetails{
			Message:   err.Error(),
			Service:   c.group,
			OccuredAt: time.Now().UTC(),
		},
		Payload: msg.Value,
		Metadata: events.Metadata{
			MessageId:     uuid.NewString(),
			Type:          events.EvtTypeDeadLetterQueue,
			OrderId:       env.Metadata.OrderId,
			CorrelationId: env.Metadata.CorrelationId,
			CausationId:   env.Metadata.MessageId,
			Timestamp:     time.Now().UTC(),
		},
	}
	if err := c.relay.PublishToDLQ(ctx, dlqError); err != nil {
		log.Printf("Failed to publish to DLQ: %v", err)
	}
}

// ConsumeWithRetry re-attempts retriable handler failures with a linear
// backoff before giving the message to handleMessageError. Terminal failures
// short-circuit: re-running a settled business rejection changes nothing.
func (c *Consumer) ConsumeWithRetry(ctx context.Context, handler MessageHandler, maxAttempts int) error {
	return c.ConsumeMessages(ctx, func(ctx context.Context, message KafkaMessage) error {
		var lastErr error

		for i := 1; i <= maxAttempts; i++ {
			err := handler(ctx, message)
			if err == nil {
				return nil
			}

			lastErr = err
			if !svcerror.Retriable(err) {
				return err
			}
			log.Printf("Attempt %d/%d failed: %v", i, maxAttempts, err)

			if i < maxAttempts {
				backoff := time.Duration(i) * time.Second
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		log.Printf("Failed to process message after %d attempts: %v", maxAttempts, lastErr)
		return lastErr
	})
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
