package server

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/benko325/delivery-platform/cmd/notifications/server/handler"
	"github.com/benko325/delivery-platform/cmd/notifications/server/notifier"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/repository"
	"github.com/benko325/delivery-platform/pkg/utils"

	"golang.org/x/sync/errgroup"
)

type Server struct {
	Producer *kafka.Producer
	Consumer *kafka.Consumer
	Handler  *handler.Handler
}

// NewServer wires the notifications context: a consumer over the order and
// payment streams, a redis seen-message ledger, and the sim notifier.
func NewServer(prodConf kafka.ProducerConfig, consConf kafka.ConsumerConfig) (*Server, error) {
	producer := kafka.NewProducer(prodConf)

	seenTTL, err := time.ParseDuration(utils.GetEnv("SEEN_MESSAGE_TTL", "24h"))
	if err != nil {
		seenTTL = 24 * time.Hour
	}
	seen, err := repository.NewRedisCache(
		context.Background(),
		repository.RedisConfig{
			Address:  utils.GetEnv("REDIS_CLIENT_ADDRESS", "redis:6379"),
			Password: utils.GetEnv("REDIS_CLIENT_PASSWORD", ""),
			DB:       0,
		},
		seenTTL,
		func(m models.SeenMessage) string { return m.MessageId },
	)
	if err != nil {
		return nil, err
	}

	h := handler.NewHandler(notifier.NewSimNotifier(), seen)
	consumer := kafka.NewConsumer(consConf, &kafka.DirectDLQ{Producer: producer})

	return &Server{
		Producer: producer,
		Consumer: consumer,
		Handler:  h,
	}, nil
}

func (s *Server) Start() error {
	log.Println("Starting Notifications Service...")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.Consumer.ConsumeWithRetry(ctx, s.Handler.HandleMessage, 3); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return s.HandleShutdown(ctx, g)
}

func (s *Server) HandleShutdown(ctx context.Context, g *errgroup.Group) error {
	<-ctx.Done()
	log.Println("Shutdown signal received, commencing graceful shutdown...")

	if err := s.Producer.Close(); err != nil {
		log.Printf("Error closing producer: %v", err)
	}
	if err := s.Consumer.Close(); err != nil {
		log.Printf("Error closing consumer: %v", err)
	}

	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}

	log.Println("Notifications Service stopped cleanly")
	return nil
}
