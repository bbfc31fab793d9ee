package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benko325/delivery-platform/cmd/orders/server/acl"
	"github.com/benko325/delivery-platform/cmd/orders/server/gateway"
	"github.com/benko325/delivery-platform/cmd/orders/server/handler"
	"github.com/benko325/delivery-platform/cmd/orders/server/policy"
	"github.com/benko325/delivery-platform/cmd/orders/server/service"
	"github.com/benko325/delivery-platform/pkg/bus"
	"github.com/benko325/delivery-platform/pkg/database"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/outbox"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	Config       ServerConfig
	Database     *database.Database
	Producer     *kafka.Producer
	Consumer     *kafka.Consumer
	OrderRelay   *outbox.Relay
	PaymentRelay *outbox.Relay
	Bridge       *bus.Bridge
	Service      *service.Service
	Router       *gin.Engine
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	PaymentTimeout time.Duration
}

// NewServer wires the whole orders context: storage, the outbox relays (one
// per produced topic), the local dispatcher with its anti-corruption mappers
// and policy handlers, and the HTTP API.
func NewServer(conf ServerConfig, prodConf kafka.ProducerConfig, consConf kafka.ConsumerConfig) (*Server, error) {
	producer := kafka.NewProducer(prodConf)
	db := database.NewPGDatabase()

	orderRelay := outbox.NewRelay(producer, db, kafka.TopicOrder)
	paymentRelay := outbox.NewRelay(producer, db, kafka.TopicPayment)

	local := events.NewDispatcher()
	// Order events become durable as outbox rows inside the store commit;
	// the order relay moves those rows out, so the bridge stays local-only.
	bridge := bus.NewLocalBridge(local)
	paymentBridge := bus.NewBridge(local, paymentRelay)

	svc := service.NewService(db, bridge)

	gw, err := gateway.NewGateway(gateway.GatewayMock)
	if err != nil {
		return nil, err
	}

	acl.NewCartMapper(local)
	acl.NewRestaurantMapper(local)

	policy.Register(local, &policy.Policies{
		Service:          svc,
		Gateway:          gw,
		PaymentPublisher: paymentBridge,
		Ledger:           db,
		Group:            consConf.GroupId,
		PaymentTimeout:   conf.PaymentTimeout,
	})

	consumer := kafka.NewConsumer(consConf, orderRelay)

	server := &Server{
		Config:       conf,
		Database:     db,
		Producer:     producer,
		Consumer:     consumer,
		OrderRelay:   orderRelay,
		PaymentRelay: paymentRelay,
		Bridge:       bridge,
		Service:      svc,
	}
	server.SetupRouter()

	return server, nil
}

func (s *Server) SetupRouter() {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	orderHandler := handler.NewOrderHandler(s.Service)
	orderHandler.RegisterRoutes(router)

	s.Router = router
}

func (s *Server) Start() error {
	log.Println("Starting Order Service...")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", s.Config.Port),
		Handler:      s.Router,
		ReadTimeout:  s.Config.ReadTimeout,
		WriteTimeout: s.Config.WriteTimeout,
		IdleTimeout:  s.Config.IdleTimeout,
	}

	g.Go(func() error {
		log.Printf("Order API listening on %s", s.Config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := s.Consumer.ConsumeWithRetry(ctx, s.Bridge.Inject, 3); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := s.OrderRelay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := s.PaymentRelay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return s.HandleShutdown(ctx, g, srv)
}

func (s *Server) HandleShutdown(ctx context.Context, g *errgroup.Group, srv *http.Server) error {
	<-ctx.Done()
	log.Println("Shutdown signal received, commencing graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown http server: %v", err)
	}
	if err := s.Producer.Close(); err != nil {
		log.Printf("Error closing producer: %v", err)
	}
	if err := s.Consumer.Close(); err != nil {
		log.Printf("Error closing consumer: %v", err)
	}
	s.Database.Close()

	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}

	log.Println("Order Service stopped cleanly")
	return nil
}
