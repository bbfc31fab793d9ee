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

	"github.com/benko325/delivery-platform/cmd/restaurant/server/handler"
	"github.com/benko325/delivery-platform/pkg/kafka"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	Config   ServerConfig
	Producer *kafka.Producer
	Consumer *kafka.Consumer
	Handler  *handler.Handler
	Router   *gin.Engine
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func NewServer(conf ServerConfig, prodConf kafka.ProducerConfig, consConf kafka.ConsumerConfig) *Server {
	producer := kafka.NewProducer(prodConf)
	h := handler.NewHandler(producer)
	consumer := kafka.NewConsumer(consConf, &kafka.DirectDLQ{Producer: producer})

	server := &Server{
		Config:   conf,
		Producer: producer,
		Consumer: consumer,
		Handler:  h,
	}
	server.SetupRouter()

	return server
}

func (s *Server) SetupRouter() {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	s.Handler.RegisterRoutes(router)
	s.Router = router
}

func (s *Server) Start() error {
	log.Println("Starting Restaurant Service...")
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
		log.Printf("Restaurant API listening on %s", s.Config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := s.Consumer.ConsumeWithRetry(ctx, s.Handler.HandleMessage, 3); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := s.Handler.CheckForReadyTickets(ctx); err != nil && !errors.Is(err, context.Canceled) {
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
	s.Handler.TicketScheduler.Close()

	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}

	log.Println("Restaurant Service stopped cleanly")
	return nil
}
