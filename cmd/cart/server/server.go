package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benko325/delivery-platform/cmd/cart/server/handler"
	"github.com/benko325/delivery-platform/cmd/cart/server/service"
	"github.com/benko325/delivery-platform/pkg/bus"
	"github.com/benko325/delivery-platform/pkg/events"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/repository"
	"github.com/benko325/delivery-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

type Server struct {
	Config   ServerConfig
	Producer *kafka.Producer
	Service  *service.CartService
	Router   *gin.Engine
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer wires the cart context: a redis-backed cart store and a direct
// forwarder to the cart topic. No consumer; carts react to nothing.
func NewServer(conf ServerConfig, prodConf kafka.ProducerConfig) (*Server, error) {
	producer := kafka.NewProducer(prodConf)

	carts, err := repository.NewRepository(
		context.Background(),
		repository.RepositoryType(utils.GetEnv("CART_REPOSITORY", "cache")),
		func(c models.Cart) string { return c.CustomerId },
	)
	if err != nil {
		return nil, err
	}

	local := events.NewDispatcher()
	bridge := bus.NewBridge(local, &bus.DirectForwarder{
		Producer: producer,
		Topic:    kafka.TopicCart,
	})

	fee, err := strconv.ParseInt(utils.GetEnv("DELIVERY_FEE_CENTS", "299"), 10, 64)
	if err != nil {
		fee = 299
	}

	svc := service.NewCartService(carts, bridge, fee)

	server := &Server{
		Config:   conf,
		Producer: producer,
		Service:  svc,
	}
	server.SetupRouter()

	return server, nil
}

func (s *Server) SetupRouter() {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	cartHandler := handler.NewCartHandler(s.Service)
	cartHandler.RegisterRoutes(router)

	s.Router = router
}

func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", s.Config.Port),
		Handler:      s.Router,
		ReadTimeout:  s.Config.ReadTimeout,
		WriteTimeout: s.Config.WriteTimeout,
		IdleTimeout:  s.Config.IdleTimeout,
	}

	go func() {
		log.Printf("Cart Service starting on %s", s.Config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	return s.HandleShutdown(srv)
}

func (s *Server) HandleShutdown(srv *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down Cart Service...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
		return err
	}

	if err := s.Producer.Close(); err != nil {
		log.Printf("Failed to close kafka Producer: %v", err)
		return err
	}

	log.Printf("Cart Service stopped")
	return nil
}
