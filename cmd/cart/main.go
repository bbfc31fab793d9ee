package main

import (
	"log"
	"strings"
	"time"

	"github.com/benko325/delivery-platform/cmd/cart/server"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/utils"
)

func main() {
	port := utils.GetEnv("CART_SERVICE_PORT", "8080")
	kafkaBrokers := utils.GetEnv("KAFKA_BROKERS", "kafka:9092")

	sConf := server.ServerConfig{
		Port:         port,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	brokers := strings.Split(kafkaBrokers, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	prodConf := kafka.ProducerConfig{
		Brokers: brokers,
	}

	srv, err := server.NewServer(sConf, prodConf)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
