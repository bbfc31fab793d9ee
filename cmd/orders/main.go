package main

import (
	"log"
	"strings"
	"time"

	"github.com/benko325/delivery-platform/cmd/orders/server"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/utils"
)

func main() {
	port := utils.GetEnv("ORDER_SERVICE_PORT", "8081")
	kafkaBrokers := utils.GetEnv("KAFKA_BROKERS", "kafka:9092")

	paymentTimeout, err := time.ParseDuration(utils.GetEnv("PAYMENT_TIMEOUT", "5s"))
	if err != nil {
		paymentTimeout = 5 * time.Second
	}

	sConf := server.ServerConfig{
		Port:           port,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		PaymentTimeout: paymentTimeout,
	}

	brokers := strings.Split(kafkaBrokers, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	prodConf := kafka.ProducerConfig{
		Brokers: brokers,
	}
	consConf := kafka.ConsumerConfig{
		Brokers: brokers,
		Topics: []string{
			kafka.TopicCart,
			kafka.TopicOrder,
			kafka.TopicPayment,
			kafka.TopicRestaurant,
		},
		GroupId: "order-svc",
	}

	srv, err := server.NewServer(sConf, prodConf, consConf)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
