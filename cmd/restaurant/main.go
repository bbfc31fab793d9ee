package main

import (
	"log"
	"strings"
	"time"

	"github.com/benko325/delivery-platform/cmd/restaurant/server"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/utils"
)

func main() {
	port := utils.GetEnv("RESTAURANT_SERVICE_PORT", "8082")
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
	consConf := kafka.ConsumerConfig{
		Brokers: brokers,
		Topics:  []string{kafka.TopicOrder},
		GroupId: "restaurant-svc",
	}

	srv := server.NewServer(sConf, prodConf, consConf)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
