package main

import (
	"log"
	"strings"

	"github.com/benko325/delivery-platform/cmd/notifications/server"
	"github.com/benko325/delivery-platform/pkg/kafka"
	"github.com/benko325/delivery-platform/pkg/utils"
)

func main() {
	kafkaBrokers := utils.GetEnv("KAFKA_BROKERS", "kafka:9092")

	brokers := strings.Split(kafkaBrokers, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	prodConf := kafka.ProducerConfig{
		Brokers: brokers,
	}
	consConf := kafka.ConsumerConfig{
		Brokers: brokers,
		Topics:  []string{kafka.TopicOrder, kafka.TopicPayment},
		GroupId: "notifications-svc",
	}

	srv, err := server.NewServer(prodConf, consConf)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
