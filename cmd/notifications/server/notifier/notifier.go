// Package notifier delivers user-facing notifications. The sim implementation
// stands in for push/SMS/email providers and only logs after a realistic
// delivery delay.
package notifier

import (
	"context"
	"fmt"
	"log"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/utils"
)

type Recipient string

const (
	RecipientCustomer   Recipient = "customer"
	RecipientRestaurant Recipient = "restaurant"
)

type Notification struct {
	Recipient   Recipient `json:"recipient"`
	RecipientId string    `json:"recipient_id"`
	OrderId     string    `json:"order_id"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

type SimNotifier struct {
	Delay time.Duration
}

func NewSimNotifier() *SimNotifier {
	delay, err := time.ParseDuration(utils.GetEnv("NOTIFY_DELAY", "300ms"))
	if err != nil {
		delay = 300 * time.Millisecond
	}
	return &SimNotifier{Delay: delay}
}

func (s *SimNotifier) Send(ctx context.Context, n Notification) error {
	select {
	case <-time.After(s.Delay):
	case <-ctx.Done():
		return svcerror.New(
			svcerror.ErrGatewayError,
			svcerror.WithOp("SimNotifier.Send"),
			svcerror.WithMsg(fmt.Sprintf("notification for order %s timed out", n.OrderId)),
			svcerror.WithCause(ctx.Err()),
			svcerror.WithTime(time.Now().UTC()),
		)
	}

	log.Printf("[NOTIFIER] To %s %s re order %s: %s | %s",
		n.Recipient, n.RecipientId, n.OrderId, n.Subject, n.Body)
	return nil
}
