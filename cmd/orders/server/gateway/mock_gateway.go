package gateway

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/utils"

	"github.com/google/uuid"
)

type MockGateway struct {
	FailureRate    float64
	ProcessingTime time.Duration
}

func NewMockGateway() *MockGateway {
	rate, err := strconv.ParseFloat(utils.GetEnv("PAYMENT_FAILURE_RATE", "0.1"), 64)
	if err != nil {
		rate = 0.1
	}
	delay, err := time.ParseDuration(utils.GetEnv("PAYMENT_PROCESSING_TIME", "2s"))
	if err != nil {
		delay = 2 * time.Second
	}

	return &MockGateway{
		FailureRate:    rate,
		ProcessingTime: delay,
	}
}

var declineReasons = []string{
	"Insufficient funds",
	"Card declined",
	"Invalid card number",
	"Expired card",
	"Transaction limit exceeded",
	"Bank rejected transaction",
}

// RequestPayment simulates the provider round-trip. A context deadline that
// expires mid-call surfaces as a gateway error, never as success and never
// silently: expiry is a distinct, retriable failure path.
func (m *MockGateway) RequestPayment(ctx context.Context, details models.PaymentDetails) (models.PaymentResult, error) {
	log.Printf("[MOCK] Processing payment for order %s, amount %d %s",
		details.OrderId,
		details.AmountCents,
		details.Currency,
	)

	select {
	case <-time.After(m.ProcessingTime):
	case <-ctx.Done():
		return models.PaymentResult{
				Success:       false,
				OrderId:       details.OrderId,
				FailureReason: "gateway call timed out",
			}, svcerror.New(
				svcerror.ErrGatewayError,
				svcerror.WithOp("MockGateway.RequestPayment"),
				svcerror.WithMsg(fmt.Sprintf("payment for order %s timed out", details.OrderId)),
				svcerror.WithCause(ctx.Err()),
				svcerror.WithTime(time.Now().UTC()),
			)
	}

	if rand.Float64() < m.FailureRate {
		reason := declineReasons[rand.Intn(len(declineReasons))]
		log.Printf("[MOCK] Payment FAILED for order %s: %s", details.OrderId, reason)

		return models.PaymentResult{
			Success:       false,
			OrderId:       details.OrderId,
			CustomerId:    details.CustomerId,
			FailureReason: reason,
		}, nil
	}

	paymentRequestId := fmt.Sprintf("PAY-%s", uuid.NewString()[:8])
	log.Printf("[MOCK] Payment SUCCESSFUL for order %s, request: %s", details.OrderId, paymentRequestId)

	return models.PaymentResult{
		Success:          true,
		OrderId:          details.OrderId,
		CustomerId:       details.CustomerId,
		PaymentRequestId: paymentRequestId,
		AmountCents:      details.AmountCents,
		Currency:         details.Currency,
	}, nil
}
