// Package gateway adapts the external payment provider. The call is
// synchronous and carries no retry of its own; the paying policy handler owns
// the retry decision.
package gateway

import (
	"context"
	"fmt"

	"github.com/benko325/delivery-platform/pkg/models"
)

type Gateway interface {
	RequestPayment(ctx context.Context, details models.PaymentDetails) (models.PaymentResult, error)
}

type GatewayType string

const (
	GatewayMock GatewayType = "mock"
)

func NewGateway(gatewayType GatewayType) (Gateway, error) {
	var gw Gateway
	switch gatewayType {
	case GatewayMock:
		gw = NewMockGateway()
	default:
		return nil, fmt.Errorf("Not available gateway type: %s", string(gatewayType))
	}

	return gw, nil
}
