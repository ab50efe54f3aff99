// Package airtime buys mobile airtime, funded from the sats ledger.
package airtime

import (
	"context"

	"go.uber.org/zap"

	"sambaza/internal/phone"
)

// Limits on a single airtime purchase, in KES.
const (
	MinKES int64 = 10
	MaxKES int64 = 1000
)

// Purchaser delivers airtime to a phone number.
type Purchaser interface {
	Purchase(ctx context.Context, phoneNumber string, amountKES int64) error
}

// SimulatedPurchaser logs the purchase instead of calling a telco API. Kept
// behind the Purchaser interface so a real aggregator can slot in later.
type SimulatedPurchaser struct {
	logger *zap.Logger
}

// NewSimulatedPurchaser returns a log-only purchaser.
func NewSimulatedPurchaser(logger *zap.Logger) *SimulatedPurchaser {
	return &SimulatedPurchaser{logger: logger}
}

// Purchase records the delivery and the detected carrier.
func (s *SimulatedPurchaser) Purchase(ctx context.Context, phoneNumber string, amountKES int64) error {
	s.logger.Info("delivered airtime",
		zap.String("phone", phoneNumber),
		zap.Int64("amount_kes", amountKES),
		zap.String("carrier", phone.DetectCarrier(phoneNumber)),
	)
	return nil
}
