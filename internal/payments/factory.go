package payments

import (
	"fmt"

	"fest-ledger/internal/config"
	"fest-ledger/internal/payments/upi"
)

func NewProvider(cfg config.Config) (Provider, error) {
	switch cfg.PaymentProvider {
	case "", "none":
		return None{}, nil
	case "upi":
		return upi.New(cfg.UPIVPA, cfg.UPIPayeeName)
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.PaymentProvider)
	}
}
