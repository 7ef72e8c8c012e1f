package payments

import (
	"context"

	"fest-ledger/internal/models"
)

type Provider interface {
	Name() string

	// PaymentLink returns a link the attendee opens to pay reg's entry fee.
	// An empty link means the provider has nothing to offer.
	PaymentLink(ctx context.Context, reg models.Registration) (string, error)
}

// None offers no payment link; attendees pay out of band and report the
// transaction id.
type None struct{}

func (None) Name() string { return "none" }

func (None) PaymentLink(context.Context, models.Registration) (string, error) { return "", nil }
