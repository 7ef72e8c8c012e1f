package tgbot

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"fest-ledger/internal/models"
)

// RegistrationCreated tells every admin about a new registration.
func (a *App) RegistrationCreated(ctx context.Context, reg models.Registration) error {
	text := fmt.Sprintf("🆕 %s registered for %s / %s (₹%d, %s)\n%s",
		reg.Participant.Name, reg.EventName, reg.SubEventName, reg.EntryFee, reg.Status, reg.ID)
	return a.broadcast(ctx, text)
}

// PaymentConfirmed tells every admin about a confirmed payment.
func (a *App) PaymentConfirmed(ctx context.Context, reg models.Registration) error {
	text := fmt.Sprintf("✅ Payment reported for %s\n%s / %s, ₹%d\nUPI txn: %s",
		reg.ID, reg.EventName, reg.SubEventName, reg.EntryFee, reg.TransactionID)
	return a.broadcast(ctx, text)
}

func (a *App) broadcast(ctx context.Context, text string) error {
	ids := make([]int64, 0, len(a.cfg.AdminTGIDs))
	for id, ok := range a.cfg.AdminTGIDs {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := a.SendText(id, text); err != nil {
			errs = append(errs, fmt.Errorf("notify %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
