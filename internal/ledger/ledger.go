// Package ledger registers attendees for sub-events and records their UPI
// payments in a spreadsheet-backed store.
//
// The store offers no transactions, no unique keys and only linear-scan
// lookup, so the ledger is careful about what it promises:
//
//   - identifiers are unique because the generator makes them unique, not
//     because the store checks;
//   - a confirmation is a scan followed by an in-place update. Two confirms
//     racing on the same id can both observe Pending and both write. They
//     write identical status cells, so the only visible effect is a second
//     line in the Payments audit table. This is accepted.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"fest-ledger/internal/apperr"
	"fest-ledger/internal/catalog"
	"fest-ledger/internal/models"
)

// Store is the row-level contract of the spreadsheet adapter.
type Store interface {
	ScanRows(ctx context.Context, table, columns string) ([][]interface{}, error)
	AppendRow(ctx context.Context, table string, row []interface{}) error
	UpdateRange(ctx context.Context, table string, rowNum int, columns string, values []interface{}) error
}

type Provisioner interface {
	Ensure(ctx context.Context) error
}

type IDGenerator interface {
	Generate() string
}

// Notifier is told about ledger changes after they are written. Errors are
// logged and otherwise ignored.
type Notifier interface {
	RegistrationCreated(ctx context.Context, reg models.Registration) error
	PaymentConfirmed(ctx context.Context, reg models.Registration) error
}

// PaymentLinker builds a link the attendee can pay the entry fee with.
type PaymentLinker interface {
	PaymentLink(ctx context.Context, reg models.Registration) (string, error)
}

const (
	minTxnLen = 6
	maxTxnLen = 64
)

type Ledger struct {
	store     Store
	provision Provisioner
	ids       IDGenerator
	catalog   *catalog.Catalog
	validate  *validator.Validate

	notifier Notifier
	payments PaymentLinker
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Ledger)

func WithNotifier(n Notifier) Option { return func(l *Ledger) { l.notifier = n } }

func WithPaymentLinker(p PaymentLinker) Option { return func(l *Ledger) { l.payments = p } }

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func WithLogger(log *slog.Logger) Option { return func(l *Ledger) { l.log = log } }

func New(store Store, prov Provisioner, ids IDGenerator, cat *catalog.Catalog, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		provision: prov,
		ids:       ids,
		catalog:   cat,
		validate:  newValidator(),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) Catalog() *catalog.Catalog { return l.catalog }

// Receipt is returned to the caller of CreateRegistration.
type Receipt struct {
	RegistrationID string `json:"registrationId"`
	EntryFee       int64  `json:"entryFee"`
	Status         string `json:"status"`
	PaymentLink    string `json:"paymentLink,omitempty"`
}

// CreateRegistration validates req, prices it from the catalog and appends a
// new record. A failed append is reported as a store error and not retried;
// no record was written.
func (l *Ledger) CreateRegistration(ctx context.Context, req Request) (Receipt, error) {
	reg, err := l.build(req)
	if err != nil {
		return Receipt{}, err
	}
	if err := l.provision.Ensure(ctx); err != nil {
		return Receipt{}, err
	}

	reg.ID = l.ids.Generate()
	reg.CreatedAt = l.timestamp()

	// once the request is sent the write should finish even if the caller
	// goes away
	wctx := context.WithoutCancel(ctx)
	if err := l.store.AppendRow(wctx, models.SheetRegistrations, reg.Row()); err != nil {
		l.log.Error("append registration", "registration_id", reg.ID, "error", err)
		return Receipt{}, apperr.Store("append registration", err)
	}
	l.log.Info("registration created",
		"registration_id", reg.ID,
		"event", reg.EventName,
		"sub_event", reg.SubEventName,
		"entry_fee", reg.EntryFee,
		"status", reg.Status,
	)

	rc := Receipt{RegistrationID: reg.ID, EntryFee: reg.EntryFee, Status: reg.Status}
	if !reg.Paid() && l.payments != nil {
		link, err := l.payments.PaymentLink(ctx, reg)
		if err != nil {
			l.log.Warn("payment link", "registration_id", reg.ID, "error", err)
		}
		rc.PaymentLink = link
	}
	if l.notifier != nil {
		if err := l.notifier.RegistrationCreated(wctx, reg); err != nil {
			l.log.Warn("notify registration", "registration_id", reg.ID, "error", err)
		}
	}
	return rc, nil
}

// build validates the request and resolves it into a record without an id.
func (l *Ledger) build(req Request) (models.Registration, error) {
	req.normalize()
	if err := l.validate.Struct(req); err != nil {
		return models.Registration{}, validationError(err)
	}

	ev, se, ok := l.catalog.Lookup(req.EventName, req.SubEventName)
	if !ok {
		if ev.Name == "" {
			return models.Registration{}, apperr.Validation("eventName", fmt.Sprintf("unknown event %q", req.EventName))
		}
		return models.Registration{}, apperr.Validation("subEventName",
			fmt.Sprintf("unknown sub-event %q for %s", req.SubEventName, ev.Name))
	}

	requested := req.TeamSize
	if requested == 0 && len(req.TeamMembers) > 0 {
		requested = len(req.TeamMembers)
	}
	if req.TeamSize > 0 && len(req.TeamMembers) > req.TeamSize {
		return models.Registration{}, apperr.Validation("teamMembers", "lists more members than the team size")
	}
	n, err := se.HeadCount(requested)
	if err != nil {
		return models.Registration{}, apperr.Validation("teamSize", err.Error())
	}

	team := models.Team{Size: n}
	if se.IsTeam(n) {
		if req.TeamName == "" && se.RequiresTeamName(n) {
			return models.Registration{}, apperr.Validation("teamName", "is required for group events")
		}
		team.Name = req.TeamName
		team.Members = req.TeamMembers
	}

	fee, err := se.EntryFee(n)
	if err != nil {
		return models.Registration{}, apperr.Validation("teamSize", err.Error())
	}
	if req.EntryFee != nil && *req.EntryFee != fee {
		return models.Registration{}, apperr.Validation("entryFee", fmt.Sprintf("does not match the fee of %d", fee))
	}

	status := models.StatusPending
	if fee == 0 {
		status = models.StatusPaid
	}

	return models.Registration{
		EventName:    ev.Name,
		SubEventName: se.Name,
		Participant: models.Participant{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			College: req.College,
			Year:    req.Year,
		},
		Team:     team,
		EntryFee: fee,
		Status:   status,
	}, nil
}

// ConfirmPayment marks the registration as paid with the given UPI
// transaction id. It fails with not found when no record has the id and with
// already confirmed when the record is already paid; in both cases nothing is
// written.
func (l *Ledger) ConfirmPayment(ctx context.Context, registrationID, upiTransactionID string) error {
	registrationID = strings.TrimSpace(registrationID)
	txn := strings.TrimSpace(upiTransactionID)
	if registrationID == "" {
		return apperr.Validation("registrationId", "is required")
	}
	if len(txn) < minTxnLen || len(txn) > maxTxnLen {
		return apperr.Validation("upiTransactionId",
			fmt.Sprintf("must be %d to %d characters", minTxnLen, maxTxnLen))
	}
	if err := l.provision.Ensure(ctx); err != nil {
		return err
	}

	rowNum, reg, err := l.find(ctx, "confirm payment", registrationID)
	if err != nil {
		return err
	}
	if reg.Paid() {
		l.log.Info("payment already confirmed", "registration_id", registrationID)
		return apperr.AlreadyConfirmed("confirm payment")
	}

	// Not atomic with the scan above: a concurrent confirm may have written
	// in between. Both writers put the same two cells in the same row.
	wctx := context.WithoutCancel(ctx)
	err = l.store.UpdateRange(wctx, models.SheetRegistrations, rowNum, models.StatusColumns,
		[]interface{}{models.StatusPaid, txn})
	if err != nil {
		l.log.Error("update payment status", "registration_id", registrationID, "row", rowNum, "error", err)
		return apperr.Store("confirm payment", err)
	}
	reg.Status = models.StatusPaid
	reg.TransactionID = txn
	l.log.Info("payment confirmed", "registration_id", registrationID, "row", rowNum)

	audit := models.Payment{
		CreatedAt:      l.timestamp(),
		RegistrationID: registrationID,
		TransactionID:  txn,
		Status:         models.StatusPaid,
	}
	if err := l.store.AppendRow(wctx, models.SheetPayments, audit.Row()); err != nil {
		l.log.Warn("append payment audit", "registration_id", registrationID, "error", err)
	}
	if l.notifier != nil {
		if err := l.notifier.PaymentConfirmed(wctx, reg); err != nil {
			l.log.Warn("notify payment", "registration_id", registrationID, "error", err)
		}
	}
	return nil
}

// Lookup returns the record with the given id.
func (l *Ledger) Lookup(ctx context.Context, registrationID string) (models.Registration, error) {
	registrationID = strings.TrimSpace(registrationID)
	if registrationID == "" {
		return models.Registration{}, apperr.Validation("registrationId", "is required")
	}
	if err := l.provision.Ensure(ctx); err != nil {
		return models.Registration{}, err
	}
	_, reg, err := l.find(ctx, "lookup", registrationID)
	return reg, err
}

// Export returns every record of eventName (case-insensitive), or every
// record when eventName is empty, in insertion order.
func (l *Ledger) Export(ctx context.Context, eventName string) ([]models.Registration, error) {
	if err := l.provision.Ensure(ctx); err != nil {
		return nil, err
	}
	rows, err := l.store.ScanRows(ctx, models.SheetRegistrations, models.RegistrationColumns)
	if err != nil {
		return nil, apperr.Store("export", err)
	}
	eventName = strings.TrimSpace(eventName)
	var out []models.Registration
	for _, row := range skipHeader(rows) {
		reg := models.RegistrationFromRow(row)
		if strings.TrimSpace(reg.ID) == "" {
			continue
		}
		if eventName != "" && !strings.EqualFold(reg.EventName, eventName) {
			continue
		}
		out = append(out, reg)
	}
	return out, nil
}

// find scans the registrations table for id. The first match in insertion
// order wins. rowNum is the 1-based sheet row.
func (l *Ledger) find(ctx context.Context, op, id string) (rowNum int, reg models.Registration, err error) {
	rows, err := l.store.ScanRows(ctx, models.SheetRegistrations, models.RegistrationColumns)
	if err != nil {
		return 0, models.Registration{}, apperr.Store(op, err)
	}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if strings.TrimSpace(models.Cell(row, models.ColRegistrationID)) == id {
			return i + 1, models.RegistrationFromRow(row), nil
		}
	}
	return 0, models.Registration{}, apperr.NotFound(op)
}

func (l *Ledger) timestamp() string {
	return l.now().UTC().Format(time.RFC3339)
}

func skipHeader(rows [][]interface{}) [][]interface{} {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}
