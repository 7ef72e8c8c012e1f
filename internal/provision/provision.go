// Package provision makes sure the spreadsheet has the tables and header rows
// the ledger writes to. Ensure is idempotent and safe to run from several
// processes at once: table creation tolerates "already exists", and headers
// are written with an in-place update of row 1, never an append, so racing
// provisioners write the same bytes to the same cells.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"fest-ledger/internal/models"
	"fest-ledger/internal/sheets"
)

// Store is the subset of the spreadsheet adapter the provisioner needs.
type Store interface {
	ListTables(ctx context.Context) ([]sheets.Table, error)
	CreateTable(ctx context.Context, title string) (sheets.Table, error)
	FormatHeader(ctx context.Context, table sheets.Table, style sheets.HeaderStyle) error
	ScanRows(ctx context.Context, table, columns string) ([][]interface{}, error)
	UpdateRange(ctx context.Context, table string, rowNum int, columns string, values []interface{}) error
}

// TableSpec describes one required table.
type TableSpec struct {
	Title   string
	Headers []string
	Style   sheets.HeaderStyle
}

func (t TableSpec) columns() string {
	return "A:" + sheets.ColumnLetter(len(t.Headers)-1)
}

var white = sheets.Color{Red: 1, Green: 1, Blue: 1}

// DefaultTables are the Registrations and Payments tables.
func DefaultTables() []TableSpec {
	return []TableSpec{
		{
			Title:   models.SheetRegistrations,
			Headers: models.RegistrationHeaders,
			Style: sheets.HeaderStyle{
				Background: sheets.Color{Red: 0.26, Green: 0.52, Blue: 0.96},
				Foreground: white,
				Bold:       true,
			},
		},
		{
			Title:   models.SheetPayments,
			Headers: models.PaymentHeaders,
			Style: sheets.HeaderStyle{
				Background: sheets.Color{Red: 0.20, Green: 0.66, Blue: 0.33},
				Foreground: white,
				Bold:       true,
			},
		},
	}
}

type Provisioner struct {
	store  Store
	tables []TableSpec
	log    *slog.Logger

	ready atomic.Bool
	group singleflight.Group
}

// New returns a provisioner for tables, or for DefaultTables when none are
// given.
func New(store Store, log *slog.Logger, tables ...TableSpec) *Provisioner {
	if len(tables) == 0 {
		tables = DefaultTables()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Provisioner{store: store, tables: tables, log: log}
}

// Ensure provisions the schema once per process. Success is remembered;
// failures are not, so the next caller tries again.
func (p *Provisioner) Ensure(ctx context.Context) error {
	if p.ready.Load() {
		return nil
	}
	_, err, _ := p.group.Do("ensure", func() (interface{}, error) {
		if p.ready.Load() {
			return nil, nil
		}
		// shared by every waiter, so one caller going away must not fail
		// the others
		if err := p.ensure(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		p.ready.Store(true)
		return nil, nil
	})
	return err
}

// Ready reports whether Ensure has completed successfully.
func (p *Provisioner) Ready() bool { return p.ready.Load() }

func (p *Provisioner) ensure(ctx context.Context) error {
	existing, err := p.store.ListTables(ctx)
	if err != nil {
		return err
	}
	byTitle := make(map[string]sheets.Table, len(existing))
	for _, t := range existing {
		byTitle[t.Title] = t
	}

	for _, spec := range p.tables {
		tbl, found := byTitle[spec.Title]
		created := false
		if !found {
			tbl, err = p.store.CreateTable(ctx, spec.Title)
			switch {
			case errors.Is(err, sheets.ErrTableExists):
				p.log.Info("table created concurrently", "table", spec.Title)
			case err != nil:
				return err
			default:
				created = true
				p.log.Info("table created", "table", spec.Title, "sheet_id", tbl.ID)
			}
		}

		if err := p.ensureHeader(ctx, spec); err != nil {
			return err
		}

		if created {
			if err := p.store.FormatHeader(ctx, tbl, spec.Style); err != nil {
				p.log.Warn("format header", "table", spec.Title, "error", err)
			}
		}
	}
	return nil
}

// ensureHeader writes the header into row 1 when that row is empty. A
// non-empty row 1 is never modified.
func (p *Provisioner) ensureHeader(ctx context.Context, spec TableSpec) error {
	last := sheets.ColumnLetter(len(spec.Headers) - 1)
	rows, err := p.store.ScanRows(ctx, spec.Title, fmt.Sprintf("A1:%s1", last))
	if err != nil {
		return err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		if !sameHeader(rows[0], spec.Headers) {
			p.log.Warn("existing header differs, leaving it untouched",
				"table", spec.Title, "found", rows[0], "expected", spec.Headers)
		}
		return nil
	}

	values := make([]interface{}, len(spec.Headers))
	for i, h := range spec.Headers {
		values[i] = h
	}
	if err := p.store.UpdateRange(ctx, spec.Title, 1, spec.columns(), values); err != nil {
		return err
	}
	p.log.Info("header written", "table", spec.Title)
	return nil
}

func sameHeader(row []interface{}, headers []string) bool {
	if len(row) != len(headers) {
		return false
	}
	for i, h := range headers {
		if models.Cell(row, i) != h {
			return false
		}
	}
	return true
}
