package provision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fest-ledger/internal/apperr"
	"fest-ledger/internal/models"
	"fest-ledger/internal/sheets"
	"fest-ledger/internal/sheets/memsheet"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func headerRow(h []string) []interface{} {
	out := make([]interface{}, len(h))
	for i, v := range h {
		out[i] = v
	}
	return out
}

func TestEnsureCreatesTablesAndHeaders(t *testing.T) {
	store := memsheet.New()
	p := New(store, quietLogger())

	require.NoError(t, p.Ensure(context.Background()))
	assert.True(t, p.Ready())

	regs := store.Rows(models.SheetRegistrations)
	require.Len(t, regs, 1)
	assert.Equal(t, headerRow(models.RegistrationHeaders), regs[0])

	pays := store.Rows(models.SheetPayments)
	require.Len(t, pays, 1)
	assert.Equal(t, headerRow(models.PaymentHeaders), pays[0])

	style := store.Style(models.SheetRegistrations)
	require.NotNil(t, style)
	assert.True(t, style.Bold)
	assert.InDelta(t, 0.96, style.Background.Blue, 1e-9)

	style = store.Style(models.SheetPayments)
	require.NotNil(t, style)
	assert.InDelta(t, 0.66, style.Background.Green, 1e-9)
}

func TestEnsureIsCachedAfterSuccess(t *testing.T) {
	store := memsheet.New()
	p := New(store, quietLogger())
	ctx := context.Background()

	require.NoError(t, p.Ensure(ctx))
	listed := store.Calls(memsheet.OpListTables)
	require.NoError(t, p.Ensure(ctx))
	assert.Equal(t, listed, store.Calls(memsheet.OpListTables))
}

func TestEnsureTwiceFromSeparateProcesses(t *testing.T) {
	store := memsheet.New()
	ctx := context.Background()

	require.NoError(t, New(store, quietLogger()).Ensure(ctx))
	require.NoError(t, New(store, quietLogger()).Ensure(ctx))

	assert.Len(t, store.Rows(models.SheetRegistrations), 1)
	assert.Len(t, store.Rows(models.SheetPayments), 1)
	assert.Equal(t, 2, store.Calls(memsheet.OpCreateTable))
}

func TestEnsureConcurrentProvisioners(t *testing.T) {
	store := memsheet.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = New(store, quietLogger()).Ensure(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	tables, err := store.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 2)
	assert.Len(t, store.Rows(models.SheetRegistrations), 1)
	assert.Len(t, store.Rows(models.SheetPayments), 1)
}

func TestEnsureRepairsEmptyHeaderRow(t *testing.T) {
	store := memsheet.New()
	store.Seed(models.SheetRegistrations)
	store.Seed(models.SheetPayments)

	require.NoError(t, New(store, quietLogger()).Ensure(context.Background()))

	assert.Equal(t, headerRow(models.RegistrationHeaders), store.Rows(models.SheetRegistrations)[0])
	assert.Equal(t, headerRow(models.PaymentHeaders), store.Rows(models.SheetPayments)[0])
	assert.Zero(t, store.Calls(memsheet.OpCreateTable))
	// existing tables keep whatever formatting they have
	assert.Zero(t, store.Calls(memsheet.OpFormatHeader))
}

func TestEnsureLeavesExistingHeaderAlone(t *testing.T) {
	store := memsheet.New()
	custom := []interface{}{"When", "ID", "Event"}
	data := []interface{}{"2026-02-14T09:00:00Z", "MILAN-1-ABCDEFGH", "Kritansh"}
	store.Seed(models.SheetRegistrations, custom, data)
	store.Seed(models.SheetPayments, headerRow(models.PaymentHeaders))

	require.NoError(t, New(store, quietLogger()).Ensure(context.Background()))

	rows := store.Rows(models.SheetRegistrations)
	require.Len(t, rows, 2)
	assert.Equal(t, custom, rows[0])
	assert.Equal(t, data, rows[1])
	assert.Zero(t, store.Calls(memsheet.OpUpdate))
}

func TestEnsureFailureIsNotCached(t *testing.T) {
	store := memsheet.New()
	p := New(store, quietLogger())
	ctx := context.Background()

	store.Fail(memsheet.OpListTables, errors.New("permission denied"))
	err := p.Ensure(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrStore)
	assert.False(t, p.Ready())

	store.Fail(memsheet.OpListTables, nil)
	require.NoError(t, p.Ensure(ctx))
	assert.True(t, p.Ready())
}

func TestFormatFailureDoesNotFailEnsure(t *testing.T) {
	store := memsheet.New()
	store.Fail(memsheet.OpFormatHeader, errors.New("quota"))

	require.NoError(t, New(store, quietLogger()).Ensure(context.Background()))
	assert.Len(t, store.Rows(models.SheetRegistrations), 1)
	assert.Nil(t, store.Style(models.SheetRegistrations))
}

// ctxStore fails every call made on a cancelled context.
type ctxStore struct {
	*memsheet.Store
}

func (s ctxStore) ListTables(ctx context.Context) ([]sheets.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.ListTables(ctx)
}

func (s ctxStore) ScanRows(ctx context.Context, name, columns string) ([][]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.ScanRows(ctx, name, columns)
}

func TestEnsureIgnoresCallerCancellation(t *testing.T) {
	mem := memsheet.New()
	p := New(ctxStore{mem}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Ensure(ctx))
	assert.True(t, p.Ready())
	assert.Len(t, mem.Rows(models.SheetRegistrations), 1)
}
