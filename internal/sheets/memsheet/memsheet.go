// Package memsheet is an in-process spreadsheet with the same contract as
// sheets.Client: rows in insertion order, no uniqueness, no transactions.
// It backs the "memory" store driver and the tests, and can be told to fail
// individual operations.
package memsheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"fest-ledger/internal/apperr"
	"fest-ledger/internal/sheets"
)

type Op string

const (
	OpScan         Op = "scan"
	OpAppend       Op = "append"
	OpUpdate       Op = "update"
	OpListTables   Op = "list_tables"
	OpCreateTable  Op = "create_table"
	OpFormatHeader Op = "format_header"
)

type table struct {
	meta  sheets.Table
	rows  [][]interface{}
	style *sheets.HeaderStyle
}

type Store struct {
	mu     sync.Mutex
	tables []*table
	nextID int64
	faults map[Op]error
	calls  map[Op]int
}

func New() *Store {
	return &Store{
		faults: map[Op]error{},
		calls:  map[Op]int{},
	}
}

// Fail makes every subsequent call of op return err. A nil err clears it.
func (s *Store) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// Calls reports how many times op was invoked, failed calls included.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Rows returns a copy of every row of the named table.
func (s *Store) Rows(name string) [][]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(name)
	if t == nil {
		return nil
	}
	return copyRows(t.rows)
}

// Style returns the header style applied to the named table, if any.
func (s *Store) Style(name string) *sheets.HeaderStyle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.find(name); t != nil {
		return t.style
	}
	return nil
}

// Seed creates the named table (if needed) and appends rows to it without
// counting as calls.
func (s *Store) Seed(name string, rows ...[]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(name)
	if t == nil {
		t = s.add(name)
	}
	t.rows = append(t.rows, copyRows(rows)...)
}

func (s *Store) ScanRows(_ context.Context, name, columns string) ([][]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpScan); err != nil {
		return nil, err
	}
	t := s.find(name)
	if t == nil {
		return nil, apperr.Store("scan "+name, fmt.Errorf("unable to parse range: %s!%s", name, columns))
	}
	rng, err := parseRange(columns)
	if err != nil {
		return nil, apperr.Store("scan "+name, err)
	}

	var out [][]interface{}
	for i, row := range t.rows {
		if i < rng.fromRow || (rng.toRow >= 0 && i > rng.toRow) {
			continue
		}
		out = append(out, trimRow(slice(row, rng.fromCol, rng.toCol)))
	}
	// the API omits trailing empty rows
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (s *Store) AppendRow(_ context.Context, name string, row []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpAppend); err != nil {
		return err
	}
	t := s.find(name)
	if t == nil {
		return apperr.Store("append "+name, fmt.Errorf("unable to parse range: %s!A:%s", name, sheets.ColumnLetter(len(row)-1)))
	}
	// like the API, append lands after the last non-empty row
	last := len(t.rows)
	for last > 0 && len(trimRow(t.rows[last-1])) == 0 {
		last--
	}
	t.rows = append(t.rows[:last], append([]interface{}(nil), row...))
	return nil
}

func (s *Store) UpdateRange(_ context.Context, name string, rowNum int, columns string, values []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdate); err != nil {
		return err
	}
	t := s.find(name)
	if t == nil {
		return apperr.Store("update "+name, fmt.Errorf("unable to parse range: %s!%s", name, columns))
	}
	if _, err := sheets.RowRange(columns, rowNum); err != nil {
		return fmt.Errorf("memsheet: %w", err)
	}
	from, _, _ := strings.Cut(columns, ":")
	col := sheets.ColumnIndex(from)

	for len(t.rows) < rowNum {
		t.rows = append(t.rows, nil)
	}
	row := t.rows[rowNum-1]
	for len(row) < col+len(values) {
		row = append(row, "")
	}
	copy(row[col:], values)
	t.rows[rowNum-1] = row
	return nil
}

func (s *Store) ListTables(_ context.Context) ([]sheets.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListTables); err != nil {
		return nil, err
	}
	out := make([]sheets.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t.meta)
	}
	return out, nil
}

func (s *Store) CreateTable(_ context.Context, name string) (sheets.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateTable); err != nil {
		return sheets.Table{}, err
	}
	if s.find(name) != nil {
		return sheets.Table{}, sheets.ErrTableExists
	}
	return s.add(name).meta, nil
}

func (s *Store) FormatHeader(_ context.Context, tbl sheets.Table, style sheets.HeaderStyle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFormatHeader); err != nil {
		return err
	}
	for _, t := range s.tables {
		if t.meta.ID == tbl.ID {
			st := style
			t.style = &st
			return nil
		}
	}
	return apperr.Store("format header "+tbl.Title, fmt.Errorf("no sheet with id %d", tbl.ID))
}

func (s *Store) enter(op Op) error {
	s.calls[op]++
	if err := s.faults[op]; err != nil {
		return apperr.Store(string(op), err)
	}
	return nil
}

func (s *Store) find(name string) *table {
	for _, t := range s.tables {
		if t.meta.Title == name {
			return t
		}
	}
	return nil
}

func (s *Store) add(name string) *table {
	t := &table{meta: sheets.Table{ID: s.nextID, Title: name}}
	s.nextID++
	s.tables = append(s.tables, t)
	return t
}

type a1Range struct {
	fromCol, toCol int
	fromRow, toRow int // zero-based, toRow -1 = open
}

// parseRange understands the spans this module uses: "A:O" and "A1:O1".
func parseRange(s string) (a1Range, error) {
	from, to, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(s)), ":")
	if !ok {
		to = from
	}
	fc, fr, err1 := splitCell(from)
	tc, tr, err2 := splitCell(to)
	if err1 != nil || err2 != nil || fc < 0 || tc < fc {
		return a1Range{}, fmt.Errorf("bad range %q", s)
	}
	r := a1Range{fromCol: fc, toCol: tc, fromRow: 0, toRow: -1}
	if fr > 0 {
		r.fromRow = fr - 1
	}
	if tr > 0 {
		r.toRow = tr - 1
	}
	return r, nil
}

func splitCell(cell string) (col, row int, err error) {
	i := strings.IndexAny(cell, "0123456789")
	if i < 0 {
		return sheets.ColumnIndex(cell), 0, nil
	}
	row, err = strconv.Atoi(cell[i:])
	return sheets.ColumnIndex(cell[:i]), row, err
}

func slice(row []interface{}, from, to int) []interface{} {
	if from >= len(row) {
		return nil
	}
	if to >= len(row) {
		to = len(row) - 1
	}
	return append([]interface{}(nil), row[from:to+1]...)
}

func trimRow(row []interface{}) []interface{} {
	for len(row) > 0 {
		v := row[len(row)-1]
		if v != nil && fmt.Sprint(v) != "" {
			break
		}
		row = row[:len(row)-1]
	}
	return row
}

func copyRows(rows [][]interface{}) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = append([]interface{}(nil), r...)
	}
	return out
}
