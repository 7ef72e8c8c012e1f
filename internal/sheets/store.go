package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"fest-ledger/internal/apperr"
)

// ErrTableExists is returned by CreateTable when a sheet with the same title
// is already present, e.g. because another process created it first.
var ErrTableExists = errors.New("sheets: table already exists")

// Table is one sheet (tab) of the spreadsheet.
type Table struct {
	ID    int64
	Title string
}

type Color struct {
	Red, Green, Blue float64
}

// HeaderStyle is applied to row 1 of a freshly created table.
type HeaderStyle struct {
	Background Color
	Foreground Color
	Bold       bool
}

// ScanRows reads every row of columns (e.g. "A:O") in sheet order, header
// included. Lookups over the result are linear; Sheets offers no index.
func (c *Client) ScanRows(ctx context.Context, table, columns string) ([][]interface{}, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, qualify(table, columns)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperr.Store("scan "+table, err)
	}
	return resp.Values, nil
}

// AppendRow adds row after the last row of table.
func (c *Client) AppendRow(ctx context.Context, table string, row []interface{}) error {
	if len(row) == 0 {
		return fmt.Errorf("sheets: empty row")
	}
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := c.srv.Spreadsheets.Values.Append(c.spreadsheetID, qualify(table, "A:"+ColumnLetter(len(row)-1)), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return apperr.Store("append "+table, err)
	}
	return nil
}

// UpdateRange overwrites the cells of columns (e.g. "N:O") in sheet row
// rowNum (1-based) with values.
func (c *Client) UpdateRange(ctx context.Context, table string, rowNum int, columns string, values []interface{}) error {
	rng, err := RowRange(columns, rowNum)
	if err != nil {
		return fmt.Errorf("sheets: %w", err)
	}
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{values}}
	_, err = c.srv.Spreadsheets.Values.Update(c.spreadsheetID, qualify(table, rng), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return apperr.Store("update "+table, err)
	}
	return nil
}

func (c *Client) ListTables(ctx context.Context) ([]Table, error) {
	ss, err := c.srv.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperr.Store("list tables", err)
	}
	out := make([]Table, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		out = append(out, Table{ID: s.Properties.SheetId, Title: s.Properties.Title})
	}
	return out, nil
}

// CreateTable adds a sheet named title. A concurrent creator winning the race
// surfaces as ErrTableExists.
func (c *Client) CreateTable(ctx context.Context, title string) (Table, error) {
	req := &sheetsv4.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsv4.Request{{
			AddSheet: &sheetsv4.AddSheetRequest{
				Properties: &sheetsv4.SheetProperties{Title: title},
			},
		}},
	}
	resp, err := c.srv.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		if alreadyExists(err) {
			return Table{}, ErrTableExists
		}
		return Table{}, apperr.Store("create table "+title, err)
	}
	t := Table{Title: title}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		t.ID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	return t, nil
}

// FormatHeader styles row 1 of table.
func (c *Client) FormatHeader(ctx context.Context, table Table, style HeaderStyle) error {
	req := &sheetsv4.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsv4.Request{{
			RepeatCell: &sheetsv4.RepeatCellRequest{
				Range: &sheetsv4.GridRange{
					SheetId:         table.ID,
					StartRowIndex:   0,
					EndRowIndex:     1,
					ForceSendFields: []string{"SheetId", "StartRowIndex"},
				},
				Cell: &sheetsv4.CellData{
					UserEnteredFormat: &sheetsv4.CellFormat{
						BackgroundColor: toColor(style.Background),
						TextFormat: &sheetsv4.TextFormat{
							ForegroundColor: toColor(style.Foreground),
							Bold:            style.Bold,
						},
					},
				},
				Fields: "userEnteredFormat(backgroundColor,textFormat)",
			},
		}},
	}
	if _, err := c.srv.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return apperr.Store("format header "+table.Title, err)
	}
	return nil
}

func toColor(c Color) *sheetsv4.Color {
	return &sheetsv4.Color{
		Red:             c.Red,
		Green:           c.Green,
		Blue:            c.Blue,
		ForceSendFields: []string{"Red", "Green", "Blue"},
	}
}

func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(gerr.Message), "already exists")
}
