package models

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	SheetRegistrations = "Registrations"
	SheetPayments      = "Payments"
)

// Column ranges, in A1 notation without the sheet name.
const (
	RegistrationColumns = "A:O"
	PaymentColumns      = "A:D"
	StatusColumns       = "N:O" // status + transaction id
)

const (
	StatusPending = "Pending"
	StatusPaid    = "Paid"
)

// Placeholder written for optional cells left empty.
const NotApplicable = "N/A"

// Column positions inside a Registrations row.
const (
	ColTimestamp = iota
	ColRegistrationID
	ColEventName
	ColSubEventName
	ColName
	ColEmail
	ColPhone
	ColCollege
	ColYear
	ColTeamName
	ColTeamMembers
	ColTeamSize
	ColEntryFee
	ColStatus
	ColTransactionID
)

// RegistrationHeaders is the fixed header row of the Registrations sheet.
// Append-only: new columns go to the end, existing ones never move.
var RegistrationHeaders = []string{
	"Timestamp",
	"Registration ID",
	"Event Name",
	"Sub-Event Name",
	"Name",
	"Email",
	"Phone",
	"College",
	"Year",
	"Team Name",
	"Team Members",
	"Team Size",
	"Entry Fee",
	"Status",
	"Payment Transaction ID",
}

var PaymentHeaders = []string{
	"Timestamp",
	"Registration ID",
	"UPI Transaction ID",
	"Payment Status",
}

type Participant struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	College string `json:"college"`
	Year    string `json:"year"`
}

type Team struct {
	Name    string   `json:"teamName,omitempty"`
	Members []string `json:"teamMembers,omitempty"`
	Size    int      `json:"teamSize"`
}

// SizeLabel renders the Team Size cell.
func (t Team) SizeLabel() string {
	if t.Size <= 1 && t.Name == "" {
		return "Individual"
	}
	if t.Size == 1 {
		return "1 member"
	}
	return fmt.Sprintf("%d members", t.Size)
}

type Registration struct {
	CreatedAt     string      `json:"createdAt"`
	ID            string      `json:"registrationId"`
	EventName     string      `json:"eventName"`
	SubEventName  string      `json:"subEventName"`
	Participant   Participant `json:"participant"`
	Team          Team        `json:"team"`
	EntryFee      int64       `json:"entryFee"`
	Status        string      `json:"paymentStatus"`
	TransactionID string      `json:"paymentTransactionId,omitempty"`
}

// Paid reports whether the record is settled. Any status other than empty or
// Pending counts, so rows written as "Payment Completed" or "paid" are never
// confirmed a second time.
func (r Registration) Paid() bool {
	s := strings.TrimSpace(r.Status)
	return s != "" && !strings.EqualFold(s, StatusPending)
}

// Row encodes r in Registrations column order.
func (r Registration) Row() []interface{} {
	return []interface{}{
		r.CreatedAt,
		r.ID,
		r.EventName,
		r.SubEventName,
		r.Participant.Name,
		r.Participant.Email,
		r.Participant.Phone,
		r.Participant.College,
		r.Participant.Year,
		orNA(r.Team.Name),
		orNA(strings.Join(r.Team.Members, ", ")),
		r.Team.SizeLabel(),
		r.EntryFee,
		r.Status,
		r.TransactionID,
	}
}

// RegistrationFromRow decodes a Registrations row. Missing trailing cells
// decode as empty strings, since the Sheets API trims them.
func RegistrationFromRow(row []interface{}) Registration {
	fee, _ := strconv.ParseInt(strings.TrimSpace(Cell(row, ColEntryFee)), 10, 64)
	return Registration{
		CreatedAt:    Cell(row, ColTimestamp),
		ID:           Cell(row, ColRegistrationID),
		EventName:    Cell(row, ColEventName),
		SubEventName: Cell(row, ColSubEventName),
		Participant: Participant{
			Name:    Cell(row, ColName),
			Email:   Cell(row, ColEmail),
			Phone:   Cell(row, ColPhone),
			College: Cell(row, ColCollege),
			Year:    Cell(row, ColYear),
		},
		Team: Team{
			Name:    fromNA(Cell(row, ColTeamName)),
			Members: splitMembers(fromNA(Cell(row, ColTeamMembers))),
			Size:    parseSize(Cell(row, ColTeamSize)),
		},
		EntryFee:      fee,
		Status:        Cell(row, ColStatus),
		TransactionID: Cell(row, ColTransactionID),
	}
}

// Payment is one line of the Payments audit sheet.
type Payment struct {
	CreatedAt      string
	RegistrationID string
	TransactionID  string
	Status         string
}

func (p Payment) Row() []interface{} {
	return []interface{}{p.CreatedAt, p.RegistrationID, p.TransactionID, p.Status}
}

// Cell returns row[idx] as a string, or "" when the cell is absent.
func Cell(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotApplicable
	}
	return s
}

func fromNA(s string) string {
	if s == NotApplicable {
		return ""
	}
	return s
}

func splitMembers(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func parseSize(s string) int {
	if s == "Individual" {
		return 1
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, " members"), " member")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
