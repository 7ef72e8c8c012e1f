// Package upi builds UPI deep links (upi://pay) for a registration's entry
// fee. Any UPI app on the attendee's phone can open them; the transaction id
// the app shows afterwards is what the attendee reports back.
package upi

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"fest-ledger/internal/models"
)

// handle@psp, e.g. milanfest@okaxis
var vpaRe = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9]{1,64}$`)

type Provider struct {
	vpa   string
	payee string
}

func New(vpa, payee string) (*Provider, error) {
	vpa = strings.TrimSpace(vpa)
	if !vpaRe.MatchString(vpa) {
		return nil, fmt.Errorf("upi: invalid VPA %q", vpa)
	}
	payee = strings.TrimSpace(payee)
	if payee == "" {
		payee = vpa
	}
	return &Provider{vpa: vpa, payee: payee}, nil
}

func (p *Provider) Name() string { return "upi" }

func (p *Provider) PaymentLink(_ context.Context, reg models.Registration) (string, error) {
	if reg.EntryFee <= 0 {
		return "", nil
	}
	if reg.ID == "" {
		return "", fmt.Errorf("upi: registration has no id")
	}
	q := url.Values{}
	q.Set("pa", p.vpa)
	q.Set("pn", p.payee)
	q.Set("am", fmt.Sprintf("%d.00", reg.EntryFee))
	q.Set("cu", "INR")
	q.Set("tr", reg.ID)
	q.Set("tn", note(reg))
	u := url.URL{Scheme: "upi", Host: "pay", RawQuery: q.Encode()}
	return u.String(), nil
}

const maxNoteRunes = 50

// note is the transaction remark; UPI apps cap it, so keep it short.
func note(reg models.Registration) string {
	n := reg.SubEventName + " " + reg.ID
	if r := []rune(n); len(r) > maxNoteRunes {
		n = string(r[:maxNoteRunes])
	}
	return n
}
