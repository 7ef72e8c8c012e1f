package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"fest-ledger/internal/models"
	"fest-ledger/internal/util"
)

// exportCSV streams the registrations of one event (or all of them) as CSV.
// The link carries an HMAC token, handed out by the admin bot; the route does
// not exist when no export secret is configured.
func (h *handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	if h.cfg.ExportSecret == "" {
		writeJSON(w, http.StatusNotFound, failure("not found"))
		return
	}
	event := strings.TrimSpace(r.URL.Query().Get("event"))
	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, failure("token required"))
		return
	}
	if !util.VerifyExportToken(h.cfg.ExportSecret, event, token) {
		writeJSON(w, http.StatusForbidden, failure("invalid token"))
		return
	}

	regs, err := h.ledger.Export(r.Context(), event)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	name := "registrations.csv"
	if event != "" {
		name = "registrations_" + fileSafe(event) + ".csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(models.RegistrationHeaders)
	for _, reg := range regs {
		row := reg.Row()
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = cellText(v)
		}
		if err := cw.Write(rec); err != nil {
			h.log.Warn("write csv", "error", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.log.Warn("flush csv", "error", err)
	}
}

// cellText neutralises values a spreadsheet would evaluate as a formula.
func cellText(v interface{}) string {
	s := fmt.Sprint(v)
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
