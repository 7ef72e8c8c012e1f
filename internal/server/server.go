package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fest-ledger/internal/apperr"
	"fest-ledger/internal/catalog"
	"fest-ledger/internal/config"
	"fest-ledger/internal/ledger"
	"fest-ledger/internal/models"
	"fest-ledger/internal/util"
)

// Ledger is what the HTTP boundary needs from the registration ledger.
type Ledger interface {
	CreateRegistration(ctx context.Context, req ledger.Request) (ledger.Receipt, error)
	ConfirmPayment(ctx context.Context, registrationID, upiTransactionID string) error
	Lookup(ctx context.Context, registrationID string) (models.Registration, error)
	Export(ctx context.Context, eventName string) ([]models.Registration, error)
	Catalog() *catalog.Catalog
}

const maxBodyBytes = 64 << 10

type handler struct {
	cfg    config.Config
	ledger Ledger
	log    *slog.Logger
}

func New(cfg config.Config, l Ledger, log *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(cfg, l, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler returns the router with every route and middleware attached.
func NewHandler(cfg config.Config, l Ledger, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &handler{cfg: cfg, ledger: l, log: log}

	router := mux.NewRouter()
	router.Use(h.recoverPanics, h.logRequests)

	router.HandleFunc("/registrations", h.createRegistration).Methods(http.MethodPost)
	router.HandleFunc("/registrations/{id}/payment", h.confirmPayment).Methods(http.MethodPost)
	router.HandleFunc("/registrations/{id}", h.getRegistration).Methods(http.MethodGet)
	router.HandleFunc("/events", h.listEvents).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.HandleFunc("/export/registrations.csv", h.exportCSV).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, failure("not found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, failure("method not allowed"))
	})
	return router
}

func (h *handler) createRegistration(w http.ResponseWriter, r *http.Request) {
	var req ledger.Request
	if !decodeBody(w, r, &req) {
		return
	}
	rc, err := h.ledger.CreateRegistration(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body := map[string]any{
		"success":        true,
		"registrationId": rc.RegistrationID,
		"entryFee":       rc.EntryFee,
		"status":         rc.Status,
	}
	if rc.PaymentLink != "" {
		body["paymentLink"] = rc.PaymentLink
	}
	writeJSON(w, http.StatusOK, body)
}

type paymentRequest struct {
	UPITransactionID string `json:"upiTransactionId"`
}

func (h *handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.ledger.ConfirmPayment(r.Context(), id, req.UPITransactionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *handler) getRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.ledger.Lookup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "registration": reg})
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": h.ledger.Catalog().Events})
}

// health reports which settings are present, never their values.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"storeDriver": h.cfg.StoreDriver,
		"configured":  h.cfg.Presence(),
		"time":        util.NowISO(),
	})
}

// ---------- responses ----------

func failure(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrAlreadyConfirmed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, failure(err.Error()))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil {
		// exactly one JSON value per body
		if dec.Decode(&struct{}{}) != io.EOF {
			err = errTrailingData
		}
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, failure("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, failure("invalid JSON body"))
		return false
	}
	return true
}

var errTrailingData = errors.New("trailing data after JSON body")
