package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fest-ledger/internal/catalog"
	"fest-ledger/internal/config"
	"fest-ledger/internal/ledger"
	"fest-ledger/internal/models"
	"fest-ledger/internal/provision"
	"fest-ledger/internal/regid"
	"fest-ledger/internal/sheets/memsheet"
	"fest-ledger/internal/util"
)

type env struct {
	srv   *httptest.Server
	store *memsheet.Store
}

func newEnv(t *testing.T, cfg config.Config) *env {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memsheet.New()
	l := ledger.New(store, provision.New(store, log), regid.New("MILAN"), cat, ledger.WithLogger(log))

	if cfg.StoreDriver == "" {
		cfg.StoreDriver = config.DriverMemory
	}
	srv := httptest.NewServer(NewHandler(cfg, l, log))
	t.Cleanup(srv.Close)
	return &env{srv: srv, store: store}
}

func (e *env) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

const chessBody = `{
	"eventName": "Kritansh",
	"subEventName": "Chess",
	"name": "Asha Rao",
	"email": "asha@example.com",
	"phone": "9876543210",
	"college": "GITAM",
	"year": "2",
	"entryFee": 150
}`

func (e *env) register(t *testing.T) string {
	t.Helper()
	status, out := e.do(t, http.MethodPost, "/registrations", chessBody)
	require.Equal(t, http.StatusOK, status, out)
	return out["registrationId"].(string)
}

func TestRegisterAndConfirmOverHTTP(t *testing.T) {
	e := newEnv(t, config.Config{})

	status, out := e.do(t, http.MethodPost, "/registrations", chessBody)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 150, out["entryFee"])
	assert.Equal(t, models.StatusPending, out["status"])
	assert.NotContains(t, out, "paymentLink")
	id := out["registrationId"].(string)
	assert.True(t, regid.Valid("MILAN", id))

	status, out = e.do(t, http.MethodPost, "/registrations/"+id+"/payment", `{"upiTransactionId":"UPI123456"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"success": true}, out)

	status, out = e.do(t, http.MethodPost, "/registrations/"+id+"/payment", `{"upiTransactionId":"UPI123456"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, map[string]any{"success": false, "error": "already confirmed"}, out)

	status, out = e.do(t, http.MethodGet, "/registrations/"+id, "")
	require.Equal(t, http.StatusOK, status)
	reg := out["registration"].(map[string]any)
	assert.Equal(t, models.StatusPaid, reg["paymentStatus"])
	assert.Equal(t, "UPI123456", reg["paymentTransactionId"])
}

func TestConfirmUnknownOverHTTP(t *testing.T) {
	e := newEnv(t, config.Config{})
	status, out := e.do(t, http.MethodPost, "/registrations/MILAN-0-NOPE0000/payment", `{"upiTransactionId":"UPI123456"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, map[string]any{"success": false, "error": "not found"}, out)
}

func TestValidationIsBadRequest(t *testing.T) {
	e := newEnv(t, config.Config{})

	body := strings.Replace(chessBody, "asha@example.com", "not-an-email", 1)
	status, out := e.do(t, http.MethodPost, "/registrations", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "email")

	status, out = e.do(t, http.MethodPost, "/registrations", `{"eventName":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid JSON body", out["error"])

	id := e.register(t)
	status, out = e.do(t, http.MethodPost, "/registrations/"+id+"/payment", `{"upiTransactionId":"123"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out["error"], "upiTransactionId")
}

func TestBodyMustMatchRequestSchema(t *testing.T) {
	e := newEnv(t, config.Config{})

	extra := strings.Replace(chessBody, `"entryFee": 150`, `"entryFee": 150, "paymentStatus": "Paid", "registrationId": "X"`, 1)
	status, out := e.do(t, http.MethodPost, "/registrations", extra)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid JSON body", out["error"])

	status, out = e.do(t, http.MethodPost, "/registrations", chessBody+" trailing-garbage")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid JSON body", out["error"])

	status, _ = e.do(t, http.MethodPost, "/registrations", chessBody+` {"name":"again"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	id := e.register(t)
	status, out = e.do(t, http.MethodPost, "/registrations/"+id+"/payment", `{"upiTransactionId":"UPI123456","status":"Paid"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid JSON body", out["error"])

	// nothing but the one good registration was written
	assert.Len(t, e.store.Rows(models.SheetRegistrations), 2)
}

func TestStoreFailureIsInternalError(t *testing.T) {
	e := newEnv(t, config.Config{})
	e.store.Fail(memsheet.OpListTables, errors.New("Requested entity was not found."))

	status, out := e.do(t, http.MethodPost, "/registrations", chessBody)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, out["error"], "Requested entity was not found.")
}

func TestEventsAndHealth(t *testing.T) {
	e := newEnv(t, config.Config{ExportSecret: "s3cret"})

	status, out := e.do(t, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, status)
	events := out["events"].([]any)
	assert.Len(t, events, 3)

	status, out = e.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "memory", out["storeDriver"])
	configured := out["configured"].(map[string]any)
	assert.Equal(t, true, configured["EXPORT_SECRET"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	e := newEnv(t, config.Config{})

	status, out := e.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, out["success"])

	status, _ = e.do(t, http.MethodDelete, "/registrations", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestExportCSV(t *testing.T) {
	e := newEnv(t, config.Config{ExportSecret: "s3cret"})
	id := e.register(t)

	q := url.Values{"event": {"Kritansh"}, "token": {util.ExportToken("s3cret", "Kritansh")}}
	res, err := http.Get(e.srv.URL + "/export/registrations.csv?" + q.Encode())
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "registrations_Kritansh.csv")

	records, err := csv.NewReader(res.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.RegistrationHeaders, records[0])
	assert.Equal(t, id, records[1][models.ColRegistrationID])
	assert.Equal(t, "150", records[1][models.ColEntryFee])
}

func TestExportRejectsBadToken(t *testing.T) {
	e := newEnv(t, config.Config{ExportSecret: "s3cret"})

	res, err := http.Get(e.srv.URL + "/export/registrations.csv?event=Kritansh&token=" + util.ExportToken("s3cret", "Chrysalis"))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, err = http.Get(e.srv.URL + "/export/registrations.csv")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestExportDisabledWithoutSecret(t *testing.T) {
	e := newEnv(t, config.Config{})
	res, err := http.Get(e.srv.URL + "/export/registrations.csv?token=" + util.ExportToken("", ""))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCellTextNeutralisesFormulas(t *testing.T) {
	assert.Equal(t, "'=HYPERLINK(\"x\")", cellText(`=HYPERLINK("x")`))
	assert.Equal(t, "'+91", cellText("+91"))
	assert.Equal(t, "Asha", cellText("Asha"))
	assert.Equal(t, "150", cellText(int64(150)))
}

func TestPanicsBecome500(t *testing.T) {
	h := &handler{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil).WithContext(context.Background())

	h.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"internal error"}`, rec.Body.String())
}
