package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"fest-ledger/internal/apperr"
	"fest-ledger/internal/regid"
)

const (
	DriverSheets = "sheets"
	DriverMemory = "memory"
)

type Config struct {
	StoreDriver string

	SpreadsheetID            string
	GoogleClientEmail        string
	GooglePrivateKey         string
	GoogleServiceAccountJSON string
	SheetsEndpoint           string

	HTTPAddr             string
	BasePublicURL        string
	RegistrationIDPrefix string
	CatalogFile          string

	PaymentProvider string
	UPIVPA          string
	UPIPayeeName    string

	TelegramToken string
	AdminTGIDs    map[int64]bool

	ExportSecret string

	LogLevel  string
	LogFormat string
}

// FromEnv reads the configuration from the environment. Missing required
// values are reported as configuration errors naming the variable, before
// anything touches the store.
func FromEnv() (Config, error) {
	var c Config
	c.StoreDriver = strings.ToLower(env("STORE_DRIVER"))
	if c.StoreDriver == "" {
		c.StoreDriver = DriverSheets
	}

	c.SpreadsheetID = env("GOOGLE_SHEETS_SPREADSHEET_ID")
	c.GoogleClientEmail = env("GOOGLE_SHEETS_CLIENT_EMAIL")
	// keys pasted into a single-line env var carry literal \n sequences
	c.GooglePrivateKey = strings.TrimSpace(strings.ReplaceAll(env("GOOGLE_SHEETS_PRIVATE_KEY"), `\n`, "\n"))
	c.GoogleServiceAccountJSON = env("GOOGLE_SERVICE_ACCOUNT_JSON")
	c.SheetsEndpoint = env("GOOGLE_SHEETS_ENDPOINT")

	c.HTTPAddr = env("HTTP_ADDR")
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	c.BasePublicURL = strings.TrimRight(env("BASE_PUBLIC_URL"), "/")
	c.RegistrationIDPrefix = strings.ToUpper(env("REGISTRATION_ID_PREFIX"))
	if c.RegistrationIDPrefix == "" {
		c.RegistrationIDPrefix = "MILAN"
	}
	c.CatalogFile = env("CATALOG_FILE")

	c.UPIVPA = env("UPI_VPA")
	c.UPIPayeeName = env("UPI_PAYEE_NAME")
	c.PaymentProvider = strings.ToLower(env("PAYMENT_PROVIDER"))
	if c.PaymentProvider == "" {
		c.PaymentProvider = "none"
		if c.UPIVPA != "" {
			c.PaymentProvider = "upi"
		}
	}

	c.TelegramToken = env("TELEGRAM_BOT_TOKEN")
	c.AdminTGIDs = parseAdminIDs(os.Getenv("ADMIN_TG_IDS"))

	c.ExportSecret = env("EXPORT_SECRET")

	c.LogLevel = env("LOG_LEVEL")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogFormat = env("LOG_FORMAT")
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}

	return c, c.validate()
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverSheets:
		if c.SpreadsheetID == "" {
			return missing("GOOGLE_SHEETS_SPREADSHEET_ID")
		}
		if c.GoogleServiceAccountJSON == "" {
			if c.GoogleClientEmail == "" {
				return missing("GOOGLE_SHEETS_CLIENT_EMAIL")
			}
			if c.GooglePrivateKey == "" {
				return missing("GOOGLE_SHEETS_PRIVATE_KEY")
			}
		}
	case DriverMemory:
	default:
		return apperr.Configuration("STORE_DRIVER", errors.New("must be sheets or memory"))
	}

	if !regid.ValidPrefix(c.RegistrationIDPrefix) {
		return apperr.Configuration("REGISTRATION_ID_PREFIX", errors.New("must be letters and digits only"))
	}

	if c.PaymentProvider == "upi" && c.UPIVPA == "" {
		return missing("UPI_VPA")
	}
	return nil
}

// Presence reports which settings are configured, without their values.
func (c Config) Presence() map[string]bool {
	return map[string]bool{
		"GOOGLE_SHEETS_SPREADSHEET_ID": c.SpreadsheetID != "",
		"GOOGLE_SHEETS_CLIENT_EMAIL":   c.GoogleClientEmail != "",
		"GOOGLE_SHEETS_PRIVATE_KEY":    c.GooglePrivateKey != "",
		"GOOGLE_SERVICE_ACCOUNT_JSON":  c.GoogleServiceAccountJSON != "",
		"UPI_VPA":                      c.UPIVPA != "",
		"TELEGRAM_BOT_TOKEN":           c.TelegramToken != "",
		"EXPORT_SECRET":                c.ExportSecret != "",
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func missing(key string) error {
	return apperr.Configuration(key, errors.New("is empty"))
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
