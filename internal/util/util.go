package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// ExportToken is the link token that authorises a CSV export of one event
// ("" for all events). Event names are case-insensitive.
func ExportToken(secret, event string) string {
	return HMACSHA256Hex(secret, "export:"+strings.ToLower(strings.TrimSpace(event)))
}

// VerifyExportToken compares in constant time. An empty secret never
// verifies.
func VerifyExportToken(secret, event, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	want := ExportToken(secret, event)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(token))))
}
