package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const (
	headerKey       = "TALOS-KEY"
	headerSignature = "TALOS-SIGN"
	headerTimestamp = "TALOS-TS"

	// TimestampLayout is the venue's UTC timestamp format.
	TimestampLayout = "2006-01-02T15:04:05.000000Z"
)

// Signer produces the authentication headers required on every venue request.
// Signatures embed the current time so they must be generated per request.
type Signer struct {
	Key    string
	Secret string

	now func() time.Time
}

// NewSigner creates a Signer for the given API key and secret.
func NewSigner(key string, secret string) Signer {
	return Signer{Key: key, Secret: secret, now: time.Now}
}

// Headers signs "METHOD\nTS\nHOST\nPATH[\nQUERY]" and returns the header set.
func (s Signer) Headers(method string, host string, path string, query string) http.Header {
	ts := s.clock().UTC().Format(TimestampLayout)

	parts := []string{method, ts, host, path}
	if query != "" {
		parts = append(parts, query)
	}

	header := http.Header{}
	header.Set(headerKey, s.Key)
	header.Set(headerSignature, s.Sign(strings.Join(parts, "\n")))
	header.Set(headerTimestamp, ts)
	return header
}

// Sign is the URL-safe base64 HMAC-SHA256 of payload.
func (s Signer) Sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(payload))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

func (s Signer) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
