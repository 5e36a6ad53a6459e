package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/pawmart/internal/domain"
)

const SignatureHeader = "Payment-Signature"

func computeSignature(payload []byte, secret string, timestamp int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Sign builds the signature header value for payload sent at ts.
func Sign(payload []byte, secret string, ts time.Time) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,v1=%s", unix, computeSignature(payload, secret, unix))
}

// VerifySignature checks a "t=<unix>,v1=<hex>" header against payload. Any v1 entry may match.
// Timestamps further than tolerance from now are rejected; a zero tolerance disables that check.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return fmt.Errorf("missing %s header: %w", SignatureHeader, domain.ErrInvalidSignature)
	}

	var timestamp int64 = -1
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("malformed timestamp: %w", domain.ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, strings.ToLower(value))
		}
	}
	if timestamp < 0 || len(signatures) == 0 {
		return fmt.Errorf("malformed %s header: %w", SignatureHeader, domain.ErrInvalidSignature)
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("timestamp outside tolerance: %w", domain.ErrInvalidSignature)
		}
	}

	expected := []byte(computeSignature(payload, secret, timestamp))
	for _, sig := range signatures {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("signature mismatch: %w", domain.ErrInvalidSignature)
}
