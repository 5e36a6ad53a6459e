package payment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fjod/pawmart/internal/domain"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	secret := "whsec_test"
	now := time.Unix(1_700_000_000, 0)
	header := Sign(payload, secret, now)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		now     time.Time
		wantErr bool
	}{
		{"valid", payload, header, secret, now, false},
		{"valid within tolerance", payload, header, secret, now.Add(4 * time.Minute), false},
		{"missing header", payload, "", secret, now, true},
		{"garbage header", payload, "nonsense", secret, now, true},
		{"bad timestamp", payload, "t=abc,v1=00", secret, now, true},
		{"wrong secret", payload, header, "other", now, true},
		{"tampered body", []byte(`{"id":"evt_2"}`), header, secret, now, true},
		{"stale", payload, header, secret, now.Add(10 * time.Minute), true},
		{"from the future", payload, header, secret, now.Add(-10 * time.Minute), true},
		{"second v1 matches", payload, fmt.Sprintf("%s,v1=deadbeef", header), secret, now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.payload, tt.header, tt.secret, 5*time.Minute, tt.now)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidSignature)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifySignature_ZeroToleranceSkipsAgeCheck(t *testing.T) {
	payload := []byte(`{}`)
	header := Sign(payload, "s", time.Unix(0, 0))
	assert.NoError(t, VerifySignature(payload, header, "s", 0, time.Now()))
}
