package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/aitrends/backend/internal/config"
)

func signBody(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	const secret = "test-secret"
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1"}}`)
	sig := signBody(secret, body)

	svc := &PaymentService{cfg: config.Config{YooKassaSecretKey: secret}}

	tests := []struct {
		name     string
		auth     string
		yoomoney string
		want     bool
	}{
		{"authorization HMAC prefix", "HMAC " + sig, "", true},
		{"authorization HMAC-SHA256 prefix", "HMAC-SHA256 " + sig, "", true},
		{"yoomoney header", "", sig, true},
		{"no headers", "", "", false},
		{"wrong signature", "HMAC deadbeef", "", false},
		{"bearer scheme rejected", "Bearer " + sig, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.VerifySignature(body, tt.auth, tt.yoomoney); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	const secret = "test-secret"
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1"}}`)
	sig := signBody(secret, body)

	svc := &PaymentService{cfg: config.Config{YooKassaSecretKey: secret}}

	tampered := []byte(`{"event":"payment.succeeded","object":{"id":"pay-2"}}`)
	if svc.VerifySignature(tampered, "HMAC "+sig, "") {
		t.Error("signature over a different body should not verify")
	}
}
