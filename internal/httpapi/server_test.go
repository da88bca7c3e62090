package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aitrends/backend/internal/config"
	"github.com/aitrends/backend/internal/service"
)

func newTestServer() *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	payments := service.NewPaymentService(config.Config{YooKassaSecretKey: "hook-secret"}, log, nil, nil)
	return NewServer(":0", "admin", "secret", log, nil, nil, payments, nil, nil)
}

func TestHealth(t *testing.T) {
	srv := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestListModels(t *testing.T) {
	srv := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var models []service.Model
	if err := json.Unmarshal(rec.Body.Bytes(), &models); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(models) == 0 {
		t.Error("model catalog should not be empty")
	}
}

func TestListPlans(t *testing.T) {
	srv := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAdminRequiresBasicAuth(t *testing.T) {
	srv := newTestServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/templates", strings.NewReader("{}")))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/templates", strings.NewReader("{}"))
	req.SetBasicAuth("admin", "wrong")
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", rec.Code)
	}
}

func TestWebhookRejectsUnsignedBody(t *testing.T) {
	srv := newTestServer()

	body := `{"event":"payment.succeeded","object":{"id":"pay-1"}}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/yookassa", strings.NewReader(body)))
	if rec.Code != http.StatusForbidden {
		t.Errorf("unsigned webhook: status = %d, want 403", rec.Code)
	}

	h := hmac.New(sha256.New, []byte("wrong-secret"))
	h.Write([]byte(body))
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/yookassa", strings.NewReader(body))
	req.Header.Set("Authorization", "HMAC "+hex.EncodeToString(h.Sum(nil)))
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrongly signed webhook: status = %d, want 403", rec.Code)
	}
}

func TestUploadPreviewUnavailableWithoutStorage(t *testing.T) {
	srv := newTestServer()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/templates/upload/preview", strings.NewReader("data"))
	req.SetBasicAuth("admin", "secret")
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
