package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aitrends/backend/internal/config"
	"github.com/aitrends/backend/internal/models"
	"github.com/aitrends/backend/internal/repository"
)

var ErrUnknownPlan = errors.New("unknown plan")

type PaymentService struct {
	cfg      config.Config
	log      *slog.Logger
	payments *repository.PaymentRepository
	users    *repository.UserRepository
	client   *http.Client
}

func NewPaymentService(cfg config.Config, log *slog.Logger, payments *repository.PaymentRepository, users *repository.UserRepository) *PaymentService {
	return &PaymentService{
		cfg:      cfg,
		log:      log,
		payments: payments,
		users:    users,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateResult pairs the pending payment record with the provider's
// confirmation URL the user must visit.
type CreateResult struct {
	Payment         *models.Payment
	ConfirmationURL string
}

// Create registers a pending top-up for the given plan and opens a payment
// at the provider. The local row is written only after the provider accepts
// the payment, so every pending row carries a provider id.
func (s *PaymentService) Create(ctx context.Context, tgid int64, planCode string) (*CreateResult, error) {
	plan, ok := LookupPlan(planCode)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planCode)
	}

	user, err := s.users.GetByTGID(ctx, tgid)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, models.ErrNotFound
	}
	if user.Banned {
		return nil, models.ErrUserBanned
	}

	created, err := s.createYooKassaPayment(ctx, tgid, plan)
	if err != nil {
		return nil, err
	}

	providerID := created.ID
	code := plan.Code
	record, err := s.payments.Create(ctx, &models.Payment{
		TGID:              tgid,
		YooKassaPaymentID: &providerID,
		Amount:            plan.Amount,
		Tokens:            plan.Tokens,
		PlanCode:          &code,
	})
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	return &CreateResult{Payment: record, ConfirmationURL: created.Confirmation.URL}, nil
}

// Transition moves a payment to the target status under a row lock.
// Crediting the purchased tokens happens in the same transaction as the
// pending -> succeeded move, so a payment is never credited twice and never
// marked succeeded without the credit. Re-applying the current terminal
// status is a no-op.
func (s *PaymentService) Transition(ctx context.Context, id string, target models.PaymentStatus) (*models.Payment, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidTransition, target)
	}

	tx, err := s.payments.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	var tgid int64
	var tokens float64
	row := tx.QueryRowContext(ctx, `SELECT status, tgid, tokens FROM payments WHERE id = ? FOR UPDATE`, id)
	if err := row.Scan(&current, &tgid, &tokens); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}

	status := models.PaymentStatus(current)
	if status == target && status.Terminal() {
		return s.payments.GetByID(ctx, id)
	}
	if !status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, status, target)
	}

	if target == models.PaymentSucceeded {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET balance = balance + ?, updated_at = NOW() WHERE tgid = ?`,
			tokens, tgid); err != nil {
			return nil, fmt.Errorf("credit balance: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = NOW() WHERE id = ?`,
		string(target), id); err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment tx: %w", err)
	}

	return s.payments.GetByID(ctx, id)
}

func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, models.ErrNotFound
	}
	return payment, nil
}

// VerifySignature checks the webhook body against the HMAC signature sent in
// the Authorization or Content-Yoomoney-Signature header.
func (s *PaymentService) VerifySignature(body []byte, authHeader, yoomoneyHeader string) bool {
	var signatures []string
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "HMAC ") || strings.HasPrefix(authHeader, "HMAC-SHA256 ") {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 {
				signatures = append(signatures, parts[1])
			}
		}
	}
	if yoomoneyHeader != "" {
		signatures = append(signatures, yoomoneyHeader)
	}
	if len(signatures) == 0 {
		return false
	}
	h := hmac.New(sha256.New, []byte(s.cfg.YooKassaSecretKey))
	h.Write(body)
	calc := hex.EncodeToString(h.Sum(nil))
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(calc)) {
			return true
		}
	}
	return false
}

// HandleWebhook processes a provider notification. Succeeded payments are
// credited exactly once; repeat deliveries and unknown events are no-ops.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte) error {
	var evt struct {
		Event  string `json:"event"`
		Object struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"object"`
	}
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("parse webhook: %w", err)
	}
	if evt.Object.ID == "" {
		return fmt.Errorf("webhook missing payment id")
	}

	var target models.PaymentStatus
	switch evt.Event {
	case "payment.succeeded":
		target = models.PaymentSucceeded
	case "payment.canceled":
		target = models.PaymentCancelled
	default:
		s.log.Info("ignoring webhook event", "event", evt.Event)
		return nil
	}

	payment, err := s.payments.GetByYooKassaID(ctx, evt.Object.ID)
	if err != nil {
		return fmt.Errorf("find payment: %w", err)
	}
	if payment == nil {
		return fmt.Errorf("payment not found for provider id %s", evt.Object.ID)
	}
	if payment.Status == target {
		return nil
	}

	if _, err := s.Transition(ctx, payment.ID, target); err != nil {
		return fmt.Errorf("apply webhook transition: %w", err)
	}
	return nil
}

// ReconcilePending asks the provider about pending payments the webhook may
// have missed and applies whatever outcome it reports.
func (s *PaymentService) ReconcilePending(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.PaymentReconcileAfter)
	payments, err := s.payments.ListPendingBefore(ctx, cutoff, 50)
	if err != nil {
		s.log.Error("list pending payments", "err", err)
		return
	}

	for _, payment := range payments {
		if payment.YooKassaPaymentID == nil {
			continue
		}
		status, err := s.fetchYooKassaStatus(ctx, *payment.YooKassaPaymentID)
		if err != nil {
			s.log.Error("fetch payment status", "payment_id", payment.ID, "err", err)
			continue
		}

		var target models.PaymentStatus
		switch status {
		case "succeeded":
			target = models.PaymentSucceeded
		case "canceled":
			target = models.PaymentCancelled
		default:
			continue
		}

		if _, err := s.Transition(ctx, payment.ID, target); err != nil {
			s.log.Error("reconcile payment", "payment_id", payment.ID, "err", err)
			continue
		}
		s.log.Info("payment reconciled", "payment_id", payment.ID, "status", target)
	}
}

// History returns the user's recent payments, newest first.
func (s *PaymentService) History(ctx context.Context, tgid int64, limit int) ([]models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.payments.ListByTGID(ctx, tgid, limit)
}

type yooPaymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		Type string `json:"type"`
		URL  string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func (s *PaymentService) createYooKassaPayment(ctx context.Context, tgid int64, plan Plan) (*yooPaymentResponse, error) {
	if s.cfg.YooKassaShopID == "" || s.cfg.YooKassaSecretKey == "" {
		return nil, fmt.Errorf("yookassa credentials are not configured")
	}

	returnURL := s.cfg.YooKassaReturnURL
	if returnURL == "" && s.cfg.FrontendURL != "" {
		returnURL = strings.TrimRight(s.cfg.FrontendURL, "/") + "/profile"
	}

	body := map[string]any{
		"amount": map[string]string{
			"value":    fmt.Sprintf("%.2f", plan.Amount),
			"currency": "RUB",
		},
		"capture": true,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": returnURL,
		},
		"description": fmt.Sprintf("AI Trends: %g tokens (%s)", plan.Tokens, plan.Code),
		"metadata": map[string]string{
			"bot_user_id": fmt.Sprintf("%d", tgid),
			"plan":        "user:" + plan.Code,
			"tokens":      fmt.Sprintf("%g", plan.Tokens),
		},
		"receipt": makeReceipt(tgid, plan),
	}

	raw, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.yookassa.ru/v3/payments", strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("build yookassa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(s.cfg.YooKassaShopID, s.cfg.YooKassaSecretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("yookassa error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed yooPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode yookassa response: %w", err)
	}
	if parsed.ID == "" || parsed.Confirmation.URL == "" {
		return nil, fmt.Errorf("invalid yookassa response (missing id or confirmation url)")
	}
	return &parsed, nil
}

func (s *PaymentService) fetchYooKassaStatus(ctx context.Context, providerID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.yookassa.ru/v3/payments/"+providerID, nil)
	if err != nil {
		return "", fmt.Errorf("build yookassa request: %w", err)
	}
	req.SetBasicAuth(s.cfg.YooKassaShopID, s.cfg.YooKassaSecretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("yookassa error: status=%d", resp.StatusCode)
	}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode yookassa response: %w", err)
	}
	return parsed.Status, nil
}

// makeReceipt builds the fiscal receipt block required by the provider.
func makeReceipt(tgid int64, plan Plan) map[string]any {
	return map[string]any{
		"customer": map[string]string{
			"email": fmt.Sprintf("user%d@ai-trends.app", tgid),
		},
		"items": []map[string]any{
			{
				"description":     fmt.Sprintf("Balance top-up: %.1f tokens", plan.Tokens),
				"amount":          map[string]string{"value": fmt.Sprintf("%.2f", plan.Amount), "currency": "RUB"},
				"quantity":        "1.0",
				"vat_code":        1,
				"payment_subject": "service",
				"payment_mode":    "full_payment",
			},
		},
		"tax_system_code": 1,
	}
}
