package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aitrends/backend/internal/models"
)

const paymentColumns = `id, tgid, yookassa_payment_id, amount, tokens, status, plan_code, created_at, updated_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) DB() *sql.DB {
	return r.db
}

type paymentScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row paymentScanner) (*models.Payment, error) {
	var p models.Payment
	var providerID, planCode sql.NullString
	var status string
	err := row.Scan(&p.ID, &p.TGID, &providerID, &p.Amount, &p.Tokens, &status, &planCode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	if providerID.Valid {
		p.YooKassaPaymentID = &providerID.String
	}
	if planCode.Valid {
		p.PlanCode = &planCode.String
	}
	return &p, nil
}

// Create inserts a pending payment. A duplicate provider payment id is a
// constraint violation, never a silent overwrite.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	id := uuid.NewString()
	const query = `
INSERT INTO payments (id, tgid, yookassa_payment_id, amount, tokens, status, plan_code)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, id, payment.TGID, payment.YooKassaPaymentID, payment.Amount, payment.Tokens, string(models.PaymentPending), payment.PlanCode); err != nil {
		return nil, constraintErr("insert payment", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

func (r *PaymentRepository) GetByYooKassaID(ctx context.Context, providerID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE yookassa_payment_id = ? LIMIT 1`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, providerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by provider id: %w", err)
	}
	return payment, nil
}

func (r *PaymentRepository) ListByTGID(ctx context.Context, tgid int64, limit int) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE tgid = ? ORDER BY created_at DESC LIMIT ?`
	return r.list(ctx, query, tgid, limit)
}

// ListPendingBefore returns pending payments created before the cutoff,
// the candidates for provider-side reconciliation.
func (r *PaymentRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
WHERE status = ? AND yookassa_payment_id IS NOT NULL AND created_at < ?
ORDER BY created_at ASC LIMIT ?`
	return r.list(ctx, query, string(models.PaymentPending), cutoff, limit)
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...any) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment list: %w", err)
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}
