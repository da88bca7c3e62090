package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aitrends/backend/internal/models"
)

const userColumns = `id, tgid, balance, referral_code, referred_by, banned, email, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) DB() *sql.DB {
	return r.db
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var code, email sql.NullString
	var referred sql.NullInt64
	var banned int
	err := row.Scan(&u.ID, &u.TGID, &u.Balance, &code, &referred, &banned, &email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if code.Valid {
		u.ReferralCode = &code.String
	}
	if referred.Valid {
		u.ReferredBy = &referred.Int64
	}
	if email.Valid {
		u.Email = &email.String
	}
	u.Banned = banned != 0
	return &u, nil
}

func (r *UserRepository) GetByTGID(ctx context.Context, tgid int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tgid = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, tgid))
}

func (r *UserRepository) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, code))
}

func (r *UserRepository) Create(ctx context.Context, tgid int64) (*models.User, error) {
	const query = `INSERT INTO users (id, tgid) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), tgid); err != nil {
		return nil, constraintErr("insert user", err)
	}
	return r.GetByTGID(ctx, tgid)
}

// Ensure finds the user by tgid, creating a fresh zero-balance row on first
// contact. The bool reports whether a row was created.
func (r *UserRepository) Ensure(ctx context.Context, tgid int64) (*models.User, bool, error) {
	user, err := r.GetByTGID(ctx, tgid)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}
	created, err := r.Create(ctx, tgid)
	if err != nil {
		if errors.Is(err, models.ErrConstraintViolation) {
			// lost a creation race; the row exists now
			user, err = r.GetByTGID(ctx, tgid)
			return user, false, err
		}
		return nil, false, err
	}
	return created, true, nil
}

// AdjustBalance applies delta atomically, refusing any change that would
// take the balance below zero.
func (r *UserRepository) AdjustBalance(ctx context.Context, tgid int64, delta float64) (*models.User, error) {
	const query = `UPDATE users SET balance = balance + ?, updated_at = NOW() WHERE tgid = ? AND balance + ? >= 0`
	res, err := r.db.ExecContext(ctx, query, delta, tgid, delta)
	if err != nil {
		return nil, fmt.Errorf("adjust balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("balance rows affected: %w", err)
	}
	if affected == 0 {
		user, err := r.GetByTGID(ctx, tgid)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInsufficientFunds
	}
	return r.GetByTGID(ctx, tgid)
}

// LinkReferral sets the user's referrer once. The referenced tgid must
// exist, must differ from the user's own, and the assignment is immutable
// after the first success.
func (r *UserRepository) LinkReferral(ctx context.Context, tgid, referrerTGID int64) error {
	if tgid == referrerTGID {
		return models.ErrSelfReferral
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin referral tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE tgid = ?`, referrerTGID).Scan(&exists); err != nil {
		return fmt.Errorf("check referrer: %w", err)
	}
	if exists == 0 {
		return models.ErrUnknownReferrer
	}

	var current sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT referred_by FROM users WHERE tgid = ? FOR UPDATE`, tgid)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}
	if current.Valid {
		return models.ErrAlreadyLinked
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET referred_by = ?, updated_at = NOW() WHERE tgid = ?`, referrerTGID, tgid); err != nil {
		return fmt.Errorf("set referrer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit referral: %w", err)
	}
	return nil
}

// EnsureReferralCode returns the user's share code, allocating one on first
// use. Collisions with another user's code are retried with a new candidate.
func (r *UserRepository) EnsureReferralCode(ctx context.Context, tgid int64) (string, error) {
	user, err := r.GetByTGID(ctx, tgid)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", models.ErrNotFound
	}
	if user.ReferralCode != nil {
		return *user.ReferralCode, nil
	}

	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		res, err := r.db.ExecContext(ctx, `UPDATE users SET referral_code = ?, updated_at = NOW() WHERE tgid = ? AND referral_code IS NULL`, code, tgid)
		if err != nil {
			if isDuplicateEntry(err) {
				continue
			}
			return "", fmt.Errorf("set referral code: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("referral code rows affected: %w", err)
		}
		if affected > 0 {
			return code, nil
		}
		// concurrent allocation won; read what it set
		user, err = r.GetByTGID(ctx, tgid)
		if err != nil {
			return "", err
		}
		if user != nil && user.ReferralCode != nil {
			return *user.ReferralCode, nil
		}
	}
	return "", fmt.Errorf("allocate referral code for %d: attempts exhausted", tgid)
}

func (r *UserRepository) CountReferrals(ctx context.Context, tgid int64) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE referred_by = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, tgid).Scan(&count); err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return count, nil
}

func (r *UserRepository) SetBanned(ctx context.Context, tgid int64, banned bool) error {
	value := 0
	if banned {
		value = 1
	}
	const query = `UPDATE users SET banned = ?, updated_at = NOW() WHERE tgid = ?`
	if _, err := r.db.ExecContext(ctx, query, value, tgid); err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	return nil
}

func (r *UserRepository) SetEmail(ctx context.Context, tgid int64, email string) error {
	const query = `UPDATE users SET email = NULLIF(?, ''), updated_at = NOW() WHERE tgid = ?`
	if _, err := r.db.ExecContext(ctx, query, email, tgid); err != nil {
		return fmt.Errorf("set email: %w", err)
	}
	return nil
}
