package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aitrends/backend/internal/models"
)

type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) IsAdmin(ctx context.Context, tgid int64) (bool, error) {
	const query = `SELECT COUNT(*) FROM admins WHERE tgid = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, tgid).Scan(&count); err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return count > 0, nil
}

func (r *AdminRepository) Ensure(ctx context.Context, tgid int64) (*models.Admin, error) {
	const query = `INSERT INTO admins (id, tgid) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), tgid); err != nil {
		if !isDuplicateEntry(err) {
			return nil, fmt.Errorf("insert admin: %w", err)
		}
	}
	return r.GetByTGID(ctx, tgid)
}

func (r *AdminRepository) GetByTGID(ctx context.Context, tgid int64) (*models.Admin, error) {
	const query = `SELECT id, tgid, created_at FROM admins WHERE tgid = ?`
	var a models.Admin
	if err := r.db.QueryRowContext(ctx, query, tgid).Scan(&a.ID, &a.TGID, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	return &a, nil
}

func (r *AdminRepository) List(ctx context.Context) ([]models.Admin, error) {
	const query = `SELECT id, tgid, created_at FROM admins ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []models.Admin
	for rows.Next() {
		var a models.Admin
		if err := rows.Scan(&a.ID, &a.TGID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin list: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}
