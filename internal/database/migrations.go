package database

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations returns every schema step in its fixed total order. Steps only
// add tables, columns, indexes, defaults, or backfilled values; nothing is
// ever dropped or narrowed.
func migrations() []migration {
	return []migration{
		{ID: "001_create_users", Run: createUsers},
		{ID: "002_create_admins", Run: createAdmins},
		{ID: "003_create_templates", Run: createTemplates},
		{ID: "004_create_generations", Run: createGenerations},
		{ID: "005_create_payments", Run: createPayments},
		{ID: "006_users_referral", Run: addUserReferral},
		{ID: "007_users_moderation", Run: addUserModeration},
		{ID: "008_payments_plan_code", Run: addPaymentPlanCode},
		{ID: "009_generations_task_index", Run: addGenerationTaskIndex},
	}
}

func createUsers(ctx context.Context, db *sql.DB) error {
	const query = `
CREATE TABLE IF NOT EXISTS users (
    id CHAR(36) NOT NULL PRIMARY KEY,
    tgid BIGINT NOT NULL,
    balance DECIMAL(10,2) NOT NULL DEFAULT 0.00,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_users_tgid (tgid)
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create users: %w", err)
	}
	return nil
}

func createAdmins(ctx context.Context, db *sql.DB) error {
	const query = `
CREATE TABLE IF NOT EXISTS admins (
    id CHAR(36) NOT NULL PRIMARY KEY,
    tgid BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_admins_tgid (tgid)
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create admins: %w", err)
	}
	return nil
}

func createTemplates(ctx context.Context, db *sql.DB) error {
	const query = `
CREATE TABLE IF NOT EXISTS templates (
    id CHAR(36) NOT NULL PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL,
    badge VARCHAR(50),
    is_new TINYINT(1) NOT NULL DEFAULT 0,
    is_popular TINYINT(1) NOT NULL DEFAULT 0,
    default_prompt TEXT,
    preview_image_url TEXT,
    examples JSON,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create templates: %w", err)
	}
	return nil
}

func createGenerations(ctx context.Context, db *sql.DB) error {
	const query = `
CREATE TABLE IF NOT EXISTS generations (
    id CHAR(36) NOT NULL PRIMARY KEY,
    tgid BIGINT NOT NULL,
    template_id CHAR(36),
    mode VARCHAR(50) NOT NULL DEFAULT 'image',
    model VARCHAR(100) NOT NULL,
    aspect_ratio VARCHAR(20),
    resolution VARCHAR(50),
    output_format VARCHAR(10),
    prompt TEXT NOT NULL,
    status VARCHAR(50) NOT NULL DEFAULT 'queued',
    kie_task_id VARCHAR(100),
    result_url TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    KEY idx_generations_tgid (tgid),
    CONSTRAINT fk_generations_template FOREIGN KEY (template_id)
        REFERENCES templates(id) ON DELETE SET NULL
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create generations: %w", err)
	}
	return nil
}

func createPayments(ctx context.Context, db *sql.DB) error {
	const query = `
CREATE TABLE IF NOT EXISTS payments (
    id CHAR(36) NOT NULL PRIMARY KEY,
    tgid BIGINT NOT NULL,
    yookassa_payment_id VARCHAR(100),
    amount DECIMAL(10,2) NOT NULL,
    tokens DECIMAL(10,2) NOT NULL,
    status VARCHAR(50) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    KEY idx_payments_tgid (tgid),
    UNIQUE KEY uniq_payments_yookassa (yookassa_payment_id)
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create payments: %w", err)
	}
	return nil
}

// addUserReferral introduces the referral program columns: a unique share
// code and a nullable self-referencing link to the referrer's tgid.
func addUserReferral(ctx context.Context, db *sql.DB) error {
	ok, err := columnExists(ctx, db, "users", "referral_code")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.ExecContext(ctx, `ALTER TABLE users ADD COLUMN referral_code VARCHAR(32) NULL`); err != nil {
			return fmt.Errorf("add users.referral_code: %w", err)
		}
	}

	ok, err = columnExists(ctx, db, "users", "referred_by")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.ExecContext(ctx, `ALTER TABLE users ADD COLUMN referred_by BIGINT NULL`); err != nil {
			return fmt.Errorf("add users.referred_by: %w", err)
		}
	}

	ok, err = indexExists(ctx, db, "users", "uniq_users_referral_code")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.ExecContext(ctx, `CREATE UNIQUE INDEX uniq_users_referral_code ON users (referral_code)`); err != nil {
			return fmt.Errorf("add referral_code index: %w", err)
		}
	}

	ok, err = constraintExists(ctx, db, "users", "fk_users_referrer")
	if err != nil {
		return err
	}
	if !ok {
		const query = `
ALTER TABLE users ADD CONSTRAINT fk_users_referrer
    FOREIGN KEY (referred_by) REFERENCES users(tgid)`
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("add referrer fk: %w", err)
		}
	}
	return nil
}

// addUserModeration adds the ban flag and contact email. The flag is added
// nullable, backfilled, and only then given its NOT NULL default, so every
// substep stays retryable on its own.
func addUserModeration(ctx context.Context, db *sql.DB) error {
	ok, err := columnExists(ctx, db, "users", "banned")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.ExecContext(ctx, `ALTER TABLE users ADD COLUMN banned TINYINT(1) NULL`); err != nil {
			return fmt.Errorf("add users.banned: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, `UPDATE users SET banned = 0 WHERE banned IS NULL`); err != nil {
		return fmt.Errorf("backfill users.banned: %w", err)
	}

	nullable, err := columnNullable(ctx, db, "users", "banned")
	if err != nil {
		return err
	}
	if nullable {
		if _, err := db.ExecContext(ctx, `ALTER TABLE users MODIFY COLUMN banned TINYINT(1) NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("default users.banned: %w", err)
		}
	}

	ok, err = columnExists(ctx, db, "users", "email")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.ExecContext(ctx, `ALTER TABLE users ADD COLUMN email VARCHAR(255) NULL`); err != nil {
			return fmt.Errorf("add users.email: %w", err)
		}
	}
	return nil
}

func addPaymentPlanCode(ctx context.Context, db *sql.DB) error {
	ok, err := columnExists(ctx, db, "payments", "plan_code")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.ExecContext(ctx, `ALTER TABLE payments ADD COLUMN plan_code VARCHAR(50) NULL`); err != nil {
			return fmt.Errorf("add payments.plan_code: %w", err)
		}
	}
	return nil
}

func addGenerationTaskIndex(ctx context.Context, db *sql.DB) error {
	ok, err := indexExists(ctx, db, "generations", "idx_generations_task")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.ExecContext(ctx, `CREATE INDEX idx_generations_task ON generations (kie_task_id)`); err != nil {
			return fmt.Errorf("add task index: %w", err)
		}
	}
	return nil
}
