package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aitrends/backend/internal/models"
)

const templateColumns = `id, title, description, badge, is_new, is_popular, default_prompt, preview_image_url, examples, created_at`

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

type templateScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row templateScanner) (*models.Template, error) {
	var t models.Template
	var badge, defaultPrompt, previewURL, examples sql.NullString
	var isNew, isPopular int
	err := row.Scan(&t.ID, &t.Title, &t.Description, &badge, &isNew, &isPopular, &defaultPrompt, &previewURL, &examples, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if badge.Valid {
		t.Badge = &badge.String
	}
	if defaultPrompt.Valid {
		t.DefaultPrompt = &defaultPrompt.String
	}
	if previewURL.Valid {
		t.PreviewImageURL = &previewURL.String
	}
	if examples.Valid && examples.String != "" {
		if err := json.Unmarshal([]byte(examples.String), &t.Examples); err != nil {
			return nil, fmt.Errorf("decode template examples: %w", err)
		}
	}
	t.IsNew = isNew != 0
	t.IsPopular = isPopular != 0
	return &t, nil
}

func marshalExamples(examples []models.TemplateExample) (any, error) {
	if len(examples) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(examples)
	if err != nil {
		return nil, fmt.Errorf("encode template examples: %w", err)
	}
	return string(data), nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = ?`
	tpl, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

func (r *TemplateRepository) List(ctx context.Context) ([]models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template list: %w", err)
		}
		templates = append(templates, *tpl)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	examples, err := marshalExamples(tpl.Examples)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	const query = `
INSERT INTO templates (id, title, description, badge, is_new, is_popular, default_prompt, preview_image_url, examples)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, id, tpl.Title, tpl.Description, tpl.Badge, tpl.IsNew, tpl.IsPopular, tpl.DefaultPrompt, tpl.PreviewImageURL, examples); err != nil {
		return nil, constraintErr("insert template", err)
	}
	return r.GetByID(ctx, id)
}

func (r *TemplateRepository) Update(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	examples, err := marshalExamples(tpl.Examples)
	if err != nil {
		return nil, err
	}
	const query = `
UPDATE templates
SET title = ?, description = ?, badge = ?, is_new = ?, is_popular = ?, default_prompt = ?, preview_image_url = ?, examples = ?
WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, tpl.Title, tpl.Description, tpl.Badge, tpl.IsNew, tpl.IsPopular, tpl.DefaultPrompt, tpl.PreviewImageURL, examples, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("template rows affected: %w", err)
	}
	return r.GetByID(ctx, tpl.ID)
}

// Delete removes a template. Dependent generations keep their rows; the
// store clears their template link (ON DELETE SET NULL).
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM templates WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}
