package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aitrends/backend/internal/models"
)

const generationColumns = `id, tgid, template_id, mode, model, aspect_ratio, resolution, output_format, prompt, status, kie_task_id, result_url, created_at, updated_at`

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) DB() *sql.DB {
	return r.db
}

type generationScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row generationScanner) (*models.Generation, error) {
	var g models.Generation
	var templateID, aspectRatio, resolution, outputFormat, taskID, resultURL sql.NullString
	var status string
	err := row.Scan(&g.ID, &g.TGID, &templateID, &g.Mode, &g.Model, &aspectRatio, &resolution, &outputFormat, &g.Prompt, &status, &taskID, &resultURL, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Status = models.GenerationStatus(status)
	if templateID.Valid {
		g.TemplateID = &templateID.String
	}
	if aspectRatio.Valid {
		g.AspectRatio = &aspectRatio.String
	}
	if resolution.Valid {
		g.Resolution = &resolution.String
	}
	if outputFormat.Valid {
		g.OutputFormat = &outputFormat.String
	}
	if taskID.Valid {
		g.KieTaskID = &taskID.String
	}
	if resultURL.Valid {
		g.ResultURL = &resultURL.String
	}
	return &g, nil
}

func (r *GenerationRepository) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ?`
	gen, err := scanGeneration(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return gen, nil
}

func (r *GenerationRepository) GetByTaskID(ctx context.Context, taskID string) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE kie_task_id = ? LIMIT 1`
	gen, err := scanGeneration(r.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get generation by task: %w", err)
	}
	return gen, nil
}

func (r *GenerationRepository) ListByTGID(ctx context.Context, tgid int64, limit int) ([]models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE tgid = ? ORDER BY created_at DESC LIMIT ?`
	return r.list(ctx, query, tgid, limit)
}

// ListSubmitted returns processing jobs that carry a provider task id, the
// candidates for the polling worker.
func (r *GenerationRepository) ListSubmitted(ctx context.Context, limit int) ([]models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations
WHERE status = ? AND kie_task_id IS NOT NULL
ORDER BY updated_at ASC LIMIT ?`
	return r.list(ctx, query, string(models.GenerationProcessing), limit)
}

// ListStale returns non-terminal jobs whose last mutation is older than the
// cutoff. These are timed out by the worker.
func (r *GenerationRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations
WHERE status IN (?, ?) AND updated_at < ?
ORDER BY updated_at ASC LIMIT ?`
	return r.list(ctx, query, string(models.GenerationQueued), string(models.GenerationProcessing), cutoff, limit)
}

func (r *GenerationRepository) list(ctx context.Context, query string, args ...any) ([]models.Generation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var generations []models.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation list: %w", err)
		}
		generations = append(generations, *gen)
	}
	return generations, rows.Err()
}
