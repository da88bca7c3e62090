package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aitrends/backend/internal/config"
	"github.com/aitrends/backend/internal/kie"
	"github.com/aitrends/backend/internal/models"
	"github.com/aitrends/backend/internal/repository"
)

var ErrUnknownModel = errors.New("unknown model")

type GenerationService struct {
	cfg         config.Config
	log         *slog.Logger
	users       *repository.UserRepository
	generations *repository.GenerationRepository
	templates   *repository.TemplateRepository
	kie         *kie.Client
}

func NewGenerationService(cfg config.Config, log *slog.Logger, users *repository.UserRepository, generations *repository.GenerationRepository, templates *repository.TemplateRepository, client *kie.Client) *GenerationService {
	return &GenerationService{
		cfg:         cfg,
		log:         log,
		users:       users,
		generations: generations,
		templates:   templates,
		kie:         client,
	}
}

type GenerationRequest struct {
	TGID         int64
	Model        string
	Prompt       string
	TemplateID   string
	AspectRatio  string
	Resolution   string
	OutputFormat string
	ImageURLs    []string
}

// TransitionUpdate carries the optional fields a status transition may set.
// Nil fields keep their current value.
type TransitionUpdate struct {
	TaskID    *string
	ResultURL *string
}

// Create reserves the model's token cost and records a queued generation,
// atomically. The debit and the insert share one transaction; a balance that
// cannot cover the cost rolls everything back. Submission to the provider
// happens after commit, so a provider outage leaves a queued row behind, not
// a lost debit.
func (s *GenerationService) Create(ctx context.Context, req GenerationRequest) (*models.Generation, error) {
	if req.Prompt == "" && req.TemplateID == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	model, ok := LookupModel(req.Model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, req.Model)
	}

	user, err := s.users.GetByTGID(ctx, req.TGID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, models.ErrNotFound
	}
	if user.Banned {
		return nil, models.ErrUserBanned
	}

	var templateID any
	if req.TemplateID != "" {
		tpl, err := s.templates.GetByID(ctx, req.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("get template: %w", err)
		}
		if tpl == nil {
			return nil, models.ErrNotFound
		}
		templateID = tpl.ID
		if req.Prompt == "" && tpl.DefaultPrompt != nil {
			req.Prompt = *tpl.DefaultPrompt
		}
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	id := uuid.NewString()

	tx, err := s.generations.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance - ?, updated_at = NOW() WHERE tgid = ? AND balance >= ?`,
		model.CostTokens, req.TGID, model.CostTokens)
	if err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		return nil, models.ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generations (id, tgid, template_id, mode, model, aspect_ratio, resolution, output_format, prompt, status)
VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?)`,
		id, req.TGID, templateID, generationMode(req), req.Model,
		req.AspectRatio, req.Resolution, req.OutputFormat, req.Prompt,
		string(models.GenerationQueued)); err != nil {
		return nil, fmt.Errorf("insert generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit generation tx: %w", err)
	}

	return s.submit(ctx, id, model, req)
}

func generationMode(req GenerationRequest) string {
	if len(req.ImageURLs) > 0 {
		return "edit"
	}
	return "create"
}

// submit hands the queued generation to the provider. A submission failure
// marks the generation failed; the token cost is not refunded.
func (s *GenerationService) submit(ctx context.Context, id string, model Model, req GenerationRequest) (*models.Generation, error) {
	payload := kie.BuildPayload(model.KieModel(len(req.ImageURLs) > 0), kie.GenerateOptions{
		Prompt:       req.Prompt,
		AspectRatio:  req.AspectRatio,
		Resolution:   req.Resolution,
		OutputFormat: req.OutputFormat,
		ImageURLs:    req.ImageURLs,
	})

	taskID, err := s.kie.CreateTask(ctx, payload)
	if err != nil {
		s.log.Error("task submission failed", "generation_id", id, "err", err)
		if _, failErr := s.Transition(ctx, id, models.GenerationFailed, TransitionUpdate{}); failErr != nil {
			s.log.Error("failed to mark generation failed", "generation_id", id, "err", failErr)
		}
		return nil, fmt.Errorf("submit generation: %w", err)
	}

	return s.Transition(ctx, id, models.GenerationProcessing, TransitionUpdate{TaskID: &taskID})
}

// Transition moves a generation to the target status under a row lock.
// Re-applying the current terminal status is a no-op; any other move not
// allowed by the status graph is rejected. Every successful transition
// refreshes updated_at.
func (s *GenerationService) Transition(ctx context.Context, id string, target models.GenerationStatus, update TransitionUpdate) (*models.Generation, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidTransition, target)
	}
	if target == models.GenerationProcessing && update.TaskID == nil {
		return nil, fmt.Errorf("%w: processing requires a provider task id", models.ErrInvalidTransition)
	}
	if target == models.GenerationCompleted && (update.ResultURL == nil || *update.ResultURL == "") {
		return nil, fmt.Errorf("%w: completed requires a result url", models.ErrInvalidTransition)
	}

	tx, err := s.generations.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	row := tx.QueryRowContext(ctx, `SELECT status FROM generations WHERE id = ? FOR UPDATE`, id)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("lock generation: %w", err)
	}

	status := models.GenerationStatus(current)
	if status == target && status.Terminal() {
		return s.generations.GetByID(ctx, id)
	}
	if !status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, status, target)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE generations
SET status = ?, kie_task_id = COALESCE(?, kie_task_id), result_url = COALESCE(?, result_url), updated_at = NOW()
WHERE id = ?`,
		string(target), update.TaskID, update.ResultURL, id); err != nil {
		return nil, fmt.Errorf("update generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	return s.generations.GetByID(ctx, id)
}

func (s *GenerationService) Get(ctx context.Context, id string) (*models.Generation, error) {
	gen, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, models.ErrNotFound
	}
	return gen, nil
}

// CompleteByTask applies a provider-side outcome keyed by task id. Unknown
// tasks and repeat deliveries for finished generations are no-ops.
func (s *GenerationService) CompleteByTask(ctx context.Context, taskID string, resultURL string, failMsg string) error {
	gen, err := s.generations.GetByTaskID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("find generation by task: %w", err)
	}
	if gen == nil {
		s.log.Warn("callback for unknown task", "task_id", taskID)
		return nil
	}
	if gen.Status.Terminal() {
		return nil
	}

	target := models.GenerationCompleted
	update := TransitionUpdate{}
	if resultURL != "" {
		update.ResultURL = &resultURL
	} else {
		target = models.GenerationFailed
		if failMsg != "" {
			s.log.Warn("generation failed at provider", "task_id", taskID, "reason", failMsg)
		}
	}

	if _, err := s.Transition(ctx, gen.ID, target, update); err != nil {
		return fmt.Errorf("apply task outcome: %w", err)
	}
	return nil
}

// Poll checks submitted generations against the provider and applies any
// finished outcomes. Per-row failures are logged and skipped so one bad task
// cannot stall the rest.
func (s *GenerationService) Poll(ctx context.Context) {
	generations, err := s.generations.ListSubmitted(ctx, 50)
	if err != nil {
		s.log.Error("list submitted generations", "err", err)
		return
	}

	for _, gen := range generations {
		if gen.KieTaskID == nil {
			continue
		}
		model, ok := LookupModel(gen.Model)
		if !ok {
			s.log.Warn("submitted generation references unknown model", "generation_id", gen.ID, "model", gen.Model)
			continue
		}

		result, err := s.kie.TaskStatus(ctx, *gen.KieTaskID, model.GPT4o())
		if err != nil {
			s.log.Error("poll task status", "generation_id", gen.ID, "task_id", *gen.KieTaskID, "err", err)
			continue
		}

		switch result.State {
		case kie.TaskSuccess:
			if err := s.CompleteByTask(ctx, result.TaskID, result.ResultURL, ""); err != nil {
				s.log.Error("complete generation", "generation_id", gen.ID, "err", err)
			}
		case kie.TaskFailed:
			if err := s.CompleteByTask(ctx, result.TaskID, "", result.FailMsg); err != nil {
				s.log.Error("fail generation", "generation_id", gen.ID, "err", err)
			}
		}
	}
}

// FailStale times out generations that have not moved since the configured
// deadline.
func (s *GenerationService) FailStale(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.GenerationTimeout)
	generations, err := s.generations.ListStale(ctx, cutoff, 100)
	if err != nil {
		s.log.Error("list stale generations", "err", err)
		return
	}

	for _, gen := range generations {
		if _, err := s.Transition(ctx, gen.ID, models.GenerationFailed, TransitionUpdate{}); err != nil {
			s.log.Error("fail stale generation", "generation_id", gen.ID, "err", err)
			continue
		}
		s.log.Info("generation timed out", "generation_id", gen.ID, "queued_at", gen.CreatedAt)
	}
}

// History returns the user's recent generations, newest first.
func (s *GenerationService) History(ctx context.Context, tgid int64, limit int) ([]models.Generation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.generations.ListByTGID(ctx, tgid, limit)
}
