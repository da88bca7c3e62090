package service

import (
	"context"
	"fmt"

	"github.com/aitrends/backend/internal/models"
	"github.com/aitrends/backend/internal/repository"
)

type TemplateService struct {
	templates *repository.TemplateRepository
}

func NewTemplateService(templates *repository.TemplateRepository) *TemplateService {
	return &TemplateService{templates: templates}
}

func (s *TemplateService) List(ctx context.Context) ([]models.Template, error) {
	return s.templates.List(ctx)
}

func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, models.ErrNotFound
	}
	return tpl, nil
}

func (s *TemplateService) Create(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	if tpl.Title == "" {
		return nil, fmt.Errorf("template title cannot be empty")
	}
	return s.templates.Create(ctx, tpl)
}

func (s *TemplateService) Update(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	if tpl.Title == "" {
		return nil, fmt.Errorf("template title cannot be empty")
	}
	existing, err := s.templates.GetByID(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, models.ErrNotFound
	}
	return s.templates.Update(ctx, tpl)
}

// Delete removes a template. Generations that used it keep their rows with
// the template link cleared.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.templates.Delete(ctx, id)
}
