package service

import (
	"context"

	"tiendapos/internal/dto"
	"tiendapos/internal/model"
	"tiendapos/internal/repository"

	"github.com/google/uuid"
)

type SettingsService interface {
	GetTaxSettings(ctx context.Context, userID uuid.UUID) (*dto.TaxSettingsResponse, error)
	UpdateTaxSettings(ctx context.Context, userID uuid.UUID, req dto.UpdateTaxSettingsRequest) (*dto.TaxSettingsResponse, error)
}

type settingsService struct {
	repo repository.TaxSettingsRepository
}

func NewSettingsService(repo repository.TaxSettingsRepository) SettingsService {
	return &settingsService{repo: repo}
}

func (s *settingsService) GetTaxSettings(ctx context.Context, userID uuid.UUID) (*dto.TaxSettingsResponse, error) {
	settings, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return settingsToResponse(settings), nil
}

func (s *settingsService) UpdateTaxSettings(ctx context.Context, userID uuid.UUID, req dto.UpdateTaxSettingsRequest) (*dto.TaxSettingsResponse, error) {
	settings := &model.TaxSettings{
		UserID:  userID,
		Enabled: req.Enabled,
		Rate:    req.Rate,
		Name:    req.Name,
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, err
	}
	return settingsToResponse(settings), nil
}

func settingsToResponse(s *model.TaxSettings) *dto.TaxSettingsResponse {
	return &dto.TaxSettingsResponse{Enabled: s.Enabled, Rate: s.Rate, Name: s.Name}
}
