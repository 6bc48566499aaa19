package repository

import (
	"context"
	"errors"

	"tiendapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaxSettingsRepository interface {
	// Get returns the user's tax settings, falling back to the disabled
	// default when the user never saved any.
	Get(ctx context.Context, userID uuid.UUID) (*model.TaxSettings, error)
	GetTx(tx *gorm.DB, userID uuid.UUID) (*model.TaxSettings, error)
	Upsert(ctx context.Context, s *model.TaxSettings) error
}

type taxSettingsRepo struct{ db *gorm.DB }

func NewTaxSettingsRepository(db *gorm.DB) TaxSettingsRepository {
	return &taxSettingsRepo{db: db}
}

func defaultTaxSettings(userID uuid.UUID) *model.TaxSettings {
	return &model.TaxSettings{UserID: userID, Enabled: false, Rate: decimal.Zero, Name: "IVA"}
}

func (r *taxSettingsRepo) Get(ctx context.Context, userID uuid.UUID) (*model.TaxSettings, error) {
	return r.get(r.db.WithContext(ctx), userID)
}

func (r *taxSettingsRepo) GetTx(tx *gorm.DB, userID uuid.UUID) (*model.TaxSettings, error) {
	return r.get(tx, userID)
}

func (r *taxSettingsRepo) get(db *gorm.DB, userID uuid.UUID) (*model.TaxSettings, error) {
	var s model.TaxSettings
	err := db.Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultTaxSettings(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *taxSettingsRepo) Upsert(ctx context.Context, s *model.TaxSettings) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "rate", "name", "updated_at"}),
	}).Create(s).Error
}
