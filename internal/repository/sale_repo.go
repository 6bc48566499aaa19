package repository

import (
	"context"

	"tiendapos/internal/dto"
	"tiendapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SaleRepository interface {
	CreateTx(tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Sale, error)
	FindByIDTx(tx *gorm.DB, userID, id uuid.UUID) (*model.Sale, error)

	// UpdateAmendedTx replaces the sale's items and rewrites totals/status in
	// one shot. CreatedAt is deliberately never touched: the original sale
	// timestamp survives every amendment.
	UpdateAmendedTx(tx *gorm.DB, s *model.Sale) error

	List(ctx context.Context, userID uuid.UUID, filter dto.SaleFilter) ([]model.Sale, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in the service layer
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) CreateTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	return &s, err
}

func (r *saleRepo) FindByIDTx(tx *gorm.DB, userID, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := tx.Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	return &s, err
}

func (r *saleRepo) UpdateAmendedTx(tx *gorm.DB, s *model.Sale) error {
	if err := tx.Where("sale_id = ?", s.ID).Delete(&model.SaleItem{}).Error; err != nil {
		return err
	}
	for i := range s.Items {
		s.Items[i].SaleID = s.ID
		s.Items[i].ID = uuid.Nil
	}
	if len(s.Items) > 0 {
		if err := tx.Create(&s.Items).Error; err != nil {
			return err
		}
	}
	return tx.Model(&model.Sale{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
		"subtotal": s.Subtotal,
		"tax":      s.Tax,
		"total":    s.Total,
		"status":   s.Status,
	}).Error
}

func (r *saleRepo) List(ctx context.Context, userID uuid.UUID, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Sale{}).Where("user_id = ?", userID)

	if filter.Status != "" && filter.Status != "all" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Date != "" {
		q = q.Where("DATE(created_at) = ?", filter.Date)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Items").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&sales).Error
	return sales, total, err
}
