package repository

import (
	"context"

	"tiendapos/internal/dto"
	"tiendapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines the data access contract for the catalog.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs. Every query is scoped by user_id —
// there is no cross-user visibility at any layer.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Product, error)
	FindByBarcode(ctx context.Context, userID uuid.UUID, barcode string) (*model.Product, error)
	List(ctx context.Context, userID uuid.UUID, filter dto.ProductFilter) ([]model.Product, int64, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	SoftDelete(ctx context.Context, userID, id uuid.UUID) error
	Reactivate(ctx context.Context, userID, id uuid.UUID) error

	// Used inside transactions — callers must pass the tx instance.
	FindByIDTx(tx *gorm.DB, userID, id uuid.UUID) (*model.Product, error)

	// DecrementStockTx performs the conditional compare-and-decrement that
	// closes the lost-update window: the UPDATE only fires while stock >= qty.
	// Returns the post-update stock (via RETURNING) so ledger snapshots can be
	// exact, and false (no error) when the guard rejected the write, which
	// means a concurrent sale consumed the stock first.
	DecrementStockTx(tx *gorm.DB, userID, id uuid.UUID, qty int) (int, bool, error)

	// AdjustStockTx applies a signed delta with a stock + delta >= 0 guard.
	// Returns the post-update stock and false when the guard rejected the write.
	AdjustStockTx(tx *gorm.DB, userID, id uuid.UUID, delta int) (int, bool, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&p).Error
	return &p, err
}

func (r *productRepo) FindByIDTx(tx *gorm.DB, userID, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := tx.Where("id = ? AND user_id = ?", id, userID).First(&p).Error
	return &p, err
}

func (r *productRepo) FindByBarcode(ctx context.Context, userID uuid.UUID, barcode string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Where("barcode = ? AND user_id = ? AND active = true", barcode, userID).
		First(&p).Error
	return &p, err
}

func (r *productRepo) List(ctx context.Context, userID uuid.UUID, filter dto.ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Product{}).Where("user_id = ?", userID)

	// Active filter: "false" = inactive, "all" = everything, default active only
	switch filter.Active {
	case "false":
		q = q.Where("active = false")
	case "all":
		// no filter
	default:
		q = q.Where("active = true")
	}

	if filter.Barcode != "" {
		q = q.Where("barcode = ?", filter.Barcode)
	}
	if filter.Name != "" {
		q = q.Where("name ILIKE ?", "%"+filter.Name+"%")
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("name ASC").Limit(filter.Limit).Offset(offset).Find(&products).Error
	return products, total, err
}

func (r *productRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = true", userID).
		Order("name ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *productRepo) SoftDelete(ctx context.Context, userID, id uuid.UUID) error {
	return r.setActive(ctx, userID, id, false)
}

func (r *productRepo) Reactivate(ctx context.Context, userID, id uuid.UUID) error {
	return r.setActive(ctx, userID, id, true)
}

func (r *productRepo) setActive(ctx context.Context, userID, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) DecrementStockTx(tx *gorm.DB, userID, id uuid.UUID, qty int) (int, bool, error) {
	var p model.Product
	res := tx.Model(&p).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock"}}}).
		Where("id = ? AND user_id = ? AND stock >= ?", id, userID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil || res.RowsAffected == 0 {
		return 0, false, res.Error
	}
	return p.Stock, true, nil
}

func (r *productRepo) AdjustStockTx(tx *gorm.DB, userID, id uuid.UUID, delta int) (int, bool, error) {
	var p model.Product
	res := tx.Model(&p).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock"}}}).
		Where("id = ? AND user_id = ? AND stock + ? >= 0", id, userID, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil || res.RowsAffected == 0 {
		return 0, false, res.Error
	}
	return p.Stock, true, nil
}

func (r *productRepo) DB() *gorm.DB { return r.db }
