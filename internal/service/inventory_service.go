package service

import (
	"context"
	"errors"
	"time"

	"tiendapos/internal/dto"
	"tiendapos/internal/model"
	"tiendapos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryService owns every stock mutation outside the sale pipeline and
// the ledger read path.
type InventoryService interface {
	// AdjustStock applies a manual signed delta (entrada when positive,
	// salida when negative) and appends the matching ledger entry in the
	// same transaction. Stock can never go negative.
	AdjustStock(ctx context.Context, userID uuid.UUID, userName string, productID uuid.UUID, req dto.AdjustStockRequest) (*dto.ProductResponse, error)

	// ListMovements reconstructs per-product history, most recent first.
	ListMovements(ctx context.Context, userID uuid.UUID, filter dto.MovementFilter) (*dto.MovementListResponse, error)
}

type inventoryService struct {
	productRepo  repository.ProductRepository
	movementRepo repository.StockMovementRepository
	catalog      *CatalogCache
}

func NewInventoryService(productRepo repository.ProductRepository, movementRepo repository.StockMovementRepository, catalog *CatalogCache) InventoryService {
	return &inventoryService{productRepo: productRepo, movementRepo: movementRepo, catalog: catalog}
}

func (s *inventoryService) AdjustStock(ctx context.Context, userID uuid.UUID, userName string, productID uuid.UUID, req dto.AdjustStockRequest) (*dto.ProductResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	var updated model.Product
	txErr := runTxRetry(ctx, s.productRepo.DB(), func(tx *gorm.DB) error {
		p, err := s.productRepo.FindByIDTx(orDB(tx, s.productRepo.DB()), userID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ProductNotFoundError{ProductID: productID}
			}
			return err
		}
		if !p.Active {
			return &ProductNotFoundError{ProductID: productID}
		}

		newStock, ok, err := s.productRepo.AdjustStockTx(tx, userID, productID, req.Delta)
		if err != nil {
			return err
		}
		if !ok {
			return &InsufficientStockError{ProductID: productID, Available: p.Stock, Requested: -req.Delta}
		}

		movType := model.MovementEntrada
		if req.Delta < 0 {
			movType = model.MovementSalida
		}
		mov := &model.StockMovement{
			UserID:        userID,
			ProductID:     productID,
			Type:          movType,
			Quantity:      req.Delta,
			Reason:        req.Reason,
			UserName:      userName,
			PreviousStock: newStock - req.Delta,
			NewStock:      newStock,
		}
		if err := s.movementRepo.CreateTx(tx, mov); err != nil {
			return err
		}

		updated = *p
		updated.Stock = newStock
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.catalog.Invalidate(ctx, userID)
	return productToResponse(&updated), nil
}

func (s *inventoryService) ListMovements(ctx context.Context, userID uuid.UUID, filter dto.MovementFilter) (*dto.MovementListResponse, error) {
	movements, total, err := s.movementRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.MovementResponse, 0, len(movements))
	for i := range movements {
		data = append(data, *movementToResponse(&movements[i]))
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	return &dto.MovementListResponse{
		Data:  data,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

func movementToResponse(m *model.StockMovement) *dto.MovementResponse {
	name := ""
	if m.Product != nil {
		name = m.Product.Name
	}
	return &dto.MovementResponse{
		ID:            m.ID.String(),
		ProductID:     m.ProductID.String(),
		ProductName:   name,
		Type:          m.Type,
		Quantity:      m.Quantity,
		Reason:        m.Reason,
		UserName:      m.UserName,
		PreviousStock: m.PreviousStock,
		NewStock:      m.NewStock,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
}
