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

// ProductService defines the business logic contract for the catalog.
// Stock is deliberately absent from Update — every stock change goes through
// the inventory service so the ledger stays complete.
type ProductService interface {
	Create(ctx context.Context, userID uuid.UUID, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*dto.ProductResponse, error)
	GetByBarcode(ctx context.Context, userID uuid.UUID, barcode string) (*dto.ProductResponse, error)
	List(ctx context.Context, userID uuid.UUID, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	Update(ctx context.Context, userID, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error)
	Deactivate(ctx context.Context, userID, id uuid.UUID) error
	Reactivate(ctx context.Context, userID, id uuid.UUID) error
	Watch(ctx context.Context, userID uuid.UUID) (<-chan []dto.ProductResponse, func(), error)
}

type productService struct {
	repo    repository.ProductRepository
	catalog *CatalogCache
}

func NewProductService(repo repository.ProductRepository, catalog *CatalogCache) ProductService {
	return &productService{repo: repo, catalog: catalog}
}

func (s *productService) Create(ctx context.Context, userID uuid.UUID, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	p := &model.Product{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		Barcode:     req.Barcode,
		Image:       req.Image,
		Active:      true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.catalog.Invalidate(ctx, userID)
	return productToResponse(p), nil
}

func (s *productService) GetByID(ctx context.Context, userID, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		return nil, err
	}
	return productToResponse(p), nil
}

func (s *productService) GetByBarcode(ctx context.Context, userID uuid.UUID, barcode string) (*dto.ProductResponse, error) {
	p, err := s.repo.FindByBarcode(ctx, userID, barcode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ProductNotFoundError{}
		}
		return nil, err
	}
	return productToResponse(p), nil
}

func (s *productService) List(ctx context.Context, userID uuid.UUID, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	products, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		data = append(data, *productToResponse(&products[i]))
	}
	return &dto.ProductListResponse{
		Data:  data,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *productService) Update(ctx context.Context, userID, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	p, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Barcode != nil {
		p.Barcode = req.Barcode
	}
	if req.Image != nil {
		p.Image = req.Image
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.catalog.Invalidate(ctx, userID)
	return productToResponse(p), nil
}

func (s *productService) Deactivate(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ProductNotFoundError{ProductID: id}
		}
		return err
	}
	s.catalog.Invalidate(ctx, userID)
	return nil
}

func (s *productService) Reactivate(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Reactivate(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ProductNotFoundError{ProductID: id}
		}
		return err
	}
	s.catalog.Invalidate(ctx, userID)
	return nil
}

func (s *productService) Watch(ctx context.Context, userID uuid.UUID) (<-chan []dto.ProductResponse, func(), error) {
	return s.catalog.Watch(ctx, userID)
}

func productToResponse(p *model.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Stock:       p.Stock,
		Barcode:     p.Barcode,
		Image:       p.Image,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}
