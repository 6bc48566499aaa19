package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	Name        string          `json:"name"        validate:"required,min=2,max=120"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"       validate:"min=0"`
	Category    string          `json:"category"    validate:"required"`
	Stock       int             `json:"stock"       validate:"min=0"`
	Barcode     *string         `json:"barcode"     validate:"omitempty,min=8,max=18"`
	Image       *string         `json:"image"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"        validate:"omitempty,min=2,max=120"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Barcode     *string          `json:"barcode"     validate:"omitempty,min=8,max=18"`
	Image       *string          `json:"image"`
}

// AdjustStockRequest is a manual entrada/salida: positive delta adds stock,
// negative removes it. The reason ends up verbatim in the ledger.
type AdjustStockRequest struct {
	Delta  int    `json:"delta"  validate:"required"`
	Reason string `json:"reason" validate:"required,min=3"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductFilter struct {
	Name     string `form:"name"`
	Category string `form:"category"`
	Barcode  string `form:"barcode"`
	Active   string `form:"active"` // "false" = inactive, "all" = everything, default active only
	Page     int    `form:"page,default=1"   validate:"min=1"`
	Limit    int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Barcode     *string         `json:"barcode"`
	Image       *string         `json:"image"`
	Active      bool            `json:"active"`
	CreatedAt   string          `json:"created_at"`
}

type ProductListResponse struct {
	Data  []ProductResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
