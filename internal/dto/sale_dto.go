package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// SaleItemRequest is one cart line at checkout. Price is NOT accepted from the
// client — the pipeline re-reads it from the catalog inside the transaction.
type SaleItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"required,min=1"`
}

type CreateSaleRequest struct {
	Items         []SaleItemRequest `json:"items"          validate:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=efectivo tarjeta transferencia"`
	// CustomerEmail: optional — when present, the receipt worker mails a
	// plain-text receipt after the sale commits.
	CustomerEmail *string `json:"customer_email" validate:"omitempty,email"`
}

// AmendSaleRequest changes a recorded sale's items and/or status. The pipeline
// computes the stock delta between old and new state and reconciles the ledger.
type AmendSaleRequest struct {
	Items  []SaleItemRequest `json:"items"  validate:"required,dive"`
	Status string            `json:"status" validate:"required,oneof=completed pending cancelled"`
}

// ─── Filter / List ───────────────────────────────────────────────────────────

// SaleFilter is bound from the query string of GET /v1/ventas.
type SaleFilter struct {
	Date   string `form:"date"`               // YYYY-MM-DD; empty = today
	Status string `form:"status,default=all"` // completed | pending | cancelled | all
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type SaleResponse struct {
	ID            string             `json:"id"`
	Items         []SaleItemResponse `json:"items"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	Tax           decimal.Decimal    `json:"tax"`
	Total         decimal.Decimal    `json:"total"`
	PaymentMethod string             `json:"payment_method"`
	Status        string             `json:"status"`
	CreatedAt     string             `json:"created_at"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}
