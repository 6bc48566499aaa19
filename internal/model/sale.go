package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale status machine: completed ⇄ pending ⇄ cancelled — every transition is
// permitted, cancellation included. New sales are always created "completed".
const (
	SaleCompleted = "completed"
	SalePending   = "pending"
	SaleCancelled = "cancelled"
)

// Accepted payment methods.
const (
	PaymentEfectivo      = "efectivo"
	PaymentTarjeta       = "tarjeta"
	PaymentTransferencia = "transferencia"
)

// Sale is immutable after checkout except through the amendment path, which
// reconciles stock deltas and rewrites items/status while preserving CreatedAt.
// Invariant: Total = Subtotal + Tax; Subtotal = Σ item.Price × item.Quantity.
type Sale struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Tax           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaymentMethod string          `gorm:"not null"` // efectivo | tarjeta | transferencia
	Status        string          `gorm:"not null;index;default:'completed'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items []SaleItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
}

// SaleItem snapshots the product at the moment of sale — name and unit price
// are copied so later catalog edits never rewrite sales history.
type SaleItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name      string          `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Quantity  int             `gorm:"not null"`
}

// ShortID is the human-facing sale reference used in ledger reasons and
// receipts ("Venta #a1b2c3d4").
func (s *Sale) ShortID() string {
	id := s.ID.String()
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
