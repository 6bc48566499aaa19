package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product belongs to exactly one user (per-user data partitioning) and is
// never physically removed: Active=false is the soft delete.
// Stock is only ever mutated through the ledger protocol — every change goes
// through a conditional UPDATE plus a StockMovement row in the same transaction.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"index;not null"`
	Description *string
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Category    string          `gorm:"not null"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0"`
	Barcode     *string         `gorm:"index"`
	Image       *string
	Active      bool `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
