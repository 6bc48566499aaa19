package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxSettings is a one-row-per-user configuration read at checkout time.
// Rate is a fraction in [0,1], not a percentage.
type TaxSettings struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Enabled   bool            `gorm:"not null;default:false"`
	Rate      decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0"`
	Name      string          `gorm:"not null;default:'IVA'"`
	UpdatedAt time.Time
}

func (TaxSettings) TableName() string { return "tax_settings" }
