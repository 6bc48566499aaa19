package model

import (
	"time"

	"github.com/google/uuid"
)

// Movement direction. Quantity carries the sign: positive for entrada,
// negative for salida.
const (
	MovementEntrada = "entrada"
	MovementSalida  = "salida"
)

// StockMovement is the append-only ledger entry written alongside every stock
// mutation (sale, amendment, manual adjustment). Rows are never updated or
// deleted; the repository deliberately exposes no such methods.
type StockMovement struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Type          string    `gorm:"not null"` // entrada | salida
	Quantity      int       `gorm:"not null"`
	Reason        string
	UserName      string
	PreviousStock int `gorm:"not null"`
	NewStock      int `gorm:"not null"`
	CreatedAt     time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

func (StockMovement) TableName() string { return "stock_movements" }
