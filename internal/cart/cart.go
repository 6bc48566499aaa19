// Package cart implements the pre-checkout aggregate as a plain value with a
// single owner: one session, one Cart, passed explicitly — no globals. The
// per-line stock ceiling is optimistic (it uses the stock known when the
// product was added); the authoritative check happens again inside the sale
// transaction at commit time.
package cart

import (
	"errors"

	"tiendapos/internal/dto"
	"tiendapos/internal/model"
	"tiendapos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrLineNotFound = errors.New("línea no encontrada en el carrito")

// Line is one cart entry. Price and name are snapshots of the product at the
// moment it was added.
type Line struct {
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Image     *string
	Barcode   *string

	// stock known at add time — the optimistic ceiling
	knownStock int
}

type Cart struct {
	lines []Line
}

func New() *Cart { return &Cart{} }

// Add inserts a new line or merges into an existing one. Fails when the
// merged quantity would exceed the product's known stock.
func (c *Cart) Add(p *model.Product, qty int) error {
	if qty < 1 {
		return errors.New("la cantidad debe ser al menos 1")
	}
	for i := range c.lines {
		if c.lines[i].ProductID == p.ID {
			if c.lines[i].Quantity+qty > p.Stock {
				return &service.InsufficientStockError{
					ProductID: p.ID,
					Available: p.Stock,
					Requested: c.lines[i].Quantity + qty,
				}
			}
			c.lines[i].Quantity += qty
			c.lines[i].knownStock = p.Stock
			return nil
		}
	}
	if qty > p.Stock {
		return &service.InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: qty}
	}
	c.lines = append(c.lines, Line{
		ProductID:  p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Quantity:   qty,
		Image:      p.Image,
		Barcode:    p.Barcode,
		knownStock: p.Stock,
	})
	return nil
}

// SetQuantity replaces a line's quantity. Zero or negative removes the line.
func (c *Cart) SetQuantity(productID uuid.UUID, qty int) error {
	for i := range c.lines {
		if c.lines[i].ProductID != productID {
			continue
		}
		if qty <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
		if qty > c.lines[i].knownStock {
			return &service.InsufficientStockError{
				ProductID: productID,
				Available: c.lines[i].knownStock,
				Requested: qty,
			}
		}
		c.lines[i].Quantity = qty
		return nil
	}
	return ErrLineNotFound
}

// Remove always succeeds, even when the line does not exist.
func (c *Cart) Remove(productID uuid.UUID) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

func (c *Cart) Clear() { c.lines = nil }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Lines returns a copy — the cart's internal state stays single-owner.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range c.lines {
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return subtotal
}

func (c *Cart) Tax(settings *model.TaxSettings) decimal.Decimal {
	if settings == nil || !settings.Enabled {
		return decimal.Zero
	}
	return c.Subtotal().Mul(settings.Rate).Round(2)
}

func (c *Cart) Total(settings *model.TaxSettings) decimal.Decimal {
	return c.Subtotal().Add(c.Tax(settings))
}

// Checkout produces the request the sale pipeline consumes. The cart itself
// is not cleared here — the caller clears it after the sale commits.
func (c *Cart) Checkout(paymentMethod string, customerEmail *string) dto.CreateSaleRequest {
	items := make([]dto.SaleItemRequest, 0, len(c.lines))
	for _, l := range c.lines {
		items = append(items, dto.SaleItemRequest{
			ProductID: l.ProductID.String(),
			Quantity:  l.Quantity,
		})
	}
	return dto.CreateSaleRequest{
		Items:         items,
		PaymentMethod: paymentMethod,
		CustomerEmail: customerEmail,
	}
}
